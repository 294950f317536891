package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"chainhub.backend/internal/domain/entities"
)

// OperationRepository handles operation persistence. Status transitions are
// conditional single-row writes so two concurrent callers can never
// double-submit the same operation.
type OperationRepository interface {
	Create(ctx context.Context, op *entities.Operation) error
	GetBySetID(ctx context.Context, operationSetID string) (*entities.Operation, error)
	// GetByBatchID returns every operation whose metadata references the batch,
	// ordered by batch index.
	GetByBatchID(ctx context.Context, batchID uuid.UUID) ([]*entities.Operation, error)
	// DeleteByBatchID removes all operations tagged with the batch. Used for
	// atomic-creation rollback.
	DeleteByBatchID(ctx context.Context, batchID uuid.UUID) error
	// TransitionStatus moves the operation from one status to another. Returns
	// domainerrors.ErrAlreadyProcessed when the row is not currently in `from`.
	TransitionStatus(ctx context.Context, operationSetID string, from, to entities.OperationStatus) error
	SetSignedPayload(ctx context.Context, operationSetID, payload string) error
	// Complete records a terminal status together with the completion time and
	// an optional error message, conditional on the current status.
	Complete(ctx context.Context, operationSetID string, from, to entities.OperationStatus, errorMessage string, completedAt time.Time) error
}

// TransactionRepository persists per-chain transactions under an operation
type TransactionRepository interface {
	CreateAll(ctx context.Context, txs []*entities.Transaction) error
	GetByOperationID(ctx context.Context, operationID uuid.UUID) ([]*entities.Transaction, error)
}
