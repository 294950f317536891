package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"chainhub.backend/internal/domain/entities"
)

// BatchRepository handles batch persistence. The entries column is a
// denormalized snapshot; per-operation truth lives in the operations table.
type BatchRepository interface {
	Create(ctx context.Context, batch *entities.Batch) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.Batch, error)
	// UpdateEntries rewrites the denormalized entry snapshot and overall status.
	UpdateEntries(ctx context.Context, id uuid.UUID, entries []entities.BatchEntry, status entities.BatchStatus) error
	// Promote flips the batch to a terminal status and stamps completion,
	// conditional on the batch not already being terminal. Returns
	// domainerrors.ErrAlreadyProcessed when another caller promoted first.
	Promote(ctx context.Context, id uuid.UUID, status entities.BatchStatus, completedAt time.Time) error
}

// UnitOfWork executes a function inside one store transaction
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}
