package usecases

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"chainhub.backend/internal/domain/entities"
	domainerrors "chainhub.backend/internal/domain/errors"
	"chainhub.backend/internal/domain/providers"
	"chainhub.backend/internal/domain/repositories"
	"chainhub.backend/pkg/logger"
	"chainhub.backend/pkg/metrics"
)

// SubmissionMonitor submits signed operations and tracks their lifecycle to
// completion. Provider status pushes are queued onto a dedicated worker so a
// slow store write never blocks the subscription read loop.
type SubmissionMonitor struct {
	client      providers.ChainAbstractionClient
	opRepo      repositories.OperationRepository
	txRepo      repositories.TransactionRepository
	invalidator ProfileCacheInvalidator

	updates   chan providers.StatusUpdate
	done      chan struct{}
	closeOnce sync.Once
}

// ProfileCacheInvalidator drops a profile's balance-derived caches after a
// successful operation changes its balances.
type ProfileCacheInvalidator interface {
	InvalidateProfile(ctx context.Context, profileID uuid.UUID)
}

// NewSubmissionMonitor creates a monitor and starts its dispatch worker
func NewSubmissionMonitor(
	client providers.ChainAbstractionClient,
	opRepo repositories.OperationRepository,
	txRepo repositories.TransactionRepository,
	invalidator ProfileCacheInvalidator,
) *SubmissionMonitor {
	m := &SubmissionMonitor{
		client:      client,
		opRepo:      opRepo,
		txRepo:      txRepo,
		invalidator: invalidator,
		updates:     make(chan providers.StatusUpdate, 256),
		done:        make(chan struct{}),
	}
	go m.worker()
	return m
}

// Close stops the dispatch worker after draining queued updates
func (m *SubmissionMonitor) Close() {
	m.closeOnce.Do(func() {
		close(m.updates)
	})
	<-m.done
}

// Submit sends the signed payloads for an operation in `created` status and
// subscribes for its asynchronous status updates. Once accepted by the
// provider the submission cannot be cancelled.
func (m *SubmissionMonitor) Submit(ctx context.Context, profile *entities.Profile, operationSetID string, signed []entities.SignedOperation) (*providers.SubmitResult, error) {
	op, err := m.opRepo.GetBySetID(ctx, operationSetID)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			return nil, domainerrors.NotFound("operation not found: " + operationSetID)
		}
		return nil, err
	}
	if op.Status != entities.OperationStatusCreated {
		return nil, domainerrors.Conflict("operation already processed: " + operationSetID)
	}

	result, err := m.client.Submit(ctx, profile.ClusterID.String, operationSetID, signed)
	if err != nil {
		metrics.OperationsSubmitted.WithLabelValues("error").Inc()
		m.recordSubmitFailure(ctx, operationSetID, err)
		return nil, err
	}

	if len(signed) > 0 {
		if err := m.opRepo.SetSignedPayload(ctx, operationSetID, signed[0].SignedPayload); err != nil {
			logger.Warn(ctx, "failed to persist signed payload",
				zap.String("operation_set_id", operationSetID), zap.Error(err))
		}
	}
	if err := m.opRepo.TransitionStatus(ctx, operationSetID, entities.OperationStatusCreated, entities.OperationStatusPending); err != nil {
		return nil, err
	}
	metrics.OperationsSubmitted.WithLabelValues("accepted").Inc()

	m.monitor(ctx, operationSetID)
	return result, nil
}

// recordSubmitFailure marks the operation failed with the provider's error
// text so retry classification can read it later.
func (m *SubmissionMonitor) recordSubmitFailure(ctx context.Context, operationSetID string, submitErr error) {
	if err := m.opRepo.Complete(ctx, operationSetID,
		entities.OperationStatusCreated, entities.OperationStatusFailed,
		submitErr.Error(), time.Now()); err != nil {
		logger.Warn(ctx, "failed to record submission failure",
			zap.String("operation_set_id", operationSetID), zap.Error(err))
	}
}

// monitor subscribes to the provider's push stream for the operation set.
// Updates are queued to the worker; the subscription callback never touches
// the store directly.
func (m *SubmissionMonitor) monitor(ctx context.Context, operationSetID string) {
	err := m.client.SubscribeStatus(ctx, operationSetID, func(update providers.StatusUpdate) {
		update.OperationSetID = operationSetID
		select {
		case m.updates <- update:
		default:
			logger.Warn(context.Background(), "status update queue full, dropping",
				zap.String("operation_set_id", operationSetID))
		}
	})
	if err != nil {
		logger.Error(ctx, "status subscription failed",
			zap.String("operation_set_id", operationSetID), zap.Error(err))
	}
}

func (m *SubmissionMonitor) worker() {
	defer close(m.done)
	for update := range m.updates {
		m.applyUpdate(context.Background(), update)
	}
}

// applyUpdate writes one status push through to the store.
func (m *SubmissionMonitor) applyUpdate(ctx context.Context, update providers.StatusUpdate) {
	var status entities.OperationStatus
	switch update.Status {
	case providers.UpdateStatusCompleted:
		status = entities.OperationStatusSuccessful
	case providers.UpdateStatusFailed:
		status = entities.OperationStatusFailed
	default:
		// Intermediate pushes carry no state we persist.
		return
	}

	op, err := m.opRepo.GetBySetID(ctx, update.OperationSetID)
	if err != nil {
		logger.Error(ctx, "status update for unknown operation",
			zap.String("operation_set_id", update.OperationSetID), zap.Error(err))
		return
	}

	errMsg := ""
	if status == entities.OperationStatusFailed {
		errMsg = "provider reported failure"
	}
	if err := m.opRepo.Complete(ctx, update.OperationSetID,
		entities.OperationStatusPending, status, errMsg, time.Now()); err != nil {
		if errors.Is(err, domainerrors.ErrAlreadyProcessed) {
			return
		}
		logger.Error(ctx, "failed to persist terminal status",
			zap.String("operation_set_id", update.OperationSetID), zap.Error(err))
		return
	}
	metrics.OperationsCompleted.WithLabelValues(string(status)).Inc()

	if len(update.Transactions) > 0 {
		txs := make([]*entities.Transaction, 0, len(update.Transactions))
		for _, t := range update.Transactions {
			txs = append(txs, &entities.Transaction{
				OperationID: op.ID,
				ChainID:     t.ChainID,
				TxHash:      t.Hash,
				Status:      t.Status,
				GasUsed:     t.GasUsed,
			})
		}
		if err := m.txRepo.CreateAll(ctx, txs); err != nil {
			logger.Error(ctx, "failed to persist transactions",
				zap.String("operation_set_id", update.OperationSetID), zap.Error(err))
		}
	}

	if status == entities.OperationStatusSuccessful && m.invalidator != nil {
		m.invalidator.InvalidateProfile(ctx, op.ProfileID)
	}

	logger.Info(ctx, "operation reached terminal status",
		zap.String("operation_set_id", update.OperationSetID),
		zap.String("status", string(status)),
		zap.Int("transactions", len(update.Transactions)),
	)
}
