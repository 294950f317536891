package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"chainhub.backend/internal/domain/entities"
	domainerrors "chainhub.backend/internal/domain/errors"
	"chainhub.backend/internal/domain/repositories"
	"chainhub.backend/pkg/logger"
	"chainhub.backend/pkg/metrics"
)

// MaxBatchOperations bounds how many intents one batch may carry
const MaxBatchOperations = 10

// BatchOrchestrator groups operation intents into batches, applies
// atomic-vs-best-effort policy, and exposes status, retry and recovery
// operations.
type BatchOrchestrator struct {
	clusters    *ClusterManager
	builder     *OperationBuilder
	monitor     *SubmissionMonitor
	profileRepo repositories.ProfileRepository
	opRepo      repositories.OperationRepository
	batchRepo   repositories.BatchRepository
	uow         repositories.UnitOfWork
}

// NewBatchOrchestrator creates a new batch orchestrator
func NewBatchOrchestrator(
	clusters *ClusterManager,
	builder *OperationBuilder,
	monitor *SubmissionMonitor,
	profileRepo repositories.ProfileRepository,
	opRepo repositories.OperationRepository,
	batchRepo repositories.BatchRepository,
	uow repositories.UnitOfWork,
) *BatchOrchestrator {
	return &BatchOrchestrator{
		clusters:    clusters,
		builder:     builder,
		monitor:     monitor,
		profileRepo: profileRepo,
		opRepo:      opRepo,
		batchRepo:   batchRepo,
		uow:         uow,
	}
}

type retryMeta struct {
	originalBatchID uuid.UUID
}

// CreateBatch builds every intent in order and persists the batch. In atomic
// mode the first failure stops processing and rolls back every operation row
// tagged with this batch, leaving nothing half-created.
func (o *BatchOrchestrator) CreateBatch(ctx context.Context, profileID uuid.UUID, envelopes []entities.IntentEnvelope, atomic bool) (*entities.BatchResult, error) {
	return o.createBatch(ctx, profileID, envelopes, atomic, nil)
}

func (o *BatchOrchestrator) createBatch(ctx context.Context, profileID uuid.UUID, envelopes []entities.IntentEnvelope, atomic bool, retry *retryMeta) (*entities.BatchResult, error) {
	if len(envelopes) == 0 {
		return nil, domainerrors.BadRequest("batch requires at least one operation")
	}
	if len(envelopes) > MaxBatchOperations {
		return nil, domainerrors.BadRequest("batch exceeds maximum of 10 operations")
	}

	profile, err := o.profileRepo.GetByID(ctx, profileID)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			return nil, domainerrors.NotFound("profile not found")
		}
		return nil, err
	}
	if _, err := o.clusters.EnsureCluster(ctx, profile); err != nil {
		return nil, err
	}

	batchID := uuid.New()
	entries := make([]entities.BatchEntry, 0, len(envelopes))
	anyFailed := false

	for i, env := range envelopes {
		entry := entities.BatchEntry{Index: i, Type: env.Type}

		set, buildErr := o.buildOne(ctx, profile, batchID, i, env, retry)
		if buildErr != nil {
			entry.Status = entities.OperationStatusFailed
			entry.Error = buildErr.Error()
			entries = append(entries, entry)
			anyFailed = true
			if atomic {
				// Fail fast: remaining intents are never attempted.
				break
			}
			continue
		}

		entry.Status = entities.OperationStatusCreated
		entry.OperationSetID = set.OperationSetID
		entries = append(entries, entry)
	}

	if atomic && anyFailed {
		if err := o.rollback(ctx, batchID); err != nil {
			logger.Error(ctx, "atomic batch rollback failed",
				zap.String("batch_id", batchID.String()), zap.Error(err))
		}
		metrics.BatchesCreated.WithLabelValues("rolled_back").Inc()
		return nil, domainerrors.NewAppError(http.StatusUnprocessableEntity, firstError(entries), domainerrors.ErrBatchFailed)
	}

	status := entities.BatchStatusCreated
	if anyFailed {
		status = entities.BatchStatusPartial
	}

	batch := &entities.Batch{
		ID:              batchID,
		ProfileID:       profileID,
		Entries:         entries,
		AtomicExecution: atomic,
		Status:          status,
	}
	if err := o.uow.Do(ctx, func(txCtx context.Context) error {
		return o.batchRepo.Create(txCtx, batch)
	}); err != nil {
		return nil, err
	}
	metrics.BatchesCreated.WithLabelValues(string(status)).Inc()

	logger.Info(ctx, "batch created",
		zap.String("batch_id", batchID.String()),
		zap.String("status", string(status)),
		zap.Int("operations", len(entries)),
	)
	return resultFrom(batch), nil
}

// buildOne builds a single intent and persists its operation row tagged with
// the batch.
func (o *BatchOrchestrator) buildOne(ctx context.Context, profile *entities.Profile, batchID uuid.UUID, index int, env entities.IntentEnvelope, retry *retryMeta) (*entities.UnsignedOperationSet, error) {
	idx := index
	meta := entities.OperationMetadata{BatchID: &batchID, BatchIndex: &idx}
	if retry != nil {
		orig := retry.originalBatchID
		meta.OriginalBatchID = &orig
		meta.IsRetry = true
	}
	return o.builder.CreateOperation(ctx, profile, env, meta)
}

// rollback deletes every operation row tagged with the batch inside one
// transaction.
func (o *BatchOrchestrator) rollback(ctx context.Context, batchID uuid.UUID) error {
	return o.uow.Do(ctx, func(txCtx context.Context) error {
		return o.opRepo.DeleteByBatchID(txCtx, batchID)
	})
}

func firstError(entries []entities.BatchEntry) string {
	for _, e := range entries {
		if e.Error != "" {
			return e.Error
		}
	}
	return "batch creation failed"
}

// ExecuteBatch submits the signed payloads for a batch's member operations.
// Atomic batches stop at the first submission failure.
func (o *BatchOrchestrator) ExecuteBatch(ctx context.Context, batchID uuid.UUID, signed []entities.SignedOperation) (*entities.BatchResult, error) {
	batch, err := o.batchRepo.GetByID(ctx, batchID)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			return nil, domainerrors.NotFound("batch not found")
		}
		return nil, err
	}
	if batch.Status != entities.BatchStatusCreated && batch.Status != entities.BatchStatusPartial {
		return nil, domainerrors.Conflict("batch already processed")
	}

	profile, err := o.profileRepo.GetByID(ctx, batch.ProfileID)
	if err != nil {
		return nil, err
	}

	signedBySet := make(map[string]entities.SignedOperation, len(signed))
	for _, s := range signed {
		signedBySet[s.OperationSetID] = s
	}

	submitted, failed := 0, 0
	for i := range batch.Entries {
		entry := &batch.Entries[i]
		if entry.Status != entities.OperationStatusCreated || entry.OperationSetID == "" {
			continue
		}
		sig, ok := signedBySet[entry.OperationSetID]
		if !ok {
			continue
		}

		if _, err := o.monitor.Submit(ctx, profile, entry.OperationSetID, []entities.SignedOperation{sig}); err != nil {
			entry.Status = entities.OperationStatusFailed
			entry.Error = err.Error()
			failed++
			if batch.AtomicExecution {
				break
			}
			continue
		}
		entry.Status = entities.OperationStatusPending
		submitted++
	}

	var status entities.BatchStatus
	switch {
	case failed == 0 && submitted > 0:
		status = entities.BatchStatusSubmitted
	case submitted > 0:
		status = entities.BatchStatusPartial
	default:
		status = entities.BatchStatusFailed
	}

	if err := o.batchRepo.UpdateEntries(ctx, batchID, batch.Entries, status); err != nil {
		return nil, err
	}
	batch.Status = status

	logger.Info(ctx, "batch executed",
		zap.String("batch_id", batchID.String()),
		zap.String("status", string(status)),
		zap.Int("submitted", submitted),
		zap.Int("failed", failed),
	)
	return resultFrom(batch), nil
}

// GetStatus reconciles each member's live operation status into the batch and
// lazily promotes the batch to a terminal status once every member is
// terminal. The conditional promote guarantees the completion timestamp is
// written exactly once.
func (o *BatchOrchestrator) GetStatus(ctx context.Context, batchID uuid.UUID) (*entities.BatchStatusReport, error) {
	batch, err := o.batchRepo.GetByID(ctx, batchID)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			return nil, domainerrors.NotFound("batch not found")
		}
		return nil, err
	}

	ops, err := o.opRepo.GetByBatchID(ctx, batchID)
	if err != nil {
		return nil, err
	}
	opsBySet := make(map[string]*entities.Operation, len(ops))
	for _, op := range ops {
		opsBySet[op.OperationSetID] = op
	}

	changed := false
	allTerminal := true
	anyFailed := false
	for i := range batch.Entries {
		entry := &batch.Entries[i]
		if op, ok := opsBySet[entry.OperationSetID]; ok && op.Status != entry.Status {
			entry.Status = op.Status
			if op.ErrorMessage.Valid {
				entry.Error = op.ErrorMessage.String
			}
			changed = true
		}
		if !entry.Status.Terminal() {
			allTerminal = false
		}
		if entry.Status == entities.OperationStatusFailed {
			anyFailed = true
		}
	}

	if allTerminal && !batch.Status.Terminal() {
		final := entities.BatchStatusCompleted
		if anyFailed {
			final = entities.BatchStatusFailed
		}
		now := time.Now()
		err := o.batchRepo.Promote(ctx, batchID, final, now)
		switch {
		case err == nil:
			batch.Status = final
			batch.CompletedAt = &now
			if changed {
				if err := o.batchRepo.UpdateEntries(ctx, batchID, batch.Entries, final); err != nil {
					logger.Warn(ctx, "failed to persist reconciled entries",
						zap.String("batch_id", batchID.String()), zap.Error(err))
				}
			}
		case errors.Is(err, domainerrors.ErrAlreadyProcessed):
			// Another reader promoted first; re-read for the stamped time.
			if fresh, ferr := o.batchRepo.GetByID(ctx, batchID); ferr == nil {
				batch.Status = fresh.Status
				batch.CompletedAt = fresh.CompletedAt
			}
		default:
			return nil, err
		}
	} else if changed {
		if err := o.batchRepo.UpdateEntries(ctx, batchID, batch.Entries, batch.Status); err != nil {
			logger.Warn(ctx, "failed to persist reconciled entries",
				zap.String("batch_id", batchID.String()), zap.Error(err))
		}
	}

	return &entities.BatchStatusReport{
		BatchID:         batch.ID,
		Status:          batch.Status,
		AtomicExecution: batch.AtomicExecution,
		Entries:         batch.Entries,
		CreatedAt:       batch.CreatedAt,
		CompletedAt:     batch.CompletedAt,
	}, nil
}

// RetryFailedOperations re-submits failed members as a brand-new non-atomic
// batch tagged with the original batch id. The original batch record is never
// mutated.
func (o *BatchOrchestrator) RetryFailedOperations(ctx context.Context, batchID uuid.UUID, indices []int) (*entities.BatchResult, error) {
	batch, err := o.batchRepo.GetByID(ctx, batchID)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			return nil, domainerrors.NotFound("batch not found")
		}
		return nil, err
	}

	wanted := make(map[int]bool, len(indices))
	for _, i := range indices {
		wanted[i] = true
	}

	ops, err := o.opRepo.GetByBatchID(ctx, batchID)
	if err != nil {
		return nil, err
	}
	opsBySet := make(map[string]*entities.Operation, len(ops))
	for _, op := range ops {
		opsBySet[op.OperationSetID] = op
	}

	var envelopes []entities.IntentEnvelope
	for _, entry := range batch.Entries {
		if entry.Status != entities.OperationStatusFailed {
			continue
		}
		if len(indices) > 0 && !wanted[entry.Index] {
			continue
		}
		op, ok := opsBySet[entry.OperationSetID]
		if !ok || !canRetryOperation(op) {
			continue
		}
		var env entities.IntentEnvelope
		if err := json.Unmarshal(op.Intent, &env); err != nil {
			logger.Warn(ctx, "stored intent unreadable, skipping retry",
				zap.String("operation_set_id", op.OperationSetID), zap.Error(err))
			continue
		}
		envelopes = append(envelopes, env)
	}

	if len(envelopes) == 0 {
		return nil, domainerrors.BadRequest("no retryable failed operations")
	}

	return o.createBatch(ctx, batch.ProfileID, envelopes, false, &retryMeta{originalBatchID: batchID})
}

// HandlePartialFailure classifies a batch's failed members so a client can
// decide which are worth retrying.
func (o *BatchOrchestrator) HandlePartialFailure(ctx context.Context, batchID uuid.UUID) (*entities.PartialFailureReport, error) {
	batch, err := o.batchRepo.GetByID(ctx, batchID)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			return nil, domainerrors.NotFound("batch not found")
		}
		return nil, err
	}

	report := &entities.PartialFailureReport{
		BatchID:   batch.ID,
		Status:    batch.Status,
		Retryable: []entities.FailedEntry{},
		Permanent: []entities.FailedEntry{},
	}
	for _, entry := range batch.Entries {
		if entry.Status != entities.OperationStatusFailed {
			continue
		}
		fe := entities.FailedEntry{
			Index:          entry.Index,
			OperationSetID: entry.OperationSetID,
			Error:          entry.Error,
		}
		if isRetryableError(entry.Error) {
			fe.Class = entities.FailureClassRetryable
			report.Retryable = append(report.Retryable, fe)
		} else {
			fe.Class = entities.FailureClassPermanent
			report.Permanent = append(report.Permanent, fe)
		}
	}
	return report, nil
}

func resultFrom(batch *entities.Batch) *entities.BatchResult {
	result := &entities.BatchResult{
		BatchID: batch.ID,
		Status:  batch.Status,
		Entries: batch.Entries,
	}
	for _, e := range batch.Entries {
		result.TotalOperations++
		if e.Status == entities.OperationStatusFailed {
			result.FailedOperations++
		} else {
			result.SuccessfulOperations++
		}
	}
	return result
}
