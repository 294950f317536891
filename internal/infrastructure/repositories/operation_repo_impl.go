package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
	"gorm.io/gorm"
	"chainhub.backend/internal/domain/entities"
	domainerrors "chainhub.backend/internal/domain/errors"
	"chainhub.backend/internal/infrastructure/models"
)

// OperationRepository implements operation data operations
type OperationRepository struct {
	db *gorm.DB
}

// NewOperationRepository creates a new operation repository
func NewOperationRepository(db *gorm.DB) *OperationRepository {
	return &OperationRepository{db: db}
}

// batchTag is the metadata fragment used for the JSON-contains style batch
// filter. Metadata is marshaled with batchId first so the fragment is stable.
func batchTag(batchID uuid.UUID) string {
	return fmt.Sprintf(`%%"batchId":"%s"%%`, batchID)
}

// byBatch filters on the serialized metadata column. The column is jsonb on
// Postgres, which defines no LIKE operator and no implicit cast to text, so
// the match must cast explicitly; sqlite accepts the same cast.
func byBatch(db *gorm.DB, batchID uuid.UUID) *gorm.DB {
	return db.Where("CAST(metadata AS TEXT) LIKE ?", batchTag(batchID))
}

// Create creates a new operation
func (r *OperationRepository) Create(ctx context.Context, op *entities.Operation) error {
	if op.ID == uuid.Nil {
		op.ID = uuid.New()
	}
	meta, err := json.Marshal(op.Metadata)
	if err != nil {
		return err
	}
	m := &models.Operation{
		ID:              op.ID,
		ProfileID:       op.ProfileID,
		OperationSetID:  op.OperationSetID,
		Type:            string(op.Type),
		Status:          string(op.Status),
		UnsignedPayload: string(op.UnsignedPayload),
		SignedPayload:   op.SignedPayload.Ptr(),
		Intent:          string(op.Intent),
		Metadata:        string(meta),
		ErrorMessage:    op.ErrorMessage.Ptr(),
		CompletedAt:     op.CompletedAt,
	}
	if m.UnsignedPayload == "" {
		m.UnsignedPayload = "{}"
	}
	if m.Intent == "" {
		m.Intent = "{}"
	}
	db := GetDB(ctx, r.db)
	if err := db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	op.CreatedAt = m.CreatedAt
	op.UpdatedAt = m.UpdatedAt
	return nil
}

// GetBySetID gets an operation by its provider-assigned set id
func (r *OperationRepository) GetBySetID(ctx context.Context, operationSetID string) (*entities.Operation, error) {
	var m models.Operation
	db := GetDB(ctx, r.db)
	if err := db.WithContext(ctx).
		Preload("Transactions").
		Where("operation_set_id = ?", operationSetID).
		First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return r.toEntity(&m), nil
}

// GetByBatchID returns all operations tagged with the batch, ordered by index
func (r *OperationRepository) GetByBatchID(ctx context.Context, batchID uuid.UUID) ([]*entities.Operation, error) {
	var ms []models.Operation
	db := GetDB(ctx, r.db)
	if err := byBatch(db.WithContext(ctx).Preload("Transactions"), batchID).
		Find(&ms).Error; err != nil {
		return nil, err
	}

	ops := make([]*entities.Operation, 0, len(ms))
	for _, m := range ms {
		model := m
		ops = append(ops, r.toEntity(&model))
	}
	// Metadata index, not insertion order, defines batch position.
	sort.SliceStable(ops, func(i, j int) bool {
		return batchIndex(ops[i]) < batchIndex(ops[j])
	})
	return ops, nil
}

func batchIndex(op *entities.Operation) int {
	if op.Metadata.BatchIndex != nil {
		return *op.Metadata.BatchIndex
	}
	return 0
}

// DeleteByBatchID removes every operation tagged with the batch
func (r *OperationRepository) DeleteByBatchID(ctx context.Context, batchID uuid.UUID) error {
	db := GetDB(ctx, r.db)
	return byBatch(db.WithContext(ctx), batchID).
		Delete(&models.Operation{}).Error
}

// TransitionStatus moves the operation between statuses with a conditional
// single-row write.
func (r *OperationRepository) TransitionStatus(ctx context.Context, operationSetID string, from, to entities.OperationStatus) error {
	db := GetDB(ctx, r.db)
	result := db.WithContext(ctx).Model(&models.Operation{}).
		Where("operation_set_id = ? AND status = ?", operationSetID, from).
		Updates(map[string]interface{}{
			"status":     string(to),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return r.transitionConflict(ctx, operationSetID)
	}
	return nil
}

// SetSignedPayload persists the externally produced signature payload
func (r *OperationRepository) SetSignedPayload(ctx context.Context, operationSetID, payload string) error {
	db := GetDB(ctx, r.db)
	result := db.WithContext(ctx).Model(&models.Operation{}).
		Where("operation_set_id = ?", operationSetID).
		Updates(map[string]interface{}{
			"signed_payload": payload,
			"updated_at":     time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrNotFound
	}
	return nil
}

// Complete records a terminal status, completion time and optional error,
// conditional on the current status.
func (r *OperationRepository) Complete(ctx context.Context, operationSetID string, from, to entities.OperationStatus, errorMessage string, completedAt time.Time) error {
	updates := map[string]interface{}{
		"status":       string(to),
		"completed_at": completedAt,
		"updated_at":   time.Now(),
	}
	if errorMessage != "" {
		updates["error_message"] = errorMessage
	}
	db := GetDB(ctx, r.db)
	result := db.WithContext(ctx).Model(&models.Operation{}).
		Where("operation_set_id = ? AND status = ?", operationSetID, from).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return r.transitionConflict(ctx, operationSetID)
	}
	return nil
}

// transitionConflict distinguishes a missing row from a status race.
func (r *OperationRepository) transitionConflict(ctx context.Context, operationSetID string) error {
	var count int64
	db := GetDB(ctx, r.db)
	if err := db.WithContext(ctx).Model(&models.Operation{}).
		Where("operation_set_id = ?", operationSetID).
		Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return domainerrors.ErrNotFound
	}
	return domainerrors.ErrAlreadyProcessed
}

func (r *OperationRepository) toEntity(m *models.Operation) *entities.Operation {
	op := &entities.Operation{
		ID:              m.ID,
		ProfileID:       m.ProfileID,
		OperationSetID:  m.OperationSetID,
		Type:            entities.OperationType(m.Type),
		Status:          entities.OperationStatus(m.Status),
		UnsignedPayload: json.RawMessage(m.UnsignedPayload),
		SignedPayload:   null.StringFromPtr(m.SignedPayload),
		Intent:          json.RawMessage(m.Intent),
		ErrorMessage:    null.StringFromPtr(m.ErrorMessage),
		CompletedAt:     m.CompletedAt,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
	if m.Metadata != "" {
		_ = json.Unmarshal([]byte(m.Metadata), &op.Metadata)
	}
	for _, t := range m.Transactions {
		op.Transactions = append(op.Transactions, &entities.Transaction{
			ID:          t.ID,
			OperationID: t.OperationID,
			ChainID:     t.ChainID,
			TxHash:      t.TxHash,
			Status:      t.Status,
			GasUsed:     t.GasUsed,
			CreatedAt:   t.CreatedAt,
		})
	}
	return op
}
