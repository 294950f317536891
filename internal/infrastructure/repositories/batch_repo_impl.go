package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"chainhub.backend/internal/domain/entities"
	domainerrors "chainhub.backend/internal/domain/errors"
	"chainhub.backend/internal/infrastructure/models"
)

// BatchRepository implements batch data operations
type BatchRepository struct {
	db *gorm.DB
}

// NewBatchRepository creates a new batch repository
func NewBatchRepository(db *gorm.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

// Create creates a new batch with its denormalized entry snapshot
func (r *BatchRepository) Create(ctx context.Context, batch *entities.Batch) error {
	if batch.ID == uuid.Nil {
		batch.ID = uuid.New()
	}
	entries, err := json.Marshal(batch.Entries)
	if err != nil {
		return err
	}
	m := &models.Batch{
		ID:              batch.ID,
		ProfileID:       batch.ProfileID,
		Entries:         string(entries),
		AtomicExecution: batch.AtomicExecution,
		Status:          string(batch.Status),
		CompletedAt:     batch.CompletedAt,
	}
	db := GetDB(ctx, r.db)
	if err := db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	batch.CreatedAt = m.CreatedAt
	batch.UpdatedAt = m.UpdatedAt
	return nil
}

// GetByID gets a batch by ID
func (r *BatchRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.Batch, error) {
	var m models.Batch
	db := GetDB(ctx, r.db)
	if err := db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return r.toEntity(&m)
}

// UpdateEntries rewrites the entry snapshot and overall status
func (r *BatchRepository) UpdateEntries(ctx context.Context, id uuid.UUID, entries []entities.BatchEntry, status entities.BatchStatus) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	db := GetDB(ctx, r.db)
	result := db.WithContext(ctx).Model(&models.Batch{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"entries":    string(data),
			"status":     string(status),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrNotFound
	}
	return nil
}

// Promote flips the batch to a terminal status exactly once. The conditional
// write loses gracefully when a concurrent reader promoted first.
func (r *BatchRepository) Promote(ctx context.Context, id uuid.UUID, status entities.BatchStatus, completedAt time.Time) error {
	db := GetDB(ctx, r.db)
	result := db.WithContext(ctx).Model(&models.Batch{}).
		Where("id = ? AND status NOT IN ?", id, []string{
			string(entities.BatchStatusCompleted),
			string(entities.BatchStatusFailed),
		}).
		Updates(map[string]interface{}{
			"status":       string(status),
			"completed_at": completedAt,
			"updated_at":   time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := db.WithContext(ctx).Model(&models.Batch{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return domainerrors.ErrNotFound
		}
		return domainerrors.ErrAlreadyProcessed
	}
	return nil
}

func (r *BatchRepository) toEntity(m *models.Batch) (*entities.Batch, error) {
	b := &entities.Batch{
		ID:              m.ID,
		ProfileID:       m.ProfileID,
		AtomicExecution: m.AtomicExecution,
		Status:          entities.BatchStatus(m.Status),
		CompletedAt:     m.CompletedAt,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
	if m.Entries != "" {
		if err := json.Unmarshal([]byte(m.Entries), &b.Entries); err != nil {
			return nil, err
		}
	}
	return b, nil
}
