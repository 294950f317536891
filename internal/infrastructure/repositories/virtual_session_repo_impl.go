package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"chainhub.backend/internal/domain/entities"
	"chainhub.backend/internal/infrastructure/models"
)

// VirtualSessionRepository implements durable session bookkeeping
type VirtualSessionRepository struct {
	db *gorm.DB
}

// NewVirtualSessionRepository creates a new virtual session repository
func NewVirtualSessionRepository(db *gorm.DB) *VirtualSessionRepository {
	return &VirtualSessionRepository{db: db}
}

// Upsert inserts or refreshes the record keyed by (profileId, chainId)
func (r *VirtualSessionRepository) Upsert(ctx context.Context, session *entities.VirtualSession) error {
	db := GetDB(ctx, r.db)

	var existing models.VirtualSession
	err := db.WithContext(ctx).
		Where("profile_id = ? AND chain_id = ?", session.ProfileID, session.ChainID).
		First(&existing).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if session.ID == uuid.Nil {
			session.ID = uuid.New()
		}
		m := &models.VirtualSession{
			ID:        session.ID,
			ProfileID: session.ProfileID,
			ChainID:   session.ChainID,
			Address:   session.Address,
			RPCURL:    session.RPCURL,
			IsActive:  session.IsActive,
		}
		return db.WithContext(ctx).Create(m).Error
	}

	session.ID = existing.ID
	return db.WithContext(ctx).Model(&models.VirtualSession{}).
		Where("id = ?", existing.ID).
		Updates(map[string]interface{}{
			"address":    session.Address,
			"rpc_url":    session.RPCURL,
			"is_active":  session.IsActive,
			"updated_at": time.Now(),
		}).Error
}

// GetByProfile lists durable session records for a profile
func (r *VirtualSessionRepository) GetByProfile(ctx context.Context, profileID uuid.UUID) ([]*entities.VirtualSession, error) {
	var ms []models.VirtualSession
	db := GetDB(ctx, r.db)
	if err := db.WithContext(ctx).
		Where("profile_id = ?", profileID).
		Order("chain_id ASC").
		Find(&ms).Error; err != nil {
		return nil, err
	}

	var sessions []*entities.VirtualSession
	for _, m := range ms {
		sessions = append(sessions, &entities.VirtualSession{
			ID:        m.ID,
			ProfileID: m.ProfileID,
			ChainID:   m.ChainID,
			Address:   m.Address,
			RPCURL:    m.RPCURL,
			IsActive:  m.IsActive,
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		})
	}
	return sessions, nil
}
