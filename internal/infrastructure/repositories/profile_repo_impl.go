package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
	"gorm.io/gorm"
	"chainhub.backend/internal/domain/entities"
	domainerrors "chainhub.backend/internal/domain/errors"
	"chainhub.backend/internal/infrastructure/models"
)

// ProfileRepository implements profile data operations
type ProfileRepository struct {
	db *gorm.DB
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(db *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// Create creates a new profile with its linked accounts
func (r *ProfileRepository) Create(ctx context.Context, profile *entities.Profile) error {
	if profile.ID == uuid.Nil {
		profile.ID = uuid.New()
	}
	m := &models.Profile{
		ID:                   profile.ID,
		SessionWalletAddress: profile.SessionWalletAddress,
		ClusterID:            profile.ClusterID.Ptr(),
	}
	for _, a := range profile.LinkedAccounts {
		id := a.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		m.LinkedAccounts = append(m.LinkedAccounts, models.LinkedAccount{
			ID:        id,
			ProfileID: profile.ID,
			Address:   a.Address,
			ChainID:   a.ChainID,
			IsActive:  a.IsActive,
		})
	}
	db := GetDB(ctx, r.db)
	if err := db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	profile.CreatedAt = m.CreatedAt
	profile.UpdatedAt = m.UpdatedAt
	return nil
}

// GetByID gets a profile by ID with linked accounts preloaded
func (r *ProfileRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.Profile, error) {
	var m models.Profile
	db := GetDB(ctx, r.db)
	if err := db.WithContext(ctx).Preload("LinkedAccounts").Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return r.toEntity(&m), nil
}

// SetClusterID persists the provider cluster id
func (r *ProfileRepository) SetClusterID(ctx context.Context, id uuid.UUID, clusterID string) error {
	db := GetDB(ctx, r.db)
	result := db.WithContext(ctx).Model(&models.Profile{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"cluster_id": clusterID,
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

// ClearClusterID invalidates the stored cluster id
func (r *ProfileRepository) ClearClusterID(ctx context.Context, id uuid.UUID) error {
	db := GetDB(ctx, r.db)
	result := db.WithContext(ctx).Model(&models.Profile{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"cluster_id": nil,
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

// AddLinkedAccount attaches a new linked account to a profile
func (r *ProfileRepository) AddLinkedAccount(ctx context.Context, account *entities.LinkedAccount) error {
	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}
	m := &models.LinkedAccount{
		ID:        account.ID,
		ProfileID: account.ProfileID,
		Address:   account.Address,
		ChainID:   account.ChainID,
		IsActive:  account.IsActive,
	}
	db := GetDB(ctx, r.db)
	return db.WithContext(ctx).Create(m).Error
}

// SetLinkedAccountActive flips a linked account's active flag
func (r *ProfileRepository) SetLinkedAccountActive(ctx context.Context, accountID uuid.UUID, active bool) error {
	db := GetDB(ctx, r.db)
	result := db.WithContext(ctx).Model(&models.LinkedAccount{}).
		Where("id = ?", accountID).
		Updates(map[string]interface{}{
			"is_active":  active,
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

func (r *ProfileRepository) toEntity(m *models.Profile) *entities.Profile {
	p := &entities.Profile{
		ID:                   m.ID,
		SessionWalletAddress: m.SessionWalletAddress,
		ClusterID:            null.StringFromPtr(m.ClusterID),
		CreatedAt:            m.CreatedAt,
		UpdatedAt:            m.UpdatedAt,
	}
	for _, a := range m.LinkedAccounts {
		p.LinkedAccounts = append(p.LinkedAccounts, entities.LinkedAccount{
			ID:        a.ID,
			ProfileID: a.ProfileID,
			Address:   a.Address,
			ChainID:   a.ChainID,
			IsActive:  a.IsActive,
			CreatedAt: a.CreatedAt,
		})
	}
	return p
}
