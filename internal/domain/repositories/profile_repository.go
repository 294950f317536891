package repositories

import (
	"context"

	"github.com/google/uuid"
	"chainhub.backend/internal/domain/entities"
)

// ProfileRepository handles profile and linked-account persistence
type ProfileRepository interface {
	Create(ctx context.Context, profile *entities.Profile) error
	// GetByID returns the profile with its linked accounts preloaded.
	GetByID(ctx context.Context, id uuid.UUID) (*entities.Profile, error)
	// SetClusterID persists the provider cluster id for the profile.
	SetClusterID(ctx context.Context, id uuid.UUID, clusterID string) error
	// ClearClusterID invalidates the stored cluster id ahead of a rebuild.
	ClearClusterID(ctx context.Context, id uuid.UUID) error
	AddLinkedAccount(ctx context.Context, account *entities.LinkedAccount) error
	SetLinkedAccountActive(ctx context.Context, accountID uuid.UUID, active bool) error
}
