package repositories

import (
	"context"

	"github.com/google/uuid"
	"chainhub.backend/internal/domain/entities"
)

// VirtualSessionRepository mirrors pooled sessions as durable records. The
// records are for observability and recovery audits, never for reachability.
type VirtualSessionRepository interface {
	// Upsert inserts or refreshes the record keyed by (profileId, chainId).
	Upsert(ctx context.Context, session *entities.VirtualSession) error
	GetByProfile(ctx context.Context, profileID uuid.UUID) ([]*entities.VirtualSession, error)
}
