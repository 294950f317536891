package usecases

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"chainhub.backend/internal/domain/entities"
	domainerrors "chainhub.backend/internal/domain/errors"
	"chainhub.backend/internal/domain/providers"
	"chainhub.backend/internal/domain/repositories"
	"chainhub.backend/pkg/logger"
)

// SessionPool lazily creates and caches one virtual session per
// (profile, chain) for the process lifetime. Sessions are disposable and
// idempotently reconstructible from (clusterId, chainId, address); the pool is
// never a source of truth. Creation is coalesced per key so unrelated
// profiles and chains never contend on a shared lock.
type SessionPool struct {
	client      providers.ChainAbstractionClient
	sessionRepo repositories.VirtualSessionRepository

	sessions sync.Map // key string -> *entities.VirtualSession
	creating keyedMutex
}

// NewSessionPool creates a new session pool
func NewSessionPool(client providers.ChainAbstractionClient, sessionRepo repositories.VirtualSessionRepository) *SessionPool {
	return &SessionPool{
		client:      client,
		sessionRepo: sessionRepo,
	}
}

func sessionKey(profileID uuid.UUID, chainID uint64) string {
	return fmt.Sprintf("%s:%d", profileID, chainID)
}

// GetSession returns the cached session for (profile, chain), creating one via
// the provider on miss. Requires the profile to have a cluster id.
func (p *SessionPool) GetSession(ctx context.Context, profile *entities.Profile, chainID uint64) (*entities.VirtualSession, error) {
	key := sessionKey(profile.ID, chainID)
	if cached, ok := p.sessions.Load(key); ok {
		return cached.(*entities.VirtualSession), nil
	}

	if !profile.ClusterID.Valid || profile.ClusterID.String == "" {
		return nil, domainerrors.NewAppError(http.StatusPreconditionFailed, "profile has no account cluster", domainerrors.ErrClusterMissing)
	}

	unlock := p.creating.lock(key)
	defer unlock()

	// A concurrent creator may have won the race while we waited.
	if cached, ok := p.sessions.Load(key); ok {
		return cached.(*entities.VirtualSession), nil
	}

	rpcURL, err := p.client.GetVirtualSessionEndpoint(ctx, profile.ClusterID.String, chainID, profile.SessionWalletAddress)
	if err != nil {
		return nil, err
	}

	session := &entities.VirtualSession{
		ID:        uuid.New(),
		ProfileID: profile.ID,
		ChainID:   chainID,
		Address:   profile.SessionWalletAddress,
		RPCURL:    rpcURL,
		IsActive:  true,
	}

	// Durable record is observability only; a write failure must not cost the
	// caller a usable session.
	if err := p.sessionRepo.Upsert(ctx, session); err != nil {
		logger.Warn(ctx, "session bookkeeping write failed",
			zap.String("profile_id", profile.ID.String()),
			zap.Uint64("chain_id", chainID),
			zap.Error(err),
		)
	}

	p.sessions.Store(key, session)
	return session, nil
}

// InvalidateProfile drops every pooled session for the profile. Called after a
// cluster rebuild so stale endpoints are recreated on next use.
func (p *SessionPool) InvalidateProfile(profileID uuid.UUID) {
	prefix := profileID.String() + ":"
	p.sessions.Range(func(k, _ interface{}) bool {
		if strings.HasPrefix(k.(string), prefix) {
			p.sessions.Delete(k)
		}
		return true
	})
}
