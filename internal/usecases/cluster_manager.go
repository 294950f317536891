package usecases

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"chainhub.backend/internal/domain/entities"
	domainerrors "chainhub.backend/internal/domain/errors"
	"chainhub.backend/internal/domain/providers"
	"chainhub.backend/internal/domain/repositories"
	"chainhub.backend/internal/infrastructure/cache"
	"chainhub.backend/pkg/logger"
)

// ClusterManager owns the mapping from a profile's accounts to a provider
// cluster. Cluster mutation is serialized per profile so a concurrent reader
// never observes the cleared-but-not-rebuilt window.
type ClusterManager struct {
	profileRepo    repositories.ProfileRepository
	client         providers.ChainAbstractionClient
	cache          *cache.Cache
	sessions       *SessionPool
	defaultChainID uint64

	locks keyedMutex
}

// NewClusterManager creates a new cluster manager
func NewClusterManager(
	profileRepo repositories.ProfileRepository,
	client providers.ChainAbstractionClient,
	cacheLayer *cache.Cache,
	sessions *SessionPool,
	defaultChainID uint64,
) *ClusterManager {
	return &ClusterManager{
		profileRepo:    profileRepo,
		client:         client,
		cache:          cacheLayer,
		sessions:       sessions,
		defaultChainID: defaultChainID,
	}
}

// EnsureCluster returns the profile's cluster id, creating a provider cluster
// on first use. A profile with a stored cluster id never triggers a provider
// call.
func (m *ClusterManager) EnsureCluster(ctx context.Context, profile *entities.Profile) (string, error) {
	if profile.ClusterID.Valid && profile.ClusterID.String != "" {
		return profile.ClusterID.String, nil
	}

	unlock := m.locks.lock(profile.ID.String())
	defer unlock()

	// Another caller may have created the cluster while we waited.
	fresh, err := m.profileRepo.GetByID(ctx, profile.ID)
	if err != nil {
		return "", err
	}
	if fresh.ClusterID.Valid && fresh.ClusterID.String != "" {
		profile.ClusterID = fresh.ClusterID
		return fresh.ClusterID.String, nil
	}

	clusterID, err := m.createCluster(ctx, fresh)
	if err != nil {
		return "", err
	}
	profile.ClusterID = fresh.ClusterID
	return clusterID, nil
}

// createCluster builds descriptors and performs the provider round-trip.
// Callers must hold the profile lock.
func (m *ClusterManager) createCluster(ctx context.Context, profile *entities.Profile) (string, error) {
	accounts := []providers.AccountDescriptor{
		{Address: profile.SessionWalletAddress, ChainID: m.defaultChainID},
	}
	for _, a := range profile.ActiveAccounts() {
		accounts = append(accounts, providers.AccountDescriptor{Address: a.Address, ChainID: a.ChainID})
	}

	clusterID, err := m.client.CreateCluster(ctx, accounts)
	if err != nil {
		return "", err
	}
	if clusterID == "" {
		return "", domainerrors.ProviderFailure("provider returned no cluster id", nil)
	}

	if err := m.profileRepo.SetClusterID(ctx, profile.ID, clusterID); err != nil {
		return "", err
	}
	profile.ClusterID.SetValid(clusterID)

	logger.Info(ctx, "cluster created",
		zap.String("profile_id", profile.ID.String()),
		zap.String("cluster_id", clusterID),
		zap.Int("accounts", len(accounts)),
	)
	return clusterID, nil
}

// Rebuild forces a fresh provider cluster incorporating the current account
// set, then drops pooled sessions and invalidates the profile's balance and
// gas caches. Must be called whenever a linked account is added or removed.
func (m *ClusterManager) Rebuild(ctx context.Context, profileID uuid.UUID) (string, error) {
	unlock := m.locks.lock(profileID.String())
	defer unlock()

	if err := m.profileRepo.ClearClusterID(ctx, profileID); err != nil {
		return "", err
	}

	profile, err := m.profileRepo.GetByID(ctx, profileID)
	if err != nil {
		return "", err
	}

	clusterID, err := m.createCluster(ctx, profile)
	if err != nil {
		return "", err
	}

	m.sessions.InvalidateProfile(profileID)
	m.InvalidateCache(ctx, profileID)

	return clusterID, nil
}

// InvalidateCache drops the profile's balance and gas-analysis caches.
// Best-effort: staleness self-heals via TTL, so failures are only logged.
func (m *ClusterManager) InvalidateCache(ctx context.Context, profileID uuid.UUID) {
	m.cache.DeleteByPattern(ctx, fmt.Sprintf("portfolio:%s:*", profileID))
	m.cache.Delete(ctx, fmt.Sprintf("gas:%s", profileID))
}
