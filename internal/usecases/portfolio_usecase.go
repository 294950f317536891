package usecases

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"chainhub.backend/internal/domain/entities"
	"chainhub.backend/internal/domain/providers"
	"chainhub.backend/internal/infrastructure/cache"
	"chainhub.backend/pkg/logger"
	"chainhub.backend/pkg/metrics"
)

// PortfolioUsecase serves TTL-cached, request-coalesced balance reads. At most
// one upstream fetch is in flight per coalescing key; concurrent callers share
// the first completer's result.
type PortfolioUsecase struct {
	pool           *SessionPool
	client         providers.ChainAbstractionClient
	cache          *cache.Cache
	coalescer      *cache.Coalescer
	ttl            time.Duration
	defaultChainID uint64
}

// NewPortfolioUsecase creates a new portfolio usecase
func NewPortfolioUsecase(
	pool *SessionPool,
	client providers.ChainAbstractionClient,
	cacheLayer *cache.Cache,
	coalescer *cache.Coalescer,
	ttl time.Duration,
	defaultChainID uint64,
) *PortfolioUsecase {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &PortfolioUsecase{
		pool:           pool,
		client:         client,
		cache:          cacheLayer,
		coalescer:      coalescer,
		ttl:            ttl,
		defaultChainID: defaultChainID,
	}
}

func portfolioKey(profileID uuid.UUID, chainID uint64) string {
	return fmt.Sprintf("portfolio:%s:%d", profileID, chainID)
}

func gasKey(profileID uuid.UUID) string {
	return fmt.Sprintf("gas:%s", profileID)
}

// GetPortfolio returns the profile's token balances. chainID 0 means every
// chain the profile touches.
func (u *PortfolioUsecase) GetPortfolio(ctx context.Context, profile *entities.Profile, chainID uint64) ([]entities.TokenBalance, error) {
	key := portfolioKey(profile.ID, chainID)

	var cached []entities.TokenBalance
	if err := u.cache.GetJSON(ctx, key, &cached); err == nil {
		metrics.PortfolioCacheHits.Inc()
		return cached, nil
	}
	metrics.PortfolioCacheMisses.Inc()

	// The fetch and the cache write outlive a cancelled waiter: other callers
	// are sharing this flight and its result must still land in the cache.
	fetchCtx := context.WithoutCancel(ctx)
	result, shared, err := u.coalescer.Do(ctx, key, func() (interface{}, error) {
		balances, err := u.fetchPortfolio(fetchCtx, profile, chainID)
		if err != nil {
			return nil, err
		}
		u.cache.SetJSON(fetchCtx, key, balances, u.ttl)
		return balances, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		metrics.PortfolioCoalescedWaits.Inc()
	}
	return result.([]entities.TokenBalance), nil
}

// fetchPortfolio reads balances from every relevant chain through the session
// pool.
func (u *PortfolioUsecase) fetchPortfolio(ctx context.Context, profile *entities.Profile, chainID uint64) ([]entities.TokenBalance, error) {
	chains := u.chainsFor(profile, chainID)

	balances := make([]entities.TokenBalance, 0)
	for _, chain := range chains {
		session, err := u.pool.GetSession(ctx, profile, chain)
		if err != nil {
			return nil, err
		}
		chainBalances, err := u.client.GetPortfolio(ctx, session)
		if err != nil {
			return nil, err
		}
		balances = append(balances, chainBalances...)
	}
	return balances, nil
}

func (u *PortfolioUsecase) chainsFor(profile *entities.Profile, chainID uint64) []uint64 {
	if chainID != 0 {
		return []uint64{chainID}
	}
	seen := map[uint64]bool{u.defaultChainID: true}
	chains := []uint64{u.defaultChainID}
	for _, a := range profile.ActiveAccounts() {
		if !seen[a.ChainID] {
			seen[a.ChainID] = true
			chains = append(chains, a.ChainID)
		}
	}
	sort.Slice(chains, func(i, j int) bool { return chains[i] < chains[j] })
	return chains
}

// AnalyzeGasTokens ranks the profile's balances as gas-payment candidates.
// The result is cached alongside the portfolio; the two are causally linked
// and always invalidated together.
func (u *PortfolioUsecase) AnalyzeGasTokens(ctx context.Context, profile *entities.Profile) ([]entities.GasCandidate, error) {
	key := gasKey(profile.ID)

	var cached []entities.GasCandidate
	if err := u.cache.GetJSON(ctx, key, &cached); err == nil {
		return cached, nil
	}

	balances, err := u.GetPortfolio(ctx, profile, 0)
	if err != nil {
		return nil, err
	}

	candidates := make([]entities.GasCandidate, 0, len(balances))
	for _, b := range balances {
		candidates = append(candidates, entities.GasCandidate{
			TokenBalance: b,
			Sufficient:   usdValue(b) > 0,
		})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return usdValue(candidates[i].TokenBalance) > usdValue(candidates[j].TokenBalance)
	})
	for i := range candidates {
		candidates[i].Rank = i + 1
	}

	u.cache.SetJSON(ctx, key, candidates, u.ttl)
	return candidates, nil
}

func usdValue(b entities.TokenBalance) float64 {
	v, err := strconv.ParseFloat(b.USDValue, 64)
	if err != nil {
		return 0
	}
	return v
}

// InvalidateProfile deletes the balance and gas-analysis caches together.
// Gas-token selection depends on current balances, so they never diverge.
func (u *PortfolioUsecase) InvalidateProfile(ctx context.Context, profileID uuid.UUID) {
	u.cache.DeleteByPattern(ctx, fmt.Sprintf("portfolio:%s:*", profileID))
	u.cache.Delete(ctx, gasKey(profileID))
	logger.Debug(ctx, "portfolio caches invalidated", zap.String("profile_id", profileID.String()))
}
