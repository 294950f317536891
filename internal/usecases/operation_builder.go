package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"chainhub.backend/internal/domain/entities"
	domainerrors "chainhub.backend/internal/domain/errors"
	"chainhub.backend/internal/domain/providers"
	"chainhub.backend/internal/domain/repositories"
	"chainhub.backend/internal/infrastructure/cache"
	"chainhub.backend/pkg/metrics"
)

const erc20TransferABI = `[{"name":"transfer","type":"function","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]}]`

var erc20ABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(erc20TransferABI))
	if err != nil {
		panic(err)
	}
	erc20ABI = parsed
}

// OperationBuilder constructs unsigned operation sets through the provider.
// Build failures are never retried here; retry policy belongs to the batch
// orchestrator.
type OperationBuilder struct {
	pool       *SessionPool
	client     providers.ChainAbstractionClient
	cache      *cache.Cache
	opRepo     repositories.OperationRepository
	tokenIDTTL time.Duration
}

// NewOperationBuilder creates a new operation builder
func NewOperationBuilder(pool *SessionPool, client providers.ChainAbstractionClient, cacheLayer *cache.Cache, opRepo repositories.OperationRepository, tokenIDTTL time.Duration) *OperationBuilder {
	if tokenIDTTL <= 0 {
		tokenIDTTL = 24 * time.Hour
	}
	return &OperationBuilder{
		pool:       pool,
		client:     client,
		cache:      cacheLayer,
		opRepo:     opRepo,
		tokenIDTTL: tokenIDTTL,
	}
}

// CreateOperation decodes the envelope, builds the unsigned set through the
// provider and persists the operation row in `created` status. The originating
// envelope is stored verbatim so a failed operation can be rebuilt later.
func (b *OperationBuilder) CreateOperation(ctx context.Context, profile *entities.Profile, env entities.IntentEnvelope, meta entities.OperationMetadata) (*entities.UnsignedOperationSet, error) {
	intent, err := env.Intent()
	if err != nil {
		return nil, err
	}

	set, err := b.Build(ctx, profile, intent)
	if err != nil {
		return nil, err
	}

	intentJSON, err := json.Marshal(env)
	if err != nil {
		return nil, err
	}

	op := &entities.Operation{
		ProfileID:       profile.ID,
		OperationSetID:  set.OperationSetID,
		Type:            set.Type,
		Status:          entities.OperationStatusCreated,
		UnsignedPayload: set.Raw,
		Intent:          intentJSON,
		Metadata:        meta,
	}
	if err := b.opRepo.Create(ctx, op); err != nil {
		return nil, err
	}
	return set, nil
}

// Build dispatches on the closed intent set.
func (b *OperationBuilder) Build(ctx context.Context, profile *entities.Profile, intent entities.Intent) (*entities.UnsignedOperationSet, error) {
	switch it := intent.(type) {
	case entities.TransferIntent:
		return b.BuildTransfer(ctx, profile, it)
	case entities.SwapIntent:
		return b.BuildSwap(ctx, profile, it)
	default:
		return nil, domainerrors.BadRequest(fmt.Sprintf("unsupported intent type %q", intent.Type()))
	}
}

// BuildTransfer constructs an unsigned ERC-20 transfer operation set
func (b *OperationBuilder) BuildTransfer(ctx context.Context, profile *entities.Profile, intent entities.TransferIntent) (*entities.UnsignedOperationSet, error) {
	if err := intent.Validate(); err != nil {
		return nil, err
	}

	session, err := b.pool.GetSession(ctx, profile, intent.From.ChainID)
	if err != nil {
		return nil, err
	}

	amount, ok := new(big.Int).SetString(intent.From.Amount, 10)
	if !ok {
		return nil, domainerrors.BadRequest("amount must be a positive integer string")
	}
	callData, err := erc20ABI.Pack("transfer", common.HexToAddress(intent.To), amount)
	if err != nil {
		return nil, domainerrors.BadRequest("failed to encode transfer call: " + err.Error())
	}

	result, err := b.client.BuildTransferOps(ctx, &providers.BuildTransferRequest{
		ClusterID:    profile.ClusterID.String,
		ChainID:      intent.From.ChainID,
		Sender:       session.Address,
		TokenAddress: intent.From.Address,
		Recipient:    intent.To,
		Amount:       intent.From.Amount,
		CallData:     hexutil.Encode(callData),
		GasToken:     intent.GasToken,
	})
	return b.finishBuild(entities.OperationTypeTransfer, result, err)
}

// BuildSwap constructs an unsigned swap operation set
func (b *OperationBuilder) BuildSwap(ctx context.Context, profile *entities.Profile, intent entities.SwapIntent) (*entities.UnsignedOperationSet, error) {
	if err := intent.Validate(); err != nil {
		return nil, err
	}

	session, err := b.pool.GetSession(ctx, profile, intent.From.ChainID)
	if err != nil {
		return nil, err
	}

	tokenIDs, err := b.resolveTokenIDs(ctx, []entities.TokenRef{
		{ChainID: intent.From.ChainID, Address: intent.From.Address},
		{ChainID: intent.To.ChainID, Address: intent.To.Address},
	})
	if err != nil {
		return nil, err
	}

	result, err := b.client.BuildSwapOps(ctx, &providers.BuildSwapRequest{
		ClusterID:   profile.ClusterID.String,
		ChainID:     intent.From.ChainID,
		Sender:      session.Address,
		FromTokenID: tokenIDs[0],
		ToTokenID:   tokenIDs[1],
		Amount:      intent.From.Amount,
		SlippageBPS: intent.SlippageBPS,
		GasToken:    intent.GasToken,
	})
	return b.finishBuild(entities.OperationTypeSwap, result, err)
}

func (b *OperationBuilder) finishBuild(opType entities.OperationType, result *providers.BuildResult, err error) (*entities.UnsignedOperationSet, error) {
	if err != nil {
		metrics.OperationsBuilt.WithLabelValues(string(opType), "error").Inc()
		return nil, err
	}
	if result.Status != "success" {
		metrics.OperationsBuilt.WithLabelValues(string(opType), "rejected").Inc()
		return nil, domainerrors.NewAppError(http.StatusBadGateway,
			fmt.Sprintf("provider build returned status %q", result.Status),
			domainerrors.ErrBuildFailed)
	}
	metrics.OperationsBuilt.WithLabelValues(string(opType), "success").Inc()
	return &entities.UnsignedOperationSet{
		OperationSetID: result.OperationSetID,
		Type:           opType,
		Operations:     result.Operations,
		Raw:            result.Raw,
	}, nil
}

func tokenIDKey(t entities.TokenRef) string {
	return fmt.Sprintf("token:std:%d:%s", t.ChainID, strings.ToLower(t.Address))
}

// resolveTokenIDs maps tokens to the provider's standardized ids, resolving
// only cache misses upstream and merging results back into positional order.
func (b *OperationBuilder) resolveTokenIDs(ctx context.Context, tokens []entities.TokenRef) ([]string, error) {
	ids := make([]string, len(tokens))
	var missing []entities.TokenRef
	var missingIdx []int

	for i, t := range tokens {
		if id, err := b.cache.Get(ctx, tokenIDKey(t)); err == nil {
			ids[i] = id
			continue
		}
		missing = append(missing, t)
		missingIdx = append(missingIdx, i)
	}

	if len(missing) == 0 {
		return ids, nil
	}

	resolved, err := b.client.ResolveStandardTokenIDs(ctx, missing)
	if err != nil {
		return nil, err
	}

	for j, id := range resolved {
		ids[missingIdx[j]] = id
		b.cache.SetWithTTL(ctx, tokenIDKey(missing[j]), id, b.tokenIDTTL)
	}
	return ids, nil
}
