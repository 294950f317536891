package providers

import (
	"context"
	"encoding/json"

	"chainhub.backend/internal/domain/entities"
)

// AccountDescriptor describes one account when creating a provider cluster.
type AccountDescriptor struct {
	Address string `json:"address"`
	ChainID uint64 `json:"chainId"`
}

// BuildTransferRequest asks the provider to construct an unsigned transfer
// operation set. CallData carries the ABI-encoded ERC-20 transfer.
type BuildTransferRequest struct {
	ClusterID    string             `json:"clusterId"`
	ChainID      uint64             `json:"chainId"`
	Sender       string             `json:"sender"`
	TokenAddress string             `json:"tokenAddress"`
	Recipient    string             `json:"recipient"`
	Amount       string             `json:"amount"`
	CallData     string             `json:"callData"`
	GasToken     *entities.TokenRef `json:"gasToken,omitempty"`
}

// BuildSwapRequest asks the provider to construct an unsigned swap operation
// set. Token identifiers are the provider's standardized ids.
type BuildSwapRequest struct {
	ClusterID   string             `json:"clusterId"`
	ChainID     uint64             `json:"chainId"`
	Sender      string             `json:"sender"`
	FromTokenID string             `json:"fromTokenId"`
	ToTokenID   string             `json:"toTokenId"`
	Amount      string             `json:"amount"`
	SlippageBPS int                `json:"slippageBps"`
	GasToken    *entities.TokenRef `json:"gasToken,omitempty"`
}

// BuildResult is the provider's build response. Status is the provider's own
// verdict; anything but "success" means the set is unusable.
type BuildResult struct {
	Status         string                       `json:"status"`
	OperationSetID string                       `json:"operationSetId"`
	Operations     []entities.UnsignedOperation `json:"operations"`
	Raw            json.RawMessage              `json:"raw,omitempty"`
}

// SubmitResult is the provider's acknowledgement of a signed submission.
type SubmitResult struct {
	Success        bool   `json:"success"`
	OperationSetID string `json:"operationSetId"`
}

// TransactionStatus is one per-chain transaction reported in a status update.
type TransactionStatus struct {
	ChainID uint64 `json:"chainId"`
	Hash    string `json:"hash"`
	Status  string `json:"status"`
	GasUsed string `json:"gasUsed,omitempty"`
}

// StatusUpdate is one asynchronous lifecycle notification for a submitted
// operation set.
type StatusUpdate struct {
	OperationSetID string              `json:"operationSetId"`
	Status         string              `json:"status"`
	Transactions   []TransactionStatus `json:"transactions,omitempty"`
}

// Provider status values carried in StatusUpdate.Status.
const (
	UpdateStatusPending   = "pending"
	UpdateStatusCompleted = "completed"
	UpdateStatusFailed    = "failed"
)

// ChainAbstractionClient is the boundary to the external chain-abstraction
// provider. Implementations must bound every call with a timeout; the provider
// itself is a black box.
type ChainAbstractionClient interface {
	CreateCluster(ctx context.Context, accounts []AccountDescriptor) (string, error)
	GetVirtualSessionEndpoint(ctx context.Context, clusterID string, chainID uint64, address string) (string, error)
	GetPortfolio(ctx context.Context, session *entities.VirtualSession) ([]entities.TokenBalance, error)
	BuildTransferOps(ctx context.Context, req *BuildTransferRequest) (*BuildResult, error)
	BuildSwapOps(ctx context.Context, req *BuildSwapRequest) (*BuildResult, error)
	ResolveStandardTokenIDs(ctx context.Context, tokens []entities.TokenRef) ([]string, error)
	Submit(ctx context.Context, clusterID, operationSetID string, signed []entities.SignedOperation) (*SubmitResult, error)
	SubscribeStatus(ctx context.Context, operationSetID string, handler func(StatusUpdate)) error
}
