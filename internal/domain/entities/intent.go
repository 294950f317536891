package entities

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	domainerrors "chainhub.backend/internal/domain/errors"
)

// OperationType represents the kind of on-chain action an intent describes
type OperationType string

const (
	OperationTypeTransfer OperationType = "transfer"
	OperationTypeSwap     OperationType = "swap"
)

// TokenRef identifies a token by chain and contract address
type TokenRef struct {
	ChainID uint64 `json:"chainId"`
	Address string `json:"address"`
}

// TokenAmount is a token reference plus an amount in base units
type TokenAmount struct {
	ChainID uint64 `json:"chainId"`
	Address string `json:"address"`
	Amount  string `json:"amount"`
}

// Intent is the closed set of operation intents. New intent kinds must be
// added here so every dispatch site is forced to handle them.
type Intent interface {
	Type() OperationType
	Validate() error
	isIntent()
}

// TransferIntent moves a token amount to a recipient address.
type TransferIntent struct {
	From     TokenAmount `json:"from"`
	To       string      `json:"to"`
	GasToken *TokenRef   `json:"gasToken,omitempty"`
}

func (TransferIntent) Type() OperationType { return OperationTypeTransfer }
func (TransferIntent) isIntent()           {}

func (i TransferIntent) Validate() error {
	if i.From.Address == "" || i.From.ChainID == 0 {
		return domainerrors.BadRequest("transfer source token is required")
	}
	if err := validateAmount(i.From.Amount); err != nil {
		return err
	}
	if !common.IsHexAddress(i.To) {
		return domainerrors.BadRequest("invalid recipient")
	}
	return nil
}

// SwapIntent exchanges a source token amount for a destination token.
type SwapIntent struct {
	From        TokenAmount `json:"from"`
	To          TokenRef    `json:"to"`
	SlippageBPS int         `json:"slippageBps"`
	GasToken    *TokenRef   `json:"gasToken,omitempty"`
}

func (SwapIntent) Type() OperationType { return OperationTypeSwap }
func (SwapIntent) isIntent()           {}

func (i SwapIntent) Validate() error {
	if i.From.Address == "" || i.From.ChainID == 0 {
		return domainerrors.BadRequest("swap source token is required")
	}
	if i.To.Address == "" || i.To.ChainID == 0 {
		return domainerrors.BadRequest("swap destination token is required")
	}
	if err := validateAmount(i.From.Amount); err != nil {
		return err
	}
	if i.SlippageBPS < 0 || i.SlippageBPS > 10000 {
		return domainerrors.BadRequest("slippage must be between 0 and 10000 bps")
	}
	return nil
}

func validateAmount(amount string) error {
	v, ok := new(big.Int).SetString(amount, 10)
	if !ok || v.Sign() <= 0 {
		return domainerrors.BadRequest("amount must be a positive integer string")
	}
	return nil
}

// IntentEnvelope is the transport/persistence shape of an intent. It is
// decoded into one of the closed Intent variants before any business logic
// touches it.
type IntentEnvelope struct {
	Type        OperationType `json:"type"`
	From        IntentAsset   `json:"from"`
	To          IntentTarget  `json:"to"`
	SlippageBPS int           `json:"slippageBps,omitempty"`
	GasToken    *TokenRef     `json:"gasToken,omitempty"`
}

// IntentAsset is the source side of an intent envelope
type IntentAsset struct {
	Token   string `json:"token"`
	ChainID uint64 `json:"chainId"`
	Amount  string `json:"amount"`
}

// IntentTarget is the destination side of an intent envelope. Address is used
// by transfers, Token/ChainID by swaps.
type IntentTarget struct {
	Address string `json:"address,omitempty"`
	Token   string `json:"token,omitempty"`
	ChainID uint64 `json:"chainId,omitempty"`
}

// Intent converts the envelope into its tagged variant.
func (e IntentEnvelope) Intent() (Intent, error) {
	switch e.Type {
	case OperationTypeTransfer:
		return TransferIntent{
			From:     TokenAmount{ChainID: e.From.ChainID, Address: e.From.Token, Amount: e.From.Amount},
			To:       e.To.Address,
			GasToken: e.GasToken,
		}, nil
	case OperationTypeSwap:
		return SwapIntent{
			From:        TokenAmount{ChainID: e.From.ChainID, Address: e.From.Token, Amount: e.From.Amount},
			To:          TokenRef{ChainID: e.To.ChainID, Address: e.To.Token},
			SlippageBPS: e.SlippageBPS,
			GasToken:    e.GasToken,
		}, nil
	default:
		return nil, domainerrors.BadRequest("unsupported operation type: " + string(e.Type))
	}
}
