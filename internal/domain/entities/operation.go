package entities

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
)

// OperationStatus represents the lifecycle state of an operation
type OperationStatus string

const (
	OperationStatusCreated    OperationStatus = "created"
	OperationStatusPending    OperationStatus = "pending"
	OperationStatusSuccessful OperationStatus = "successful"
	OperationStatusFailed     OperationStatus = "failed"
)

// Terminal reports whether the status is final.
func (s OperationStatus) Terminal() bool {
	return s == OperationStatusSuccessful || s == OperationStatusFailed
}

// OperationMetadata links an operation to the batch it was created in. A
// retried operation additionally records the batch it was retried from.
type OperationMetadata struct {
	BatchID         *uuid.UUID `json:"batchId,omitempty"`
	BatchIndex      *int       `json:"batchIndex,omitempty"`
	OriginalBatchID *uuid.UUID `json:"originalBatchId,omitempty"`
	IsRetry         bool       `json:"isRetry,omitempty"`
}

// Operation is one intended on-chain action and its provider payloads. One
// operation may fan out into multiple per-chain transactions.
type Operation struct {
	ID              uuid.UUID         `json:"id"`
	ProfileID       uuid.UUID         `json:"profileId"`
	OperationSetID  string            `json:"operationSetId"`
	Type            OperationType     `json:"type"`
	Status          OperationStatus   `json:"status"`
	UnsignedPayload json.RawMessage   `json:"unsignedPayload,omitempty"`
	SignedPayload   null.String       `json:"signedPayload,omitempty"`
	Intent          json.RawMessage   `json:"intent,omitempty"`
	Metadata        OperationMetadata `json:"metadata"`
	ErrorMessage    null.String       `json:"errorMessage,omitempty"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
	CompletedAt     *time.Time        `json:"completedAt,omitempty"`

	Transactions []*Transaction `json:"transactions,omitempty"`
}

// Transaction is one per-chain transaction produced by an operation.
type Transaction struct {
	ID          uuid.UUID `json:"id"`
	OperationID uuid.UUID `json:"operationId"`
	ChainID     uint64    `json:"chainId"`
	TxHash      string    `json:"txHash"`
	Status      string    `json:"status"`
	GasUsed     string    `json:"gasUsed,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// UnsignedOperation is one leg of a provider-built operation set.
type UnsignedOperation struct {
	Index    int    `json:"index"`
	ChainID  uint64 `json:"chainId"`
	To       string `json:"to"`
	Data     string `json:"data"`
	Value    string `json:"value,omitempty"`
	GasLimit string `json:"gasLimit,omitempty"`
}

// UnsignedOperationSet is the provider's response to a build request. Raw
// preserves the opaque provider payload for persistence and later signing.
type UnsignedOperationSet struct {
	OperationSetID string              `json:"operationSetId"`
	Type           OperationType       `json:"type"`
	Operations     []UnsignedOperation `json:"operations"`
	Raw            json.RawMessage     `json:"raw,omitempty"`
}

// SignedOperation carries an externally produced signature for a built
// operation set. The payload is opaque to this system.
type SignedOperation struct {
	OperationSetID string `json:"operationSetId"`
	SignedPayload  string `json:"signedPayload"`
}

// TokenBalance is one token position in a profile's portfolio.
type TokenBalance struct {
	ChainID      uint64 `json:"chainId"`
	TokenAddress string `json:"tokenAddress"`
	Symbol       string `json:"symbol"`
	Decimals     int    `json:"decimals"`
	Balance      string `json:"balance"`
	USDValue     string `json:"usdValue,omitempty"`
}

// GasCandidate ranks a token balance as a gas-payment option.
type GasCandidate struct {
	TokenBalance
	Rank       int  `json:"rank"`
	Sufficient bool `json:"sufficient"`
}
