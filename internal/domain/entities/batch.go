package entities

import (
	"time"

	"github.com/google/uuid"
)

// BatchStatus represents the lifecycle state of a batch
type BatchStatus string

const (
	BatchStatusCreated   BatchStatus = "created"
	BatchStatusPartial   BatchStatus = "partial"
	BatchStatusSubmitted BatchStatus = "submitted"
	BatchStatusFailed    BatchStatus = "failed"
	BatchStatusCompleted BatchStatus = "completed"
)

// Terminal reports whether the batch status is final.
func (s BatchStatus) Terminal() bool {
	return s == BatchStatusCompleted || s == BatchStatusFailed
}

// BatchEntry is the denormalized per-index snapshot of one member operation.
// The authoritative state lives in the operation row and is reconciled on read.
type BatchEntry struct {
	Index          int             `json:"index"`
	Type           OperationType   `json:"type"`
	Status         OperationStatus `json:"status"`
	OperationSetID string          `json:"operationSetId,omitempty"`
	Error          string          `json:"error,omitempty"`
}

// Batch is a set of operations created together.
type Batch struct {
	ID              uuid.UUID    `json:"id"`
	ProfileID       uuid.UUID    `json:"profileId"`
	Entries         []BatchEntry `json:"entries"`
	AtomicExecution bool         `json:"atomicExecution"`
	Status          BatchStatus  `json:"status"`
	CreatedAt       time.Time    `json:"createdAt"`
	UpdatedAt       time.Time    `json:"updatedAt"`
	CompletedAt     *time.Time   `json:"completedAt,omitempty"`
}

// BatchResult is the caller-facing outcome of a batch create or execute call.
type BatchResult struct {
	BatchID              uuid.UUID    `json:"batchId"`
	Status               BatchStatus  `json:"status"`
	TotalOperations      int          `json:"totalOperations"`
	SuccessfulOperations int          `json:"successfulOperations"`
	FailedOperations     int          `json:"failedOperations"`
	Entries              []BatchEntry `json:"entries"`
}

// BatchStatusReport is the reconciled view returned by GetBatchStatus.
type BatchStatusReport struct {
	BatchID         uuid.UUID    `json:"batchId"`
	Status          BatchStatus  `json:"status"`
	AtomicExecution bool         `json:"atomicExecution"`
	Entries         []BatchEntry `json:"entries"`
	CreatedAt       time.Time    `json:"createdAt"`
	CompletedAt     *time.Time   `json:"completedAt,omitempty"`
}

// FailureClass distinguishes retryable from permanent failures.
type FailureClass string

const (
	FailureClassRetryable FailureClass = "retryable"
	FailureClassPermanent FailureClass = "permanent"
)

// FailedEntry describes one failed batch member and how it may be handled.
type FailedEntry struct {
	Index          int          `json:"index"`
	OperationSetID string       `json:"operationSetId,omitempty"`
	Error          string       `json:"error"`
	Class          FailureClass `json:"class"`
}

// PartialFailureReport breaks a partially failed batch down per index so a
// client can decide what to retry.
type PartialFailureReport struct {
	BatchID   uuid.UUID     `json:"batchId"`
	Status    BatchStatus   `json:"status"`
	Retryable []FailedEntry `json:"retryable"`
	Permanent []FailedEntry `json:"permanent"`
}
