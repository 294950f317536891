package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"chainhub.backend/internal/domain/entities"
	domainerrors "chainhub.backend/internal/domain/errors"
	"chainhub.backend/internal/interfaces/http/response"
)

// BatchService orchestrates batch creation, execution, status and retry
type BatchService interface {
	CreateBatch(ctx context.Context, profileID uuid.UUID, envelopes []entities.IntentEnvelope, atomic bool) (*entities.BatchResult, error)
	ExecuteBatch(ctx context.Context, batchID uuid.UUID, signed []entities.SignedOperation) (*entities.BatchResult, error)
	GetStatus(ctx context.Context, batchID uuid.UUID) (*entities.BatchStatusReport, error)
	RetryFailedOperations(ctx context.Context, batchID uuid.UUID, indices []int) (*entities.BatchResult, error)
	HandlePartialFailure(ctx context.Context, batchID uuid.UUID) (*entities.PartialFailureReport, error)
}

// BatchHandler handles batch endpoints
type BatchHandler struct {
	batches BatchService
}

// NewBatchHandler creates a new batch handler
func NewBatchHandler(batches BatchService) *BatchHandler {
	return &BatchHandler{batches: batches}
}

// CreateBatch creates a batch from ordered intents
// POST /api/v1/batches
func (h *BatchHandler) CreateBatch(c *gin.Context) {
	var input struct {
		ProfileID       uuid.UUID                 `json:"profileId" binding:"required"`
		Operations      []entities.IntentEnvelope `json:"operations" binding:"required"`
		AtomicExecution bool                      `json:"atomicExecution"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}

	result, err := h.batches.CreateBatch(c.Request.Context(), input.ProfileID, input.Operations, input.AtomicExecution)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, result)
}

// ExecuteBatch submits signed payloads for a batch's operations
// POST /api/v1/batches/:id/execute
func (h *BatchHandler) ExecuteBatch(c *gin.Context) {
	batchID, ok := parseBatchID(c)
	if !ok {
		return
	}

	var input struct {
		Operations []entities.SignedOperation `json:"operations" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}

	result, err := h.batches.ExecuteBatch(c.Request.Context(), batchID, input.Operations)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

// GetBatchStatus returns the reconciled batch status
// GET /api/v1/batches/:id
func (h *BatchHandler) GetBatchStatus(c *gin.Context) {
	batchID, ok := parseBatchID(c)
	if !ok {
		return
	}

	report, err := h.batches.GetStatus(c.Request.Context(), batchID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, report)
}

// RetryBatch retries failed operations as a new batch
// POST /api/v1/batches/:id/retry
func (h *BatchHandler) RetryBatch(c *gin.Context) {
	batchID, ok := parseBatchID(c)
	if !ok {
		return
	}

	var input struct {
		Indices []int `json:"indices"`
	}
	// Empty body means retry every failed operation.
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&input); err != nil {
			response.Error(c, domainerrors.BadRequest(err.Error()))
			return
		}
	}

	result, err := h.batches.RetryFailedOperations(c.Request.Context(), batchID, input.Indices)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, result)
}

// GetBatchFailures classifies a batch's failed operations
// GET /api/v1/batches/:id/failures
func (h *BatchHandler) GetBatchFailures(c *gin.Context) {
	batchID, ok := parseBatchID(c)
	if !ok {
		return
	}

	report, err := h.batches.HandlePartialFailure(c.Request.Context(), batchID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, report)
}

func parseBatchID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, domainerrors.BadRequest("invalid batch id"))
		return uuid.Nil, false
	}
	return id, true
}
