package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"chainhub.backend/internal/domain/entities"
	domainerrors "chainhub.backend/internal/domain/errors"
	"chainhub.backend/internal/domain/providers"
	"chainhub.backend/internal/domain/repositories"
	"chainhub.backend/internal/interfaces/http/response"
)

// OperationService builds unsigned operation sets and persists them
type OperationService interface {
	CreateOperation(ctx context.Context, profile *entities.Profile, env entities.IntentEnvelope, meta entities.OperationMetadata) (*entities.UnsignedOperationSet, error)
}

// SubmissionService submits signed operations and tracks their lifecycle
type SubmissionService interface {
	Submit(ctx context.Context, profile *entities.Profile, operationSetID string, signed []entities.SignedOperation) (*providers.SubmitResult, error)
}

// OperationHandler handles single-operation endpoints
type OperationHandler struct {
	profileRepo repositories.ProfileRepository
	opRepo      repositories.OperationRepository
	clusters    ClusterService
	builder     OperationService
	monitor     SubmissionService
}

// NewOperationHandler creates a new operation handler
func NewOperationHandler(
	profileRepo repositories.ProfileRepository,
	opRepo repositories.OperationRepository,
	clusters ClusterService,
	builder OperationService,
	monitor SubmissionService,
) *OperationHandler {
	return &OperationHandler{
		profileRepo: profileRepo,
		opRepo:      opRepo,
		clusters:    clusters,
		builder:     builder,
		monitor:     monitor,
	}
}

type operationRequest struct {
	ProfileID   uuid.UUID             `json:"profileId" binding:"required"`
	From        entities.IntentAsset  `json:"from" binding:"required"`
	To          entities.IntentTarget `json:"to" binding:"required"`
	SlippageBPS int                   `json:"slippageBps"`
	GasToken    *entities.TokenRef    `json:"gasToken"`
}

// BuildTransfer builds an unsigned transfer operation set
// POST /api/v1/operations/transfer
func (h *OperationHandler) BuildTransfer(c *gin.Context) {
	h.buildOperation(c, entities.OperationTypeTransfer)
}

// BuildSwap builds an unsigned swap operation set
// POST /api/v1/operations/swap
func (h *OperationHandler) BuildSwap(c *gin.Context) {
	h.buildOperation(c, entities.OperationTypeSwap)
}

func (h *OperationHandler) buildOperation(c *gin.Context, opType entities.OperationType) {
	var input operationRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}

	profile, err := h.profileRepo.GetByID(c.Request.Context(), input.ProfileID)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			response.Error(c, domainerrors.NotFound("profile not found"))
			return
		}
		response.Error(c, err)
		return
	}

	if _, err := h.clusters.EnsureCluster(c.Request.Context(), profile); err != nil {
		response.Error(c, err)
		return
	}

	env := entities.IntentEnvelope{
		Type:        opType,
		From:        input.From,
		To:          input.To,
		SlippageBPS: input.SlippageBPS,
		GasToken:    input.GasToken,
	}
	set, err := h.builder.CreateOperation(c.Request.Context(), profile, env, entities.OperationMetadata{})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, set)
}

// SubmitOperation submits the signed payload for a built operation
// POST /api/v1/operations/:operationSetId/submit
func (h *OperationHandler) SubmitOperation(c *gin.Context) {
	operationSetID := c.Param("operationSetId")

	var input struct {
		ProfileID     uuid.UUID `json:"profileId" binding:"required"`
		SignedPayload string    `json:"signedPayload" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}

	profile, err := h.profileRepo.GetByID(c.Request.Context(), input.ProfileID)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			response.Error(c, domainerrors.NotFound("profile not found"))
			return
		}
		response.Error(c, err)
		return
	}

	result, err := h.monitor.Submit(c.Request.Context(), profile, operationSetID, []entities.SignedOperation{
		{OperationSetID: operationSetID, SignedPayload: input.SignedPayload},
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

// GetOperation returns an operation with its transactions
// GET /api/v1/operations/:operationSetId
func (h *OperationHandler) GetOperation(c *gin.Context) {
	op, err := h.opRepo.GetBySetID(c.Request.Context(), c.Param("operationSetId"))
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			response.Error(c, domainerrors.NotFound("operation not found"))
			return
		}
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, op)
}
