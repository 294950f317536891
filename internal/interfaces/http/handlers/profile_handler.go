package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"chainhub.backend/internal/domain/entities"
	domainerrors "chainhub.backend/internal/domain/errors"
	"chainhub.backend/internal/domain/repositories"
	"chainhub.backend/internal/interfaces/http/response"
)

// ClusterService manages the profile-to-provider-cluster mapping
type ClusterService interface {
	EnsureCluster(ctx context.Context, profile *entities.Profile) (string, error)
	Rebuild(ctx context.Context, profileID uuid.UUID) (string, error)
}

// PortfolioService serves cached balance reads and gas analysis
type PortfolioService interface {
	GetPortfolio(ctx context.Context, profile *entities.Profile, chainID uint64) ([]entities.TokenBalance, error)
	AnalyzeGasTokens(ctx context.Context, profile *entities.Profile) ([]entities.GasCandidate, error)
}

// ProfileHandler handles profile, cluster and portfolio endpoints
type ProfileHandler struct {
	profileRepo repositories.ProfileRepository
	clusters    ClusterService
	portfolio   PortfolioService
}

// NewProfileHandler creates a new profile handler
func NewProfileHandler(profileRepo repositories.ProfileRepository, clusters ClusterService, portfolio PortfolioService) *ProfileHandler {
	return &ProfileHandler{
		profileRepo: profileRepo,
		clusters:    clusters,
		portfolio:   portfolio,
	}
}

// CreateProfile creates a profile with its linked accounts
// POST /api/v1/profiles
func (h *ProfileHandler) CreateProfile(c *gin.Context) {
	var input struct {
		SessionWalletAddress string `json:"sessionWalletAddress" binding:"required"`
		LinkedAccounts       []struct {
			Address string `json:"address" binding:"required"`
			ChainID uint64 `json:"chainId" binding:"required"`
		} `json:"linkedAccounts"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}
	if !common.IsHexAddress(input.SessionWalletAddress) {
		response.Error(c, domainerrors.BadRequest("invalid session wallet address"))
		return
	}

	profile := &entities.Profile{
		ID:                   uuid.New(),
		SessionWalletAddress: input.SessionWalletAddress,
	}
	for _, a := range input.LinkedAccounts {
		if !common.IsHexAddress(a.Address) {
			response.Error(c, domainerrors.BadRequest("invalid linked account address: "+a.Address))
			return
		}
		profile.LinkedAccounts = append(profile.LinkedAccounts, entities.LinkedAccount{
			ID:        uuid.New(),
			ProfileID: profile.ID,
			Address:   a.Address,
			ChainID:   a.ChainID,
			IsActive:  true,
		})
	}

	if err := h.profileRepo.Create(c.Request.Context(), profile); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, profile)
}

// GetProfile returns a profile with its linked accounts
// GET /api/v1/profiles/:id
func (h *ProfileHandler) GetProfile(c *gin.Context) {
	profile, ok := h.loadProfile(c)
	if !ok {
		return
	}
	response.Success(c, http.StatusOK, profile)
}

// AddLinkedAccount links an account and rebuilds the cluster to include it
// POST /api/v1/profiles/:id/accounts
func (h *ProfileHandler) AddLinkedAccount(c *gin.Context) {
	profile, ok := h.loadProfile(c)
	if !ok {
		return
	}

	var input struct {
		Address string `json:"address" binding:"required"`
		ChainID uint64 `json:"chainId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}
	if !common.IsHexAddress(input.Address) {
		response.Error(c, domainerrors.BadRequest("invalid account address"))
		return
	}

	account := &entities.LinkedAccount{
		ID:        uuid.New(),
		ProfileID: profile.ID,
		Address:   input.Address,
		ChainID:   input.ChainID,
		IsActive:  true,
	}
	if err := h.profileRepo.AddLinkedAccount(c.Request.Context(), account); err != nil {
		response.Error(c, err)
		return
	}

	// The existing cluster does not know the new account; rebuild immediately
	// so operations can route through it.
	clusterID := ""
	if profile.ClusterID.Valid && profile.ClusterID.String != "" {
		id, err := h.clusters.Rebuild(c.Request.Context(), profile.ID)
		if err != nil {
			response.Error(c, err)
			return
		}
		clusterID = id
	}

	response.Success(c, http.StatusCreated, gin.H{"account": account, "clusterId": clusterID})
}

// SetLinkedAccountActive toggles a linked account and rebuilds the cluster
// PATCH /api/v1/profiles/:id/accounts/:accountId
func (h *ProfileHandler) SetLinkedAccountActive(c *gin.Context) {
	profile, ok := h.loadProfile(c)
	if !ok {
		return
	}
	accountID, err := uuid.Parse(c.Param("accountId"))
	if err != nil {
		response.Error(c, domainerrors.BadRequest("invalid account id"))
		return
	}

	var input struct {
		IsActive *bool `json:"isActive" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}

	if err := h.profileRepo.SetLinkedAccountActive(c.Request.Context(), accountID, *input.IsActive); err != nil {
		response.Error(c, err)
		return
	}

	clusterID := ""
	if profile.ClusterID.Valid && profile.ClusterID.String != "" {
		id, err := h.clusters.Rebuild(c.Request.Context(), profile.ID)
		if err != nil {
			response.Error(c, err)
			return
		}
		clusterID = id
	}

	response.Success(c, http.StatusOK, gin.H{"accountId": accountID, "isActive": *input.IsActive, "clusterId": clusterID})
}

// EnsureCluster creates the provider cluster for the profile if needed
// POST /api/v1/profiles/:id/cluster
func (h *ProfileHandler) EnsureCluster(c *gin.Context) {
	profile, ok := h.loadProfile(c)
	if !ok {
		return
	}

	clusterID, err := h.clusters.EnsureCluster(c.Request.Context(), profile)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"clusterId": clusterID})
}

// RebuildCluster forces a fresh provider cluster for the profile
// POST /api/v1/profiles/:id/cluster/rebuild
func (h *ProfileHandler) RebuildCluster(c *gin.Context) {
	profile, ok := h.loadProfile(c)
	if !ok {
		return
	}

	clusterID, err := h.clusters.Rebuild(c.Request.Context(), profile.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"clusterId": clusterID})
}

// GetPortfolio returns the profile's token balances
// GET /api/v1/profiles/:id/portfolio?chainId=N
func (h *ProfileHandler) GetPortfolio(c *gin.Context) {
	profile, ok := h.loadProfile(c)
	if !ok {
		return
	}

	var chainID uint64
	if raw := c.Query("chainId"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			response.Error(c, domainerrors.BadRequest("invalid chainId"))
			return
		}
		chainID = parsed
	}

	balances, err := h.portfolio.GetPortfolio(c.Request.Context(), profile, chainID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"balances": balances})
}

// GetGasAnalysis ranks the profile's balances as gas-payment candidates
// GET /api/v1/profiles/:id/gas-analysis
func (h *ProfileHandler) GetGasAnalysis(c *gin.Context) {
	profile, ok := h.loadProfile(c)
	if !ok {
		return
	}

	candidates, err := h.portfolio.AnalyzeGasTokens(c.Request.Context(), profile)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"candidates": candidates})
}

// loadProfile parses the :id param and fetches the profile, writing the error
// response itself on failure.
func (h *ProfileHandler) loadProfile(c *gin.Context) (*entities.Profile, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, domainerrors.BadRequest("invalid profile id"))
		return nil, false
	}
	profile, err := h.profileRepo.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			response.Error(c, domainerrors.NotFound("profile not found"))
			return nil, false
		}
		response.Error(c, err)
		return nil, false
	}
	return profile, true
}
