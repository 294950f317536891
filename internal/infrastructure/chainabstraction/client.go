package chainabstraction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"chainhub.backend/internal/domain/entities"
	domainerrors "chainhub.backend/internal/domain/errors"
	"chainhub.backend/internal/domain/providers"
	"chainhub.backend/pkg/logger"
	"chainhub.backend/pkg/metrics"
)

// Client talks to the external chain-abstraction provider over HTTP, with a
// websocket stream for status subscriptions. Every call is bounded by the
// configured timeout.
type Client struct {
	baseURL     string
	wsURL       string
	apiKey      string
	callTimeout time.Duration
	httpClient  *http.Client
	subscriber  *statusSubscriber
}

// Config holds provider connection settings
type Config struct {
	BaseURL      string
	WebsocketURL string
	APIKey       string
	CallTimeout  time.Duration
}

// NewClient creates a provider client
func NewClient(cfg Config) *Client {
	timeout := cfg.CallTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:     cfg.BaseURL,
		wsURL:       cfg.WebsocketURL,
		apiKey:      cfg.APIKey,
		callTimeout: timeout,
		httpClient:  &http.Client{Timeout: timeout},
		subscriber:  newStatusSubscriber(cfg.WebsocketURL, cfg.APIKey),
	}
}

var _ providers.ChainAbstractionClient = (*Client)(nil)

// CreateCluster registers the account set with the provider and returns the
// cluster id.
func (c *Client) CreateCluster(ctx context.Context, accounts []providers.AccountDescriptor) (string, error) {
	var resp struct {
		ClusterID string `json:"clusterId"`
	}
	body := map[string]interface{}{"accounts": accounts}
	if err := c.post(ctx, "create_cluster", "/v1/clusters", body, &resp); err != nil {
		return "", err
	}
	if resp.ClusterID == "" {
		return "", domainerrors.ProviderFailure("provider returned no cluster id", nil)
	}
	return resp.ClusterID, nil
}

// GetVirtualSessionEndpoint resolves the per-chain RPC endpoint for a cluster
func (c *Client) GetVirtualSessionEndpoint(ctx context.Context, clusterID string, chainID uint64, address string) (string, error) {
	var resp struct {
		URL string `json:"url"`
	}
	body := map[string]interface{}{
		"clusterId": clusterID,
		"chainId":   chainID,
		"address":   address,
	}
	if err := c.post(ctx, "get_session_endpoint", "/v1/sessions", body, &resp); err != nil {
		return "", err
	}
	if resp.URL == "" {
		return "", domainerrors.ProviderFailure("provider returned no session endpoint", nil)
	}
	return resp.URL, nil
}

// GetPortfolio reads token balances through a virtual session endpoint
func (c *Client) GetPortfolio(ctx context.Context, session *entities.VirtualSession) ([]entities.TokenBalance, error) {
	var resp struct {
		Balances []entities.TokenBalance `json:"balances"`
	}
	body := map[string]interface{}{
		"rpcUrl":  session.RPCURL,
		"chainId": session.ChainID,
		"address": session.Address,
	}
	if err := c.post(ctx, "get_portfolio", "/v1/portfolio", body, &resp); err != nil {
		return nil, err
	}
	return resp.Balances, nil
}

// BuildTransferOps asks the provider to construct an unsigned transfer set
func (c *Client) BuildTransferOps(ctx context.Context, req *providers.BuildTransferRequest) (*providers.BuildResult, error) {
	return c.build(ctx, "build_transfer", "/v1/operations/transfer", req)
}

// BuildSwapOps asks the provider to construct an unsigned swap set
func (c *Client) BuildSwapOps(ctx context.Context, req *providers.BuildSwapRequest) (*providers.BuildResult, error) {
	return c.build(ctx, "build_swap", "/v1/operations/swap", req)
}

func (c *Client) build(ctx context.Context, method, path string, req interface{}) (*providers.BuildResult, error) {
	raw, err := c.postRaw(ctx, method, path, req)
	if err != nil {
		return nil, err
	}
	var result providers.BuildResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, domainerrors.ProviderFailure("provider build response malformed", err)
	}
	result.Raw = raw
	return &result, nil
}

// ResolveStandardTokenIDs maps token contract addresses to the provider's
// standardized token identifiers, preserving input order.
func (c *Client) ResolveStandardTokenIDs(ctx context.Context, tokens []entities.TokenRef) ([]string, error) {
	var resp struct {
		TokenIDs []string `json:"tokenIds"`
	}
	body := map[string]interface{}{"tokens": tokens}
	if err := c.post(ctx, "resolve_token_ids", "/v1/tokens/resolve", body, &resp); err != nil {
		return nil, err
	}
	if len(resp.TokenIDs) != len(tokens) {
		return nil, domainerrors.ProviderFailure(
			fmt.Sprintf("provider resolved %d of %d tokens", len(resp.TokenIDs), len(tokens)), nil)
	}
	return resp.TokenIDs, nil
}

// Submit sends the signed payloads for an operation set
func (c *Client) Submit(ctx context.Context, clusterID, operationSetID string, signed []entities.SignedOperation) (*providers.SubmitResult, error) {
	var resp providers.SubmitResult
	body := map[string]interface{}{
		"clusterId":        clusterID,
		"operationSetId":   operationSetID,
		"signedOperations": signed,
	}
	if err := c.post(ctx, "submit", "/v1/operations/submit", body, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return &resp, domainerrors.NewAppError(http.StatusBadGateway, "provider rejected submission", domainerrors.ErrSubmissionFailed)
	}
	return &resp, nil
}

// SubscribeStatus registers a handler for asynchronous status pushes on the
// operation set. The handler runs on the subscriber's dispatch worker.
func (c *Client) SubscribeStatus(ctx context.Context, operationSetID string, handler func(providers.StatusUpdate)) error {
	return c.subscriber.subscribe(ctx, operationSetID, handler)
}

// Close tears down the status subscription stream
func (c *Client) Close() {
	c.subscriber.close()
}

func (c *Client) post(ctx context.Context, method, path string, body, dest interface{}) error {
	raw, err := c.postRaw(ctx, method, path, body)
	if err != nil {
		return err
	}
	if dest == nil {
		return nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return domainerrors.ProviderFailure("provider response malformed", err)
	}
	return nil
}

func (c *Client) postRaw(ctx context.Context, method, path string, body interface{}) (json.RawMessage, error) {
	start := time.Now()
	defer func() {
		metrics.ProviderCallDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	}()

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if callCtx.Err() == context.DeadlineExceeded {
			return nil, domainerrors.ProviderFailure("provider call timeout: "+method, err)
		}
		return nil, domainerrors.ProviderFailure("provider network error: "+method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domainerrors.ProviderFailure("provider response read failed", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logger.Warn(ctx, "provider call failed",
			zap.String("method", method),
			zap.Int("status", resp.StatusCode),
		)
		return nil, domainerrors.ProviderFailure(
			fmt.Sprintf("provider returned status %d for %s", resp.StatusCode, method), nil)
	}

	return raw, nil
}
