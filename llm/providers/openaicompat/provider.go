package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/moneta/internal/tlsutil"
	"github.com/BaSui01/moneta/llm"
)

// Config holds the configuration for an OpenAI-compatible provider.
type Config struct {
	// ProviderName is the unique identifier for this provider (e.g., "openai", "azure_openai").
	ProviderName string

	// APIKey is the authentication key for the provider's API.
	APIKey string

	// BaseURL is the base URL for the provider's API.
	BaseURL string

	// DefaultModel is the model to use when none is specified in the request.
	DefaultModel string

	// Deployment selects Azure OpenAI mode when non-empty.
	Deployment string

	// APIVersion is the Azure OpenAI api-version query parameter.
	APIVersion string

	// Timeout is the HTTP client timeout. Defaults to 60s if zero.
	Timeout time.Duration

	// EndpointPath is the chat completions endpoint path. Defaults to "/v1/chat/completions".
	EndpointPath string

	// ModelsEndpoint is the models list endpoint path used for health checks.
	ModelsEndpoint string

	// BuildHeaders is an optional function to set custom headers on each request.
	BuildHeaders func(req *http.Request, apiKey string)
}

// Provider implements llm.Provider for OpenAI-compatible APIs.
type Provider struct {
	Cfg    Config
	Client *http.Client
	Logger *zap.Logger
}

// New creates a new OpenAI-compatible provider with the given config.
func New(cfg Config, logger *zap.Logger) *Provider {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	if cfg.ProviderName == "" {
		cfg.ProviderName = "openai"
	}
	if cfg.Deployment != "" {
		if cfg.APIVersion == "" {
			cfg.APIVersion = "2024-10-21"
		}
		if cfg.EndpointPath == "" {
			cfg.EndpointPath = "/openai/deployments/" + url.PathEscape(cfg.Deployment) + "/chat/completions"
		}
		if cfg.ModelsEndpoint == "" {
			cfg.ModelsEndpoint = "/openai/models"
		}
		if cfg.BuildHeaders == nil {
			cfg.BuildHeaders = azureHeaders
		}
	}
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = "/v1/chat/completions"
	}
	if cfg.ModelsEndpoint == "" {
		cfg.ModelsEndpoint = "/v1/models"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{
		Cfg:    cfg,
		Client: tlsutil.SecureHTTPClient(timeout),
		Logger: logger.With(zap.String("component", "openaicompat"), zap.String("provider", cfg.ProviderName)),
	}
}

// Name returns the provider name.
func (p *Provider) Name() string { return p.Cfg.ProviderName }

func azureHeaders(req *http.Request, apiKey string) {
	req.Header.Set("api-key", apiKey)
	req.Header.Set("Content-Type", "application/json")
}

// buildHeaders applies headers to the HTTP request.
func (p *Provider) buildHeaders(req *http.Request) {
	if p.Cfg.BuildHeaders != nil {
		p.Cfg.BuildHeaders(req, p.Cfg.APIKey)
		return
	}
	req.Header.Set("Authorization", "Bearer "+p.Cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
}

// endpoint builds the full URL for a given path.
func (p *Provider) endpoint(path string) string {
	u := strings.TrimRight(p.Cfg.BaseURL, "/") + path
	if p.Cfg.APIVersion != "" {
		sep := "?"
		if strings.Contains(u, "?") {
			sep = "&"
		}
		u += sep + "api-version=" + url.QueryEscape(p.Cfg.APIVersion)
	}
	return u
}

func (p *Provider) upstreamError(err error) *llm.Error {
	code := llm.ErrUpstreamError
	if errors.Is(err, context.DeadlineExceeded) {
		code = llm.ErrUpstreamTimeout
	}
	return &llm.Error{
		Code: code, Message: err.Error(),
		HTTPStatus: http.StatusBadGateway, Retryable: !errors.Is(err, context.Canceled), Provider: p.Name(),
	}
}

// HealthCheck verifies the provider is reachable.
func (p *Provider) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	start := time.Now()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint(p.Cfg.ModelsEndpoint), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	p.buildHeaders(httpReq)

	resp, err := p.Client.Do(httpReq)
	latency := time.Since(start)
	if err != nil {
		return &llm.HealthStatus{Healthy: false, Latency: latency}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg := readErrorMessage(resp.Body)
		return &llm.HealthStatus{Healthy: false, Latency: latency},
			fmt.Errorf("%s health check failed: status=%d msg=%s", p.Name(), resp.StatusCode, msg)
	}
	return &llm.HealthStatus{Healthy: true, Latency: latency}, nil
}

// Completion performs a non-streaming chat completion.
func (p *Provider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	if req == nil || len(req.Messages) == 0 {
		return nil, &llm.Error{
			Code: llm.ErrInvalidRequest, Message: "messages are required",
			HTTPStatus: http.StatusBadRequest, Provider: p.Name(),
		}
	}
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	body := wireRequest{
		Messages:    toWireMessages(req.Messages),
		Tools:       toWireTools(req.Tools),
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		User:        req.UserID,
	}
	// Azure 以 deployment 决定模型
	if p.Cfg.Deployment == "" {
		body.Model = req.Model
		if body.Model == "" {
			body.Model = p.Cfg.DefaultModel
		}
	}
	if len(body.Tools) > 0 && req.ToolChoice != "" {
		body.ToolChoice = req.ToolChoice
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint(p.Cfg.EndpointPath), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	p.buildHeaders(httpReq)

	start := time.Now()
	resp, err := p.Client.Do(httpReq)
	if err != nil {
		return nil, p.upstreamError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg := readErrorMessage(resp.Body)
		p.Logger.Warn("completion failed", zap.Int("status", resp.StatusCode), zap.String("error", msg))
		return nil, mapHTTPError(resp.StatusCode, msg, p.Name())
	}

	var wr wireResponse
	if err := json.NewDecoder(resp.Body).Decode(&wr); err != nil {
		return nil, p.upstreamError(fmt.Errorf("decode response: %w", err))
	}

	result := toChatResponse(wr, p.Name())
	if wr.Created != 0 {
		result.CreatedAt = time.Unix(wr.Created, 0)
	}
	p.Logger.Debug("completion done",
		zap.Duration("latency", time.Since(start)),
		zap.Int("prompt_tokens", result.Usage.PromptTokens),
		zap.Int("completion_tokens", result.Usage.CompletionTokens),
	)
	return result, nil
}

var _ llm.Provider = (*Provider)(nil)
