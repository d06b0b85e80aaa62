package factory

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/moneta/llm"
	"github.com/BaSui01/moneta/llm/providers/openaicompat"
	"github.com/BaSui01/moneta/llm/retry"
)

// ProviderConfig is the configuration accepted by the factory function.
type ProviderConfig struct {
	APIKey     string        `json:"api_key" yaml:"api_key"`
	BaseURL    string        `json:"base_url" yaml:"base_url"`
	Model      string        `json:"model,omitempty" yaml:"model,omitempty"`
	Deployment string        `json:"deployment,omitempty" yaml:"deployment,omitempty"`
	APIVersion string        `json:"api_version,omitempty" yaml:"api_version,omitempty"`
	Timeout    time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	Retry   *retry.RetryPolicy `json:"-" yaml:"-"`
	Breaker *llm.BreakerConfig `json:"-" yaml:"-"`
}

// NewProviderFromConfig creates a Provider by name.
//
// Supported names: openai, azure_openai (alias azure), openai_compat.
// When Retry or Breaker is set the provider is wrapped in llm.ResilientProvider.
func NewProviderFromConfig(name string, cfg ProviderConfig, logger *zap.Logger) (llm.Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var p llm.Provider
	switch strings.ToLower(name) {
	case "openai":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "https://api.openai.com"
		}
		p = openaicompat.New(openaicompat.Config{
			ProviderName: "openai",
			APIKey:       cfg.APIKey,
			BaseURL:      baseURL,
			DefaultModel: cfg.Model,
			Timeout:      cfg.Timeout,
		}, logger)
	case "azure_openai", "azure":
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("azure_openai requires base_url")
		}
		deployment := cfg.Deployment
		if deployment == "" {
			deployment = cfg.Model
		}
		if deployment == "" {
			return nil, fmt.Errorf("azure_openai requires deployment")
		}
		p = openaicompat.New(openaicompat.Config{
			ProviderName: "azure_openai",
			APIKey:       cfg.APIKey,
			BaseURL:      cfg.BaseURL,
			Deployment:   deployment,
			APIVersion:   cfg.APIVersion,
			Timeout:      cfg.Timeout,
		}, logger)
	case "openai_compat":
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("openai_compat requires base_url")
		}
		p = openaicompat.New(openaicompat.Config{
			ProviderName: "openai_compat",
			APIKey:       cfg.APIKey,
			BaseURL:      cfg.BaseURL,
			DefaultModel: cfg.Model,
			Timeout:      cfg.Timeout,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown llm provider: %q", name)
	}

	if cfg.Retry == nil && cfg.Breaker == nil {
		return p, nil
	}
	breaker := llm.BreakerConfig{}
	if cfg.Breaker != nil {
		breaker = *cfg.Breaker
	}
	return llm.NewResilientProvider(p, cfg.Retry, breaker, logger), nil
}
