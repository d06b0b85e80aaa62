package factory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/moneta/llm"
	"github.com/BaSui01/moneta/llm/retry"
)

func TestNewProviderFromConfig(t *testing.T) {
	logger := zap.NewNop()

	tests := []struct {
		name         string
		providerName string
		cfg          ProviderConfig
		wantName     string
		wantErr      bool
	}{
		{name: "openai", providerName: "openai", cfg: ProviderConfig{APIKey: "sk"}, wantName: "openai"},
		{name: "azure", providerName: "azure_openai", cfg: ProviderConfig{BaseURL: "https://x.openai.azure.com", Deployment: "gpt-4o"}, wantName: "azure_openai"},
		{name: "azure alias uses model as deployment", providerName: "AZURE", cfg: ProviderConfig{BaseURL: "https://x", Model: "gpt-4o"}, wantName: "azure_openai"},
		{name: "azure without endpoint", providerName: "azure_openai", cfg: ProviderConfig{Deployment: "d"}, wantErr: true},
		{name: "azure without deployment", providerName: "azure_openai", cfg: ProviderConfig{BaseURL: "https://x"}, wantErr: true},
		{name: "compat", providerName: "openai_compat", cfg: ProviderConfig{BaseURL: "http://localhost:11434"}, wantName: "openai_compat"},
		{name: "unknown", providerName: "gemini", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewProviderFromConfig(tt.providerName, tt.cfg, logger)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, p.Name())
		})
	}
}

func TestNewProviderFromConfig_WrapsResilience(t *testing.T) {
	p, err := NewProviderFromConfig("openai", ProviderConfig{
		APIKey:  "sk",
		Retry:   retry.DefaultRetryPolicy(),
		Breaker: &llm.BreakerConfig{MaxFailures: 3},
	}, nil)
	require.NoError(t, err)

	_, ok := p.(*llm.ResilientProvider)
	assert.True(t, ok)
	assert.Equal(t, "openai", p.Name())
}
