package openaicompat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/moneta/llm"
)

func TestNew_Defaults(t *testing.T) {
	tests := []struct {
		name         string
		cfg          Config
		wantEndpoint string
		wantModels   string
		wantName     string
	}{
		{
			name:         "openai defaults",
			cfg:          Config{ProviderName: "openai"},
			wantEndpoint: "/v1/chat/completions",
			wantModels:   "/v1/models",
			wantName:     "openai",
		},
		{
			name:         "azure deployment",
			cfg:          Config{ProviderName: "azure_openai", Deployment: "gpt-4o"},
			wantEndpoint: "/openai/deployments/gpt-4o/chat/completions",
			wantModels:   "/openai/models",
			wantName:     "azure_openai",
		},
		{
			name:         "custom endpoint preserved",
			cfg:          Config{ProviderName: "gateway", EndpointPath: "/api/chat"},
			wantEndpoint: "/api/chat",
			wantModels:   "/v1/models",
			wantName:     "gateway",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(tt.cfg, nil)
			require.NotNil(t, p)
			assert.Equal(t, tt.wantEndpoint, p.Cfg.EndpointPath)
			assert.Equal(t, tt.wantModels, p.Cfg.ModelsEndpoint)
			assert.Equal(t, tt.wantName, p.Name())
			assert.NotNil(t, p.Client)
		})
	}
}

func TestNew_TimeoutDefault(t *testing.T) {
	p := New(Config{ProviderName: "t"}, nil)
	assert.Equal(t, 60*time.Second, p.Client.Timeout)
}

func TestProvider_Completion_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-4o", body["model"])
		tools, _ := body["tools"].([]any)
		if !assert.Len(t, tools, 1) {
			return
		}
		fn := tools[0].(map[string]any)["function"].(map[string]any)
		assert.Equal(t, "search_cio", fn["name"])
		assert.NotNil(t, fn["parameters"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"model": "gpt-4o",
			"created": 1700000000,
			"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "Hello"}}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 2, "total_tokens": 12}
		}`))
	}))
	defer server.Close()

	p := New(Config{ProviderName: "openai", APIKey: "test-key", BaseURL: server.URL, DefaultModel: "gpt-4o"}, zap.NewNop())
	resp, err := p.Completion(context.Background(), &llm.ChatRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
		Tools: []llm.ToolSchema{{
			Name:       "search_cio",
			Parameters: json.RawMessage(`{"type":"object","properties":{"query":{"type":"string"}}}`),
		}},
		ToolChoice: "auto",
	})

	require.NoError(t, err)
	msg, ok := resp.FirstMessage()
	require.True(t, ok)
	assert.Equal(t, "Hello", msg.Content)
	assert.Equal(t, 12, resp.Usage.TotalTokens)
	assert.Equal(t, "openai", resp.Provider)
	assert.False(t, resp.CreatedAt.IsZero())
}

func TestProvider_Completion_AzureToolCalls(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/openai/deployments/gpt-4o/chat/completions", r.URL.Path)
		assert.Equal(t, "2024-10-21", r.URL.Query().Get("api-version"))
		assert.Equal(t, "azure-key", r.Header.Get("api-key"))
		assert.Empty(t, r.Header.Get("Authorization"))

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, hasModel := body["model"]
		assert.False(t, hasModel, "azure deployments choose the model")

		_, _ = w.Write([]byte(`{
			"choices": [{"index": 0, "finish_reason": "tool_calls", "message": {
				"role": "assistant", "content": null,
				"tool_calls": [{"id": "call_1", "type": "function",
					"function": {"name": "handoff_to_bank-crm-agent", "arguments": "{\"reason\":\"client lookup\"}"}}]
			}}]
		}`))
	}))
	defer server.Close()

	p := New(Config{ProviderName: "azure_openai", APIKey: "azure-key", BaseURL: server.URL, Deployment: "gpt-4o"}, nil)
	resp, err := p.Completion(context.Background(), &llm.ChatRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "Who is Pete Mitchell?"}},
	})

	require.NoError(t, err)
	msg, _ := resp.FirstMessage()
	assert.Empty(t, msg.Content)
	require.Len(t, msg.ToolCalls, 1)
	assert.Equal(t, "handoff_to_bank-crm-agent", msg.ToolCalls[0].Name)
	assert.JSONEq(t, `{"reason":"client lookup"}`, string(msg.ToolCalls[0].Arguments))
}

func TestProvider_Completion_ErrorMapping(t *testing.T) {
	tests := []struct {
		status    int
		body      string
		wantCode  llm.ErrorCode
		retryable bool
	}{
		{http.StatusUnauthorized, `{"error":{"message":"bad key"}}`, llm.ErrUnauthorized, false},
		{http.StatusTooManyRequests, `{"error":{"message":"slow down"}}`, llm.ErrRateLimited, true},
		{http.StatusBadRequest, `{"error":{"message":"content_filter triggered"}}`, llm.ErrContentFiltered, false},
		{http.StatusBadRequest, `{"error":{"message":"bad field"}}`, llm.ErrInvalidRequest, false},
		{http.StatusServiceUnavailable, `unavailable`, llm.ErrUpstreamError, true},
		{http.StatusGatewayTimeout, `timeout`, llm.ErrUpstreamTimeout, true},
		{529, `overloaded`, llm.ErrModelOverloaded, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.wantCode), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			p := New(Config{ProviderName: "openai", BaseURL: server.URL}, nil)
			_, err := p.Completion(context.Background(), &llm.ChatRequest{
				Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
			})

			var llmErr *llm.Error
			require.ErrorAs(t, err, &llmErr)
			assert.Equal(t, tt.wantCode, llmErr.Code)
			assert.Equal(t, tt.retryable, llmErr.Retryable)
			assert.Equal(t, tt.status, llmErr.HTTPStatus)
		})
	}
}

func TestProvider_Completion_RequiresMessages(t *testing.T) {
	p := New(Config{ProviderName: "openai"}, nil)
	_, err := p.Completion(context.Background(), &llm.ChatRequest{})

	var llmErr *llm.Error
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, llm.ErrInvalidRequest, llmErr.Code)
}

func TestProvider_HealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/models", r.URL.Path)
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer server.Close()

	p := New(Config{ProviderName: "openai", BaseURL: server.URL}, nil)
	status, err := p.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Healthy)
}

func TestToWireMessages_ToolRoundTrip(t *testing.T) {
	msgs := toWireMessages([]llm.Message{
		{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{{ID: "c1", Name: "fetch_news", Arguments: json.RawMessage(`{"position":"MSFT"}`)}}},
		{Role: llm.RoleTool, ToolCallID: "c1", Name: "fetch news", Content: `[]`},
	})

	require.Len(t, msgs, 2)
	assert.Nil(t, msgs[0].Content)
	assert.Equal(t, `{"position":"MSFT"}`, msgs[0].ToolCalls[0].Function.Arguments)
	assert.Equal(t, "fetch_news", msgs[1].Name)
}

func TestNormalizeArguments(t *testing.T) {
	assert.JSONEq(t, `{}`, string(normalizeArguments("")))
	assert.JSONEq(t, `{"a":1}`, string(normalizeArguments(`{"a":1}`)))
	assert.JSONEq(t, `{"a":1}`, string(normalizeArguments(`"{\"a\":1}"`)))
	assert.JSONEq(t, `{"input":"not json"}`, string(normalizeArguments(`not json`)))
}
