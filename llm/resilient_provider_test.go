package llm

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/moneta/llm/retry"
)

type stubProvider struct {
	calls atomic.Int32
	fn    func(n int32) (*ChatResponse, error)
}

func (s *stubProvider) Completion(_ context.Context, _ *ChatRequest) (*ChatResponse, error) {
	return s.fn(s.calls.Add(1))
}

func (s *stubProvider) HealthCheck(context.Context) (*HealthStatus, error) {
	return &HealthStatus{Healthy: true}, nil
}

func (s *stubProvider) Name() string { return "stub" }

func okResponse(text string) *ChatResponse {
	return &ChatResponse{Choices: []ChatChoice{{Message: Message{Role: RoleAssistant, Content: text}}}}
}

func fastRetry(n int) *retry.RetryPolicy {
	return &retry.RetryPolicy{MaxRetries: n, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Multiplier: 2}
}

func TestResilientProvider_RetriesRetryableErrors(t *testing.T) {
	stub := &stubProvider{fn: func(n int32) (*ChatResponse, error) {
		if n < 3 {
			return nil, &Error{Code: ErrUpstreamError, Message: "502", HTTPStatus: http.StatusBadGateway, Retryable: true}
		}
		return okResponse("done"), nil
	}}
	rp := NewResilientProvider(stub, fastRetry(3), BreakerConfig{MaxFailures: 10}, nil)

	resp, err := rp.Completion(context.Background(), &ChatRequest{})
	require.NoError(t, err)
	msg, ok := resp.FirstMessage()
	require.True(t, ok)
	assert.Equal(t, "done", msg.Content)
	assert.Equal(t, int32(3), stub.calls.Load())
}

func TestResilientProvider_DoesNotRetryPermanentErrors(t *testing.T) {
	stub := &stubProvider{fn: func(int32) (*ChatResponse, error) {
		return nil, &Error{Code: ErrInvalidRequest, Message: "bad", HTTPStatus: http.StatusBadRequest}
	}}
	rp := NewResilientProvider(stub, fastRetry(3), BreakerConfig{}, nil)

	_, err := rp.Completion(context.Background(), &ChatRequest{})
	require.Error(t, err)
	assert.Equal(t, int32(1), stub.calls.Load())
	assert.Equal(t, gobreaker.StateClosed, rp.State())
}

func TestResilientProvider_OpensCircuit(t *testing.T) {
	stub := &stubProvider{fn: func(int32) (*ChatResponse, error) {
		return nil, &Error{Code: ErrUpstreamError, Message: "down", Retryable: true}
	}}
	rp := NewResilientProvider(stub, nil, BreakerConfig{MaxFailures: 2, Timeout: time.Minute}, nil)

	for i := 0; i < 2; i++ {
		_, err := rp.Completion(context.Background(), &ChatRequest{})
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, rp.State())

	_, err := rp.Completion(context.Background(), &ChatRequest{})
	require.Error(t, err)
	var llmErr *Error
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, ErrProviderUnavailable, llmErr.Code)
	assert.Equal(t, int32(2), stub.calls.Load(), "open circuit must not reach the provider")
}
