package metrics

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/moneta/llm"
)

var collectorNamespaceSeq uint64

func nextTestNamespace() string {
	seq := atomic.AddUint64(&collectorNamespaceSeq, 1)
	return fmt.Sprintf("test_%d", seq)
}

// =============================================================================
// 🧪 Collector 测试
// =============================================================================

func TestCollector_RecordHTTPRequest(t *testing.T) {
	c := NewCollector(nextTestNamespace(), zap.NewNop())

	c.RecordHTTPRequest("POST", "/api/http_trigger", 200, 100*time.Millisecond, 1024, 2048)
	c.RecordHTTPRequest("POST", "/api/http_trigger", 201, 50*time.Millisecond, 512, 1024)
	c.RecordHTTPRequest("POST", "/api/http_trigger", 404, time.Millisecond, 10, 10)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.httpRequestsTotal.WithLabelValues("POST", "/api/http_trigger", "2xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.httpRequestsTotal.WithLabelValues("POST", "/api/http_trigger", "4xx")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.httpRequestDuration))
}

func TestCollector_WorkflowMetrics(t *testing.T) {
	c := NewCollector(nextTestNamespace(), nil)

	c.RecordWorkflowRun("fsi_banking", "success", 2*time.Second)
	c.RecordWorkflowRun("fsi_banking", "success", time.Second)
	c.RecordWorkflowRun("fsi_banking", "timeout", 120*time.Second)
	c.RecordHandoff("fsi_banking", "bank-coordinator", "bank-crm-agent")
	c.RecordProtocolViolation("fsi_banking", "bank-coordinator")

	assert.Equal(t, 2.0, testutil.ToFloat64(c.workflowRunsTotal.WithLabelValues("fsi_banking", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.workflowRunsTotal.WithLabelValues("fsi_banking", "timeout")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.handoffsTotal.WithLabelValues("fsi_banking", "bank-coordinator", "bank-crm-agent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.protocolViolations.WithLabelValues("fsi_banking", "bank-coordinator")))
}

func TestCollector_ObserveCapability(t *testing.T) {
	c := NewCollector(nextTestNamespace(), nil)

	c.ObserveCapability("fetch_news", "success", 200*time.Millisecond)
	c.ObserveCapability("fetch_news", "cached", time.Millisecond)
	c.ObserveCapability("fetch_news", "error", time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.capabilityCallsTotal.WithLabelValues("fetch_news", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.capabilityCallsTotal.WithLabelValues("fetch_news", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.cacheHits.WithLabelValues("capability")))
}

func TestCollector_StoreMetrics(t *testing.T) {
	c := NewCollector(nextTestNamespace(), nil)

	c.RecordStoreOperation("redis", "read_user", "success", time.Millisecond)
	c.RecordStoreOperation("redis", "read_user", "not_found", time.Millisecond)
	c.RecordDBConnections("primary", 5, 3)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.storeOpsTotal.WithLabelValues("redis", "read_user", "not_found")))
	assert.Equal(t, 5.0, testutil.ToFloat64(c.dbConnectionsOpen.WithLabelValues("primary")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.dbConnectionsIdle.WithLabelValues("primary")))
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{200, "2xx"}, {302, "3xx"}, {400, "4xx"}, {503, "5xx"}, {100, "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusCode(tt.code))
	}
}

// =============================================================================
// 🧪 InstrumentedProvider 测试
// =============================================================================

type stubProvider struct {
	resp *llm.ChatResponse
	err  error
}

func (s *stubProvider) Completion(context.Context, *llm.ChatRequest) (*llm.ChatResponse, error) {
	return s.resp, s.err
}

func (s *stubProvider) HealthCheck(context.Context) (*llm.HealthStatus, error) {
	return &llm.HealthStatus{Healthy: true}, nil
}

func (s *stubProvider) Name() string { return "stub" }

func TestInstrumentProvider(t *testing.T) {
	c := NewCollector(nextTestNamespace(), nil)

	ok := c.InstrumentProvider(&stubProvider{resp: &llm.ChatResponse{
		Model: "gpt-4o-2024",
		Usage: llm.ChatUsage{PromptTokens: 120, CompletionTokens: 30},
	}})
	_, err := ok.Completion(context.Background(), &llm.ChatRequest{Model: "gpt-4o"})
	require.NoError(t, err)
	assert.Equal(t, "stub", ok.Name())

	failing := c.InstrumentProvider(&stubProvider{err: errors.New("boom")})
	_, err = failing.Completion(context.Background(), &llm.ChatRequest{Model: "gpt-4o"})
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.llmRequestsTotal.WithLabelValues("stub", "gpt-4o-2024", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.llmRequestsTotal.WithLabelValues("stub", "gpt-4o", "error")))
	assert.Equal(t, 120.0, testutil.ToFloat64(c.llmTokensUsed.WithLabelValues("stub", "gpt-4o-2024", "prompt")))
	assert.Equal(t, 30.0, testutil.ToFloat64(c.llmTokensUsed.WithLabelValues("stub", "gpt-4o-2024", "completion")))
}

func TestInstrumentProvider_NilCollector(t *testing.T) {
	var c *Collector
	p := &stubProvider{}
	assert.Same(t, llm.Provider(p), c.InstrumentProvider(p))
}
