package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func attrMap(kvs []attribute.KeyValue) map[attribute.Key]attribute.Value {
	out := make(map[attribute.Key]attribute.Value, len(kvs))
	for _, kv := range kvs {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestConversationTracer_RunAndTurns(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	tracer := NewConversationTracer(tp)

	ctx, run := tracer.StartRun(context.Background(), RunInfo{
		ConversationID: "chat-1",
		SessionID:      "chat-1",
		UserID:         "u1",
		UseCase:        "fsi_banking",
		Coordinator:    "bank-coordinator",
		MessageCount:   3,
		TokenCount:     42,
	})
	_, endTurn := tracer.StartTurn(ctx, "bank-crm-agent")
	endTurn(errors.New("upstream"))
	run.End("bank-crm-agent", "hello", nil)

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	turn := spans[0]
	assert.Equal(t, "agent_turn bank-crm-agent", turn.Name())
	assert.Equal(t, codes.Error, turn.Status().Code)

	root := spans[1]
	assert.Equal(t, root.SpanContext().SpanID(), turn.Parent().SpanID())
	attrs := attrMap(root.Attributes())
	assert.Equal(t, "chat-1", attrs[AttrConversationID].AsString())
	assert.Equal(t, "invoke_agent", attrs[AttrOperationName].AsString())
	assert.Equal(t, int64(3), attrs[AttrMessageCount].AsInt64())
	assert.Equal(t, int64(42), attrs[AttrTokenCount].AsInt64())
	assert.Equal(t, "bank-crm-agent", attrs[AttrResponseAgent].AsString())
	assert.Equal(t, int64(5), attrs[AttrResponseLength].AsInt64())
}

func TestConversationTracer_NilIsNoop(t *testing.T) {
	var tracer *ConversationTracer
	ctx, run := tracer.StartRun(context.Background(), RunInfo{})
	assert.NotNil(t, ctx)
	run.End("a", "b", nil)

	_, end := tracer.StartTurn(ctx, "a")
	end(nil)
}
