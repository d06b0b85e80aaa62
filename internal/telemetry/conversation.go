package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "moneta/orchestrator"

// Span attribute keys.
const (
	AttrConversationID = attribute.Key("gen_ai.conversation.id")
	AttrOperationName  = attribute.Key("gen_ai.operation.name")
	AttrAgentName      = attribute.Key("gen_ai.agent.name")
	AttrSessionID      = attribute.Key("session.id")
	AttrUserID         = attribute.Key("user.id")
	AttrUseCase        = attribute.Key("moneta.use_case")
	AttrMessageCount   = attribute.Key("conversation.message_count")
	AttrTokenCount     = attribute.Key("conversation.token_count")
	AttrResponseAgent  = attribute.Key("response.agent")
	AttrResponseLength = attribute.Key("response.length")
)

// RunInfo describes one workflow run.
type RunInfo struct {
	ConversationID string
	SessionID      string
	UserID         string
	UseCase        string
	Coordinator    string
	MessageCount   int
	TokenCount     int
}

// ConversationTracer emits one span per workflow run and one per agent turn.
// A nil *ConversationTracer is valid and records nothing.
type ConversationTracer struct {
	tracer trace.Tracer
}

// NewConversationTracer uses tp, or the global provider when tp is nil.
func NewConversationTracer(tp trace.TracerProvider) *ConversationTracer {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &ConversationTracer{tracer: tp.Tracer(tracerName)}
}

// RunSpan is an in-flight workflow run span.
type RunSpan struct {
	span trace.Span
}

// StartRun opens the run span.
func (t *ConversationTracer) StartRun(ctx context.Context, info RunInfo) (context.Context, *RunSpan) {
	if t == nil {
		return ctx, nil
	}
	ctx, span := t.tracer.Start(ctx, "invoke_agent "+info.Coordinator,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			AttrConversationID.String(info.ConversationID),
			AttrOperationName.String("invoke_agent"),
			AttrAgentName.String(info.Coordinator),
			AttrSessionID.String(info.SessionID),
			AttrUserID.String(info.UserID),
			AttrUseCase.String(info.UseCase),
			AttrMessageCount.Int(info.MessageCount),
			AttrTokenCount.Int(info.TokenCount),
		),
	)
	return ctx, &RunSpan{span: span}
}

// End records the response and closes the span. Safe on a nil RunSpan.
func (s *RunSpan) End(agent, text string, err error) {
	if s == nil {
		return
	}
	s.span.SetAttributes(
		AttrResponseAgent.String(agent),
		AttrResponseLength.Int(len(text)),
	)
	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	}
	s.span.End()
}

// StartTurn opens a child span for one agent invocation.
func (t *ConversationTracer) StartTurn(ctx context.Context, agent string) (context.Context, func(error)) {
	if t == nil {
		return ctx, func(error) {}
	}
	ctx, span := t.tracer.Start(ctx, "agent_turn "+agent,
		trace.WithAttributes(
			AttrOperationName.String("invoke_agent"),
			AttrAgentName.String(agent),
		),
	)
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}
