package orchestrator

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/moneta/agent/handoff"
	"github.com/BaSui01/moneta/internal/telemetry"
	"github.com/BaSui01/moneta/llm/tokenizer"
	"github.com/BaSui01/moneta/types"
)

// Fallback replies.
const (
	NoResponseText   = "I apologize, but I was unable to generate a response."
	ErrorText        = "I encountered an error while processing your request. Please try again."
	EmptyMessageText = "I didn't receive a message. How can I help you?"
)

// DefaultRunTimeout bounds one workflow run.
const DefaultRunTimeout = 120 * time.Second

// Run outcomes reported to the Recorder.
const (
	OutcomeSuccess  = "success"
	OutcomeFallback = "fallback"
	OutcomeEmpty    = "empty"
	OutcomeError    = "error"
	OutcomeTimeout  = "timeout"
	OutcomePanic    = "panic"
)

// BuildFunc constructs the workflow and the runner that drives its agents.
type BuildFunc func(ctx context.Context) (*handoff.Workflow, handoff.AgentRunner, error)

// Recorder receives orchestration metrics.
type Recorder interface {
	RecordWorkflowRun(useCase, outcome string, duration time.Duration)
	RecordHandoff(useCase, from, to string)
	RecordProtocolViolation(useCase, agent string)
}

// Orchestrator owns exactly one workflow for one use case.
type Orchestrator struct {
	useCase     string
	coordinator string
	build       BuildFunc

	mu     sync.Mutex
	engine *handoff.Engine

	runTimeout time.Duration
	tracer     *telemetry.ConversationTracer
	recorder   Recorder
	tokenizer  tokenizer.Tokenizer
	logger     *zap.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithRunTimeout sets the per-run timeout.
func WithRunTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.runTimeout = d
		}
	}
}

// WithTracer enables conversation tracing.
func WithTracer(t *telemetry.ConversationTracer) Option {
	return func(o *Orchestrator) { o.tracer = t }
}

// WithRecorder enables metrics.
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

// WithTokenizer sets the tokenizer used for the token-count span attribute.
func WithTokenizer(t tokenizer.Tokenizer) Option {
	return func(o *Orchestrator) { o.tokenizer = t }
}

// New 创建用例编排器。coordinator 是兜底回复的作者名。
func New(useCase, coordinator string, build BuildFunc, logger *zap.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &Orchestrator{
		useCase:     useCase,
		coordinator: coordinator,
		build:       build,
		runTimeout:  DefaultRunTimeout,
		logger:      logger.With(zap.String("component", "orchestrator"), zap.String("use_case", useCase)),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// UseCase returns the use-case id.
func (o *Orchestrator) UseCase() string { return o.useCase }

// Engine returns the engine, building the workflow on first use. Concurrent
// first calls collapse to one build; a failed build is retried next call.
func (o *Orchestrator) Engine(ctx context.Context) (*handoff.Engine, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.engine != nil {
		return o.engine, nil
	}

	start := time.Now()
	wf, runner, err := o.build(ctx)
	if err != nil {
		o.logger.Error("workflow build failed", zap.Error(err))
		return nil, err
	}

	o.engine = handoff.NewEngine(wf, runner, o.logger, handoff.WithHooks(o.hooks()))
	o.logger.Info("workflow built",
		zap.String("coordinator", wf.Coordinator().Name),
		zap.Int("specialists", len(wf.Specialists())),
		zap.Duration("duration", time.Since(start)))
	return o.engine, nil
}

func (o *Orchestrator) hooks() handoff.Hooks {
	h := handoff.Hooks{}
	if o.recorder != nil {
		h.OnDelegation = func(from, to string) { o.recorder.RecordHandoff(o.useCase, from, to) }
		h.OnProtocolViolation = func(agent, _ string) { o.recorder.RecordProtocolViolation(o.useCase, agent) }
	}
	if o.tracer != nil {
		h.StartTurn = o.tracer.StartTurn
	}
	return h
}

// ProcessConversation runs the workflow over conversation and returns the
// reply. It never fails: errors, panics and empty results become fallback
// messages authored by the coordinator.
func (o *Orchestrator) ProcessConversation(ctx context.Context, userID string, conversation types.Conversation, sessionID string) (reply types.Message) {
	start := time.Now()
	outcome := OutcomeSuccess
	logger := o.logger.With(zap.String("session_id", sessionID), zap.String("user_id", userID))

	defer func() {
		if r := recover(); r != nil {
			logger.Error("conversation processing panicked",
				zap.Any("panic", r),
				zap.String("stack", string(debug.Stack())))
			reply = o.fallback(ErrorText)
			outcome = OutcomePanic
		}
		if o.recorder != nil {
			o.recorder.RecordWorkflowRun(o.useCase, outcome, time.Since(start))
		}
	}()

	filtered := types.FilterConversationRoles(conversation)
	if len(filtered) == 0 {
		outcome = OutcomeEmpty
		return o.fallback(EmptyMessageText)
	}

	engine, err := o.Engine(ctx)
	if err != nil {
		outcome = OutcomeError
		return o.fallback(ErrorText)
	}

	runCtx, cancel := context.WithTimeout(ctx, o.runTimeout)
	defer cancel()
	runCtx = types.WithSessionID(types.WithUserID(runCtx, userID), sessionID)

	runCtx, span := o.tracer.StartRun(runCtx, telemetry.RunInfo{
		ConversationID: sessionID,
		SessionID:      sessionID,
		UserID:         userID,
		UseCase:        o.useCase,
		Coordinator:    engine.Workflow().Coordinator().Name,
		MessageCount:   len(filtered),
		TokenCount:     o.countTokens(filtered),
	})

	events, err := engine.Collect(runCtx, filtered)
	if err != nil {
		outcome = OutcomeError
		if types.IsErrorCode(err, types.ErrTimeout) {
			outcome = OutcomeTimeout
		}
		logger.Error("workflow run failed", zap.Error(err), zap.Int("events", len(events)))
		reply = o.fallback(ErrorText)
		span.End(reply.Name, reply.Content, err)
		return reply
	}

	final, ok := handoff.Reduce(events)
	if !ok {
		outcome = OutcomeFallback
		logger.Warn("workflow produced no reply", zap.Int("events", len(events)))
		reply = o.fallback(NoResponseText)
	} else {
		reply = types.NewAssistantMessage(final.Agent, final.Text)
	}

	logger.Info("conversation processed",
		zap.String("response_agent", reply.Name),
		zap.Int("events", len(events)),
		zap.Duration("duration", time.Since(start)))
	span.End(reply.Name, reply.Content, nil)
	return reply
}

func (o *Orchestrator) fallback(text string) types.Message {
	return types.NewAssistantMessage(o.coordinator, text)
}

func (o *Orchestrator) countTokens(conv types.Conversation) int {
	if o.tokenizer == nil {
		return 0
	}
	msgs := make([]tokenizer.Message, len(conv))
	for i, m := range conv {
		msgs[i] = tokenizer.Message{Role: string(m.Role), Content: m.Content}
	}
	n, err := o.tokenizer.CountMessages(msgs)
	if err != nil {
		return 0
	}
	return n
}
