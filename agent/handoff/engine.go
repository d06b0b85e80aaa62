package handoff

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/moneta/types"
)

// Decision is the outcome of one agent invocation: a delegation when Target
// is set, a direct reply otherwise.
type Decision struct {
	Target string
	Note   string
	Text   string
}

// IsDelegation reports whether the decision names a handoff target.
func (d Decision) IsDelegation() bool {
	return strings.TrimSpace(d.Target) != ""
}

// AgentRunner invokes one agent over the history seen so far.
type AgentRunner interface {
	Invoke(ctx context.Context, wf *Workflow, def AgentDefinition, history types.Conversation) (Decision, error)
}

// AgentRunnerFunc adapts a function to AgentRunner.
type AgentRunnerFunc func(ctx context.Context, wf *Workflow, def AgentDefinition, history types.Conversation) (Decision, error)

func (f AgentRunnerFunc) Invoke(ctx context.Context, wf *Workflow, def AgentDefinition, history types.Conversation) (Decision, error) {
	return f(ctx, wf, def, history)
}

// Hooks receives engine notifications. Every field is optional.
type Hooks struct {
	// OnDelegation fires for every accepted handoff.
	OnDelegation func(from, to string)
	// OnProtocolViolation fires when a delegation target is unknown or the agent itself.
	OnProtocolViolation func(agent, target string)
	// StartTurn wraps one agent invocation, typically in a trace span.
	StartTurn func(ctx context.Context, agent string) (context.Context, func(err error))
}

// Engine drives a workflow over one conversation at a time. It holds no
// per-run state and may be shared.
type Engine struct {
	workflow *Workflow
	runner   AgentRunner
	hooks    Hooks
	logger   *zap.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithHooks installs engine hooks.
func WithHooks(h Hooks) EngineOption {
	return func(e *Engine) { e.hooks = h }
}

// NewEngine 创建工作流引擎。
func NewEngine(wf *Workflow, runner AgentRunner, logger *zap.Logger, opts ...EngineOption) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		workflow: wf,
		runner:   runner,
		logger:   logger.With(zap.String("component", "handoff_engine")),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Workflow returns the workflow this engine runs.
func (e *Engine) Workflow() *Workflow { return e.workflow }

// Run executes the workflow over conversation and emits events in order.
// A context deadline aborts the run with a TIMEOUT error.
func (e *Engine) Run(ctx context.Context, conversation types.Conversation, emit func(Event)) error {
	wf := e.workflow
	coordinator := wf.Coordinator()
	active := coordinator
	history := conversation.Clone()

	for step := 0; step < wf.MaxSteps(); step++ {
		if err := ctx.Err(); err != nil {
			return contextError(err)
		}

		decision, err := e.invoke(ctx, active, history)
		if err != nil {
			return err
		}

		if decision.IsDelegation() {
			target, ok := wf.Agent(decision.Target)
			if ok && target.Name != active.Name {
				emit(Event{Kind: DelegationRequested, Agent: active.Name, Target: target.Name, Text: decision.Text, Note: decision.Note})
				if e.hooks.OnDelegation != nil {
					e.hooks.OnDelegation(active.Name, target.Name)
				}
				if strings.TrimSpace(decision.Text) != "" {
					history = history.Append(types.NewAssistantMessage(active.Name, decision.Text))
				}
				if strings.TrimSpace(decision.Note) != "" {
					history = history.Append(types.NewSystemMessage(active.Name, decision.Note))
				}
				e.logger.Debug("handoff", zap.String("from", active.Name), zap.String("to", target.Name))
				active = target
				continue
			}

			e.logger.Warn("delegation to unknown agent treated as direct reply",
				zap.String("agent", active.Name),
				zap.String("target", decision.Target))
			if e.hooks.OnProtocolViolation != nil {
				e.hooks.OnProtocolViolation(active.Name, decision.Target)
			}
			text := decision.Text
			if strings.TrimSpace(text) == "" {
				text = decision.Note
			}
			decision = Decision{Text: text}
		}

		if strings.TrimSpace(decision.Text) != "" {
			history = history.Append(types.NewAssistantMessage(active.Name, decision.Text))
		}

		if active.Coordinator {
			emit(Event{Kind: WorkflowCompleted, Agent: active.Name, Text: decision.Text})
			return nil
		}

		emit(Event{Kind: SpecialistCompleted, Agent: active.Name, Text: decision.Text})
		if wf.ShouldTerminate(history) {
			emit(Event{Kind: WorkflowCompleted, Agent: active.Name, Text: decision.Text})
			return nil
		}
		active = coordinator
	}

	e.logger.Warn("workflow stopped at max steps", zap.Int("max_steps", wf.MaxSteps()))
	return nil
}

// Collect runs the workflow and returns every emitted event, including those
// emitted before an error.
func (e *Engine) Collect(ctx context.Context, conversation types.Conversation) ([]Event, error) {
	var events []Event
	err := e.Run(ctx, conversation, func(ev Event) {
		events = append(events, ev)
	})
	return events, err
}

type invocation struct {
	decision Decision
	err      error
}

// invoke races the runner against ctx so a runner that ignores its context
// cannot hang the run.
func (e *Engine) invoke(ctx context.Context, def AgentDefinition, history types.Conversation) (Decision, error) {
	turnCtx := ctx
	var end func(error)
	if e.hooks.StartTurn != nil {
		turnCtx, end = e.hooks.StartTurn(ctx, def.Name)
	}

	done := make(chan invocation, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				e.logger.Error("agent runner panicked",
					zap.String("agent", def.Name),
					zap.Any("panic", r),
					zap.String("stack", string(debug.Stack())))
				done <- invocation{err: types.NewInternalError(fmt.Sprintf("agent %s panicked: %v", def.Name, r), nil)}
			}
		}()
		d, err := e.runner.Invoke(turnCtx, e.workflow, def, history.Clone())
		done <- invocation{decision: d, err: err}
	}()

	var out invocation
	select {
	case out = <-done:
		if out.err != nil && ctx.Err() != nil {
			out.err = contextError(ctx.Err())
		} else if out.err != nil {
			out.err = fmt.Errorf("agent %s: %w", def.Name, out.err)
		}
	case <-ctx.Done():
		out.err = contextError(ctx.Err())
	}

	if end != nil {
		end(out.err)
	}
	return out.decision, out.err
}

func contextError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return types.NewTimeoutError("workflow run timed out").WithCause(err)
	}
	return err
}
