package usecase

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/BaSui01/moneta/agent/handoff"
	"github.com/BaSui01/moneta/agent/orchestrator"
	"github.com/BaSui01/moneta/llm"
	"github.com/BaSui01/moneta/llm/tools"
)

// Dependencies are shared by every use-case workflow.
type Dependencies struct {
	Provider         llm.Provider
	Registry         *tools.DefaultRegistry
	Executor         tools.ToolExecutor
	Runner           handoff.LLMRunnerConfig
	MaxSteps         int
	UserMessageLimit int
	Logger           *zap.Logger
}

// BuildFunc returns the lazy workflow builder for u.
func (u UseCase) BuildFunc(deps Dependencies) orchestrator.BuildFunc {
	return func(ctx context.Context) (*handoff.Workflow, handoff.AgentRunner, error) {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		if deps.Provider == nil {
			return nil, nil, errors.New("completion provider is not configured")
		}
		if deps.Registry == nil {
			return nil, nil, errors.New("capability registry is not configured")
		}

		limit := deps.UserMessageLimit
		if limit <= 0 {
			limit = handoff.DefaultUserMessageLimit
		}
		wf, err := handoff.NewWorkflow(u.Coordinator, u.Specialists,
			handoff.WithCapabilityValidator(deps.Registry),
			handoff.WithTermination(handoff.UserMessageLimit(limit)),
			handoff.WithMaxSteps(deps.MaxSteps),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("use case %s: %w", u.ID, err)
		}

		executor := deps.Executor
		if executor == nil {
			executor = tools.NewDefaultExecutor(deps.Registry, deps.Logger)
		}
		runner := handoff.NewLLMRunner(deps.Provider, deps.Registry, executor, deps.Runner, deps.Logger)
		return wf, runner, nil
	}
}

// NewOrchestrator creates the orchestrator for u.
func (u UseCase) NewOrchestrator(deps Dependencies, opts ...orchestrator.Option) *orchestrator.Orchestrator {
	return orchestrator.New(u.ID, u.Coordinator.Name, u.BuildFunc(deps), deps.Logger, opts...)
}

// NewRegistry registers an orchestrator for every shipped use case.
func NewRegistry(deps Dependencies, opts ...orchestrator.Option) (*orchestrator.Registry, error) {
	reg := orchestrator.NewRegistry()
	for _, u := range All() {
		if err := reg.Register(u.NewOrchestrator(deps, opts...)); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
