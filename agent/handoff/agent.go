package handoff

import (
	"fmt"
	"strings"

	"github.com/BaSui01/moneta/types"
)

// DefaultMaxSteps bounds agent invocations in one run.
const DefaultMaxSteps = 10

// AgentDefinition describes one participant of a workflow.
type AgentDefinition struct {
	Name         string   `json:"name" yaml:"name"`
	Description  string   `json:"description" yaml:"description"`
	Instructions string   `json:"instructions" yaml:"instructions"`
	Capabilities []string `json:"capabilities,omitempty" yaml:"capabilities,omitempty"`
	Coordinator  bool     `json:"coordinator,omitempty" yaml:"coordinator,omitempty"`
}

// CapabilityValidator checks that capability names resolve.
type CapabilityValidator interface {
	Validate(names []string) error
}

// Workflow is an immutable coordinator plus ordered specialists.
// It is safe for concurrent use once built.
type Workflow struct {
	coordinator AgentDefinition
	specialists []AgentDefinition
	byName      map[string]AgentDefinition
	terminate   TerminationCondition
	maxSteps    int
}

// WorkflowOption configures NewWorkflow.
type WorkflowOption func(*workflowOptions)

type workflowOptions struct {
	terminate    TerminationCondition
	maxSteps     int
	capabilities CapabilityValidator
}

// WithTermination sets the termination condition. Default: UserMessageLimit(DefaultUserMessageLimit).
func WithTermination(c TerminationCondition) WorkflowOption {
	return func(o *workflowOptions) { o.terminate = c }
}

// WithMaxSteps sets the per-run invocation bound.
func WithMaxSteps(n int) WorkflowOption {
	return func(o *workflowOptions) { o.maxSteps = n }
}

// WithCapabilityValidator validates every agent's capabilities at build time.
func WithCapabilityValidator(v CapabilityValidator) WorkflowOption {
	return func(o *workflowOptions) { o.capabilities = v }
}

// NewWorkflow validates and assembles a workflow.
func NewWorkflow(coordinator AgentDefinition, specialists []AgentDefinition, opts ...WorkflowOption) (*Workflow, error) {
	o := workflowOptions{
		terminate: UserMessageLimit(DefaultUserMessageLimit),
		maxSteps:  DefaultMaxSteps,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.maxSteps <= 0 {
		o.maxSteps = DefaultMaxSteps
	}
	if o.terminate == nil {
		return nil, invalidWorkflow("termination condition is required")
	}

	coordinator.Coordinator = true
	if len(specialists) == 0 {
		return nil, invalidWorkflow("at least one specialist is required")
	}

	byName := make(map[string]AgentDefinition, len(specialists)+1)
	all := append([]AgentDefinition{coordinator}, specialists...)
	for i, def := range all {
		name := strings.TrimSpace(def.Name)
		if name == "" {
			return nil, invalidWorkflow(fmt.Sprintf("agent #%d has no name", i))
		}
		if name != def.Name {
			return nil, invalidWorkflow(fmt.Sprintf("agent name %q has surrounding whitespace", def.Name))
		}
		if _, dup := byName[name]; dup {
			return nil, invalidWorkflow(fmt.Sprintf("duplicate agent name %q", name))
		}
		if i > 0 && def.Coordinator {
			return nil, invalidWorkflow(fmt.Sprintf("specialist %q is flagged as coordinator", name))
		}
		if o.capabilities != nil && len(def.Capabilities) > 0 {
			if err := o.capabilities.Validate(def.Capabilities); err != nil {
				return nil, fmt.Errorf("agent %s: %w", name, err)
			}
		}
		byName[name] = cloneDefinition(def)
	}

	specs := make([]AgentDefinition, len(specialists))
	for i, s := range specialists {
		specs[i] = cloneDefinition(s)
	}

	return &Workflow{
		coordinator: cloneDefinition(coordinator),
		specialists: specs,
		byName:      byName,
		terminate:   o.terminate,
		maxSteps:    o.maxSteps,
	}, nil
}

func invalidWorkflow(msg string) *types.Error {
	return types.NewError(types.ErrInvalidWorkflow, msg)
}

func cloneDefinition(d AgentDefinition) AgentDefinition {
	d.Capabilities = append([]string(nil), d.Capabilities...)
	return d
}

// Coordinator returns the coordinator definition.
func (w *Workflow) Coordinator() AgentDefinition { return cloneDefinition(w.coordinator) }

// Specialists returns the specialists in declaration order.
func (w *Workflow) Specialists() []AgentDefinition {
	out := make([]AgentDefinition, len(w.specialists))
	for i, s := range w.specialists {
		out[i] = cloneDefinition(s)
	}
	return out
}

// Agent looks up a participant by name.
func (w *Workflow) Agent(name string) (AgentDefinition, bool) {
	d, ok := w.byName[name]
	if !ok {
		return AgentDefinition{}, false
	}
	return cloneDefinition(d), true
}

// HandoffTargets lists the agents def may delegate to: every specialist for
// the coordinator, the coordinator for a specialist.
func (w *Workflow) HandoffTargets(def AgentDefinition) []AgentDefinition {
	if def.Name == w.coordinator.Name {
		return w.Specialists()
	}
	return []AgentDefinition{w.Coordinator()}
}

// MaxSteps returns the per-run invocation bound.
func (w *Workflow) MaxSteps() int { return w.maxSteps }

// ShouldTerminate evaluates the termination condition.
func (w *Workflow) ShouldTerminate(history []types.Message) bool {
	return w.terminate(history)
}
