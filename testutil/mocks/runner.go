package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/BaSui01/moneta/agent/handoff"
	"github.com/BaSui01/moneta/types"
)

// ScriptedRunner is a handoff.AgentRunner returning queued decisions per agent.
// An agent with an empty queue replies with its fallback text.
type ScriptedRunner struct {
	mu        sync.Mutex
	scripts   map[string][]handoff.Decision
	fallback  map[string]string
	errs      map[string]error
	panics    map[string]any
	delay     time.Duration
	histories map[string][]types.Conversation
	order     []string
}

// NewScriptedRunner 创建新的 ScriptedRunner
func NewScriptedRunner() *ScriptedRunner {
	return &ScriptedRunner{
		scripts:   make(map[string][]handoff.Decision),
		fallback:  make(map[string]string),
		errs:      make(map[string]error),
		panics:    make(map[string]any),
		histories: make(map[string][]types.Conversation),
	}
}

// On queues decisions for agent.
func (r *ScriptedRunner) On(agent string, decisions ...handoff.Decision) *ScriptedRunner {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scripts[agent] = append(r.scripts[agent], decisions...)
	return r
}

// Reply sets the text agent answers with once its queue is empty.
func (r *ScriptedRunner) Reply(agent, text string) *ScriptedRunner {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback[agent] = text
	return r
}

// Fail makes every invocation of agent return err.
func (r *ScriptedRunner) Fail(agent string, err error) *ScriptedRunner {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs[agent] = err
	return r
}

// Panic makes every invocation of agent panic with v.
func (r *ScriptedRunner) Panic(agent string, v any) *ScriptedRunner {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.panics[agent] = v
	return r
}

// WithDelay blocks every invocation for d, ignoring the context.
func (r *ScriptedRunner) WithDelay(d time.Duration) *ScriptedRunner {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delay = d
	return r
}

// Invoke implements handoff.AgentRunner.
func (r *ScriptedRunner) Invoke(_ context.Context, _ *handoff.Workflow, def handoff.AgentDefinition, history types.Conversation) (handoff.Decision, error) {
	r.mu.Lock()
	r.order = append(r.order, def.Name)
	r.histories[def.Name] = append(r.histories[def.Name], history.Clone())
	delay := r.delay
	p, shouldPanic := r.panics[def.Name]
	err := r.errs[def.Name]
	var d handoff.Decision
	if queue := r.scripts[def.Name]; len(queue) > 0 {
		d = queue[0]
		r.scripts[def.Name] = queue[1:]
	} else {
		d = handoff.Decision{Text: r.fallback[def.Name]}
	}
	r.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if shouldPanic {
		panic(p)
	}
	if err != nil {
		return handoff.Decision{}, err
	}
	return d, nil
}

// Invocations returns the agent names in invocation order.
func (r *ScriptedRunner) Invocations() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}

// Histories returns the histories agent was invoked with.
func (r *ScriptedRunner) Histories(agent string) []types.Conversation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.Conversation(nil), r.histories[agent]...)
}

var _ handoff.AgentRunner = (*ScriptedRunner)(nil)
