package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Registry maps use-case ids to orchestrators.
type Registry struct {
	mu            sync.RWMutex
	orchestrators map[string]*Orchestrator
}

// NewRegistry 创建编排器注册表。
func NewRegistry() *Registry {
	return &Registry{orchestrators: make(map[string]*Orchestrator)}
}

// Register adds o under its use-case id.
func (r *Registry) Register(o *Orchestrator) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.orchestrators[o.UseCase()]; exists {
		return fmt.Errorf("use case %s already registered", o.UseCase())
	}
	r.orchestrators[o.UseCase()] = o
	return nil
}

// Get returns the orchestrator for useCase.
func (r *Registry) Get(useCase string) (*Orchestrator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.orchestrators[useCase]
	return o, ok
}

// UseCases returns the registered ids in sorted order.
func (r *Registry) UseCases() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.orchestrators))
	for id := range r.orchestrators {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Warmup builds every workflow concurrently and returns the first failure.
func (r *Registry) Warmup(ctx context.Context) error {
	r.mu.RLock()
	all := make([]*Orchestrator, 0, len(r.orchestrators))
	for _, o := range r.orchestrators {
		all = append(all, o)
	}
	r.mu.RUnlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, o := range all {
		g.Go(func() error {
			if _, err := o.Engine(gctx); err != nil {
				return fmt.Errorf("warmup %s: %w", o.UseCase(), err)
			}
			return nil
		})
	}
	return g.Wait()
}
