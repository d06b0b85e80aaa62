// Package tools 提供能力函数（capability function）的注册中心与执行器。
//
// 能力函数以名称注册，携带参数 JSON Schema 与处理函数；工作流构建时按名称
// 校验，未知名称立即失败而不是等到调用时才暴露。
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/BaSui01/moneta/llm"
	"github.com/BaSui01/moneta/types"
)

// ToolFunc defines the capability function signature.
type ToolFunc func(ctx context.Context, args json.RawMessage) (json.RawMessage, error)

// ToolMetadata describes a registered capability.
type ToolMetadata struct {
	Schema    llm.ToolSchema   // Capability JSON Schema
	Timeout   time.Duration    // Execution timeout (default 30s)
	RateLimit *RateLimitConfig // Per-capability rate limit (optional)
	CacheTTL  time.Duration    // Cache successful results for this long (0 disables)
}

// RateLimitConfig defines a token bucket: Rate calls per second with Burst.
type RateLimitConfig struct {
	Rate  float64
	Burst int
}

// ToolRegistry defines the capability registry interface.
type ToolRegistry interface {
	Register(name string, fn ToolFunc, metadata ToolMetadata) error
	Get(name string) (ToolFunc, ToolMetadata, error)
	Has(name string) bool
	Names() []string
	Schemas(names []string) ([]llm.ToolSchema, error)
	Validate(names []string) error
}

// DefaultRegistry is a concurrency-safe in-memory registry.
type DefaultRegistry struct {
	mu       sync.RWMutex
	tools    map[string]ToolFunc
	metadata map[string]ToolMetadata
	limiters map[string]*rate.Limiter
	logger   *zap.Logger
}

// NewDefaultRegistry 创建默认的能力注册中心。
func NewDefaultRegistry(logger *zap.Logger) *DefaultRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DefaultRegistry{
		tools:    make(map[string]ToolFunc),
		metadata: make(map[string]ToolMetadata),
		limiters: make(map[string]*rate.Limiter),
		logger:   logger.With(zap.String("component", "capability_registry")),
	}
}

func (r *DefaultRegistry) Register(name string, fn ToolFunc, metadata ToolMetadata) error {
	if name == "" || fn == nil {
		return fmt.Errorf("capability name and function are required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("capability %s already registered", name)
	}

	// 校验 Schema
	if metadata.Schema.Name == "" {
		metadata.Schema.Name = name
	}
	if metadata.Schema.Name != name {
		return fmt.Errorf("capability name mismatch: schema.Name=%s, register name=%s", metadata.Schema.Name, name)
	}
	if len(metadata.Schema.Parameters) == 0 {
		metadata.Schema.Parameters = json.RawMessage(`{"type":"object","properties":{}}`)
	}
	if !json.Valid(metadata.Schema.Parameters) {
		return fmt.Errorf("capability %s: parameters schema is not valid JSON", name)
	}

	if metadata.Timeout == 0 {
		metadata.Timeout = 30 * time.Second
	}

	r.tools[name] = fn
	r.metadata[name] = metadata
	if metadata.RateLimit != nil && metadata.RateLimit.Rate > 0 {
		burst := metadata.RateLimit.Burst
		if burst <= 0 {
			burst = 1
		}
		r.limiters[name] = rate.NewLimiter(rate.Limit(metadata.RateLimit.Rate), burst)
	}

	r.logger.Debug("capability registered", zap.String("name", name), zap.Duration("timeout", metadata.Timeout))
	return nil
}

// MustRegister panics on registration failure. Used for static catalogs.
func (r *DefaultRegistry) MustRegister(name string, fn ToolFunc, metadata ToolMetadata) {
	if err := r.Register(name, fn, metadata); err != nil {
		panic(err)
	}
}

func (r *DefaultRegistry) Get(name string) (ToolFunc, ToolMetadata, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fn, ok := r.tools[name]
	if !ok {
		return nil, ToolMetadata{}, types.NewError(types.ErrUnknownCapability, fmt.Sprintf("capability %s not found", name))
	}
	return fn, r.metadata[name], nil
}

func (r *DefaultRegistry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// Names returns the registered capability names in sorted order.
func (r *DefaultRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Schemas returns the schemas for names, in the given order.
func (r *DefaultRegistry) Schemas(names []string) ([]llm.ToolSchema, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]llm.ToolSchema, 0, len(names))
	for _, name := range names {
		meta, ok := r.metadata[name]
		if !ok {
			return nil, types.NewError(types.ErrUnknownCapability, fmt.Sprintf("capability %s not found", name))
		}
		out = append(out, meta.Schema)
	}
	return out, nil
}

// Validate fails on the first name that is not registered.
func (r *DefaultRegistry) Validate(names []string) error {
	_, err := r.Schemas(names)
	return err
}

// allow reports whether the capability's rate limit admits one more call.
func (r *DefaultRegistry) allow(name string) bool {
	r.mu.RLock()
	limiter, ok := r.limiters[name]
	r.mu.RUnlock()
	if !ok {
		return true
	}
	return limiter.Allow()
}

// ObjectSchema builds a flat JSON Schema object with required string properties.
func ObjectSchema(properties map[string]string, required ...string) json.RawMessage {
	props := make(map[string]any, len(properties))
	for name, desc := range properties {
		props[name] = map[string]string{"type": "string", "description": desc}
	}
	schema := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		schema["required"] = required
	}
	data, _ := json.Marshal(schema)
	return data
}
