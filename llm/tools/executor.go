package tools

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/moneta/llm"
)

// ToolResult represents a capability execution result.
// Content is always valid JSON text suitable for a tool message.
type ToolResult struct {
	ToolCallID string          `json:"tool_call_id"`
	Name       string          `json:"name"`
	Result     json.RawMessage `json:"result,omitempty"`
	Error      string          `json:"error,omitempty"`
	Duration   time.Duration   `json:"duration"`
	Cached     bool            `json:"cached,omitempty"`
}

// Content returns the payload fed back to the model.
func (r ToolResult) Content() string {
	if r.Error != "" {
		return ErrorPayload(r.Error)
	}
	if len(r.Result) == 0 {
		return "null"
	}
	return string(r.Result)
}

// ErrorPayload renders {"error": msg}.
func ErrorPayload(msg string) string {
	data, _ := json.Marshal(map[string]string{"error": msg})
	return string(data)
}

// ResultCache stores successful capability results.
type ResultCache interface {
	Get(ctx context.Context, key string) (json.RawMessage, bool)
	Set(ctx context.Context, key string, value json.RawMessage, ttl time.Duration)
}

// Observer receives one callback per executed capability call.
type Observer func(name string, status string, duration time.Duration)

// Execution statuses reported to the Observer.
const (
	StatusSuccess     = "success"
	StatusError       = "error"
	StatusTimeout     = "timeout"
	StatusRateLimited = "rate_limited"
	StatusNotFound    = "not_found"
	StatusCached      = "cached"
)

// ToolExecutor defines the capability executor interface.
type ToolExecutor interface {
	Execute(ctx context.Context, calls []llm.ToolCall) []ToolResult
	ExecuteOne(ctx context.Context, call llm.ToolCall) ToolResult
}

// DefaultExecutor runs capability calls. It never returns an error: every
// failure becomes a ToolResult with Error set.
type DefaultExecutor struct {
	registry    *DefaultRegistry
	cache       ResultCache
	observer    Observer
	parallelism int
	logger      *zap.Logger
}

// ExecutorOption configures a DefaultExecutor.
type ExecutorOption func(*DefaultExecutor)

// WithResultCache enables result caching for capabilities with a CacheTTL.
func WithResultCache(c ResultCache) ExecutorOption {
	return func(e *DefaultExecutor) { e.cache = c }
}

// WithObserver installs a per-call callback, typically a metrics recorder.
func WithObserver(o Observer) ExecutorOption {
	return func(e *DefaultExecutor) { e.observer = o }
}

// WithParallelism bounds concurrent calls in Execute.
func WithParallelism(n int) ExecutorOption {
	return func(e *DefaultExecutor) { e.parallelism = n }
}

// NewDefaultExecutor 创建默认的能力执行器。
func NewDefaultExecutor(registry *DefaultRegistry, logger *zap.Logger, opts ...ExecutorOption) *DefaultExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &DefaultExecutor{
		registry:    registry,
		parallelism: 4,
		logger:      logger.With(zap.String("component", "capability_executor")),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs calls concurrently and returns results in call order.
func (e *DefaultExecutor) Execute(ctx context.Context, calls []llm.ToolCall) []ToolResult {
	results := make([]ToolResult, len(calls))

	var g errgroup.Group
	if e.parallelism > 0 {
		g.SetLimit(e.parallelism)
	}
	for i, call := range calls {
		g.Go(func() error {
			results[i] = e.ExecuteOne(ctx, call)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (e *DefaultExecutor) ExecuteOne(ctx context.Context, call llm.ToolCall) ToolResult {
	start := time.Now()
	result := ToolResult{ToolCallID: call.ID, Name: call.Name}
	finish := func(status string) ToolResult {
		result.Duration = time.Since(start)
		if e.observer != nil {
			e.observer(call.Name, status, result.Duration)
		}
		return result
	}

	fn, meta, err := e.registry.Get(call.Name)
	if err != nil {
		result.Error = fmt.Sprintf("unknown capability: %s", call.Name)
		e.logger.Warn("capability not found", zap.String("name", call.Name))
		return finish(StatusNotFound)
	}

	args := call.Arguments
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	if !json.Valid(args) {
		result.Error = "invalid arguments: not valid JSON"
		return finish(StatusError)
	}

	var cacheKey string
	if e.cache != nil && meta.CacheTTL > 0 {
		cacheKey = resultCacheKey(call.Name, args)
		if cached, ok := e.cache.Get(ctx, cacheKey); ok {
			result.Result = cached
			result.Cached = true
			return finish(StatusCached)
		}
	}

	if !e.registry.allow(call.Name) {
		result.Error = "rate limit exceeded, try again later"
		e.logger.Warn("capability rate limited", zap.String("name", call.Name))
		return finish(StatusRateLimited)
	}

	execCtx, cancel := context.WithTimeout(ctx, meta.Timeout)
	defer cancel()

	type outcome struct {
		res json.RawMessage
		err error
	}
	// 带缓冲，超时后 goroutine 仍可退出
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("capability panicked: %v", r)}
			}
		}()
		res, err := fn(execCtx, args)
		done <- outcome{res: res, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			result.Error = out.err.Error()
			e.logger.Warn("capability failed", zap.String("name", call.Name), zap.Error(out.err))
			return finish(StatusError)
		}
		if len(out.res) > 0 && !json.Valid(out.res) {
			quoted, _ := json.Marshal(string(out.res))
			out.res = quoted
		}
		result.Result = out.res
		if cacheKey != "" && !hasErrorField(out.res) {
			e.cache.Set(ctx, cacheKey, out.res, meta.CacheTTL)
		}
		e.logger.Debug("capability executed", zap.String("name", call.Name), zap.Duration("duration", time.Since(start)))
		return finish(StatusSuccess)
	case <-execCtx.Done():
		result.Error = fmt.Sprintf("execution timeout after %s", meta.Timeout)
		e.logger.Warn("capability timeout", zap.String("name", call.Name), zap.Duration("timeout", meta.Timeout))
		return finish(StatusTimeout)
	}
}

func resultCacheKey(name string, args json.RawMessage) string {
	var normalized any
	if err := json.Unmarshal(args, &normalized); err == nil {
		if b, err := json.Marshal(normalized); err == nil {
			args = b
		}
	}
	sum := sha256.Sum256(args)
	return "capability:" + name + ":" + hex.EncodeToString(sum[:16])
}

// hasErrorField detects {"error": ...} payloads returned without a Go error.
func hasErrorField(res json.RawMessage) bool {
	var payload struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(res, &payload); err != nil {
		return false
	}
	return len(payload.Error) > 0 && string(payload.Error) != "null"
}
