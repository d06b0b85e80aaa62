package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/BaSui01/moneta/llm/retry"
)

// Default circuit breaker settings.
const (
	defaultBreakerMaxFailures uint32        = 5
	defaultBreakerTimeout     time.Duration = 30 * time.Second
	defaultBreakerInterval    time.Duration = 60 * time.Second
)

// BreakerConfig configures the circuit breaker around a provider.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures before the circuit opens.
	MaxFailures uint32 `yaml:"max_failures" env:"MAX_FAILURES"`
	// Timeout is how long the circuit stays open before going half-open.
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// Interval clears failure counts while closed. Zero keeps counts until the circuit opens.
	Interval time.Duration `yaml:"interval" env:"INTERVAL"`
}

// ResilientProvider 具有弹性能力的 Provider 包装器：重试在外，熔断在内。
// 每次重试都经过熔断器，熔断打开后快速失败且不再重试。
type ResilientProvider struct {
	provider Provider
	retryer  retry.Retryer
	breaker  *gobreaker.CircuitBreaker[*ChatResponse]
	logger   *zap.Logger
}

// NewResilientProvider wraps provider with retry and circuit breaking.
// A nil policy disables retries.
func NewResilientProvider(provider Provider, policy *retry.RetryPolicy, cfg BreakerConfig, logger *zap.Logger) *ResilientProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "resilient_provider"), zap.String("provider", provider.Name()))

	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = defaultBreakerMaxFailures
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultBreakerTimeout
	}
	interval := cfg.Interval
	if interval == 0 {
		interval = defaultBreakerInterval
	}

	breaker := gobreaker.NewCircuitBreaker[*ChatResponse](gobreaker.Settings{
		Name:        "llm:" + provider.Name(),
		MaxRequests: 1,
		Interval:    interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		// 调用方取消与参数错误不计入失败
		IsSuccessful: func(err error) bool {
			if err == nil || errors.Is(err, context.Canceled) {
				return true
			}
			var e *Error
			if errors.As(err, &e) && !e.Retryable {
				return true
			}
			return false
		},
	})

	var retryer retry.Retryer
	if policy != nil {
		p := *policy
		p.ShouldRetry = IsRetryable
		retryer = retry.NewBackoffRetryer(&p, logger)
	}

	return &ResilientProvider{
		provider: provider,
		retryer:  retryer,
		breaker:  breaker,
		logger:   logger,
	}
}

// Completion 实现 Provider.Completion
func (rp *ResilientProvider) Completion(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	call := func() (*ChatResponse, error) {
		resp, err := rp.breaker.Execute(func() (*ChatResponse, error) {
			return rp.provider.Completion(ctx, req)
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &Error{
				Code:       ErrProviderUnavailable,
				Message:    fmt.Sprintf("provider %q circuit open: %v", rp.provider.Name(), err),
				HTTPStatus: http.StatusServiceUnavailable,
				Provider:   rp.provider.Name(),
			}
		}
		return resp, err
	}

	if rp.retryer == nil {
		return call()
	}
	return retry.DoWithResult(ctx, rp.retryer, call)
}

// HealthCheck delegates to the wrapped provider.
func (rp *ResilientProvider) HealthCheck(ctx context.Context) (*HealthStatus, error) {
	return rp.provider.HealthCheck(ctx)
}

// Name 实现 Provider.Name
func (rp *ResilientProvider) Name() string {
	return rp.provider.Name()
}

// State returns the current breaker state for monitoring.
func (rp *ResilientProvider) State() gobreaker.State {
	return rp.breaker.State()
}

var _ Provider = (*ResilientProvider)(nil)
