package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/BaSui01/moneta/agent/handoff"
	"github.com/BaSui01/moneta/agent/orchestrator"
	"github.com/BaSui01/moneta/agent/persistence"
	"github.com/BaSui01/moneta/api/handlers"
	"github.com/BaSui01/moneta/config"
	"github.com/BaSui01/moneta/internal/cache"
	"github.com/BaSui01/moneta/internal/database"
	"github.com/BaSui01/moneta/internal/metrics"
	"github.com/BaSui01/moneta/internal/server"
	"github.com/BaSui01/moneta/internal/telemetry"
	"github.com/BaSui01/moneta/llm"
	llmfactory "github.com/BaSui01/moneta/llm/factory"
	"github.com/BaSui01/moneta/llm/retry"
	"github.com/BaSui01/moneta/llm/tokenizer"
	"github.com/BaSui01/moneta/llm/tools"
	"github.com/BaSui01/moneta/session"
	"github.com/BaSui01/moneta/types"
	"github.com/BaSui01/moneta/usecase"
)

// =============================================================================
// 🖥️ Server 结构
// =============================================================================

// Server 是 Moneta 的主服务器
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	// 服务器管理器
	httpManager    *server.Manager
	metricsManager *server.Manager

	// 依赖
	otel             *telemetry.Providers
	metricsCollector *metrics.Collector
	cacheManager     *cache.Manager
	store            persistence.UserStore
	registry         *orchestrator.Registry

	// Handlers
	healthHandler       *handlers.HealthHandler
	conversationHandler *handlers.ConversationHandler

	// Rate limiter 生命周期管理
	rateLimiterCancel context.CancelFunc
}

// NewServer 创建新的服务器实例
func NewServer(cfg *config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{cfg: cfg, logger: logger}
}

// =============================================================================
// 🚀 启动流程
// =============================================================================

// Start 初始化依赖并启动 HTTP 与 Metrics 服务器（非阻塞）
func (s *Server) Start(ctx context.Context) error {
	if err := s.init(ctx); err != nil {
		return err
	}

	if err := s.startHTTPServer(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	if s.cfg.Server.MetricsPort > 0 {
		if err := s.startMetricsServer(); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
	}

	s.logger.Info("All servers started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
		zap.Strings("use_cases", s.registry.UseCases()),
	)
	return nil
}

// init 按依赖顺序构建组件：遥测 → 指标 → 存储 → 能力 → 模型 → 编排 → handlers
func (s *Server) init(ctx context.Context) error {
	var err error

	s.otel, err = telemetry.Init(s.cfg.Telemetry, s.logger)
	if err != nil {
		// 遥测尽力而为，失败时退回 noop
		s.logger.Warn("failed to initialize telemetry", zap.Error(err))
		s.otel = &telemetry.Providers{}
	}

	if s.metricsCollector == nil {
		s.metricsCollector = metrics.NewCollector("moneta", s.logger)
	}

	if err := s.initStore(ctx); err != nil {
		return fmt.Errorf("failed to init user store: %w", err)
	}

	if err := s.initOrchestrators(ctx); err != nil {
		return fmt.Errorf("failed to init orchestrators: %w", err)
	}

	s.initHandlers()
	return nil
}

// initStore 创建用户文档存储并接入存储指标与连接池指标
func (s *Server) initStore(ctx context.Context) error {
	collector := s.metricsCollector
	driver := s.cfg.Database.Driver

	store, err := persistence.NewUserStore(ctx, s.cfg, s.logger,
		persistence.WithPoolOptions(database.WithStatsObserver(func(stats database.PoolStats) {
			collector.RecordDBConnections(driver, stats.OpenConnections, stats.Idle)
		})),
	)
	if err != nil {
		return err
	}

	s.store = persistence.NewInstrumentedUserStore(store, persistence.StoreType(s.cfg.Store.Type), collector)
	return nil
}

// initOrchestrators 构建能力注册表、模型 Provider 与每个用例的编排器
func (s *Server) initOrchestrators(ctx context.Context) error {
	capabilities, err := usecase.NewCapabilityRegistry(s.cfg.Capabilities, s.logger)
	if err != nil {
		return err
	}

	executorOpts := []tools.ExecutorOption{
		tools.WithObserver(s.metricsCollector.ObserveCapability),
	}
	if s.cfg.Capabilities.Cache.Enabled {
		s.cacheManager, err = cache.NewManager(cache.ConfigFromRedis(s.cfg.Redis, s.cfg.Capabilities.Cache.DefaultTTL), s.logger)
		if err != nil {
			// 缓存只是加速，Redis 不可用时直接调用能力
			s.logger.Warn("capability cache unavailable, continuing without it", zap.Error(err))
		} else {
			executorOpts = append(executorOpts, tools.WithResultCache(cache.NewCapabilityCache(s.cacheManager)))
		}
	}
	executor := tools.NewDefaultExecutor(capabilities, s.logger, executorOpts...)

	provider, err := s.newProvider()
	if err != nil {
		return err
	}

	tokenizer.RegisterOpenAITokenizers()
	agentCfg := s.cfg.Agent
	deps := usecase.Dependencies{
		Provider: provider,
		Registry: capabilities,
		Executor: executor,
		Runner: handoff.LLMRunnerConfig{
			Model:            agentCfg.Model,
			Temperature:      float32(agentCfg.Temperature),
			MaxTokens:        agentCfg.MaxTokens,
			MaxToolRounds:    agentCfg.MaxToolRounds,
			MaxHistoryTokens: agentCfg.MaxHistoryTokens,
		},
		MaxSteps:         agentCfg.MaxSteps,
		UserMessageLimit: agentCfg.UserMessageLimit,
		Logger:           s.logger,
	}

	s.registry, err = usecase.NewRegistry(deps,
		orchestrator.WithRunTimeout(agentCfg.RunTimeout),
		orchestrator.WithTracer(telemetry.NewConversationTracer(s.otel.TracerProvider())),
		orchestrator.WithRecorder(s.metricsCollector),
		orchestrator.WithTokenizer(tokenizer.ForModel(agentCfg.Model)),
	)
	if err != nil {
		return err
	}

	if agentCfg.Warmup {
		if err := s.registry.Warmup(ctx); err != nil {
			return fmt.Errorf("warmup: %w", err)
		}
		s.logger.Info("Workflows prebuilt", zap.Strings("use_cases", s.registry.UseCases()))
	}
	return nil
}

// newProvider 创建带重试与熔断的模型 Provider，并接入 LLM 指标
func (s *Server) newProvider() (llm.Provider, error) {
	llmCfg := s.cfg.LLM

	policy := retry.DefaultRetryPolicy()
	policy.MaxRetries = llmCfg.MaxRetries
	policy.ShouldRetry = func(err error) bool {
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}

	provider, err := llmfactory.NewProviderFromConfig(llmCfg.Provider, llmfactory.ProviderConfig{
		APIKey:     llmCfg.APIKey,
		BaseURL:    llmCfg.BaseURL,
		Model:      s.cfg.Agent.Model,
		Deployment: llmCfg.Deployment,
		APIVersion: llmCfg.APIVersion,
		Timeout:    llmCfg.Timeout,
		Retry:      policy,
		Breaker: &llm.BreakerConfig{
			MaxFailures: llmCfg.BreakerMaxFailures,
			Timeout:     llmCfg.BreakerTimeout,
		},
	}, s.logger)
	if err != nil {
		return nil, fmt.Errorf("create %s provider: %w", llmCfg.Provider, err)
	}

	s.logger.Info("Completion provider initialized", zap.String("provider", provider.Name()))
	return s.metricsCollector.InstrumentProvider(provider), nil
}

// initHandlers 初始化所有 handlers
func (s *Server) initHandlers() {
	s.healthHandler = handlers.NewHealthHandler(s.logger)
	s.healthHandler.RegisterCheck(handlers.NewStoreHealthCheck("user_store", s.store))
	if s.cacheManager != nil {
		s.healthHandler.RegisterCheck(handlers.NewPingHealthCheck("capability_cache", s.cacheManager.Ping))
	}

	sessions := session.NewHandler(s.store, session.FromRegistry(s.registry), s.logger)
	s.conversationHandler = handlers.NewConversationHandler(sessions, s.logger)
	if s.cfg.JWT.Enabled() {
		s.conversationHandler.WithUserIDClaim(types.UserID)
	}

	s.logger.Info("Handlers initialized")
}

// =============================================================================
// 🌐 HTTP 服务器
// =============================================================================

// skipAuthPaths 不需要认证的路径
var skipAuthPaths = []string{"/health", "/healthz", "/ready", "/version", "/metrics"}

// routes 注册路由并构建中间件链
func (s *Server) routes(rateLimiterCtx context.Context) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler.HandleHealth)
	mux.HandleFunc("GET /healthz", s.healthHandler.HandleHealthz)
	mux.HandleFunc("GET /ready", s.healthHandler.HandleReady)
	mux.HandleFunc("GET /version", s.healthHandler.HandleVersion(Version, BuildTime, GitCommit))

	mux.HandleFunc("POST /api/http_trigger", s.conversationHandler.HandleTrigger)
	mux.HandleFunc("POST /api/v1/conversations", s.conversationHandler.HandleTrigger)
	mux.HandleFunc("GET /api/v1/users/{user_id}/sessions", s.conversationHandler.HandleListSessions)

	middlewares := []Middleware{
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		RequestLogger(s.logger),
		MetricsMiddleware(s.metricsCollector),
		OTelTracing(),
		CORS(s.cfg.Server.CORSAllowedOrigins),
		RateLimiter(rateLimiterCtx, float64(s.cfg.Server.RateLimitRPS), s.cfg.Server.RateLimitBurst, s.logger),
	}
	if len(s.cfg.Server.APIKeys) > 0 {
		middlewares = append(middlewares,
			APIKeyAuth(s.cfg.Server.APIKeys, skipAuthPaths, s.cfg.Server.AllowQueryAPIKey, s.logger))
	}
	if s.cfg.JWT.Enabled() {
		middlewares = append(middlewares, JWTAuth(s.cfg.JWT, skipAuthPaths, s.logger))
	}

	return Chain(mux, middlewares...)
}

// startHTTPServer 启动 HTTP 服务器
func (s *Server) startHTTPServer() error {
	rateLimiterCtx, cancel := context.WithCancel(context.Background())
	s.rateLimiterCancel = cancel

	cfg := server.ConfigFromServer(s.cfg.Server, s.cfg.Server.HTTPPort)
	s.httpManager = server.NewManager(s.routes(rateLimiterCtx), cfg, s.logger)
	if err := s.httpManager.Start(); err != nil {
		return err
	}

	s.logger.Info("HTTP server started",
		zap.String("addr", s.httpManager.ListenAddr()),
		zap.Bool("tls", cfg.TLSEnabled()),
		zap.Bool("api_key_auth", len(s.cfg.Server.APIKeys) > 0),
		zap.Bool("jwt_auth", s.cfg.JWT.Enabled()),
	)
	return nil
}

// =============================================================================
// 📊 Metrics 服务器
// =============================================================================

// startMetricsServer 启动 Metrics 服务器
func (s *Server) startMetricsServer() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	cfg := server.ConfigFromServer(s.cfg.Server, s.cfg.Server.MetricsPort)
	cfg.TLSCertFile, cfg.TLSKeyFile = "", ""
	s.metricsManager = server.NewManager(mux, cfg, s.logger)
	if err := s.metricsManager.Start(); err != nil {
		return err
	}

	s.logger.Info("Metrics server started", zap.String("addr", s.metricsManager.ListenAddr()))
	return nil
}

// =============================================================================
// 🛑 关闭流程
// =============================================================================

// Wait 阻塞直到收到关闭信号或 HTTP 服务器异常退出。
// Metrics 服务器的错误只记录日志，不触发关闭。
func (s *Server) Wait(ctx context.Context) {
	if s.httpManager == nil {
		return
	}
	if s.metricsManager != nil {
		go func(errs <-chan error) {
			select {
			case err := <-errs:
				s.logger.Error("Metrics server exited unexpectedly", zap.Error(err))
			case <-ctx.Done():
			}
		}(s.metricsManager.Errors())
	}
	if err := s.httpManager.Wait(ctx); err != nil {
		s.logger.Error("HTTP server exited unexpectedly", zap.Error(err))
		return
	}
	s.logger.Info("Shutdown signal received")
}

// Shutdown 优雅关闭所有服务，先停止接收请求再释放存储与缓存
func (s *Server) Shutdown() {
	s.logger.Info("Starting graceful shutdown...")
	ctx := context.Background()

	if s.rateLimiterCancel != nil {
		s.rateLimiterCancel()
	}

	if s.httpManager != nil && s.httpManager.IsRunning() {
		if err := s.httpManager.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP server shutdown error", zap.Error(err))
		}
	}

	if s.metricsManager != nil && s.metricsManager.IsRunning() {
		if err := s.metricsManager.Shutdown(ctx); err != nil {
			s.logger.Error("Metrics server shutdown error", zap.Error(err))
		}
	}

	if s.cacheManager != nil {
		if err := s.cacheManager.Close(); err != nil {
			s.logger.Error("Cache shutdown error", zap.Error(err))
		}
	}

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Error("User store shutdown error", zap.Error(err))
		}
	}

	if s.otel != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := s.otel.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Telemetry shutdown error", zap.Error(err))
		}
	}

	s.logger.Info("Graceful shutdown completed")
}
