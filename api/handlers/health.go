package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

const defaultReadyTimeout = 5 * time.Second

// HealthCheck 是 /ready 探测的一个依赖，例如用户文档存储或能力缓存
type HealthCheck interface {
	Name() string
	Check(ctx context.Context) error
}

// ServiceHealthResponse 是三个探针共用的响应体
type ServiceHealthResponse struct {
	Status    string                 `json:"status"` // healthy | unhealthy
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version,omitempty"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// CheckResult 记录单个依赖的探测结果
type CheckResult struct {
	Status  string `json:"status"` // pass | fail
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// HealthHandler 提供存活、就绪与版本探针
type HealthHandler struct {
	logger  *zap.Logger
	timeout time.Duration

	mu     sync.RWMutex
	checks []HealthCheck
}

func NewHealthHandler(logger *zap.Logger) *HealthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthHandler{logger: logger, timeout: defaultReadyTimeout}
}

// RegisterCheck 可在服务运行期间调用
func (h *HealthHandler) RegisterCheck(check HealthCheck) {
	h.mu.Lock()
	h.checks = append(h.checks, check)
	h.mu.Unlock()
}

// HandleHealth 只说明进程存活，不触达任何依赖
// @Summary 健康检查
// @Tags 健康
// @Produce json
// @Success 200 {object} ServiceHealthResponse
// @Router /health [get]
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, ServiceHealthResponse{Status: "healthy", Timestamp: time.Now()})
}

// HandleHealthz 供 Kubernetes 存活检查使用
func (h *HealthHandler) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	h.HandleHealth(w, r)
}

// HandleReady 并发运行全部检查，任一失败返回 503
// @Summary 就绪检查
// @Tags 健康
// @Produce json
// @Success 200 {object} ServiceHealthResponse
// @Failure 503 {object} ServiceHealthResponse
// @Router /ready [get]
func (h *HealthHandler) HandleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	h.mu.RLock()
	checks := append([]HealthCheck(nil), h.checks...)
	h.mu.RUnlock()

	results := make([]CheckResult, len(checks))
	var wg sync.WaitGroup
	for i, check := range checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = h.run(ctx, check)
		}()
	}
	wg.Wait()

	resp := ServiceHealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Checks:    make(map[string]CheckResult, len(checks)),
	}
	code := http.StatusOK
	for i, check := range checks {
		resp.Checks[check.Name()] = results[i]
		if results[i].Status != "pass" {
			resp.Status = "unhealthy"
			code = http.StatusServiceUnavailable
		}
	}
	WriteJSON(w, code, resp)
}

func (h *HealthHandler) run(ctx context.Context, check HealthCheck) CheckResult {
	start := time.Now()
	err := check.Check(ctx)
	latency := time.Since(start)

	if err == nil {
		return CheckResult{Status: "pass", Latency: latency.String()}
	}
	h.logger.Warn("readiness check failed",
		zap.String("check", check.Name()),
		zap.Duration("latency", latency),
		zap.Error(err),
	)
	return CheckResult{Status: "fail", Message: err.Error(), Latency: latency.String()}
}

// HandleVersion 返回构建时注入的版本信息
func (h *HealthHandler) HandleVersion(version, buildTime, gitCommit string) http.HandlerFunc {
	info := map[string]string{
		"version":    version,
		"build_time": buildTime,
		"git_commit": gitCommit,
	}
	return func(w http.ResponseWriter, r *http.Request) {
		WriteSuccess(w, info)
	}
}

// Pinger 是能探测连通性的依赖
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingHealthCheck 把一个探测函数包装为 HealthCheck
type PingHealthCheck struct {
	name string
	ping func(ctx context.Context) error
}

func NewPingHealthCheck(name string, ping func(ctx context.Context) error) *PingHealthCheck {
	return &PingHealthCheck{name: name, ping: ping}
}

// NewStoreHealthCheck 探测用户文档存储
func NewStoreHealthCheck(name string, store Pinger) *PingHealthCheck {
	return NewPingHealthCheck(name, store.Ping)
}

func (c *PingHealthCheck) Name() string { return c.name }

func (c *PingHealthCheck) Check(ctx context.Context) error { return c.ping(ctx) }
