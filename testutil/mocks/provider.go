// Package mocks 提供补全服务与 Agent 调用的测试模拟实现。
package mocks

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/BaSui01/moneta/llm"
)

// MockProvider 是 llm.Provider 的模拟实现。
// 脚本中的响应按顺序消费，耗尽后返回固定响应。
type MockProvider struct {
	mu sync.Mutex

	response       string
	script         []llm.Message
	err            error
	delay          time.Duration
	completionFunc func(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error)

	calls     []*llm.ChatRequest
	callCount int
}

// NewMockProvider 创建新的 MockProvider
func NewMockProvider() *MockProvider {
	return &MockProvider{response: "Mock response"}
}

// WithResponse 设置脚本耗尽后的固定响应内容
func (m *MockProvider) WithResponse(response string) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.response = response
	return m
}

// ThenReply 追加一条文本响应
func (m *MockProvider) ThenReply(content string) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, llm.Message{Role: llm.RoleAssistant, Content: content})
	return m
}

// ThenToolCall 追加一条只含单个工具调用的响应
func (m *MockProvider) ThenToolCall(name string, args any) *MockProvider {
	raw, err := json.Marshal(args)
	if err != nil {
		panic(err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, llm.Message{
		Role:      llm.RoleAssistant,
		ToolCalls: []llm.ToolCall{{ID: fmt.Sprintf("call_%d", len(m.script)+1), Name: name, Arguments: raw}},
	})
	return m
}

// WithError 设置返回错误
func (m *MockProvider) WithError(err error) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// WithDelay 设置响应延迟，延迟期间遵守 ctx 取消
func (m *MockProvider) WithDelay(d time.Duration) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
	return m
}

// WithCompletionFunc 设置自定义 Completion 函数
func (m *MockProvider) WithCompletionFunc(fn func(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error)) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completionFunc = fn
	return m
}

// Name 返回 Provider 名称
func (m *MockProvider) Name() string { return "mock" }

// HealthCheck 执行健康检查
func (m *MockProvider) HealthCheck(context.Context) (*llm.HealthStatus, error) {
	return &llm.HealthStatus{Healthy: true, Latency: time.Millisecond}, nil
}

// Completion 按脚本生成响应
func (m *MockProvider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	m.mu.Lock()
	m.callCount++
	m.calls = append(m.calls, req)
	delay, fn := m.delay, m.completionFunc

	var (
		msg llm.Message
		err error
	)
	switch {
	case m.err != nil:
		err = m.err
	case len(m.script) > 0:
		msg = m.script[0]
		m.script = m.script[1:]
	default:
		msg = llm.Message{Role: llm.RoleAssistant, Content: m.response}
	}
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if fn != nil {
		return fn(ctx, req)
	}

	finish := "stop"
	if len(msg.ToolCalls) > 0 {
		finish = "tool_calls"
	}
	return &llm.ChatResponse{
		ID:        fmt.Sprintf("mock-%d", m.CallCount()),
		Provider:  "mock",
		Model:     req.Model,
		Choices:   []llm.ChatChoice{{Index: 0, FinishReason: finish, Message: msg}},
		Usage:     llm.ChatUsage{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30},
		CreatedAt: time.Now(),
	}, nil
}

// Calls 返回所有请求记录
func (m *MockProvider) Calls() []*llm.ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*llm.ChatRequest(nil), m.calls...)
}

// CallCount 返回调用次数
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

var _ llm.Provider = (*MockProvider)(nil)
