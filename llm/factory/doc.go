// Package factory 提供 LLM Provider 的集中式工厂，
// 根据配置创建 Provider 并按需包装重试与熔断能力。
package factory
