// Package telemetry 封装 OpenTelemetry SDK 初始化逻辑，并提供会话级追踪
// （ConversationTracer）：每次工作流运行一个 span，每个 Agent 调用一个子 span。
// 当遥测功能禁用时，使用 noop 实现，不连接任何外部服务。
package telemetry
