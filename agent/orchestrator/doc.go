// Package orchestrator 为每个用例持有一个延迟构建的 handoff 工作流，
// 并把会话记录转换为唯一的回复消息。调用方永远不会从这一层得到错误：
// 失败与空结果都以协调者身份返回固定的兜底文本。
package orchestrator
