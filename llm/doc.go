/*
包 llm 提供 moneta 使用的大语言模型接入层。

# 概述

本包定义统一的 Provider 接口与请求/响应模型，屏蔽 Azure OpenAI、OpenAI
及兼容服务在鉴权、端点与错误语义上的差异。上层的 agent/handoff 只依赖
Provider 接口，不感知具体服务商。

# 核心组件

  - Provider / ChatRequest / ChatResponse：同步补全接口与消息模型
  - ToolSchema / ToolCall：函数调用（handoff 工具与能力函数）
  - ResilientProvider：重试 + 熔断（sony/gobreaker）包装
  - Error / ErrorCode：统一错误码与可重试判定

# 子包

  - providers/openaicompat：OpenAI 兼容 HTTP 实现（含 Azure 部署模式）
  - factory：按配置名称构建 Provider
  - retry：指数退避重试
  - tokenizer：Token 计数与历史裁剪
  - tools：能力函数注册中心与执行器
*/
package llm
