/*
Package types 提供 moneta 服务的全局共享类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 agent、session、api
等上层模块提供统一的类型契约，以避免循环依赖。

# 核心类型

  - Message / Conversation：对话消息（role、name 作者、content）与只追加的会话记录
  - Error / ErrorCode：结构化错误体系，含 HTTP 状态码与 Retryable 标记

# 主要能力

  - Context 传播：WithTraceID / WithUserID / WithSessionID / WithUseCase / WithRequestID
  - 错误工具链：AsError / IsErrorCode / IsRetryable
  - 常用错误构造：NewInvalidRequestError / NewSessionNotFoundError / NewTimeoutError
*/
package types
