/*
Package handlers 提供 Moneta HTTP API 的请求处理器实现。

# 概述

handlers 包实现会话触发、历史查询与健康检查端点，以及统一的响应/错误处理。
所有 Handler 均遵循标准 net/http 接口，通过 Swagger 注解生成 API 文档。

# 核心类型

  - ConversationHandler：POST /api/http_trigger 与 /api/v1/conversations，
    GET /api/v1/users/{user_id}/sessions
  - HealthHandler：/health、/healthz、/ready、/version
  - Response：统一 JSON 响应结构（success + data + error + timestamp）
  - ErrorInfo：结构化错误信息，含 code、message、retryable 标记
  - ResponseWriter：包装 http.ResponseWriter 以捕获状态码
  - HealthCheck：可插拔健康检查接口，NewStoreHealthCheck 探测用户文档存储

# 主要能力

  - 统一响应格式：WriteSuccess / WriteError / WriteErr / WriteJSON
  - 请求验证：DecodeJSONBody（1 MB 限制 + 严格模式）、ValidateContentType
  - ErrorCode → HTTP 状态码映射：校验与未知用例 400，未知会话 404，存储失败 500
  - 可选的 user_id 身份校验：与 JWT 的 user_id 声明不一致时返回 403
*/
package handlers
