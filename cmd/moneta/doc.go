/*
Package main 提供 Moneta 服务端程序入口。

# 概述

cmd/moneta 是多智能体顾问服务的可执行入口，提供会话 HTTP API、
数据库迁移、样例数据导入、健康检查和版本查询等子命令。启动时按
遥测 → 指标 → 用户存储 → 能力注册表 → 模型 Provider → 用例编排器
的顺序装配依赖。

# 核心类型

  - Server：主服务器，管理 HTTP 与 Metrics 双端口及优雅关闭
  - Middleware：HTTP 中间件函数签名 func(http.Handler) http.Handler

# 主要能力

  - 子命令：serve、migrate、seed、version、health
  - 中间件链：Recovery、RequestID、SecurityHeaders、RequestLogger、
    MetricsMiddleware、OTelTracing、CORS、RateLimiter、APIKeyAuth、JWTAuth
  - Metrics 服务器：独立端口暴露 /metrics（Prometheus）
  - 优雅关闭：信号 → 关闭 HTTP → 关闭 Metrics → 关闭缓存与存储 → 刷新遥测
  - 构建注入：Version、BuildTime、GitCommit 通过 ldflags 设置
*/
package main
