/*
包 metrics 提供基于 Prometheus 的指标采集能力，覆盖
HTTP、补全请求、工作流、能力调用与存储五个维度。

# 概述

Collector 使用 promauto 自动注册到默认 Registry，所有指标按
namespace 隔离。Collector 的方法签名与编排器的 Recorder 接口、
工具执行器的 Observer 回调一致，可直接注入。

# 主要能力

  - HTTP 指标：请求总数、耗时、请求/响应体大小，状态码归类为 2xx/3xx/4xx/5xx。
  - 补全指标：InstrumentProvider 包装 llm.Provider，记录请求数、耗时与 Token 用量。
  - 工作流指标：运行次数（按 outcome）、运行耗时、委派次数、无效委派次数。
  - 能力指标：调用次数（按 status）、耗时、结果缓存命中。
  - 存储指标：用户文档存储操作次数与耗时、数据库连接池 Gauge。
*/
package metrics
