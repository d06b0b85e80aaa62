/*
包 cache 提供基于 Redis 的缓存管理能力，用于缓存专家能力（搜索、新闻等）的调用结果。

# 核心类型

  - Manager：缓存管理器，持有 Redis 客户端与连接池配置，
    提供 Get/Set，所有键自动加 KeyPrefix。
  - CapabilityCache：适配工具执行器的结果缓存接口，
    Redis 故障时降级为未命中，不影响能力调用。

# 主要能力

  - 健康检查：后台定时 Ping，Close 时停止。
  - 错误语义：ErrCacheMiss / ErrClosed 哨兵错误与 IsCacheMiss 判断函数。
*/
package cache
