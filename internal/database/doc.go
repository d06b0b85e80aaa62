/*
包 database 提供基于 GORM 的数据库连接与连接池管理，服务于 SQL 用户文档存储。

# 概述

Open 根据 config.DatabaseConfig 选择 postgres、mysql 或 sqlite（纯 Go 驱动）
方言并打开 GORM 连接。PoolManager 封装连接池参数、后台健康检查与事务重试，
健康检查结果可通过 StatsObserver 上报为 Prometheus 连接数指标。

# 核心类型

  - PoolManager：连接池管理器，提供 DB()、Ping()、GetStats()、Close()。
  - PoolConfig：连接池配置，PoolConfigFromDatabase 由应用配置生成。
  - TransactionFunc：事务回调函数类型。

# 事务

WithTransaction 执行单次事务；WithTransactionRetry 仅对死锁、序列化失败、
连接中断与 SQLite 锁冲突等瞬时错误做指数退避重试。
*/
package database
