/*
包 migration 管理 SQL 用户文档存储的表结构，支持 PostgreSQL、MySQL 与 SQLite，
基于 golang-migrate 实现。

# 概述

各方言的 SQL 迁移文件通过 embed.FS 内嵌，当前包含 user_documents 表及其
updated_at 索引。SQLite 使用纯 Go 驱动，无需 CGO。迁移过程日志通过 zap 输出，
上下文取消时在两次迁移之间优雅停止。

# 核心类型

  - Migrator / DefaultMigrator：Up/Down/DownAll/Steps/Goto/Force/Version/
    Status/Info/Close。
  - Config：数据库类型、连接 URL、版本表名、锁超时与日志。
  - CLI：`moneta migrate` 子命令的分发与格式化输出。

NewMigratorFromDatabaseConfig 直接从 config.DatabaseConfig 创建迁移器。
*/
package migration
