/*
包 persistence 提供用户文档存储：每个用户一份文档，按会话 ID 保存全部聊天记录。

# 概述

会话处理器在每轮对话后整体写回用户文档。UserStore 抽象了读取、创建与整体
覆盖写入，后端可在开发环境的内存实现与生产环境的 Redis、MongoDB、SQL 之间
切换。并发写入同一用户时以最后一次写入为准。

# 核心类型

  - UserRecord：用户文档，ChatHistories 以会话 ID 为键。
  - ChatRecord：单个会话的消息列表与创建、更新时间。
  - UserStore：ReadUser / CreateUser / UpdateUser / GenerateSessionID。
  - InstrumentedUserStore：为每次调用上报后端、操作、结果与耗时。

# 后端

  - memory：进程内 map，适用于测试。
  - file：每个用户一个 JSON 文件，写入采用临时文件加重命名。
  - redis：每个用户一个 JSON 字符串键，创建使用 SETNX。
  - mongo：MongoDB / Cosmos DB，文档 _id 即用户 ID，更新为 upsert 替换。
  - sql：GORM 管理的 user_documents 表，表结构由 migration 包维护。

NewUserStore 根据 config.Config 中的 store.type 选择后端。
*/
package persistence
