// Package tlsutil 提供集中式 TLS 配置：服务端 HTTPS、能力与模型调用的 HTTP 客户端、
// 以及 Redis（Azure Cache for Redis 等要求 TLS 的部署）连接共用同一套加固参数
// （TLS 1.2+，仅 AEAD 密码套件）。
package tlsutil
