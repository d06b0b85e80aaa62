/*
包 server 提供 HTTP/HTTPS 服务器生命周期管理，支持非阻塞启动与优雅关闭。

# 概述

Manager 封装 net/http.Server，统一管理监听、服务、关闭与错误传播。
配置了证书时以 HTTPS 提供服务，TLS 参数来自 tlsutil 的加固配置。
cmd/moneta 用它承载业务 API 与独立的 /metrics 端口。

# 核心类型

  - Manager：Start/Shutdown/Wait/Errors/ListenAddr。
  - Config：监听地址、读写与空闲超时、最大请求头、关闭超时、证书路径；
    ConfigFromServer 由 config.ServerConfig 派生。
*/
package server
