// Package config 提供 Moneta 的配置管理功能。
//
// 配置按 默认值 → YAML 文件 → 环境变量（MONETA_ 前缀）的顺序合并，
// 启动前可加载 .env 文件补充尚未设置的环境变量。
package config
