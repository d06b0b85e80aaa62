// Package tokenizer 提供统一的 Token 计数接口，
// 支持 tiktoken 精确计数与 CJK 估算器，用于补全请求的历史窗口裁剪与 Token 统计。
package tokenizer
