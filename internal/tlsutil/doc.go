// Package tlsutil 为 LLM Provider 的出站 HTTP 连接提供统一的 Client 与 TLS 设置
// （TLS 1.2+，仅 AEAD 密码套件）。
package tlsutil
