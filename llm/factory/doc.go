// Package factory 提供 LLM Provider 的集中式工厂，
// 通过名称映射创建 Provider 实例，避免调用方直接依赖各 provider 子包。
package factory
