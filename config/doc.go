// Package config 提供 jsonformer 命令行与服务端嵌入时使用的配置。
//
// 加载顺序为 默认值 → YAML 文件 → 环境变量（JSONFORMER_ 前缀）→ Validate。
package config
