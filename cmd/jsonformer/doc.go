/*
Package main 提供 jsonformer 命令行程序。

# 子命令

  - generate：按 schema 文件或 --fields 声明生成一份 JSON
  - batch：每行一个提示词，并发生成并输出 JSON Lines
  - health：检查 Provider 连通性
  - version：显示版本信息

配置来自 --config 指定的 YAML 文件与 JSONFORMER_ 前缀环境变量，
命令行参数优先。构建信息通过 ldflags 注入 Version、BuildTime、GitCommit。
*/
package main
