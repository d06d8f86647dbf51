// Package telemetry 封装 OpenTelemetry SDK 初始化，
// 为 jsonformer 提供 TracerProvider、MeterProvider 与生成指标。
// 遥测禁用时使用 noop 实现，不连接任何外部服务。
package telemetry
