/*
包 metrics 提供基于 Prometheus 的 JSON 生成指标采集。

# 核心类型

  - Collector：实现 structured.MetricsRecorder，使用 promauto 注册
    生成次数、生成耗时、Token 用量与 batch 进度指标。
  - Fanout：把同一条记录转发给多个记录器（例如 Prometheus 与 OTel）。

# 主要能力

  - 生成指标按 provider/model/mode/outcome 分组，outcome 取值为
    success、transport_error、parse_error、validation_error。
  - NewCollectorWith 可注册到独立 Registry，命令行 batch 结束后
    通过 prometheus.WriteToTextfile 导出。
*/
package metrics
