/*
包 llm 提供统一的大语言模型接入层：Provider 抽象、请求/响应模型、
传输错误码以及按请求覆盖凭据的能力。

# 核心接口

  - [Provider]：Completion / HealthCheck / Name
  - [ChatRequest] / [ChatResponse]：与具体服务商无关的请求与响应
  - [Error]：带错误码、HTTP 状态与 Retryable 标记的传输错误

具体服务商适配位于 llm/providers 子包，由 llm/factory 按名称构造。
*/
package llm
