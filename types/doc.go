// Copyright (c) jsonformer Authors.
// Licensed under the MIT License.

/*
Package types 提供 jsonformer 的全局共享类型定义。

types 是最底层的公共包，不依赖任何内部包。

# 核心类型

  - Error / ErrorCode：结构化错误，含 HTTP 状态码、Retryable、Provider 标记
  - ErrConfiguration / ErrParse / ErrValidation：生成器的三类终止错误

# 主要能力

  - 错误工具链：AsError / IsErrorCode / GetErrorCode / IsRetryable
  - Context 传播：WithTraceID / TraceID
*/
package types
