// Copyright 2026 jsonformer Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
# 概述

包 providers 是所有具体 Provider 实现的公共基础层：配置结构、
HTTP 错误映射以及模型/输出上限的选择规则。

# 核心类型

  - BaseProviderConfig：所有 Provider 共享的基础配置（APIKey、BaseURL、Model、Timeout）
  - ClaudeConfig / GeminiConfig：服务商专属配置

# 核心函数

  - MapHTTPError：将 HTTP 状态码映射为语义化的 llm.Error（含 Retryable 标记）
  - NetworkError / DecodeError：传输层与响应解码失败
  - ReadErrorMessage：从错误响应体中提取可读消息
  - ChooseModel / ChooseMaxTokens：按优先级选择模型与输出上限
*/
package providers
