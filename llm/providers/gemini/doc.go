// Copyright 2026 jsonformer Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
# 概述

包 gemini 提供 Google Gemini 模型的 Provider 适配实现，基于官方
google.golang.org/genai SDK 调用 models.generateContent。

# 核心结构体

  - GeminiProvider：持有 GeminiConfig 与 http.Client，延迟创建 genai.Client

# 构造函数

  - NewGeminiProvider(cfg, logger)：默认模型 gemini-2.5-flash；
    Backend 为 "vertex" 时改用 Vertex AI 与 ADC 凭据

# 支持能力

  - Chat Completion（system 指令走 SystemInstruction，temperature 显式下发）
  - HealthCheck（models.get）
  - CredentialOverride 运行时凭证覆盖
  - genai.APIError 到 llm.Error 的错误映射
*/
package gemini
