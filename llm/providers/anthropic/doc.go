// Copyright 2026 jsonformer Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
# 概述

包 claude 提供 Anthropic Claude 系列模型的 Provider 适配实现，
把统一请求映射到 Anthropic Messages API（/v1/messages）。

# 协议差异

  - 认证使用 x-api-key 请求头（非 Bearer Token），默认读取 ANTHROPIC_API_KEY
  - system 消息从 messages 数组中提取，单独传递到 system 字段
  - temperature 总是显式发送，0 不会被省略
  - 回复文本取自第一个 content 块

# 支持能力

  - Chat Completion（/v1/messages，同步）
  - 健康检查（/v1/models）
  - CredentialOverride 运行时凭证覆盖
*/
package claude
