// Copyright 2026 jsonformer Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
# 概述

包 structured 根据 JSON Schema 约束向 LLM 请求结构化 JSON 输出。

Generator 在构造时确定输出模式：类型化模式由 Go 结构体或显式字段声明推导
schema，并在返回前补齐默认值、校验、解码；未类型化模式原样使用调用方提供的
schema 文档，解析后直接返回。每次 Generate 只调用一次 Provider，不重试、不缓存。

# 主要类型

  - Generator / Typed[T]：生成器与其泛型包装
  - JSONSchema：schema 建模，properties 保持声明顺序
  - SchemaGenerator / Describe：通过反射从 Go 类型推导字段描述符
  - ModelDescriptor / FieldDescriptor：与反射无关的字段描述
  - ParseFields：紧凑字段声明，例如 "name:string,age:int,hobbies:string[]=[]"
  - DefaultValidator / ValidationErrors：字段级校验与逐路径错误

# 典型用法

	type User struct {
		Name     string   `json:"name"`
		Age      int      `json:"age"`
		IsActive bool     `json:"is_active"`
		Hobbies  []string `json:"hobbies" jsonschema:"default=[]"`
	}

	gen, _ := structured.NewTyped[User](provider)
	user, err := gen.Generate(ctx, "Generate data for a young software developer")
	switch {
	case structured.IsParseError(err):      // 输出不是 JSON
	case structured.IsValidationError(err): // 不满足 User
	case structured.IsTransportError(err):  // Provider 错误
	}

# 错误

构造参数冲突或缺失返回 ConfigurationError；Provider 错误原样返回；
输出不是合法 JSON 返回 ParseError；类型化模式下不满足模型返回 ValidationError。
*/
package structured
