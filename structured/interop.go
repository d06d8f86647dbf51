package structured

import (
	"bytes"
	"encoding/json"
	"fmt"

	gjsonschema "github.com/google/jsonschema-go/jsonschema"
	invopop "github.com/invopop/jsonschema"
)

// RawSchema 把各种形式的 schema 文档规范化为 JSON 文本，并检查它能被解析为
// JSON Schema。接受 json.RawMessage、[]byte、string、map[string]any、
// *JSONSchema、*invopop.Schema 与 *gjsonschema.Schema。
//
// 文本形式的输入原样保留（仅去掉首尾空白）。
func RawSchema(doc any) (json.RawMessage, error) {
	var data []byte
	switch d := doc.(type) {
	case nil:
		return nil, fmt.Errorf("schema document is nil")
	case json.RawMessage:
		data = d
	case []byte:
		data = d
	case string:
		data = []byte(d)
	case *JSONSchema:
		if d == nil {
			return nil, fmt.Errorf("schema document is nil")
		}
		b, err := d.ToJSON()
		if err != nil {
			return nil, fmt.Errorf("marshal schema: %w", err)
		}
		data = b
	case *invopop.Schema:
		if d == nil {
			return nil, fmt.Errorf("schema document is nil")
		}
		b, err := json.Marshal(d)
		if err != nil {
			return nil, fmt.Errorf("marshal invopop schema: %w", err)
		}
		data = b
	case *gjsonschema.Schema:
		if d == nil {
			return nil, fmt.Errorf("schema document is nil")
		}
		b, err := json.Marshal(d)
		if err != nil {
			return nil, fmt.Errorf("marshal schema: %w", err)
		}
		data = b
	case map[string]any:
		b, err := json.Marshal(d)
		if err != nil {
			return nil, fmt.Errorf("marshal schema map: %w", err)
		}
		data = b
	default:
		return nil, fmt.Errorf("unsupported schema document type %T", doc)
	}

	data = bytes.TrimSpace(data)
	if err := CheckSchema(data); err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}

// CheckSchema 确认 data 是一个可解析的 JSON Schema 对象。
// $schema 声明不参与检查；draft-07 的元组形式 items 先改写为 prefixItems 再解析，
// 文档本身不被修改。
func CheckSchema(data []byte) error {
	var probe map[string]any
	if err := json.Unmarshal(data, &probe); err != nil {
		return fmt.Errorf("schema must be a JSON object: %w", err)
	}
	if probe == nil {
		return fmt.Errorf("schema must be a JSON object, got null")
	}
	delete(probe, "$schema")

	stripped, err := json.Marshal(upgradeLegacyKeywords(probe))
	if err != nil {
		return fmt.Errorf("schema must be a JSON object: %w", err)
	}
	var s gjsonschema.Schema
	if err := json.Unmarshal(stripped, &s); err != nil {
		return fmt.Errorf("decode schema: %w", err)
	}
	if _, err := s.Resolve(nil); err != nil {
		return fmt.Errorf("resolve schema: %w", err)
	}
	return nil
}

// 这些关键字的值是实例数据而不是子 schema
var instanceKeywords = map[string]bool{
	"enum":     true,
	"const":    true,
	"default":  true,
	"examples": true,
}

// upgradeLegacyKeywords 把 draft-07 的元组形式 items: [...] 改写为 prefixItems，
// 递归处理子 schema。
func upgradeLegacyKeywords(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			if instanceKeywords[k] {
				out[k] = item
				continue
			}
			out[k] = upgradeLegacyKeywords(item)
		}
		if tuple, ok := out["items"].([]any); ok {
			out["prefixItems"] = tuple
			delete(out, "items")
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = upgradeLegacyKeywords(item)
		}
		return out
	default:
		return v
	}
}

// ReflectSchema 用 invopop/jsonschema 反射 Go 类型，得到可直接交给
// WithJSONSchema 的文档。与 Describe 不同，结果走未类型化模式。
func ReflectSchema(v any) (json.RawMessage, error) {
	r := &invopop.Reflector{DoNotReference: true, ExpandedStruct: true, Anonymous: true}
	s := r.Reflect(v)
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal reflected schema: %w", err)
	}
	return data, nil
}

// ToGoogleSchema 把 JSONSchema 转换为 google/jsonschema-go 的结构，
// 以便交给使用该库的调用方（例如 MCP 工具定义）。
func ToGoogleSchema(s *JSONSchema) (*gjsonschema.Schema, error) {
	data, err := s.ToJSON()
	if err != nil {
		return nil, err
	}
	var out gjsonschema.Schema
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("convert schema: %w", err)
	}
	return &out, nil
}

// prettySchema 以两个空格缩进输出 schema 文本，不改变键顺序。
func prettySchema(raw json.RawMessage) (string, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return "", err
	}
	return buf.String(), nil
}
