package structured

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// FieldDescriptor 描述类型化模型中的一个字段。
type FieldDescriptor struct {
	// Name 是 JSON 中的属性名。
	Name string
	// GoName 是结构体字段名，显式声明的字段为空。
	GoName string
	// Type 是字段的 JSON 类型，空表示任意值。
	Type SchemaType
	// Schema 是该属性的完整子 schema（已包含 null 分支、默认值与描述）。
	Schema      *JSONSchema
	Required    bool
	Nullable    bool
	HasDefault  bool
	Default     any
	Description string
}

// ModelDescriptor 是类型化模型的字段列表。GoType 为 nil 时表示显式声明的模型，
// 校验结果以 map 形式返回。
type ModelDescriptor struct {
	Name   string
	GoType reflect.Type
	Fields []FieldDescriptor
}

// Field 按 JSON 名称查找字段。
func (m *ModelDescriptor) Field(name string) (FieldDescriptor, bool) {
	for _, f := range m.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldDescriptor{}, false
}

// RequiredFields 按声明顺序返回必填字段名。
func (m *ModelDescriptor) RequiredFields() []string {
	var out []string
	for _, f := range m.Fields {
		if f.Required {
			out = append(out, f.Name)
		}
	}
	return out
}

// Check 检查描述符本身是否可用。
func (m *ModelDescriptor) Check() error {
	if m == nil {
		return fmt.Errorf("model descriptor is nil")
	}
	if len(m.Fields) == 0 && m.GoType == nil {
		return fmt.Errorf("model %q declares no fields", m.Name)
	}
	seen := make(map[string]bool, len(m.Fields))
	for _, f := range m.Fields {
		if f.Name == "" {
			return fmt.Errorf("model %q has a field without name", m.Name)
		}
		if seen[f.Name] {
			return fmt.Errorf("model %q declares field %q twice", m.Name, f.Name)
		}
		seen[f.Name] = true
		if f.Required && f.HasDefault {
			return fmt.Errorf("field %q is required but also has a default", f.Name)
		}
	}
	return nil
}

// Schema 由字段列表推导出对象 schema，properties 保持声明顺序。
func (m *ModelDescriptor) Schema() *JSONSchema {
	s := schemaFromFields(m.Fields)
	s.Title = m.Name
	return s
}

func schemaFromFields(fields []FieldDescriptor) *JSONSchema {
	s := NewObjectSchema()
	for _, f := range fields {
		prop := f.Schema
		if prop == nil {
			prop = &JSONSchema{Type: f.Type, Description: f.Description}
			if f.HasDefault {
				prop.Default = f.Default
			}
		}
		s.AddProperty(f.Name, prop)
		if f.Required {
			s.AddRequired(f.Name)
		}
	}
	return s
}

// Coerce 把解析后的 JSON 值转换为模型实例：补齐默认值、整体校验、再解码。
// 任何一步失败都返回 *ValidationErrors，不返回部分结果。
//
// value 中的数字应为 json.Number（见 decodeJSONNumbers），以免大整数丢失精度。
func (m *ModelDescriptor) Coerce(value any, validator SchemaValidator) (any, error) {
	schema := m.Schema()
	value = applyDefaults(value, schema)
	if err := validator.ValidateValue(value, schema); err != nil {
		return nil, err
	}

	obj, ok := value.(map[string]any)
	if !ok {
		return nil, &ValidationErrors{Errors: []ValidationError{{Message: fmt.Sprintf("expected object, got %T", value)}}}
	}
	if m.GoType == nil {
		return m.project(obj)
	}

	data, err := json.Marshal(normalizeIntegers(obj))
	if err != nil {
		return nil, &ValidationErrors{Errors: []ValidationError{{Message: err.Error()}}}
	}
	ptr := reflect.New(m.GoType)
	if err := json.Unmarshal(data, ptr.Interface()); err != nil {
		return nil, decodeFailure(err)
	}
	return ptr.Interface(), nil
}

// applyDefaults 按 schema 树补齐缺失属性的默认值（包括嵌套对象与数组元素），
// 返回副本，不修改入参。
func applyDefaults(value any, schema *JSONSchema) any {
	if schema == nil {
		return value
	}
	switch val := value.(type) {
	case map[string]any:
		s := objectBranch(schema)
		if s == nil {
			return value
		}
		out := make(map[string]any, len(val)+len(s.Properties))
		for k, v := range val {
			if prop, ok := s.Properties[k]; ok {
				v = applyDefaults(v, prop)
			}
			out[k] = v
		}
		for name, prop := range s.Properties {
			if _, present := out[name]; present || prop == nil || prop.Default == nil {
				continue
			}
			out[name] = cloneJSONValue(prop.Default)
		}
		return out
	case []any:
		s := arrayBranch(schema)
		if s == nil || s.Items == nil {
			return value
		}
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = applyDefaults(item, s.Items)
		}
		return out
	default:
		return value
	}
}

// objectBranch 返回描述对象的 schema；可空字段取 anyOf 中的非 null 分支。
func objectBranch(s *JSONSchema) *JSONSchema {
	return branchOf(s, TypeObject)
}

func arrayBranch(s *JSONSchema) *JSONSchema {
	return branchOf(s, TypeArray)
}

func branchOf(s *JSONSchema, t SchemaType) *JSONSchema {
	if s.Type == t {
		return s
	}
	for _, alt := range s.AnyOf {
		if alt != nil && alt.Type == t {
			return alt
		}
	}
	return nil
}

// project 只保留声明过的字段，数字转为 float64，与未类型化模式的返回形状一致。
func (m *ModelDescriptor) project(obj map[string]any) (map[string]any, error) {
	kept := make(map[string]any, len(m.Fields))
	for _, f := range m.Fields {
		if v, ok := obj[f.Name]; ok {
			kept[f.Name] = v
		}
	}
	data, err := json.Marshal(kept)
	if err != nil {
		return nil, &ValidationErrors{Errors: []ValidationError{{Message: err.Error()}}}
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, &ValidationErrors{Errors: []ValidationError{{Message: err.Error()}}}
	}
	return out, nil
}

func decodeFailure(err error) *ValidationErrors {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return &ValidationErrors{Errors: []ValidationError{{
			Path:    typeErr.Field,
			Message: fmt.Sprintf("cannot use %s as %s", typeErr.Value, typeErr.Type),
		}}}
	}
	return &ValidationErrors{Errors: []ValidationError{{Message: err.Error()}}}
}

// decodeJSONNumbers 以 UseNumber 解析文本。
func decodeJSONNumbers(text string) (any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(text)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// normalizeIntegers 把 30.0、1e2 这类整值数字改写为整数字面量，
// 使其能解码进 int 字段。
func normalizeIntegers(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = normalizeIntegers(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalizeIntegers(item)
		}
		return out
	case json.Number:
		s := string(val)
		if !strings.ContainsAny(s, ".eE") {
			return val
		}
		f, err := val.Float64()
		if err != nil || f != math.Trunc(f) || math.Abs(f) > 1<<53 {
			return val
		}
		return json.Number(strconv.FormatInt(int64(f), 10))
	default:
		return v
	}
}

func cloneJSONValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = cloneJSONValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneJSONValue(item)
		}
		return out
	default:
		return v
	}
}
