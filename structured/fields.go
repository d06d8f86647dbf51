package structured

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var fieldNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)

var fieldTypeAliases = map[string]SchemaType{
	"string":  TypeString,
	"integer": TypeInteger,
	"int":     TypeInteger,
	"number":  TypeNumber,
	"float":   TypeNumber,
	"boolean": TypeBoolean,
	"bool":    TypeBoolean,
	"object":  TypeObject,
	"array":   TypeArray,
	"any":     "",
}

// ParseFields 根据紧凑的字段声明构造模型描述符，例如
//
//	name:string, age:int, email?:string, hobbies:string[]=[]
//
// 每项格式为 name[?]:type[=default]。类型省略时为 string，
// key[] 等价于 key:string[]。? 或默认值使字段变为可选，默认值按 JSON 解析。
// 返回的描述符没有名称，需要 schema title 时由调用方设置 Name。
func ParseFields(declaration string) (*ModelDescriptor, error) {
	if strings.TrimSpace(declaration) == "" {
		return nil, fmt.Errorf("empty field declaration")
	}

	var fields []FieldDescriptor
	for _, entry := range splitTopLevel(declaration, ',') {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			return nil, fmt.Errorf("empty entry in field declaration %q", declaration)
		}
		fd, err := parseFieldEntry(entry)
		if err != nil {
			return nil, err
		}
		fields = append(fields, fd)
	}

	desc := &ModelDescriptor{Fields: fields}
	if err := desc.Check(); err != nil {
		return nil, err
	}
	return desc, nil
}

// MustParseFields 与 ParseFields 相同，出错时 panic。
func MustParseFields(declaration string) *ModelDescriptor {
	desc, err := ParseFields(declaration)
	if err != nil {
		panic(err)
	}
	return desc
}

func parseFieldEntry(entry string) (FieldDescriptor, error) {
	head, rawDefault, hasDefault := entry, "", false
	if parts := splitTopLevel(entry, '='); len(parts) > 1 {
		head = parts[0]
		rawDefault = strings.TrimSpace(strings.Join(parts[1:], "="))
		hasDefault = true
	}

	key, typeStr, hasType := strings.Cut(head, ":")
	key = strings.TrimSpace(key)
	typeStr = strings.TrimSpace(typeStr)
	if strings.Contains(typeStr, ":") {
		return FieldDescriptor{}, fmt.Errorf("invalid field entry: %s", entry)
	}
	if !hasType || typeStr == "" {
		typeStr = "string"
	}

	optional := false
	if strings.HasSuffix(key, "[]") {
		key = strings.TrimSpace(strings.TrimSuffix(key, "[]"))
		if strings.HasSuffix(typeStr, "[]") {
			return FieldDescriptor{}, fmt.Errorf("nested array types are not supported: %s", entry)
		}
		typeStr += "[]"
	}
	if strings.HasSuffix(key, "?") {
		optional = true
		key = strings.TrimSpace(strings.TrimSuffix(key, "?"))
	}
	if !fieldNamePattern.MatchString(key) {
		return FieldDescriptor{}, fmt.Errorf("invalid field name %q in entry: %s", key, entry)
	}

	schema, err := fieldTypeSchema(typeStr)
	if err != nil {
		return FieldDescriptor{}, fmt.Errorf("field %q: %w", key, err)
	}

	fd := FieldDescriptor{
		Name:     key,
		Type:     schema.Type,
		Required: !optional && !hasDefault,
		Schema:   schema,
	}
	if hasDefault {
		var def any
		if err := json.Unmarshal([]byte(rawDefault), &def); err != nil {
			return FieldDescriptor{}, fmt.Errorf("field %q: default %s is not valid JSON: %w", key, rawDefault, err)
		}
		if err := NewValidator().ValidateValue(def, schema); err != nil {
			return FieldDescriptor{}, fmt.Errorf("field %q: default does not match type %s: %w", key, typeStr, err)
		}
		fd.HasDefault = true
		fd.Default = def
		schema.Default = def
	}
	return fd, nil
}

func fieldTypeSchema(typeStr string) (*JSONSchema, error) {
	typeStr = strings.ToLower(typeStr)
	if strings.HasSuffix(typeStr, "[]") {
		elem := strings.TrimSpace(strings.TrimSuffix(typeStr, "[]"))
		if elem == "" {
			return nil, fmt.Errorf("empty element type in array type: %s", typeStr)
		}
		if strings.HasSuffix(elem, "[]") {
			return nil, fmt.Errorf("nested array types are not supported: %s", typeStr)
		}
		items, err := fieldTypeSchema(elem)
		if err != nil {
			return nil, err
		}
		return NewArraySchema(items), nil
	}
	t, ok := fieldTypeAliases[typeStr]
	if !ok {
		return nil, fmt.Errorf("unknown field type %q", typeStr)
	}
	return &JSONSchema{Type: t}, nil
}

// splitTopLevel 按 sep 切分，忽略引号、方括号和花括号内部的分隔符。
func splitTopLevel(s string, sep byte) []string {
	var parts []string
	depth, start := 0, 0
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '[', '{':
			depth++
		case ']', '}':
			if depth > 0 {
				depth--
			}
		case sep:
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}
