package structured

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

var (
	timeType       = reflect.TypeOf(time.Time{})
	rawMessageType = reflect.TypeOf(json.RawMessage(nil))
)

// SchemaGenerator 通过反射把 Go 类型转换为 JSON Schema 与字段描述符。
type SchemaGenerator struct {
	// 正在展开的结构体，用于截断递归类型
	visited map[reflect.Type]bool
}

// NewSchemaGenerator 创建生成器。
func NewSchemaGenerator() *SchemaGenerator {
	return &SchemaGenerator{
		visited: make(map[reflect.Type]bool),
	}
}

// Describe 为结构体生成模型描述符。v 可以是结构体值、结构体指针
// （包括 nil 指针，如 (*User)(nil)）或 reflect.Type。
func Describe(v any) (*ModelDescriptor, error) {
	if v == nil {
		return nil, fmt.Errorf("cannot describe nil model")
	}
	t, ok := v.(reflect.Type)
	if !ok {
		t = reflect.TypeOf(v)
	}
	return NewSchemaGenerator().DescribeType(t)
}

// DescribeType 为结构体类型生成模型描述符。字段按声明顺序排列，
// 嵌入结构体的字段被提升到外层。
//
// 字段默认必填，以下情况例外：
//   - json 标签带 omitempty 或 omitzero
//   - 字段是指针（同时允许 null）
//   - jsonschema 标签带 default=...
//   - jsonschema 标签带 optional
//
// jsonschema:"required" 强制必填。
//
// 支持的 jsonschema 标签选项:
//   - required / optional
//   - description=...
//   - default=...: 标量按字段类型解析，切片/map/结构体按 JSON 解析
//   - enum=a,b,c
//   - minimum=0, maximum=100
//   - minLength=1, maxLength=100, pattern=^[a-z]+$, format=email
//   - minItems=1, maxItems=10
func (g *SchemaGenerator) DescribeType(t reflect.Type) (*ModelDescriptor, error) {
	if t == nil {
		return nil, fmt.Errorf("cannot describe nil type")
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("typed model must be a struct, got %s", t.Kind())
	}

	g.visited = make(map[reflect.Type]bool)
	g.visited[t] = true
	fields, err := g.structFields(t)
	if err != nil {
		return nil, err
	}

	desc := &ModelDescriptor{Name: t.Name(), GoType: t, Fields: fields}
	if err := desc.Check(); err != nil {
		return nil, err
	}
	return desc, nil
}

// GenerateSchema 为任意 Go 类型生成 JSON Schema。
func (g *SchemaGenerator) GenerateSchema(t reflect.Type) (*JSONSchema, error) {
	g.visited = make(map[reflect.Type]bool)
	return g.generateSchema(t)
}

func (g *SchemaGenerator) generateSchema(t reflect.Type) (*JSONSchema, error) {
	if t == nil {
		return nil, fmt.Errorf("cannot generate schema for nil type")
	}
	if t.Kind() == reflect.Ptr {
		return g.generateSchema(t.Elem())
	}

	switch t {
	case timeType:
		return NewStringSchema().WithFormat(FormatDateTime), nil
	case rawMessageType:
		return &JSONSchema{}, nil
	}

	if g.visited[t] {
		return &JSONSchema{Type: TypeObject}, nil
	}

	switch t.Kind() {
	case reflect.String:
		return NewStringSchema(), nil
	case reflect.Bool:
		return NewBooleanSchema(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return NewIntegerSchema(), nil
	case reflect.Float32, reflect.Float64:
		return NewNumberSchema(), nil
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			// []byte 在 JSON 中是 base64 字符串
			return NewStringSchema(), nil
		}
		return g.generateArraySchema(t)
	case reflect.Array:
		s, err := g.generateArraySchema(t)
		if err != nil {
			return nil, err
		}
		return s.WithMinItems(t.Len()).WithMaxItems(t.Len()), nil
	case reflect.Map:
		return g.generateMapSchema(t)
	case reflect.Struct:
		return g.generateStructSchema(t)
	case reflect.Interface:
		return &JSONSchema{}, nil
	default:
		return nil, fmt.Errorf("unsupported type: %s", t.Kind())
	}
}

func (g *SchemaGenerator) generateArraySchema(t reflect.Type) (*JSONSchema, error) {
	elemSchema, err := g.generateSchema(t.Elem())
	if err != nil {
		return nil, fmt.Errorf("failed to generate schema for array element: %w", err)
	}
	return NewArraySchema(elemSchema), nil
}

func (g *SchemaGenerator) generateMapSchema(t reflect.Type) (*JSONSchema, error) {
	switch t.Key().Kind() {
	case reflect.String, reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
	default:
		return nil, fmt.Errorf("unsupported map key type: %s", t.Key().Kind())
	}
	valueSchema, err := g.generateSchema(t.Elem())
	if err != nil {
		return nil, fmt.Errorf("failed to generate schema for map value: %w", err)
	}
	return NewObjectSchema().WithAdditionalPropertiesSchema(valueSchema), nil
}

func (g *SchemaGenerator) generateStructSchema(t reflect.Type) (*JSONSchema, error) {
	g.visited[t] = true
	defer func() { g.visited[t] = false }()

	fields, err := g.structFields(t)
	if err != nil {
		return nil, err
	}
	return schemaFromFields(fields), nil
}

// ====== 字段收集 ======

type candidateField struct {
	FieldDescriptor
	depth  int
	tagged bool
}

// structFields 收集结构体的 JSON 字段。同名字段取嵌入层级更浅的，
// 同层级时带 json 名称标签的优先，其次取先声明的。
func (g *SchemaGenerator) structFields(t reflect.Type) ([]FieldDescriptor, error) {
	var candidates []candidateField
	if err := g.collectFields(t, 0, &candidates); err != nil {
		return nil, err
	}

	index := make(map[string]int)
	var kept []candidateField
	for _, c := range candidates {
		i, exists := index[c.Name]
		if !exists {
			index[c.Name] = len(kept)
			kept = append(kept, c)
			continue
		}
		prev := kept[i]
		if c.depth < prev.depth || (c.depth == prev.depth && c.tagged && !prev.tagged) {
			kept[i] = c
		}
	}

	fields := make([]FieldDescriptor, len(kept))
	for i, c := range kept {
		fields[i] = c.FieldDescriptor
	}
	return fields, nil
}

func (g *SchemaGenerator) collectFields(t reflect.Type, depth int, out *[]candidateField) error {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		name, opts, tagged := jsonFieldName(field)
		if name == "-" {
			continue
		}

		if field.Anonymous && !tagged {
			et := field.Type
			if et.Kind() == reflect.Ptr {
				et = et.Elem()
			}
			if et.Kind() == reflect.Struct && et != timeType {
				if g.visited[et] {
					continue
				}
				g.visited[et] = true
				err := g.collectFields(et, depth+1, out)
				g.visited[et] = false
				if err != nil {
					return err
				}
				continue
			}
		}

		if !field.IsExported() {
			continue
		}

		fd, err := g.describeField(field, name, opts)
		if err != nil {
			return fmt.Errorf("field %s: %w", field.Name, err)
		}
		*out = append(*out, candidateField{FieldDescriptor: fd, depth: depth, tagged: tagged})
	}
	return nil
}

func (g *SchemaGenerator) describeField(field reflect.StructField, name string, jsonOpts map[string]bool) (FieldDescriptor, error) {
	switch field.Type.Kind() {
	case reflect.Chan, reflect.Func, reflect.Complex64, reflect.Complex128, reflect.UnsafePointer:
		return FieldDescriptor{}, fmt.Errorf("unsupported type: %s", field.Type.Kind())
	}

	inner, err := g.generateSchema(field.Type)
	if err != nil {
		return FieldDescriptor{}, err
	}
	options := parseTagOptions(field.Tag.Get("jsonschema"))
	applyConstraints(inner, options, field.Type)

	fd := FieldDescriptor{
		Name:        name,
		GoName:      field.Name,
		Type:        inner.Type,
		Nullable:    field.Type.Kind() == reflect.Ptr,
		Description: options["description"],
	}
	if def, ok := options["default"]; ok {
		fd.HasDefault = true
		fd.Default = parseDefaultValue(def, field.Type)
	}

	_, forced := options["required"]
	_, optional := options["optional"]
	switch {
	case forced:
		fd.Required = true
	case optional:
		fd.Required = false
	default:
		fd.Required = !(jsonOpts["omitempty"] || jsonOpts["omitzero"] || fd.Nullable || fd.HasDefault)
	}

	prop := inner
	if fd.Nullable {
		prop = &JSONSchema{AnyOf: []*JSONSchema{inner, NewSchema(TypeNull)}}
	}
	prop.Description = fd.Description
	if fd.HasDefault {
		prop.Default = fd.Default
	}
	fd.Schema = prop
	return fd, nil
}

// jsonFieldName 解析 json 标签，返回属性名、选项以及名称是否来自标签。
func jsonFieldName(field reflect.StructField) (string, map[string]bool, bool) {
	tag, ok := field.Tag.Lookup("json")
	if !ok {
		return field.Name, nil, false
	}
	if tag == "-" {
		return "-", nil, true
	}
	parts := strings.Split(tag, ",")
	opts := make(map[string]bool, len(parts)-1)
	for _, p := range parts[1:] {
		opts[strings.TrimSpace(p)] = true
	}
	if parts[0] == "" {
		return field.Name, opts, false
	}
	return parts[0], opts, true
}

// applyConstraints 把 jsonschema 标签中的约束写入 schema。
func applyConstraints(schema *JSONSchema, options map[string]string, t reflect.Type) {
	if enumStr, ok := options["enum"]; ok {
		values := strings.Split(enumStr, ",")
		schema.Enum = make([]any, len(values))
		for i, v := range values {
			schema.Enum[i] = parseDefaultValue(strings.TrimSpace(v), t)
		}
	}

	if v, ok := intOption(options, "minLength"); ok {
		schema.MinLength = &v
	}
	if v, ok := intOption(options, "maxLength"); ok {
		schema.MaxLength = &v
	}
	if pattern, ok := options["pattern"]; ok {
		schema.Pattern = pattern
	}
	if format, ok := options["format"]; ok {
		schema.Format = StringFormat(format)
	}

	if v, ok := floatOption(options, "minimum"); ok {
		schema.Minimum = &v
	}
	if v, ok := floatOption(options, "maximum"); ok {
		schema.Maximum = &v
	}

	if v, ok := intOption(options, "minItems"); ok {
		schema.MinItems = &v
	}
	if v, ok := intOption(options, "maxItems"); ok {
		schema.MaxItems = &v
	}
}

func intOption(options map[string]string, key string) (int, bool) {
	raw, ok := options[key]
	if !ok {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	return v, err == nil
}

func floatOption(options map[string]string, key string) (float64, bool) {
	raw, ok := options[key]
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	return v, err == nil
}

// parseTagOptions 把 "opt1,opt2=v2,opt3=v3" 解析为选项表。
func parseTagOptions(tag string) map[string]string {
	options := make(map[string]string)
	if tag == "" {
		return options
	}
	for _, part := range splitTagParts(tag) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if idx := strings.Index(part, "="); idx > 0 {
			options[part[:idx]] = part[idx+1:]
		} else {
			options[part] = ""
		}
	}
	return options
}

var knownBoolOptions = map[string]bool{
	"required": true,
	"optional": true,
}

// splitTagParts 按逗号切分标签，但 enum=a,b,c 这类值内部的逗号保留。
// 处于值内时，只有下一段是布尔选项或形如 key=... 时才视为新选项。
func splitTagParts(tag string) []string {
	var parts []string
	var current strings.Builder
	inValue := false

	for i := 0; i < len(tag); i++ {
		ch := tag[i]
		switch {
		case ch == '=':
			inValue = true
			current.WriteByte(ch)
		case ch == ',' && !inValue:
			parts = append(parts, current.String())
			current.Reset()
		case ch == ',':
			next := tag[i+1:]
			if idx := strings.Index(next, ","); idx >= 0 {
				next = next[:idx]
			}
			next = strings.TrimSpace(next)
			if knownBoolOptions[next] || looksLikeOption(next) {
				parts = append(parts, current.String())
				current.Reset()
				inValue = false
				continue
			}
			current.WriteByte(ch)
		default:
			current.WriteByte(ch)
		}
	}
	if current.Len() > 0 {
		parts = append(parts, current.String())
	}
	return parts
}

func looksLikeOption(segment string) bool {
	eq := strings.Index(segment, "=")
	if eq <= 0 {
		return false
	}
	for _, c := range segment[:eq] {
		if !((c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')) {
			return false
		}
	}
	return true
}

// parseDefaultValue 按字段类型解析标签中的默认值，解析失败时原样返回字符串。
func parseDefaultValue(value string, t reflect.Type) any {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	switch t.Kind() {
	case reflect.String:
		return value
	case reflect.Bool:
		return value == "true"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if v, err := strconv.ParseInt(value, 10, 64); err == nil {
			return v
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if v, err := strconv.ParseUint(value, 10, 64); err == nil {
			return v
		}
	case reflect.Float32, reflect.Float64:
		if v, err := strconv.ParseFloat(value, 64); err == nil {
			return v
		}
	case reflect.Slice, reflect.Array, reflect.Map, reflect.Struct, reflect.Interface:
		var v any
		if err := json.Unmarshal([]byte(value), &v); err == nil {
			return v
		}
	}
	return value
}
