package structured

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// SchemaType represents JSON Schema types.
type SchemaType string

const (
	TypeString  SchemaType = "string"
	TypeNumber  SchemaType = "number"
	TypeInteger SchemaType = "integer"
	TypeBoolean SchemaType = "boolean"
	TypeNull    SchemaType = "null"
	TypeObject  SchemaType = "object"
	TypeArray   SchemaType = "array"
)

// StringFormat represents common string format constraints.
type StringFormat string

const (
	FormatDateTime StringFormat = "date-time"
	FormatDate     StringFormat = "date"
	FormatTime     StringFormat = "time"
	FormatEmail    StringFormat = "email"
	FormatURI      StringFormat = "uri"
	FormatUUID     StringFormat = "uuid"
	FormatIPv4     StringFormat = "ipv4"
	FormatIPv6     StringFormat = "ipv6"
	FormatHostname StringFormat = "hostname"
)

// JSONSchema is the subset of JSON Schema that typed models derive to and
// that DefaultValidator enforces.
type JSONSchema struct {
	Schema      string     `json:"$schema,omitempty"`
	Title       string     `json:"title,omitempty"`
	Description string     `json:"description,omitempty"`
	Type        SchemaType `json:"type,omitempty"`

	// Object
	Properties           map[string]*JSONSchema `json:"properties,omitempty"`
	Required             []string               `json:"required,omitempty"`
	AdditionalProperties *AdditionalProperties  `json:"additionalProperties,omitempty"`
	MinProperties        *int                   `json:"minProperties,omitempty"`
	MaxProperties        *int                   `json:"maxProperties,omitempty"`

	// PropertyOrder 记录属性的声明顺序，序列化时按此顺序输出 properties。
	PropertyOrder []string `json:"-"`

	// Array
	Items       *JSONSchema `json:"items,omitempty"`
	MinItems    *int        `json:"minItems,omitempty"`
	MaxItems    *int        `json:"maxItems,omitempty"`
	UniqueItems *bool       `json:"uniqueItems,omitempty"`

	Enum  []any `json:"enum,omitempty"`
	Const any   `json:"const,omitempty"`

	// String
	MinLength *int         `json:"minLength,omitempty"`
	MaxLength *int         `json:"maxLength,omitempty"`
	Pattern   string       `json:"pattern,omitempty"`
	Format    StringFormat `json:"format,omitempty"`

	// Numeric
	Minimum          *float64 `json:"minimum,omitempty"`
	Maximum          *float64 `json:"maximum,omitempty"`
	ExclusiveMinimum *float64 `json:"exclusiveMinimum,omitempty"`
	ExclusiveMaximum *float64 `json:"exclusiveMaximum,omitempty"`
	MultipleOf       *float64 `json:"multipleOf,omitempty"`

	Default  any   `json:"default,omitempty"`
	Examples []any `json:"examples,omitempty"`

	AllOf []*JSONSchema `json:"allOf,omitempty"`
	AnyOf []*JSONSchema `json:"anyOf,omitempty"`
	OneOf []*JSONSchema `json:"oneOf,omitempty"`
}

// AdditionalProperties is either a boolean or a schema.
type AdditionalProperties struct {
	Allowed bool
	Schema  *JSONSchema
}

// MarshalJSON implements json.Marshaler for AdditionalProperties.
func (ap *AdditionalProperties) MarshalJSON() ([]byte, error) {
	if ap == nil {
		return []byte("null"), nil
	}
	if ap.Schema != nil {
		return json.Marshal(ap.Schema)
	}
	return json.Marshal(ap.Allowed)
}

// UnmarshalJSON implements json.Unmarshaler for AdditionalProperties.
func (ap *AdditionalProperties) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		ap.Allowed, ap.Schema = b, nil
		return nil
	}
	var schema JSONSchema
	if err := json.Unmarshal(data, &schema); err != nil {
		return fmt.Errorf("additionalProperties must be boolean or schema: %w", err)
	}
	ap.Allowed, ap.Schema = true, &schema
	return nil
}

// MarshalJSON 输出时让 properties 紧跟 type，并按 PropertyOrder 排列；
// 未登记顺序的属性按名称排在后面。
func (s *JSONSchema) MarshalJSON() ([]byte, error) {
	type plain JSONSchema
	if len(s.Properties) == 0 {
		return json.Marshal((*plain)(s))
	}

	shallow := *s
	shallow.Properties = nil
	head, err := json.Marshal((*plain)(&shallow))
	if err != nil {
		return nil, err
	}

	var props bytes.Buffer
	props.WriteString(`"properties":{`)
	for i, name := range s.orderedPropertyNames() {
		if i > 0 {
			props.WriteByte(',')
		}
		key, _ := json.Marshal(name)
		val, err := json.Marshal(s.Properties[name])
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", name, err)
		}
		props.Write(key)
		props.WriteByte(':')
		props.Write(val)
	}
	props.WriteByte('}')

	// 字符串值内的引号必然被转义，所以第一个未转义的 "type": 就是顶层字段。
	anchor := []byte(`"type":`)
	if idx := bytes.Index(head, anchor); idx >= 0 && s.Type != "" {
		end := idx + len(anchor) + len(fmt.Sprintf("%q", string(s.Type)))
		out := make([]byte, 0, len(head)+props.Len()+1)
		out = append(out, head[:end]...)
		out = append(out, ',')
		out = append(out, props.Bytes()...)
		out = append(out, head[end:]...)
		return out, nil
	}

	out := bytes.TrimSuffix(head, []byte("}"))
	if len(out) > 1 {
		out = append(out, ',')
	}
	out = append(out, props.Bytes()...)
	return append(out, '}'), nil
}

func (s *JSONSchema) orderedPropertyNames() []string {
	names := make([]string, 0, len(s.Properties))
	seen := make(map[string]bool, len(s.Properties))
	for _, name := range s.PropertyOrder {
		if _, ok := s.Properties[name]; ok && !seen[name] {
			names = append(names, name)
			seen[name] = true
		}
	}
	rest := make([]string, 0, len(s.Properties)-len(names))
	for name := range s.Properties {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(names, rest...)
}

// ====== 构造器 ======

// NewSchema creates a schema of the given type.
func NewSchema(t SchemaType) *JSONSchema {
	return &JSONSchema{Type: t}
}

func NewObjectSchema() *JSONSchema {
	return &JSONSchema{Type: TypeObject, Properties: make(map[string]*JSONSchema)}
}

func NewArraySchema(items *JSONSchema) *JSONSchema {
	return &JSONSchema{Type: TypeArray, Items: items}
}

func NewStringSchema() *JSONSchema  { return NewSchema(TypeString) }
func NewNumberSchema() *JSONSchema  { return NewSchema(TypeNumber) }
func NewIntegerSchema() *JSONSchema { return NewSchema(TypeInteger) }
func NewBooleanSchema() *JSONSchema { return NewSchema(TypeBoolean) }

// NewEnumSchema creates a string schema restricted to values.
func NewEnumSchema(values ...any) *JSONSchema {
	return &JSONSchema{Type: TypeString, Enum: values}
}

func (s *JSONSchema) WithTitle(title string) *JSONSchema {
	s.Title = title
	return s
}

func (s *JSONSchema) WithDescription(desc string) *JSONSchema {
	s.Description = desc
	return s
}

func (s *JSONSchema) WithDefault(def any) *JSONSchema {
	s.Default = def
	return s
}

// AddProperty 追加属性并记录声明顺序。
func (s *JSONSchema) AddProperty(name string, prop *JSONSchema) *JSONSchema {
	if s.Properties == nil {
		s.Properties = make(map[string]*JSONSchema)
	}
	if _, exists := s.Properties[name]; !exists {
		s.PropertyOrder = append(s.PropertyOrder, name)
	}
	s.Properties[name] = prop
	return s
}

// AddRequired marks properties as required, skipping duplicates.
func (s *JSONSchema) AddRequired(names ...string) *JSONSchema {
	for _, n := range names {
		if !s.IsRequired(n) {
			s.Required = append(s.Required, n)
		}
	}
	return s
}

func (s *JSONSchema) WithMinLength(n int) *JSONSchema {
	s.MinLength = &n
	return s
}

func (s *JSONSchema) WithMaxLength(n int) *JSONSchema {
	s.MaxLength = &n
	return s
}

func (s *JSONSchema) WithPattern(pattern string) *JSONSchema {
	s.Pattern = pattern
	return s
}

func (s *JSONSchema) WithFormat(format StringFormat) *JSONSchema {
	s.Format = format
	return s
}

func (s *JSONSchema) WithMinimum(v float64) *JSONSchema {
	s.Minimum = &v
	return s
}

func (s *JSONSchema) WithMaximum(v float64) *JSONSchema {
	s.Maximum = &v
	return s
}

func (s *JSONSchema) WithMinItems(n int) *JSONSchema {
	s.MinItems = &n
	return s
}

func (s *JSONSchema) WithMaxItems(n int) *JSONSchema {
	s.MaxItems = &n
	return s
}

func (s *JSONSchema) WithUniqueItems(unique bool) *JSONSchema {
	s.UniqueItems = &unique
	return s
}

func (s *JSONSchema) WithAdditionalProperties(allowed bool) *JSONSchema {
	s.AdditionalProperties = &AdditionalProperties{Allowed: allowed}
	return s
}

func (s *JSONSchema) WithAdditionalPropertiesSchema(schema *JSONSchema) *JSONSchema {
	s.AdditionalProperties = &AdditionalProperties{Allowed: true, Schema: schema}
	return s
}

func (s *JSONSchema) WithEnum(values ...any) *JSONSchema {
	s.Enum = values
	return s
}

// ====== 查询与序列化 ======

// Clone 深拷贝 schema。Default/Enum/Const 等值经 JSON 往返复制。
func (s *JSONSchema) Clone() *JSONSchema {
	if s == nil {
		return nil
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil
	}
	out, err := FromJSON(data)
	if err != nil {
		return nil
	}
	out.copyOrder(s)
	return out
}

// copyOrder 恢复 JSON 往返丢失的 PropertyOrder。
func (s *JSONSchema) copyOrder(src *JSONSchema) {
	if s == nil || src == nil {
		return
	}
	s.PropertyOrder = append([]string(nil), src.PropertyOrder...)
	for name, p := range s.Properties {
		p.copyOrder(src.Properties[name])
	}
	s.Items.copyOrder(src.Items)
	if s.AdditionalProperties != nil && src.AdditionalProperties != nil {
		s.AdditionalProperties.Schema.copyOrder(src.AdditionalProperties.Schema)
	}
	for i := range s.AnyOf {
		if i < len(src.AnyOf) {
			s.AnyOf[i].copyOrder(src.AnyOf[i])
		}
	}
}

func (s *JSONSchema) ToJSON() ([]byte, error) {
	return json.Marshal(s)
}

// ToJSONIndent 以两个空格缩进输出。
func (s *JSONSchema) ToJSONIndent() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

// FromJSON parses a schema document.
func FromJSON(data []byte) (*JSONSchema, error) {
	var s JSONSchema
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse JSON schema: %w", err)
	}
	return &s, nil
}

func (s *JSONSchema) IsRequired(name string) bool {
	for _, r := range s.Required {
		if r == name {
			return true
		}
	}
	return false
}

func (s *JSONSchema) GetProperty(name string) *JSONSchema {
	if s.Properties == nil {
		return nil
	}
	return s.Properties[name]
}
