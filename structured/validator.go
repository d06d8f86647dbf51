package structured

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"net"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SchemaValidator 按 JSONSchema 校验 JSON 数据。
type SchemaValidator interface {
	// Validate 校验 JSON 文本。
	Validate(data []byte, schema *JSONSchema) error
	// ValidateValue 校验已解析的值（map[string]any / []any / json.Number 等）。
	ValidateValue(value any, schema *JSONSchema) error
}

// ValidationError 是某个路径上的一条校验失败。
type ValidationError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ValidationErrors 汇总一次校验的全部失败。
type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (e *ValidationErrors) Error() string {
	switch len(e.Errors) {
	case 0:
		return "validation failed"
	case 1:
		return e.Errors[0].Error()
	}
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("validation failed with %d errors: %s", len(e.Errors), strings.Join(msgs, "; "))
}

// Paths 返回出错的路径，便于日志与断言。
func (e *ValidationErrors) Paths() []string {
	paths := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		paths[i] = err.Path
	}
	return paths
}

// DefaultValidator 是内置的 SchemaValidator 实现。
type DefaultValidator struct {
	formatValidators map[StringFormat]func(string) bool
}

// NewValidator 创建带内置格式校验的 DefaultValidator。
func NewValidator() *DefaultValidator {
	v := &DefaultValidator{
		formatValidators: make(map[StringFormat]func(string) bool),
	}
	v.registerBuiltinFormats()
	return v
}

var (
	emailPattern    = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	hostnamePattern = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`)
	timePattern     = regexp.MustCompile(`^\d{2}:\d{2}:\d{2}(\.\d+)?(Z|[+-]\d{2}:\d{2})?$`)
)

func (v *DefaultValidator) registerBuiltinFormats() {
	v.formatValidators[FormatEmail] = emailPattern.MatchString
	v.formatValidators[FormatURI] = func(s string) bool {
		u, err := url.Parse(s)
		return err == nil && u.Scheme != ""
	}
	v.formatValidators[FormatUUID] = func(s string) bool {
		_, err := uuid.Parse(s)
		return err == nil && len(s) == 36
	}
	v.formatValidators[FormatDateTime] = func(s string) bool {
		_, err := time.Parse(time.RFC3339Nano, s)
		return err == nil
	}
	v.formatValidators[FormatDate] = func(s string) bool {
		_, err := time.Parse(time.DateOnly, s)
		return err == nil
	}
	v.formatValidators[FormatTime] = timePattern.MatchString
	v.formatValidators[FormatIPv4] = func(s string) bool {
		ip := net.ParseIP(s)
		return ip != nil && ip.To4() != nil && !strings.Contains(s, ":")
	}
	v.formatValidators[FormatIPv6] = func(s string) bool {
		ip := net.ParseIP(s)
		return ip != nil && strings.Contains(s, ":")
	}
	v.formatValidators[FormatHostname] = func(s string) bool {
		return len(s) <= 253 && hostnamePattern.MatchString(s)
	}
}

// RegisterFormat 注册自定义格式校验。
func (v *DefaultValidator) RegisterFormat(format StringFormat, validator func(string) bool) {
	v.formatValidators[format] = validator
}

// Validate 解析 JSON 文本后校验。数字以 json.Number 保留。
func (v *DefaultValidator) Validate(data []byte, schema *JSONSchema) error {
	if schema == nil {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var value any
	if err := dec.Decode(&value); err != nil {
		return &ValidationErrors{
			Errors: []ValidationError{{Message: fmt.Sprintf("invalid JSON: %v", err)}},
		}
	}
	return v.ValidateValue(value, schema)
}

// ValidateValue 校验已解析的值。
func (v *DefaultValidator) ValidateValue(value any, schema *JSONSchema) error {
	if schema == nil {
		return nil
	}
	var errs []ValidationError
	v.validateValue(value, schema, "", &errs)
	if len(errs) > 0 {
		return &ValidationErrors{Errors: errs}
	}
	return nil
}

func (v *DefaultValidator) validateValue(value any, schema *JSONSchema, path string, errs *[]ValidationError) {
	if schema == nil {
		return
	}

	if schema.Const != nil {
		if !v.equalValues(value, schema.Const) {
			*errs = append(*errs, ValidationError{Path: path, Message: fmt.Sprintf("value must be %v", schema.Const)})
		}
		return
	}

	if len(schema.Enum) > 0 {
		found := false
		for _, enumVal := range schema.Enum {
			if v.equalValues(value, enumVal) {
				found = true
				break
			}
		}
		if !found {
			*errs = append(*errs, ValidationError{Path: path, Message: fmt.Sprintf("value must be one of: %v", schema.Enum)})
		}
	}

	if schema.Type != "" {
		v.validateType(value, schema, path, errs)
	}

	for _, sub := range schema.AllOf {
		v.validateValue(value, sub, path, errs)
	}
	if len(schema.AnyOf) > 0 && v.countMatches(value, schema.AnyOf, path) == 0 {
		*errs = append(*errs, ValidationError{Path: path, Message: v.describeBranches("value does not match any allowed schema", value, schema.AnyOf, path)})
	}
	if len(schema.OneOf) > 0 {
		if n := v.countMatches(value, schema.OneOf, path); n != 1 {
			*errs = append(*errs, ValidationError{Path: path, Message: fmt.Sprintf("value must match exactly one schema, matched %d", n)})
		}
	}
}

func (v *DefaultValidator) countMatches(value any, branches []*JSONSchema, path string) int {
	n := 0
	for _, b := range branches {
		var branchErrs []ValidationError
		v.validateValue(value, b, path, &branchErrs)
		if len(branchErrs) == 0 {
			n++
		}
	}
	return n
}

// describeBranches 只有一个非 null 分支时直接给出该分支的错误，信息更具体。
func (v *DefaultValidator) describeBranches(fallback string, value any, branches []*JSONSchema, path string) string {
	var candidate *JSONSchema
	for _, b := range branches {
		if b != nil && b.Type == TypeNull {
			continue
		}
		if candidate != nil {
			return fallback
		}
		candidate = b
	}
	if candidate == nil {
		return fallback
	}
	var branchErrs []ValidationError
	v.validateValue(value, candidate, path, &branchErrs)
	if len(branchErrs) == 0 {
		return fallback
	}
	return branchErrs[0].Message
}

func (v *DefaultValidator) validateType(value any, schema *JSONSchema, path string, errs *[]ValidationError) {
	switch schema.Type {
	case TypeString:
		v.validateString(value, schema, path, errs)
	case TypeNumber:
		v.validateNumber(value, schema, path, errs)
	case TypeInteger:
		v.validateInteger(value, schema, path, errs)
	case TypeBoolean:
		if _, ok := value.(bool); !ok {
			*errs = append(*errs, ValidationError{Path: path, Message: fmt.Sprintf("expected boolean, got %s", jsonKind(value))})
		}
	case TypeNull:
		if value != nil {
			*errs = append(*errs, ValidationError{Path: path, Message: fmt.Sprintf("expected null, got %s", jsonKind(value))})
		}
	case TypeObject:
		v.validateObject(value, schema, path, errs)
	case TypeArray:
		v.validateArray(value, schema, path, errs)
	}
}

func (v *DefaultValidator) validateString(value any, schema *JSONSchema, path string, errs *[]ValidationError) {
	str, ok := value.(string)
	if !ok {
		*errs = append(*errs, ValidationError{Path: path, Message: fmt.Sprintf("expected string, got %s", jsonKind(value))})
		return
	}

	length := len([]rune(str))
	if schema.MinLength != nil && length < *schema.MinLength {
		*errs = append(*errs, ValidationError{Path: path, Message: fmt.Sprintf("string length %d is less than minimum %d", length, *schema.MinLength)})
	}
	if schema.MaxLength != nil && length > *schema.MaxLength {
		*errs = append(*errs, ValidationError{Path: path, Message: fmt.Sprintf("string length %d exceeds maximum %d", length, *schema.MaxLength)})
	}

	if schema.Pattern != "" {
		re, err := regexp.Compile(schema.Pattern)
		if err != nil {
			*errs = append(*errs, ValidationError{Path: path, Message: fmt.Sprintf("invalid pattern %q: %v", schema.Pattern, err)})
		} else if !re.MatchString(str) {
			*errs = append(*errs, ValidationError{Path: path, Message: fmt.Sprintf("string does not match pattern %q", schema.Pattern)})
		}
	}

	if schema.Format != "" {
		if check, ok := v.formatValidators[schema.Format]; ok && !check(str) {
			*errs = append(*errs, ValidationError{Path: path, Message: fmt.Sprintf("string does not match format %q", schema.Format)})
		}
	}
}

func (v *DefaultValidator) validateNumber(value any, schema *JSONSchema, path string, errs *[]ValidationError) {
	num, ok := toFloat64(value)
	if !ok {
		*errs = append(*errs, ValidationError{Path: path, Message: fmt.Sprintf("expected number, got %s", jsonKind(value))})
		return
	}
	v.validateNumericConstraints(num, schema, path, errs)
}

func (v *DefaultValidator) validateInteger(value any, schema *JSONSchema, path string, errs *[]ValidationError) {
	num, ok := toFloat64(value)
	if !ok {
		*errs = append(*errs, ValidationError{Path: path, Message: fmt.Sprintf("expected integer, got %s", jsonKind(value))})
		return
	}
	if num != math.Trunc(num) || math.IsInf(num, 0) {
		*errs = append(*errs, ValidationError{Path: path, Message: fmt.Sprintf("expected integer, got %v", num)})
		return
	}
	v.validateNumericConstraints(num, schema, path, errs)
}

func (v *DefaultValidator) validateNumericConstraints(num float64, schema *JSONSchema, path string, errs *[]ValidationError) {
	if schema.Minimum != nil && num < *schema.Minimum {
		*errs = append(*errs, ValidationError{Path: path, Message: fmt.Sprintf("value %v is less than minimum %v", num, *schema.Minimum)})
	}
	if schema.Maximum != nil && num > *schema.Maximum {
		*errs = append(*errs, ValidationError{Path: path, Message: fmt.Sprintf("value %v exceeds maximum %v", num, *schema.Maximum)})
	}
	if schema.ExclusiveMinimum != nil && num <= *schema.ExclusiveMinimum {
		*errs = append(*errs, ValidationError{Path: path, Message: fmt.Sprintf("value %v must be greater than %v", num, *schema.ExclusiveMinimum)})
	}
	if schema.ExclusiveMaximum != nil && num >= *schema.ExclusiveMaximum {
		*errs = append(*errs, ValidationError{Path: path, Message: fmt.Sprintf("value %v must be less than %v", num, *schema.ExclusiveMaximum)})
	}
	if schema.MultipleOf != nil && *schema.MultipleOf != 0 {
		q := num / *schema.MultipleOf
		if q != math.Trunc(q) {
			*errs = append(*errs, ValidationError{Path: path, Message: fmt.Sprintf("value %v is not a multiple of %v", num, *schema.MultipleOf)})
		}
	}
}

func (v *DefaultValidator) validateObject(value any, schema *JSONSchema, path string, errs *[]ValidationError) {
	obj, ok := value.(map[string]any)
	if !ok {
		*errs = append(*errs, ValidationError{Path: path, Message: fmt.Sprintf("expected object, got %s", jsonKind(value))})
		return
	}

	for _, req := range schema.Required {
		if _, exists := obj[req]; !exists {
			*errs = append(*errs, ValidationError{Path: joinPath(path, req), Message: "required field is missing"})
		}
	}

	if schema.MinProperties != nil && len(obj) < *schema.MinProperties {
		*errs = append(*errs, ValidationError{Path: path, Message: fmt.Sprintf("object has %d properties, minimum is %d", len(obj), *schema.MinProperties)})
	}
	if schema.MaxProperties != nil && len(obj) > *schema.MaxProperties {
		*errs = append(*errs, ValidationError{Path: path, Message: fmt.Sprintf("object has %d properties, maximum is %d", len(obj), *schema.MaxProperties)})
	}

	// 先按声明顺序校验已知属性，再按名称顺序处理其余属性，保证错误顺序稳定
	for _, name := range schema.orderedPropertyNames() {
		if propValue, ok := obj[name]; ok {
			v.validateValue(propValue, schema.Properties[name], joinPath(path, name), errs)
		}
	}

	extra := make([]string, 0, len(obj))
	for name := range obj {
		if _, known := schema.Properties[name]; !known {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	ap := schema.AdditionalProperties
	if ap == nil {
		return
	}
	for _, name := range extra {
		switch {
		case ap.Schema != nil:
			v.validateValue(obj[name], ap.Schema, joinPath(path, name), errs)
		case !ap.Allowed:
			*errs = append(*errs, ValidationError{Path: joinPath(path, name), Message: "additional property not allowed"})
		}
	}
}

func (v *DefaultValidator) validateArray(value any, schema *JSONSchema, path string, errs *[]ValidationError) {
	arr, ok := value.([]any)
	if !ok {
		*errs = append(*errs, ValidationError{Path: path, Message: fmt.Sprintf("expected array, got %s", jsonKind(value))})
		return
	}

	if schema.MinItems != nil && len(arr) < *schema.MinItems {
		*errs = append(*errs, ValidationError{Path: path, Message: fmt.Sprintf("array has %d items, minimum is %d", len(arr), *schema.MinItems)})
	}
	if schema.MaxItems != nil && len(arr) > *schema.MaxItems {
		*errs = append(*errs, ValidationError{Path: path, Message: fmt.Sprintf("array has %d items, maximum is %d", len(arr), *schema.MaxItems)})
	}

	if schema.UniqueItems != nil && *schema.UniqueItems {
		seen := make(map[string]bool, len(arr))
		for i, item := range arr {
			key := valueKey(item)
			if seen[key] {
				*errs = append(*errs, ValidationError{Path: indexPath(path, i), Message: "duplicate item in array with uniqueItems constraint"})
			}
			seen[key] = true
		}
	}

	if schema.Items != nil {
		for i, item := range arr {
			v.validateValue(item, schema.Items, indexPath(path, i), errs)
		}
	}
}

func (v *DefaultValidator) equalValues(a, b any) bool {
	aNum, aIsNum := toFloat64(a)
	bNum, bIsNum := toFloat64(b)
	if aIsNum && bIsNum {
		return aNum == bNum
	}
	if aIsNum != bIsNum {
		return false
	}
	return valueKey(a) == valueKey(b)
}

// toFloat64 接受 JSON 解码结果中的数字以及默认值里出现的 Go 数值类型。
func toFloat64(value any) (float64, bool) {
	switch n := value.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// jsonKind 给出值在 JSON 中的类型名。
func jsonKind(value any) string {
	switch value.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	}
	if _, ok := toFloat64(value); ok {
		return "number"
	}
	return fmt.Sprintf("%T", value)
}

func joinPath(base, segment string) string {
	if base == "" {
		return segment
	}
	return base + "." + segment
}

func indexPath(base string, i int) string {
	return fmt.Sprintf("%s[%d]", base, i)
}

func valueKey(value any) string {
	data, _ := json.Marshal(value)
	return string(data)
}
