package structured

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONSchema_MarshalKeepsPropertyOrder(t *testing.T) {
	s := NewObjectSchema().
		AddProperty("name", NewStringSchema()).
		AddProperty("age", NewIntegerSchema()).
		AddProperty("is_active", NewBooleanSchema()).
		AddRequired("name", "age")

	data, err := s.ToJSON()
	require.NoError(t, err)
	assert.Equal(t,
		`{"type":"object","properties":{"name":{"type":"string"},"age":{"type":"integer"},"is_active":{"type":"boolean"}},"required":["name","age"]}`,
		string(data))
}

func TestJSONSchema_MarshalUnorderedPropertiesSorted(t *testing.T) {
	s := &JSONSchema{
		Type: TypeObject,
		Properties: map[string]*JSONSchema{
			"b": NewStringSchema(),
			"a": NewStringSchema(),
		},
		PropertyOrder: []string{"b"},
	}
	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Equal(t, `{"type":"object","properties":{"b":{"type":"string"},"a":{"type":"string"}}}`, string(data))
}

func TestJSONSchema_MarshalWithoutType(t *testing.T) {
	s := &JSONSchema{Properties: map[string]*JSONSchema{"x": NewNumberSchema()}}
	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `{"properties":{"x":{"type":"number"}}}`, string(data))
}

func TestJSONSchema_ToJSONIndent(t *testing.T) {
	s := NewObjectSchema().AddProperty("name", NewStringSchema())
	data, err := s.ToJSONIndent()
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"type\": \"object\",\n  \"properties\": {\n    \"name\": {\n      \"type\": \"string\"\n    }\n  }\n}", string(data))
}

func TestJSONSchema_AddRequiredDedup(t *testing.T) {
	s := NewObjectSchema().AddRequired("a", "b").AddRequired("a")
	assert.Equal(t, []string{"a", "b"}, s.Required)
	assert.True(t, s.IsRequired("b"))
	assert.False(t, s.IsRequired("c"))
}

func TestJSONSchema_CloneKeepsOrder(t *testing.T) {
	inner := NewObjectSchema().
		AddProperty("z", NewStringSchema()).
		AddProperty("y", NewStringSchema())
	s := NewObjectSchema().
		AddProperty("second", NewIntegerSchema().WithMinimum(1)).
		AddProperty("first", inner).
		WithTitle("T")

	clone := s.Clone()
	require.NotNil(t, clone)

	orig, err := s.ToJSON()
	require.NoError(t, err)
	copied, err := clone.ToJSON()
	require.NoError(t, err)
	assert.Equal(t, string(orig), string(copied))

	clone.Properties["second"].Minimum = nil
	assert.NotNil(t, s.Properties["second"].Minimum)
}

func TestAdditionalProperties_JSON(t *testing.T) {
	s := NewObjectSchema().WithAdditionalProperties(false)
	data, err := s.ToJSON()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"additionalProperties":false`)

	parsed, err := FromJSON([]byte(`{"type":"object","additionalProperties":{"type":"integer"}}`))
	require.NoError(t, err)
	require.NotNil(t, parsed.AdditionalProperties)
	assert.True(t, parsed.AdditionalProperties.Allowed)
	assert.Equal(t, TypeInteger, parsed.AdditionalProperties.Schema.Type)

	_, err = FromJSON([]byte(`{"additionalProperties":"nope"}`))
	assert.Error(t, err)
}

func TestJSONSchema_TitleWithTypeLikeText(t *testing.T) {
	s := NewObjectSchema().
		WithDescription(`contains "type": inside`).
		AddProperty("a", NewStringSchema())
	data, err := s.ToJSON()
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "object", decoded["type"])
	assert.Contains(t, decoded, "properties")
	assert.True(t, strings.Index(string(data), `"properties"`) > strings.Index(string(data), `"type":"object"`))
}
