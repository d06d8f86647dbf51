package structured

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDecode(t *testing.T, text string) any {
	t.Helper()
	v, err := decodeJSONNumbers(text)
	require.NoError(t, err)
	return v
}

func TestModelDescriptor_CoerceTyped(t *testing.T) {
	desc, err := Describe(testUser{})
	require.NoError(t, err)

	out, err := desc.Coerce(mustDecode(t, `{"name":"Ada","age":30.0,"is_active":true,"unknown":1}`), NewValidator())
	require.NoError(t, err)
	assert.Equal(t, &testUser{Name: "Ada", Age: 30, IsActive: true, Hobbies: []string{}}, out)
}

func TestModelDescriptor_CoerceKeepsLargeIntegers(t *testing.T) {
	type record struct {
		ID int64 `json:"id"`
	}
	desc, err := Describe(record{})
	require.NoError(t, err)

	out, err := desc.Coerce(mustDecode(t, `{"id":9007199254740993}`), NewValidator())
	require.NoError(t, err)
	assert.Equal(t, int64(9007199254740993), out.(*record).ID)
}

func TestModelDescriptor_CoerceMissingRequired(t *testing.T) {
	desc, err := Describe(testUser{})
	require.NoError(t, err)

	_, err = desc.Coerce(mustDecode(t, `{"name":"Ada","is_active":"yes"}`), NewValidator())
	details, ok := ValidationDetails(err)
	require.True(t, ok)
	paths := make([]string, len(details))
	for i, d := range details {
		paths[i] = d.Path
	}
	assert.Equal(t, []string{"age", "is_active"}, paths)
}

func TestModelDescriptor_CoerceNonObject(t *testing.T) {
	desc, err := Describe(testUser{})
	require.NoError(t, err)

	_, err = desc.Coerce([]any{}, NewValidator())
	_, ok := ValidationDetails(err)
	assert.True(t, ok)
}

func TestModelDescriptor_CoerceDecodeFailure(t *testing.T) {
	type small struct {
		Small int8 `json:"small"`
	}
	desc, err := Describe(small{})
	require.NoError(t, err)

	_, err = desc.Coerce(mustDecode(t, `{"small":300}`), NewValidator())
	details, ok := ValidationDetails(err)
	require.True(t, ok)
	require.Len(t, details, 1)
	assert.Equal(t, "small", details[0].Path)
}

func TestModelDescriptor_CoerceExplicitFields(t *testing.T) {
	desc := MustParseFields("name:string,age:integer,tags?:string[],hobbies:string[]=[]")

	out, err := desc.Coerce(mustDecode(t, `{"name":"Ada","age":30,"extra":"dropped"}`), NewValidator())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"name":    "Ada",
		"age":     float64(30),
		"hobbies": []any{},
	}, out)
}

func TestModelDescriptor_DefaultsNotShared(t *testing.T) {
	desc := MustParseFields("hobbies:string[]=[]")
	input := map[string]any{}

	first, err := desc.Coerce(input, NewValidator())
	require.NoError(t, err)
	assert.Empty(t, input)

	first.(map[string]any)["hobbies"] = []any{"mutated"}
	second, err := desc.Coerce(map[string]any{}, NewValidator())
	require.NoError(t, err)
	assert.Equal(t, []any{}, second.(map[string]any)["hobbies"])
	assert.Equal(t, []any{}, desc.Fields[0].Default)
}

type testAddress struct {
	City    string `json:"city"`
	Country string `json:"country" jsonschema:"default=US"`
}

type testContact struct {
	Name     string        `json:"name"`
	Address  testAddress   `json:"address"`
	Previous []testAddress `json:"previous" jsonschema:"default=[]"`
	Mailing  *testAddress  `json:"mailing"`
	Verified bool          `json:"verified" jsonschema:"default=false"`
}

func TestModelDescriptor_CoerceAppliesNestedDefaults(t *testing.T) {
	desc, err := Describe(testContact{})
	require.NoError(t, err)

	tests := []struct {
		name  string
		input string
		want  *testContact
	}{
		{
			name:  "nested struct",
			input: `{"name":"Ada","address":{"city":"London"}}`,
			want: &testContact{
				Name:     "Ada",
				Address:  testAddress{City: "London", Country: "US"},
				Previous: []testAddress{},
			},
		},
		{
			name:  "array of structs",
			input: `{"name":"Ada","address":{"city":"London","country":"UK"},"previous":[{"city":"Paris"},{"city":"Oslo","country":"NO"}]}`,
			want: &testContact{
				Name:     "Ada",
				Address:  testAddress{City: "London", Country: "UK"},
				Previous: []testAddress{{City: "Paris", Country: "US"}, {City: "Oslo", Country: "NO"}},
			},
		},
		{
			name:  "nullable nested struct",
			input: `{"name":"Ada","address":{"city":"London"},"mailing":{"city":"Leeds"},"verified":true}`,
			want: &testContact{
				Name:     "Ada",
				Address:  testAddress{City: "London", Country: "US"},
				Previous: []testAddress{},
				Mailing:  &testAddress{City: "Leeds", Country: "US"},
				Verified: true,
			},
		},
		{
			name:  "null nested struct",
			input: `{"name":"Ada","address":{"city":"London"},"mailing":null}`,
			want: &testContact{
				Name:     "Ada",
				Address:  testAddress{City: "London", Country: "US"},
				Previous: []testAddress{},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := mustDecode(t, tt.input)
			out, err := desc.Coerce(input, NewValidator())
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
			assert.Equal(t, mustDecode(t, tt.input), input)
		})
	}
}

func TestModelDescriptor_NestedRequiredStillEnforced(t *testing.T) {
	desc, err := Describe(testContact{})
	require.NoError(t, err)

	_, err = desc.Coerce(mustDecode(t, `{"name":"Ada","address":{"country":"UK"}}`), NewValidator())
	details, ok := ValidationDetails(err)
	require.True(t, ok)
	require.Len(t, details, 1)
	assert.Contains(t, details[0].Path, "city")
}

func TestModelDescriptor_Check(t *testing.T) {
	var nilDesc *ModelDescriptor
	assert.Error(t, nilDesc.Check())
	assert.Error(t, (&ModelDescriptor{Name: "Empty"}).Check())
	assert.Error(t, (&ModelDescriptor{Fields: []FieldDescriptor{{Name: "a"}, {Name: "a"}}}).Check())
	assert.Error(t, (&ModelDescriptor{Fields: []FieldDescriptor{{Name: ""}}}).Check())
	assert.Error(t, (&ModelDescriptor{Fields: []FieldDescriptor{{Name: "a", Required: true, HasDefault: true}}}).Check())
	assert.NoError(t, (&ModelDescriptor{Fields: []FieldDescriptor{{Name: "a", Type: TypeString}}}).Check())
}

func TestModelDescriptor_SchemaWithoutFieldSchemas(t *testing.T) {
	desc := &ModelDescriptor{
		Name: "Manual",
		Fields: []FieldDescriptor{
			{Name: "b", Type: TypeString, Required: true, Description: "second letter"},
			{Name: "a", Type: TypeInteger, HasDefault: true, Default: 1},
		},
	}
	data, err := desc.Schema().ToJSON()
	require.NoError(t, err)
	assert.Equal(t,
		`{"title":"Manual","type":"object","properties":{"b":{"description":"second letter","type":"string"},"a":{"type":"integer","default":1}},"required":["b"]}`,
		string(data))
}

func TestNormalizeIntegers(t *testing.T) {
	in := map[string]any{
		"a": mustDecode(t, `30.0`),
		"b": mustDecode(t, `1e2`),
		"c": mustDecode(t, `1.5`),
		"d": []any{mustDecode(t, `2.0`)},
		"e": "3.0",
	}
	out := normalizeIntegers(in).(map[string]any)
	assert.Equal(t, "30", string(out["a"].(json.Number)))
	assert.Equal(t, "100", string(out["b"].(json.Number)))
	assert.Equal(t, "1.5", string(out["c"].(json.Number)))
	assert.Equal(t, "2", string(out["d"].([]any)[0].(json.Number)))
	assert.Equal(t, "3.0", out["e"])
}
