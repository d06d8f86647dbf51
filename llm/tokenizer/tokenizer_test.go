package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestForModel(t *testing.T) {
	tests := []struct {
		model string
		want  string
	}{
		{"claude-3-7-sonnet-latest", "estimator"},
		{"gemini-2.5-flash", "estimator"},
		{"gpt-4o-mini", "tiktoken[o200k_base]"},
		{"gpt-4-0613", "tiktoken[cl100k_base]"},
		{"gpt-4-turbo-preview", "tiktoken[cl100k_base]"},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			assert.Equal(t, tt.want, ForModel(tt.model).Name())
		})
	}
}

func TestEstimator_Counts(t *testing.T) {
	e := NewEstimatorTokenizer("claude")

	n, err := e.CountTokens("")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = e.CountTokens("ab")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = e.CountTokens("abcdefgh")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = e.CountTokens("你好世")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	total, err := e.CountMessages([]Message{{Role: "system", Content: "abcdefgh"}, {Role: "user", Content: ""}})
	require.NoError(t, err)
	assert.Equal(t, 2+4+0+4+3, total)
}

func TestEstimator_Monotonic(t *testing.T) {
	e := NewEstimatorTokenizer("claude")
	rapid.Check(t, func(rt *rapid.T) {
		a := rapid.String().Draw(rt, "a")
		b := rapid.String().Draw(rt, "b")
		na, _ := e.CountTokens(a)
		nab, _ := e.CountTokens(a + b)
		if nab+1 < na {
			rt.Fatalf("count shrank: %d -> %d", na, nab)
		}
	})
}
