package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_ChainingAndHelpers(t *testing.T) {
	t.Parallel()

	root := errors.New("root")
	err := NewError(ErrUpstreamError, "upstream failed").
		WithCause(root).
		WithHTTPStatus(502).
		WithRetryable(true).
		WithProvider("claude")

	assert.Equal(t, ErrUpstreamError, GetErrorCode(err))
	assert.True(t, IsRetryable(err))
	assert.ErrorIs(t, err, root)
	assert.Equal(t, "[UPSTREAM_ERROR] upstream failed: root", err.Error())
	assert.Equal(t, 502, err.HTTPStatus)
	assert.Equal(t, "claude", err.Provider)
}

func TestError_WrappedLookup(t *testing.T) {
	t.Parallel()

	inner := Errorf(ErrParse, "bad output %q", "x")
	wrapped := fmt.Errorf("generate: %w", inner)

	got, ok := AsError(wrapped)
	require.True(t, ok)
	assert.Same(t, inner, got)
	assert.True(t, IsErrorCode(wrapped, ErrParse))
	assert.False(t, IsErrorCode(wrapped, ErrValidation))
	assert.Equal(t, ErrParse, GetErrorCode(wrapped))
}

func TestError_NonStructured(t *testing.T) {
	t.Parallel()

	plain := errors.New("plain")
	_, ok := AsError(plain)
	assert.False(t, ok)
	assert.Equal(t, ErrorCode(""), GetErrorCode(plain))
	assert.False(t, IsRetryable(plain))
	assert.False(t, IsRetryable(nil))
}
