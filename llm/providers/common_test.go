package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/BaSui01/jsonformer/llm"
	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestMapHTTPError(t *testing.T) {
	tests := []struct {
		status    int
		msg       string
		code      llm.ErrorCode
		retryable bool
	}{
		{http.StatusUnauthorized, "bad key", llm.ErrUnauthorized, false},
		{http.StatusForbidden, "denied", llm.ErrForbidden, false},
		{http.StatusTooManyRequests, "slow down", llm.ErrRateLimited, true},
		{http.StatusBadRequest, "credit balance too low", llm.ErrQuotaExceeded, false},
		{http.StatusBadRequest, "max_tokens: invalid", llm.ErrInvalidRequest, false},
		{http.StatusGatewayTimeout, "timeout", llm.ErrUpstreamTimeout, true},
		{529, "overloaded", llm.ErrModelOverloaded, true},
		{http.StatusInternalServerError, "boom", llm.ErrUpstreamError, true},
		{http.StatusTeapot, "teapot", llm.ErrUpstreamError, false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d_%s", tt.status, tt.msg), func(t *testing.T) {
			err := MapHTTPError(tt.status, tt.msg, "claude")
			assert.Equal(t, tt.code, err.Code)
			assert.Equal(t, tt.retryable, err.Retryable)
			assert.Equal(t, tt.status, err.HTTPStatus)
			assert.Equal(t, tt.msg, err.Message)
			assert.Equal(t, "claude", err.Provider)
		})
	}
}

func TestMapHTTPError_ServerErrorsRetryable(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		status := rapid.IntRange(500, 599).Draw(rt, "status")
		err := MapHTTPError(status, "x", "p")
		if !err.Retryable {
			rt.Fatalf("status %d should be retryable", status)
		}
	})
}

func TestNetworkError(t *testing.T) {
	err := NetworkError(context.DeadlineExceeded, "claude")
	assert.Equal(t, llm.ErrUpstreamTimeout, err.Code)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	err = NetworkError(context.Canceled, "claude")
	assert.Equal(t, llm.ErrUpstreamError, err.Code)
	assert.False(t, err.Retryable)

	err = NetworkError(errors.New("connection refused"), "claude")
	assert.Equal(t, llm.ErrUpstreamError, err.Code)
	assert.True(t, err.Retryable)
}

func TestReadErrorMessage(t *testing.T) {
	msg := ReadErrorMessage(strings.NewReader(`{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`))
	assert.Equal(t, "invalid x-api-key (type: authentication_error)", msg)

	msg = ReadErrorMessage(strings.NewReader("  plain failure \n"))
	assert.Equal(t, "plain failure", msg)
}

func TestChooseModelAndMaxTokens(t *testing.T) {
	assert.Equal(t, "req", ChooseModel(&llm.ChatRequest{Model: "req"}, "cfg", "fb"))
	assert.Equal(t, "cfg", ChooseModel(&llm.ChatRequest{}, "cfg", "fb"))
	assert.Equal(t, "fb", ChooseModel(nil, "", "fb"))

	assert.Equal(t, 100, ChooseMaxTokens(&llm.ChatRequest{MaxTokens: 100}, DefaultMaxTokens))
	assert.Equal(t, DefaultMaxTokens, ChooseMaxTokens(&llm.ChatRequest{}, DefaultMaxTokens))
}
