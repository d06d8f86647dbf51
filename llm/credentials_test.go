package llm

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCredentialOverride_Context(t *testing.T) {
	ctx := context.Background()

	assert.Equal(t, "env-key", ResolveAPIKey(ctx, "env-key"))

	same := WithCredentialOverride(ctx, CredentialOverride{})
	_, ok := CredentialOverrideFromContext(same)
	assert.False(t, ok, "empty override must not be stored")

	ctx = WithCredentialOverride(ctx, CredentialOverride{APIKey: "call-key"})
	c, ok := CredentialOverrideFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "call-key", c.APIKey)
	assert.Equal(t, "call-key", ResolveAPIKey(ctx, "env-key"))
}

func TestCredentialOverride_StringMasksKey(t *testing.T) {
	c := CredentialOverride{APIKey: "sk-secret"}
	assert.NotContains(t, c.String(), "sk-secret")
	assert.NotContains(t, fmt.Sprintf("%v", c), "sk-secret")
	assert.Equal(t, "CredentialOverride{}", CredentialOverride{}.String())
}

func TestChatRequest_SystemPrompt(t *testing.T) {
	req := &ChatRequest{Messages: []Message{
		{Role: RoleSystem, Content: "a"},
		{Role: RoleUser, Content: "u"},
		{Role: RoleSystem, Content: "b"},
	}}
	assert.Equal(t, "a\n\nb", req.SystemPrompt())
	assert.Equal(t, "", (&ChatRequest{}).SystemPrompt())
}

func TestChatResponse_FirstText(t *testing.T) {
	var nilResp *ChatResponse
	_, ok := nilResp.FirstText()
	assert.False(t, ok)

	_, ok = (&ChatResponse{}).FirstText()
	assert.False(t, ok)

	text, ok := (&ChatResponse{Choices: []ChatChoice{{Message: Message{Content: "{}"}}}}).FirstText()
	assert.True(t, ok)
	assert.Equal(t, "{}", text)
}
