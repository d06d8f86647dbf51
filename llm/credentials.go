package llm

import "context"

type credentialOverrideKey struct{}

// CredentialOverride 在单次 Generate 调用内替换 Provider 的 API Key。
// 只能经由 context 传递。
type CredentialOverride struct {
	APIKey string
}

func (c CredentialOverride) String() string {
	if c.APIKey == "" {
		return "CredentialOverride{}"
	}
	return "CredentialOverride{APIKey:***}"
}

// WithCredentialOverride 在 ctx 中写入凭据覆盖信息，空 APIKey 不改变 ctx。
func WithCredentialOverride(ctx context.Context, c CredentialOverride) context.Context {
	if c.APIKey == "" {
		return ctx
	}
	return context.WithValue(ctx, credentialOverrideKey{}, c)
}

// CredentialOverrideFromContext 从 ctx 读取凭据覆盖信息。
func CredentialOverrideFromContext(ctx context.Context) (CredentialOverride, bool) {
	c, ok := ctx.Value(credentialOverrideKey{}).(CredentialOverride)
	return c, ok
}

// ResolveAPIKey 优先返回 ctx 中的覆盖值，否则返回 fallback。
func ResolveAPIKey(ctx context.Context, fallback string) string {
	if c, ok := CredentialOverrideFromContext(ctx); ok && c.APIKey != "" {
		return c.APIKey
	}
	return fallback
}
