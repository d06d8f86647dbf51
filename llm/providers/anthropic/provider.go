package claude

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/BaSui01/jsonformer/internal/tlsutil"
	"github.com/BaSui01/jsonformer/llm"
	"github.com/BaSui01/jsonformer/llm/providers"
	"go.uber.org/zap"
)

const (
	// DefaultModel 未配置模型时使用。
	DefaultModel = "claude-3-7-sonnet-latest"
	// DefaultBaseURL Anthropic 官方地址。
	DefaultBaseURL = "https://api.anthropic.com"
	// APIKeyEnv 环境凭据变量名。
	APIKeyEnv = "ANTHROPIC_API_KEY"

	defaultVersion = "2023-06-01"
)

// ClaudeProvider 实现 Anthropic Messages API（/v1/messages）。
// 认证使用 x-api-key，system 消息单独放在顶层字段。
type ClaudeProvider struct {
	cfg    providers.ClaudeConfig
	client *http.Client
	logger *zap.Logger
}

// NewClaudeProvider 创建 Claude Provider。APIKey 为空时读取 ANTHROPIC_API_KEY；
// 仍为空时不报错，首次请求会得到上游 401。
func NewClaudeProvider(cfg providers.ClaudeConfig, logger *zap.Logger) *ClaudeProvider {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second // Claude 响应可能较慢
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv(APIKeyEnv)
	}
	if cfg.AnthropicVersion == "" {
		cfg.AnthropicVersion = defaultVersion
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClaudeProvider{
		cfg:    cfg,
		client: tlsutil.NewProviderClient(timeout),
		logger: logger.With(zap.String("provider", "claude")),
	}
}

// WithHTTPClient 替换底层 HTTP Client（测试或自定义传输）。
func (p *ClaudeProvider) WithHTTPClient(c *http.Client) *ClaudeProvider {
	if c != nil {
		p.client = c
	}
	return p
}

func (p *ClaudeProvider) Name() string { return "claude" }

func (p *ClaudeProvider) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	start := time.Now()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint("/v1/models"), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	p.buildHeaders(httpReq, llm.ResolveAPIKey(ctx, p.cfg.APIKey))

	resp, err := p.client.Do(httpReq)
	latency := time.Since(start)
	if err != nil {
		return &llm.HealthStatus{Healthy: false, Latency: latency}, providers.NetworkError(err, p.Name())
	}
	defer providers.SafeCloseBody(resp.Body)

	if resp.StatusCode != http.StatusOK {
		msg := providers.ReadErrorMessage(resp.Body)
		return &llm.HealthStatus{Healthy: false, Latency: latency}, providers.MapHTTPError(resp.StatusCode, msg, p.Name())
	}
	return &llm.HealthStatus{Healthy: true, Latency: latency}, nil
}

type claudeMessage struct {
	Role    string          `json:"role"` // user 或 assistant
	Content []claudeContent `json:"content"`
}

type claudeContent struct {
	Type string `json:"type"` // text, thinking, tool_use ...
	Text string `json:"text,omitempty"`
}

// temperature 不带 omitempty：0 必须显式发送，否则上游使用默认值 1。
type claudeRequest struct {
	Model       string          `json:"model"`
	Messages    []claudeMessage `json:"messages"`
	System      string          `json:"system,omitempty"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature float32         `json:"temperature"`
}

type claudeUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type claudeResponse struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Role       string          `json:"role"`
	Content    []claudeContent `json:"content"`
	Model      string          `json:"model"`
	StopReason string          `json:"stop_reason"`
	Usage      *claudeUsage    `json:"usage,omitempty"`
}

func (p *ClaudeProvider) buildHeaders(req *http.Request, apiKey string) {
	req.Header.Set("x-api-key", apiKey)
	req.Header.Set("anthropic-version", p.cfg.AnthropicVersion)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
}

func (p *ClaudeProvider) endpoint(path string) string {
	return strings.TrimRight(p.cfg.BaseURL, "/") + path
}

func convertToClaudeMessages(msgs []llm.Message) []claudeMessage {
	out := make([]claudeMessage, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == llm.RoleSystem {
			continue
		}
		out = append(out, claudeMessage{
			Role:    string(m.Role),
			Content: []claudeContent{{Type: "text", Text: m.Content}},
		})
	}
	return out
}

func (p *ClaudeProvider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	body := claudeRequest{
		Model:       providers.ChooseModel(req, p.cfg.Model, DefaultModel),
		Messages:    convertToClaudeMessages(req.Messages),
		System:      req.SystemPrompt(),
		MaxTokens:   providers.ChooseMaxTokens(req, providers.DefaultMaxTokens),
		Temperature: req.Temperature,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &llm.Error{Code: llm.ErrInvalidRequest, Message: err.Error(), HTTPStatus: http.StatusBadRequest, Provider: p.Name(), Cause: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint("/v1/messages"), bytes.NewReader(payload))
	if err != nil {
		return nil, &llm.Error{Code: llm.ErrInvalidRequest, Message: err.Error(), HTTPStatus: http.StatusBadRequest, Provider: p.Name(), Cause: err}
	}
	p.buildHeaders(httpReq, llm.ResolveAPIKey(ctx, p.cfg.APIKey))

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, providers.NetworkError(err, p.Name())
	}
	defer providers.SafeCloseBody(resp.Body)

	if resp.StatusCode >= 400 {
		msg := providers.ReadErrorMessage(resp.Body)
		return nil, providers.MapHTTPError(resp.StatusCode, msg, p.Name())
	}

	var cr claudeResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return nil, providers.DecodeError(err, p.Name())
	}
	return toChatResponse(cr, p.Name()), nil
}

// toChatResponse 只取第一个内容块作为回复文本。
func toChatResponse(cr claudeResponse, provider string) *llm.ChatResponse {
	resp := &llm.ChatResponse{
		ID:        cr.ID,
		Provider:  provider,
		Model:     cr.Model,
		CreatedAt: time.Now(),
	}
	if len(cr.Content) > 0 {
		resp.Choices = []llm.ChatChoice{{
			Index:        0,
			FinishReason: cr.StopReason,
			Message:      llm.Message{Role: llm.RoleAssistant, Content: cr.Content[0].Text},
		}}
	}
	if cr.Usage != nil {
		resp.Usage = llm.ChatUsage{
			PromptTokens:     cr.Usage.InputTokens,
			CompletionTokens: cr.Usage.OutputTokens,
			TotalTokens:      cr.Usage.InputTokens + cr.Usage.OutputTokens,
		}
	}
	return resp
}
