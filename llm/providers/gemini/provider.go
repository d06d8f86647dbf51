package gemini

import (
	"context"
	"errors"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/BaSui01/jsonformer/internal/tlsutil"
	"github.com/BaSui01/jsonformer/llm"
	"github.com/BaSui01/jsonformer/llm/providers"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

const (
	// DefaultModel 未配置模型时使用。
	DefaultModel = "gemini-2.5-flash"

	backendVertex = "vertex"
)

// GeminiProvider 基于 google.golang.org/genai 实现 Gemini 的 LLM Provider。
// 客户端在首次调用时创建，凭据缺失的错误也在首次调用时返回。
type GeminiProvider struct {
	cfg        providers.GeminiConfig
	httpClient *http.Client
	logger     *zap.Logger

	once      sync.Once
	client    *genai.Client
	clientErr error
}

// NewGeminiProvider 创建 Gemini Provider。APIKey 为空时依次读取 GEMINI_API_KEY、GOOGLE_API_KEY。
func NewGeminiProvider(cfg providers.GeminiConfig, logger *zap.Logger) *GeminiProvider {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	if cfg.APIKey == "" {
		cfg.APIKey = firstEnv("GEMINI_API_KEY", "GOOGLE_API_KEY")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GeminiProvider{
		cfg:        cfg,
		httpClient: tlsutil.NewProviderClient(timeout),
		logger:     logger.With(zap.String("provider", "gemini")),
	}
}

// WithHTTPClient 替换底层 HTTP Client（录制回放测试使用）。必须在首次调用前设置。
func (p *GeminiProvider) WithHTTPClient(c *http.Client) *GeminiProvider {
	if c != nil {
		p.httpClient = c
	}
	return p
}

func (p *GeminiProvider) Name() string { return "gemini" }

func (p *GeminiProvider) clientConfig(apiKey string) *genai.ClientConfig {
	cc := &genai.ClientConfig{
		HTTPClient:  p.httpClient,
		HTTPOptions: genai.HTTPOptions{BaseURL: p.cfg.BaseURL},
	}
	if p.cfg.Backend == backendVertex {
		cc.Backend = genai.BackendVertexAI
		cc.Project = p.cfg.Project
		cc.Location = p.cfg.Location
		return cc
	}
	cc.Backend = genai.BackendGeminiAPI
	cc.APIKey = apiKey
	return cc
}

// genaiClient 返回默认客户端；ctx 中带覆盖凭据时为本次调用单独创建。
func (p *GeminiProvider) genaiClient(ctx context.Context) (*genai.Client, error) {
	if c, ok := llm.CredentialOverrideFromContext(ctx); ok && p.cfg.Backend != backendVertex {
		client, err := genai.NewClient(ctx, p.clientConfig(c.APIKey))
		if err != nil {
			return nil, p.credentialError(err)
		}
		return client, nil
	}
	p.once.Do(func() {
		client, err := genai.NewClient(context.WithoutCancel(ctx), p.clientConfig(p.cfg.APIKey))
		if err != nil {
			p.clientErr = p.credentialError(err)
			return
		}
		p.client = client
	})
	return p.client, p.clientErr
}

func (p *GeminiProvider) credentialError(err error) *llm.Error {
	return &llm.Error{
		Code:       llm.ErrUnauthorized,
		Message:    err.Error(),
		HTTPStatus: http.StatusUnauthorized,
		Provider:   p.Name(),
		Cause:      err,
	}
}

func (p *GeminiProvider) model(req *llm.ChatRequest) string {
	return providers.ChooseModel(req, p.cfg.Model, DefaultModel)
}

func (p *GeminiProvider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	client, err := p.genaiClient(ctx)
	if err != nil {
		return nil, err
	}

	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case llm.RoleSystem:
			continue
		case llm.RoleAssistant:
			contents = append(contents, &genai.Content{Role: "model", Parts: []*genai.Part{{Text: m.Content}}})
		default:
			contents = append(contents, &genai.Content{Role: "user", Parts: []*genai.Part{{Text: m.Content}}})
		}
	}

	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(req.Temperature),
		MaxOutputTokens: int32(providers.ChooseMaxTokens(req, providers.DefaultMaxTokens)),
	}
	if system := req.SystemPrompt(); system != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: system}}}
	}

	model := p.model(req)
	resp, err := client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return nil, p.mapError(err)
	}
	return toChatResponse(resp, model, p.Name()), nil
}

// toChatResponse 只取第一个候选的第一个 part 作为回复文本。
func toChatResponse(resp *genai.GenerateContentResponse, model, provider string) *llm.ChatResponse {
	out := &llm.ChatResponse{
		Provider:  provider,
		Model:     model,
		CreatedAt: time.Now(),
	}
	if resp.ModelVersion != "" {
		out.Model = resp.ModelVersion
	}
	if len(resp.Candidates) > 0 {
		cand := resp.Candidates[0]
		if cand.Content != nil && len(cand.Content.Parts) > 0 {
			out.Choices = []llm.ChatChoice{{
				Index:        0,
				FinishReason: string(cand.FinishReason),
				Message:      llm.Message{Role: llm.RoleAssistant, Content: cand.Content.Parts[0].Text},
			}}
		}
	}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = llm.ChatUsage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	return out
}

func (p *GeminiProvider) mapError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return p.fromAPIError(apiErr, err)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return p.fromAPIError(*apiErrPtr, err)
	}
	return providers.NetworkError(err, p.Name())
}

func (p *GeminiProvider) fromAPIError(apiErr genai.APIError, cause error) *llm.Error {
	e := providers.MapHTTPError(apiErr.Code, apiErr.Message, p.Name())
	e.Cause = cause
	return e
}

// HealthCheck 通过查询模型元数据探活。
func (p *GeminiProvider) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	start := time.Now()
	client, err := p.genaiClient(ctx)
	if err != nil {
		return &llm.HealthStatus{Healthy: false}, err
	}
	_, err = client.Models.Get(ctx, p.model(nil), nil)
	latency := time.Since(start)
	if err != nil {
		return &llm.HealthStatus{Healthy: false, Latency: latency}, p.mapError(err)
	}
	return &llm.HealthStatus{Healthy: true, Latency: latency}, nil
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}
