// Package factory provides a centralized factory for creating LLM Provider
// instances by name. It imports all provider sub-packages and maps string
// names to their constructors.
package factory

import (
	"fmt"
	"sort"
	"time"

	"github.com/BaSui01/jsonformer/llm"
	"github.com/BaSui01/jsonformer/llm/providers"
	claude "github.com/BaSui01/jsonformer/llm/providers/anthropic"
	"github.com/BaSui01/jsonformer/llm/providers/gemini"
	"github.com/BaSui01/jsonformer/llm/providers/openaicompat"
	"go.uber.org/zap"
)

// ProviderConfig is the generic configuration accepted by the factory function.
// It uses a flat structure with an Extra map for provider-specific fields.
type ProviderConfig struct {
	APIKey  string         `json:"api_key" yaml:"api_key"`
	BaseURL string         `json:"base_url" yaml:"base_url"`
	Model   string         `json:"model,omitempty" yaml:"model,omitempty"`
	Timeout time.Duration  `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	Extra   map[string]any `json:"extra,omitempty" yaml:"extra,omitempty"`
}

// 内置的 OpenAI 兼容服务商
var compatPresets = map[string]openaicompat.Config{
	"openai": {
		BaseURL:       "https://api.openai.com",
		APIKeyEnv:     "OPENAI_API_KEY",
		FallbackModel: "gpt-4o-mini",
	},
	"deepseek": {
		BaseURL:       "https://api.deepseek.com",
		APIKeyEnv:     "DEEPSEEK_API_KEY",
		FallbackModel: "deepseek-chat",
	},
	"openrouter": {
		BaseURL:       "https://openrouter.ai/api",
		APIKeyEnv:     "OPENROUTER_API_KEY",
		FallbackModel: "anthropic/claude-3.7-sonnet",
	},
	"ollama": {
		BaseURL:       "http://localhost:11434",
		FallbackModel: "llama3.1",
	},
}

// NewProviderFromConfig creates a Provider instance based on the provider name
// and a generic ProviderConfig.
//
// Supported names: anthropic, claude, gemini, gemini-vertex, openai, deepseek,
// openrouter, ollama. Any other name needs base_url and is served as a generic
// OpenAI-compatible endpoint.
func NewProviderFromConfig(name string, cfg ProviderConfig, logger *zap.Logger) (llm.Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	base := providers.BaseProviderConfig{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Timeout: cfg.Timeout,
	}

	switch name {
	case "anthropic", "claude":
		cc := providers.ClaudeConfig{BaseProviderConfig: base}
		if v, ok := cfg.Extra["anthropic_version"].(string); ok {
			cc.AnthropicVersion = v
		}
		return claude.NewClaudeProvider(cc, logger), nil

	case "gemini", "gemini-vertex":
		gc := providers.GeminiConfig{BaseProviderConfig: base}
		if v, ok := cfg.Extra["project"].(string); ok {
			gc.Project = v
		}
		if v, ok := cfg.Extra["location"].(string); ok {
			gc.Location = v
		}
		if v, ok := cfg.Extra["backend"].(string); ok {
			gc.Backend = v
		}
		// gemini-vertex 别名自动切换到 Vertex AI
		if name == "gemini-vertex" && gc.Backend == "" {
			gc.Backend = "vertex"
		}
		return gemini.NewGeminiProvider(gc, logger), nil
	}

	oc, builtin := compatPresets[name]
	if !builtin && cfg.BaseURL == "" {
		return nil, fmt.Errorf("unknown provider %q: built-in provider not found, and base_url is required for generic OpenAI-compatible provider", name)
	}
	oc.ProviderName = name
	oc.Timeout = cfg.Timeout
	if cfg.APIKey != "" {
		oc.APIKey = cfg.APIKey
	}
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	if cfg.Model != "" {
		oc.DefaultModel = cfg.Model
	}
	if v, ok := cfg.Extra["endpoint_path"].(string); ok {
		oc.EndpointPath = v
	}
	if v, ok := cfg.Extra["models_endpoint"].(string); ok {
		oc.ModelsEndpoint = v
	}
	if v, ok := cfg.Extra["api_key_env"].(string); ok {
		oc.APIKeyEnv = v
	}
	if !builtin {
		logger.Debug("creating generic OpenAI-compatible provider",
			zap.String("provider", name),
			zap.String("base_url", cfg.BaseURL))
	}
	return openaicompat.New(oc, logger), nil
}

// SupportedProviders returns the list of built-in provider names.
func SupportedProviders() []string {
	names := []string{"anthropic", "claude", "gemini", "gemini-vertex"}
	for name := range compatPresets {
		names = append(names, name)
	}
	sort.Strings(names[4:])
	return names
}
