// Package openaicompat implements llm.Provider for every endpoint speaking
// the OpenAI Chat Completions format: OpenAI itself, Ollama, vLLM, DeepSeek,
// OpenRouter and similar gateways.
//
// Usage:
//
//	p := openaicompat.New(openaicompat.Config{
//	    ProviderName:  "ollama",
//	    BaseURL:       "http://localhost:11434",
//	    DefaultModel:  "llama3.1",
//	}, logger)
package openaicompat
