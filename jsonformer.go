// Package jsonformer provides a top-level convenience entry point for
// generating schema-conforming JSON with minimal boilerplate.
//
// Usage:
//
//	import "github.com/BaSui01/jsonformer"
//
//	gen, err := jsonformer.New(jsonformer.WithTypedModel(User{}))
//	out, err := gen.Generate(ctx, "Generate data for a young software developer")
//	user := out.(*User)
//
// New talks to Anthropic with the key from ANTHROPIC_API_KEY. A missing key
// is not detected here; the first request fails with an unauthorized
// transport error. Use [NewWithProvider] (or the structured package directly)
// for any other provider.
package jsonformer

import (
	"github.com/BaSui01/jsonformer/llm"
	"github.com/BaSui01/jsonformer/llm/providers"
	claude "github.com/BaSui01/jsonformer/llm/providers/anthropic"
	"github.com/BaSui01/jsonformer/structured"
)

// DefaultModel is the Anthropic model used when no model id is given.
const DefaultModel = claude.DefaultModel

// Option configures the generator created by [New].
type Option = structured.Option

// Generator is the schema-constrained JSON generator returned by [New].
type Generator = structured.Generator

// New creates a generator backed by Anthropic. Exactly one of [WithTypedModel],
// [WithModelDescriptor] or [WithJSONSchema] must be given.
func New(opts ...Option) (*Generator, error) {
	return structured.New(anthropic(), append([]Option{WithModelID(DefaultModel)}, opts...)...)
}

// NewWithProvider creates a generator on a pre-built provider.
func NewWithProvider(provider llm.Provider, opts ...Option) (*Generator, error) {
	return structured.New(provider, opts...)
}

// NewTyped creates a generator for struct T backed by Anthropic.
func NewTyped[T any](opts ...Option) (*structured.Typed[T], error) {
	return structured.NewTyped[T](anthropic(), append([]Option{WithModelID(DefaultModel)}, opts...)...)
}

func anthropic() llm.Provider {
	return claude.NewClaudeProvider(providers.ClaudeConfig{}, nil)
}

// Re-export option shortcuts so callers never need to import structured/.

// WithTypedModel uses a Go struct (value, pointer or reflect.Type) as the model.
var WithTypedModel = structured.WithTypedModel

// WithModelDescriptor uses an explicit field declaration, see [ParseFields].
var WithModelDescriptor = structured.WithModelDescriptor

// WithJSONSchema uses a raw JSON Schema document; results are not validated.
var WithJSONSchema = structured.WithJSONSchema

// WithModelID overrides the model id.
var WithModelID = structured.WithModelID

// WithMaxTokens overrides the 4096 output token limit.
var WithMaxTokens = structured.WithMaxTokens

// WithDebug logs prompts and raw responses at debug level.
var WithDebug = structured.WithDebug

// WithLogger sets a custom zap logger.
var WithLogger = structured.WithLogger

// ParseFields builds a model descriptor from "name:string, age:int, ..." text.
var ParseFields = structured.ParseFields
