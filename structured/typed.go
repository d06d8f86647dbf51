package structured

import (
	"context"
	"reflect"

	"github.com/BaSui01/jsonformer/llm"
)

// Typed 是以结构体 T 为模型的 Generator 泛型包装。
type Typed[T any] struct {
	gen *Generator
}

// NewTyped 以 T 作为类型化模型创建生成器。T 必须是结构体类型（不能是指针），
// opts 中不能再包含其他 schema 选项。
func NewTyped[T any](provider llm.Provider, opts ...Option) (*Typed[T], error) {
	t := reflect.TypeOf((*T)(nil)).Elem()
	if t.Kind() != reflect.Struct {
		return nil, configurationError("typed model type parameter must be a struct, got %s", t)
	}
	all := append([]Option{WithTypedModel(t)}, opts...)
	gen, err := New(provider, all...)
	if err != nil {
		return nil, err
	}
	return &Typed[T]{gen: gen}, nil
}

// Generate 返回 T 的新实例。
func (t *Typed[T]) Generate(ctx context.Context, prompt string) (*T, error) {
	v, err := t.gen.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return v.(*T), nil
}

// Generator 返回底层的 Generator。
func (t *Typed[T]) Generator() *Generator { return t.gen }
