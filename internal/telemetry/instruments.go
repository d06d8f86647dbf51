package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/BaSui01/jsonformer/structured"
)

// Instruments 用 OTel 指标实现 structured.MetricsRecorder
type Instruments struct {
	generations metric.Int64Counter
	duration    metric.Float64Histogram
	tokens      metric.Int64Counter
}

var _ structured.MetricsRecorder = (*Instruments)(nil)

// NewInstruments 在 meter 上创建生成指标
func NewInstruments(meter metric.Meter) (*Instruments, error) {
	generations, err := meter.Int64Counter("jsonformer.generations",
		metric.WithDescription("JSON generations by outcome"),
		metric.WithUnit("{generation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create generations counter: %w", err)
	}
	duration, err := meter.Float64Histogram("jsonformer.generation.duration",
		metric.WithDescription("JSON generation duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create duration histogram: %w", err)
	}
	tokens, err := meter.Int64Counter("jsonformer.llm.tokens",
		metric.WithDescription("LLM tokens used"),
		metric.WithUnit("{token}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create tokens counter: %w", err)
	}
	return &Instruments{generations: generations, duration: duration, tokens: tokens}, nil
}

func (i *Instruments) RecordGeneration(provider, model, mode, outcome string, duration time.Duration) {
	ctx := context.Background()
	attrs := metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("model", model),
		attribute.String("mode", mode),
		attribute.String("outcome", outcome),
	)
	i.generations.Add(ctx, 1, attrs)
	i.duration.Record(ctx, duration.Seconds(), attrs)
}

func (i *Instruments) RecordTokens(provider, model string, promptTokens, completionTokens int) {
	ctx := context.Background()
	for _, u := range []struct {
		kind string
		n    int
	}{{"prompt", promptTokens}, {"completion", completionTokens}} {
		if u.n <= 0 {
			continue
		}
		i.tokens.Add(ctx, int64(u.n), metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("model", model),
			attribute.String("type", u.kind),
		))
	}
}
