// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/BaSui01/jsonformer/structured"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 记录 JSON 生成指标，实现 structured.MetricsRecorder
type Collector struct {
	// 生成指标
	generationsTotal   *prometheus.CounterVec
	generationDuration *prometheus.HistogramVec

	// LLM 指标
	llmTokensUsed *prometheus.CounterVec

	// batch 指标
	batchItemsTotal *prometheus.CounterVec
	batchInFlight   prometheus.Gauge

	logger *zap.Logger
}

var _ structured.MetricsRecorder = (*Collector)(nil)

// NewCollector 在默认 Registry 上创建指标收集器
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	return NewCollectorWith(prometheus.DefaultRegisterer, namespace, logger)
}

// NewCollectorWith 在指定 Registerer 上创建指标收集器。
// 同一 Registerer 上重复注册相同 namespace 会 panic。
func NewCollectorWith(reg prometheus.Registerer, namespace string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	factory := promauto.With(reg)
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.generationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generations_total",
			Help:      "Total number of JSON generations by outcome",
		},
		[]string{"provider", "model", "mode", "outcome"},
	)

	c.generationDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "JSON generation duration in seconds, including the LLM round trip",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"provider", "mode"},
	)

	c.llmTokensUsed = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_tokens_used_total",
			Help:      "Total number of tokens used",
		},
		[]string{"provider", "model", "type"}, // type: prompt, completion
	)

	c.batchItemsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_items_total",
			Help:      "Total number of batch prompts processed",
		},
		[]string{"success"},
	)

	c.batchInFlight = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "batch_in_flight",
			Help:      "Number of batch prompts currently being generated",
		},
	)

	c.logger.Debug("metrics collector initialized", zap.String("namespace", namespace))
	return c
}

// =============================================================================
// 🎯 生成指标记录
// =============================================================================

// RecordGeneration 记录一次生成的结果与耗时
func (c *Collector) RecordGeneration(provider, model, mode, outcome string, duration time.Duration) {
	c.generationsTotal.WithLabelValues(provider, model, mode, outcome).Inc()
	c.generationDuration.WithLabelValues(provider, mode).Observe(duration.Seconds())
}

// RecordTokens 记录 Token 用量
func (c *Collector) RecordTokens(provider, model string, promptTokens, completionTokens int) {
	c.llmTokensUsed.WithLabelValues(provider, model, "prompt").Add(float64(nonNegative(promptTokens)))
	c.llmTokensUsed.WithLabelValues(provider, model, "completion").Add(float64(nonNegative(completionTokens)))
}

// =============================================================================
// 📦 batch 指标记录
// =============================================================================

// BatchStarted 标记一条 batch 提示开始处理，返回的函数在结束时调用
func (c *Collector) BatchStarted() func(success bool) {
	c.batchInFlight.Inc()
	return func(success bool) {
		c.batchInFlight.Dec()
		c.batchItemsTotal.WithLabelValues(strconv.FormatBool(success)).Inc()
	}
}

// Counter.Add 遇到负数会 panic
func nonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

// =============================================================================
// 🔀 组合
// =============================================================================

// Fanout 把每条记录转发给多个 MetricsRecorder，nil 项被忽略
type Fanout []structured.MetricsRecorder

// NewFanout 创建 Fanout；只有一个有效记录器时直接返回它，没有时返回 nil
func NewFanout(recorders ...structured.MetricsRecorder) structured.MetricsRecorder {
	var out Fanout
	for _, r := range recorders {
		if r != nil {
			out = append(out, r)
		}
	}
	switch len(out) {
	case 0:
		return nil
	case 1:
		return out[0]
	}
	return out
}

func (f Fanout) RecordGeneration(provider, model, mode, outcome string, duration time.Duration) {
	for _, r := range f {
		r.RecordGeneration(provider, model, mode, outcome, duration)
	}
}

func (f Fanout) RecordTokens(provider, model string, promptTokens, completionTokens int) {
	for _, r := range f {
		r.RecordTokens(provider, model, promptTokens, completionTokens)
	}
}
