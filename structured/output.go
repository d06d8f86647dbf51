package structured

import (
	"context"
	"encoding/json"
	"reflect"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/jsonformer/llm"
	"github.com/BaSui01/jsonformer/llm/tokenizer"
	"github.com/BaSui01/jsonformer/types"
)

const (
	// DefaultMaxTokens 是单次生成的默认输出 token 上限。
	DefaultMaxTokens = 4096

	tracerName = "github.com/BaSui01/jsonformer/structured"
	spanName   = "jsonformer.generate"
)

// Mode 表示生成器的输出模式。
type Mode string

const (
	ModeTyped   Mode = "typed"
	ModeUntyped Mode = "untyped"
)

// 生成结果，用于指标标签
const (
	OutcomeSuccess         = "success"
	OutcomeTransportError  = "transport_error"
	OutcomeParseError      = "parse_error"
	OutcomeValidationError = "validation_error"
)

// MetricsRecorder 接收每次生成的结果。实现需并发安全。
type MetricsRecorder interface {
	RecordGeneration(provider, model, mode, outcome string, duration time.Duration)
	RecordTokens(provider, model string, promptTokens, completionTokens int)
}

// =============================================================================
// 输出模式
// =============================================================================

// outputMode 在构造时确定，Generate 只按它分支一次。
type outputMode interface {
	kind() Mode
	decode(raw json.RawMessage) (any, error)
}

type typedMode struct {
	descriptor *ModelDescriptor
	validator  SchemaValidator
}

func (typedMode) kind() Mode { return ModeTyped }

func (m typedMode) decode(raw json.RawMessage) (any, error) {
	value, err := decodeJSONNumbers(string(raw))
	if err != nil {
		return nil, err
	}
	out, err := m.descriptor.Coerce(value, m.validator)
	if err != nil {
		return nil, validationError(err)
	}
	return out, nil
}

type untypedMode struct {
	raw json.RawMessage
}

func (untypedMode) kind() Mode { return ModeUntyped }

func (untypedMode) decode(raw json.RawMessage) (any, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// =============================================================================
// 选项
// =============================================================================

type options struct {
	typedModel  any
	hasTyped    bool
	descriptor  *ModelDescriptor
	rawSchema   any
	hasRaw      bool
	debug       bool
	model       string
	maxTokens   int
	logger      *zap.Logger
	metrics     MetricsRecorder
	tracer      trace.Tracer
	validator   SchemaValidator
	tokenizer   tokenizer.Tokenizer
	typedOption int
}

// Option 配置 Generator。
type Option func(*options)

// WithTypedModel 使用 Go 结构体作为类型化模型。v 可以是结构体值、
// 结构体指针或 reflect.Type。
func WithTypedModel(v any) Option {
	return func(o *options) {
		o.typedModel = v
		o.hasTyped = true
		o.typedOption++
	}
}

// WithModelDescriptor 使用显式声明的字段（见 ParseFields）作为类型化模型，
// 结果以 map[string]any 返回。
func WithModelDescriptor(d *ModelDescriptor) Option {
	return func(o *options) {
		o.descriptor = d
		o.typedOption++
	}
}

// WithJSONSchema 使用原始 JSON Schema 文档，结果不做校验。支持的类型见 RawSchema。
func WithJSONSchema(doc any) Option {
	return func(o *options) {
		o.rawSchema = doc
		o.hasRaw = true
	}
}

// WithDebug 只影响日志：打开后 debug 日志会带上提示词与原始响应。
func WithDebug(debug bool) Option {
	return func(o *options) { o.debug = debug }
}

// WithModelID 指定发给 Provider 的模型；为空时由 Provider 选择默认模型。
func WithModelID(model string) Option {
	return func(o *options) { o.model = model }
}

// WithMaxTokens 覆盖请求的 max_tokens，默认 DefaultMaxTokens。
func WithMaxTokens(n int) Option {
	return func(o *options) { o.maxTokens = n }
}

// WithLogger 设置日志器；为 nil 时不输出日志。
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithMetrics 设置每次生成的指标记录器。
func WithMetrics(m MetricsRecorder) Option {
	return func(o *options) { o.metrics = m }
}

// WithTracer 设置 tracer，默认取全局 TracerProvider。
func WithTracer(t trace.Tracer) Option {
	return func(o *options) { o.tracer = t }
}

// WithValidator 替换类型化模式使用的校验器。
func WithValidator(v SchemaValidator) Option {
	return func(o *options) { o.validator = v }
}

// WithTokenizer 替换用于估算提示词 token 的分词器。
func WithTokenizer(t tokenizer.Tokenizer) Option {
	return func(o *options) { o.tokenizer = t }
}

// =============================================================================
// Generator
// =============================================================================

// Generator 按 schema 约束向 LLM 请求 JSON。构造后不可变，可并发复用。
type Generator struct {
	provider     llm.Provider
	mode         outputMode
	descriptor   *ModelDescriptor
	schemaText   string
	systemPrompt string
	model        string
	maxTokens    int
	debug        bool

	logger    *zap.Logger
	metrics   MetricsRecorder
	tracer    trace.Tracer
	tokenizer tokenizer.Tokenizer
}

// New 创建 Generator。类型化模型与原始 schema 必须且只能提供一个。
func New(provider llm.Provider, opts ...Option) (*Generator, error) {
	o := options{maxTokens: DefaultMaxTokens}
	for _, opt := range opts {
		opt(&o)
	}

	if provider == nil || isNilInterface(provider) {
		return nil, configurationError("provider cannot be nil")
	}
	if o.typedOption > 0 && o.hasRaw {
		return nil, configurationError("only one of typed model or JSON schema must be provided")
	}
	if o.typedOption > 1 {
		return nil, configurationError("only one typed model must be provided")
	}
	if o.typedOption == 0 && !o.hasRaw {
		return nil, configurationError("one of typed model or JSON schema must be provided")
	}
	if o.maxTokens <= 0 {
		return nil, configurationError("max tokens must be positive, got %d", o.maxTokens)
	}

	g := &Generator{
		provider:  provider,
		model:     o.model,
		maxTokens: o.maxTokens,
		debug:     o.debug,
		metrics:   o.metrics,
		tracer:    o.tracer,
		tokenizer: o.tokenizer,
	}
	if g.tracer == nil {
		g.tracer = otel.Tracer(tracerName)
	}
	if g.tokenizer == nil {
		g.tokenizer = tokenizer.ForModel(o.model)
	}
	logger := o.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	g.logger = logger.With(zap.String("component", "structured_generator"))

	if o.typedOption > 0 {
		if err := g.initTyped(o); err != nil {
			return nil, err
		}
	} else if err := g.initUntyped(o.rawSchema); err != nil {
		return nil, err
	}
	g.systemPrompt = buildSystemPrompt(g.schemaText)

	g.logger.Debug("generator created",
		zap.String("mode", string(g.mode.kind())),
		zap.String("provider", provider.Name()),
		zap.Int("schema_bytes", len(g.schemaText)),
	)
	return g, nil
}

func (g *Generator) initTyped(o options) error {
	desc := o.descriptor
	if o.hasTyped {
		d, err := Describe(o.typedModel)
		if err != nil {
			return configurationError("invalid typed model: %v", err).WithCause(err)
		}
		desc = d
	} else if err := desc.Check(); err != nil {
		return configurationError("invalid model descriptor: %v", err).WithCause(err)
	}

	text, err := desc.Schema().ToJSONIndent()
	if err != nil {
		return configurationError("failed to render schema: %v", err).WithCause(err)
	}
	validator := o.validator
	if validator == nil {
		validator = NewValidator()
	}
	g.descriptor = desc
	g.schemaText = string(text)
	g.mode = typedMode{descriptor: desc, validator: validator}
	return nil
}

func (g *Generator) initUntyped(doc any) error {
	raw, err := RawSchema(doc)
	if err != nil {
		return configurationError("invalid JSON schema: %v", err).WithCause(err)
	}
	text, err := prettySchema(raw)
	if err != nil {
		return configurationError("failed to render schema: %v", err).WithCause(err)
	}
	g.schemaText = text
	g.mode = untypedMode{raw: raw}
	return nil
}

// Mode 返回输出模式。
func (g *Generator) Mode() Mode { return g.mode.kind() }

// Schema 返回嵌入提示词的缩进 schema 文本。
func (g *Generator) Schema() json.RawMessage { return json.RawMessage(g.schemaText) }

// Descriptor 返回类型化模型的描述符，未类型化模式下为 nil。
func (g *Generator) Descriptor() *ModelDescriptor { return g.descriptor }

// SystemPrompt 返回每次请求使用的系统指令。
func (g *Generator) SystemPrompt() string { return g.systemPrompt }

// Generate 发起一次请求并返回解析后的 JSON。
//
// 未类型化模式返回 map[string]any 等通用值；类型化模式返回结构体指针
// （反射模型）或只含声明字段的 map（显式声明模型）。
// Provider 的错误原样返回；输出不是合法 JSON 时返回 ParseError；
// 类型化模式下校验失败返回 ValidationError。不重试。
func (g *Generator) Generate(ctx context.Context, prompt string) (any, error) {
	traceID, ok := types.TraceID(ctx)
	if !ok {
		traceID = uuid.NewString()
		ctx = types.WithTraceID(ctx, traceID)
	}

	ctx, span := g.tracer.Start(ctx, spanName, trace.WithAttributes(
		attribute.String("jsonformer.mode", string(g.mode.kind())),
		attribute.String("jsonformer.provider", g.provider.Name()),
		attribute.String("jsonformer.model", g.model),
		attribute.Int("jsonformer.max_tokens", g.maxTokens),
		attribute.String("jsonformer.trace_id", traceID),
	))
	defer span.End()

	start := time.Now()
	logger := g.logger.With(zap.String("trace_id", traceID))
	req := g.buildRequest(prompt, traceID)

	if g.logger.Core().Enabled(zap.DebugLevel) {
		fields := []zap.Field{
			zap.String("model", g.model),
			zap.Int("max_tokens", g.maxTokens),
			zap.Int("estimated_prompt_tokens", g.estimateTokens(req)),
		}
		if g.debug {
			fields = append(fields, zap.String("system_prompt", g.systemPrompt), zap.String("prompt", prompt))
		}
		logger.Debug("request issued", fields...)
	}

	resp, err := g.provider.Completion(ctx, req)
	if err != nil {
		g.finish(span, start, "", OutcomeTransportError, err)
		return nil, err
	}

	text, _ := resp.FirstText()
	fields := []zap.Field{
		zap.Duration("duration", time.Since(start)),
		zap.String("response_model", resp.Model),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
	}
	if g.debug {
		fields = append(fields, zap.String("response", text))
	}
	logger.Debug("response received", fields...)
	if g.metrics != nil {
		g.metrics.RecordTokens(g.provider.Name(), g.metricModel(resp), resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	}

	var raw json.RawMessage
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		perr := parseError(text, err)
		g.finish(span, start, resp.Model, OutcomeParseError, perr)
		return nil, perr
	}

	value, err := g.mode.decode(raw)
	if err != nil {
		outcome := OutcomeValidationError
		if !IsValidationError(err) {
			err = parseError(text, err)
			outcome = OutcomeParseError
		}
		g.finish(span, start, resp.Model, outcome, err)
		return nil, err
	}

	g.finish(span, start, resp.Model, OutcomeSuccess, nil)
	return value, nil
}

func (g *Generator) buildRequest(prompt, traceID string) *llm.ChatRequest {
	return &llm.ChatRequest{
		TraceID: traceID,
		Model:   g.model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: g.systemPrompt},
			{Role: llm.RoleUser, Content: prompt},
		},
		MaxTokens:   g.maxTokens,
		Temperature: 0,
	}
}

func (g *Generator) estimateTokens(req *llm.ChatRequest) int {
	msgs := make([]tokenizer.Message, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = tokenizer.Message{Role: string(m.Role), Content: m.Content}
	}
	n, err := g.tokenizer.CountMessages(msgs)
	if err != nil {
		return -1
	}
	return n
}

func (g *Generator) metricModel(resp *llm.ChatResponse) string {
	if resp != nil && resp.Model != "" {
		return resp.Model
	}
	return g.model
}

func (g *Generator) finish(span trace.Span, start time.Time, respModel, outcome string, err error) {
	span.SetAttributes(attribute.String("jsonformer.outcome", outcome))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	if g.metrics != nil {
		model := respModel
		if model == "" {
			model = g.model
		}
		g.metrics.RecordGeneration(g.provider.Name(), model, string(g.mode.kind()), outcome, time.Since(start))
	}
}

func isNilInterface(v any) bool {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Func, reflect.Interface, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
