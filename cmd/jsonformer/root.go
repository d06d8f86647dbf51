package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/BaSui01/jsonformer/config"
	"github.com/BaSui01/jsonformer/internal/metrics"
	"github.com/BaSui01/jsonformer/internal/telemetry"
	"github.com/BaSui01/jsonformer/llm"
	"github.com/BaSui01/jsonformer/llm/factory"
	"github.com/BaSui01/jsonformer/structured"
)

// providerFactory 按名称创建 Provider，测试中替换为 mock
type providerFactory func(name string, cfg factory.ProviderConfig, logger *zap.Logger) (llm.Provider, error)

// app 持有命令的外部依赖
type app struct {
	stdin       io.Reader
	stdout      io.Writer
	stderr      io.Writer
	newProvider providerFactory
	newLogger   func(config.LogConfig) (*zap.Logger, error)
}

func defaultApp() *app {
	return &app{
		stdin:       os.Stdin,
		stdout:      os.Stdout,
		stderr:      os.Stderr,
		newProvider: factory.NewProviderFromConfig,
		newLogger:   initLogger,
	}
}

// globalFlags 是所有子命令共享的参数
type globalFlags struct {
	configPath string
	provider   string
	model      string
	maxTokens  int
	timeout    time.Duration
	debug      bool
	logLevel   string
}

func newRootCmd(a *app) *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "jsonformer",
		Short:         "Generate JSON that follows a schema using an LLM",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(a.stdin)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	pf := root.PersistentFlags()
	pf.StringVarP(&g.configPath, "config", "c", "", "path to a YAML config file")
	pf.StringVar(&g.provider, "provider", "", "LLM provider (anthropic, openai, gemini, ollama, ...)")
	pf.StringVarP(&g.model, "model", "m", "", "model id sent with each request")
	pf.IntVar(&g.maxTokens, "max-tokens", 0, "maximum output tokens per request")
	pf.DurationVar(&g.timeout, "timeout", 0, "provider request timeout")
	pf.BoolVar(&g.debug, "debug", false, "log prompts and raw responses at debug level")
	pf.StringVar(&g.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(
		newGenerateCmd(a, g),
		newBatchCmd(a, g),
		newHealthCmd(a, g),
		newVersionCmd(),
	)
	return root
}

// =============================================================================
// 运行环境
// =============================================================================

// runtime 是单次命令执行期间共享的组件
type runtime struct {
	cfg       *config.Config
	logger    *zap.Logger
	provider  llm.Provider
	telemetry *telemetry.Providers
	registry  *prometheus.Registry
	collector *metrics.Collector
}

// setup 加载配置并创建 logger、Provider 与观测组件
func (a *app) setup(cmd *cobra.Command, g *globalFlags) (*runtime, error) {
	cfg, err := config.NewLoader().WithConfigPath(g.configPath).Load()
	if err != nil {
		return nil, err
	}
	if err := g.apply(cmd, cfg); err != nil {
		return nil, err
	}

	logger, err := a.newLogger(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	tel, err := telemetry.Init(cfg.Telemetry, logger)
	if err != nil {
		return nil, err
	}

	provider, err := a.newProvider(cfg.Provider.Name, cfg.Provider.FactoryConfig(), logger)
	if err != nil {
		_ = tel.Shutdown(context.Background())
		return nil, usagef("%v", err)
	}

	registry := prometheus.NewRegistry()
	rt := &runtime{
		cfg:       cfg,
		logger:    logger,
		provider:  provider,
		telemetry: tel,
		registry:  registry,
		collector: metrics.NewCollectorWith(registry, cfg.Metrics.Namespace, logger),
	}
	return rt, nil
}

// apply 用显式设置的命令行参数覆盖配置
func (g *globalFlags) apply(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("provider") {
		cfg.Provider.Name = g.provider
	}
	if flags.Changed("model") {
		cfg.Generator.Model = g.model
	}
	if flags.Changed("max-tokens") {
		cfg.Generator.MaxTokens = g.maxTokens
	}
	if flags.Changed("timeout") {
		cfg.Provider.Timeout = g.timeout
	}
	if flags.Changed("debug") {
		cfg.Generator.Debug = g.debug
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = g.logLevel
	}
	if g.debug && !flags.Changed("log-level") {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return usagef("%v", err)
	}
	return nil
}

// generatorOptions 把运行环境转换为生成器选项
func (rt *runtime) generatorOptions() []structured.Option {
	opts := []structured.Option{
		structured.WithModelID(rt.cfg.Generator.Model),
		structured.WithMaxTokens(rt.cfg.Generator.MaxTokens),
		structured.WithDebug(rt.cfg.Generator.Debug),
		structured.WithLogger(rt.logger),
		structured.WithTracer(rt.telemetry.Tracer()),
	}

	var otelRecorder structured.MetricsRecorder
	if rt.telemetry.Enabled() {
		inst, err := telemetry.NewInstruments(rt.telemetry.Meter())
		if err != nil {
			rt.logger.Warn("otel instruments unavailable", zap.Error(err))
		} else {
			otelRecorder = inst
		}
	}
	return append(opts, structured.WithMetrics(metrics.NewFanout(rt.collector, otelRecorder)))
}

// close 刷新遥测数据与日志
func (rt *runtime) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rt.telemetry.Shutdown(ctx); err != nil {
		rt.logger.Warn("telemetry shutdown failed", zap.Error(err))
	}
	_ = rt.logger.Sync()
}
