package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/jsonformer/config"
	"github.com/BaSui01/jsonformer/llm"
	"github.com/BaSui01/jsonformer/llm/factory"
	"github.com/BaSui01/jsonformer/testutil/mocks"
	"github.com/BaSui01/jsonformer/types"
)

type harness struct {
	provider     *mocks.MockProvider
	stdout       bytes.Buffer
	stderr       bytes.Buffer
	providerName string
	providerCfg  factory.ProviderConfig
}

func newHarness(t *testing.T, stdin string) (*harness, *app) {
	t.Helper()
	h := &harness{provider: mocks.NewMockProvider()}
	a := &app{
		stdin:  strings.NewReader(stdin),
		stdout: &h.stdout,
		stderr: &h.stderr,
		newProvider: func(name string, cfg factory.ProviderConfig, _ *zap.Logger) (llm.Provider, error) {
			h.providerName = name
			h.providerCfg = cfg
			return h.provider, nil
		},
		newLogger: func(config.LogConfig) (*zap.Logger, error) { return zap.NewNop(), nil },
	}
	return h, a
}

func run(t *testing.T, a *app, args ...string) error {
	t.Helper()
	cmd := newRootCmd(a)
	cmd.SetArgs(args)
	return cmd.ExecuteContext(context.Background())
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// =============================================================================
// generate
// =============================================================================

func TestGenerate_FieldsAndArgument(t *testing.T) {
	h, a := newHarness(t, "")
	h.provider.WithResponse(`{"name":"Ada","age":30}`)

	err := run(t, a, "generate", "--fields", "name,age:int", "--model", "claude-test", "--max-tokens", "512", "a developer")
	require.NoError(t, err)

	assert.Equal(t, "{\"age\":30,\"name\":\"Ada\"}\n", h.stdout.String())
	assert.Equal(t, "anthropic", h.providerName)
	require.Equal(t, 1, h.provider.CallCount())
	req := h.provider.LastRequest()
	assert.Equal(t, "claude-test", req.Model)
	assert.Equal(t, 512, req.MaxTokens)
	assert.Equal(t, "a developer", req.Messages[1].Content)
}

func TestGenerate_SchemaFileAndStdinPrompt(t *testing.T) {
	h, a := newHarness(t, "  a city in Europe \n")
	h.provider.WithResponse(`{"city":"Lisbon"}`)
	path := writeFile(t, "schema.json", `{"type":"object","properties":{"city":{"type":"string"}}}`)

	err := run(t, a, "generate", "--schema", path, "--pretty", "--provider", "openai", "--timeout", "5s")
	require.NoError(t, err)

	assert.Equal(t, "{\n  \"city\": \"Lisbon\"\n}\n", h.stdout.String())
	assert.Equal(t, "openai", h.providerName)
	assert.Equal(t, "5s", h.providerCfg.Timeout.String())
	assert.Equal(t, "a city in Europe", h.provider.LastRequest().Messages[1].Content)
	assert.Contains(t, h.provider.LastRequest().Messages[0].Content, "\"city\": {")
}

func TestGenerate_ShowSchemaSkipsProvider(t *testing.T) {
	h, a := newHarness(t, "")

	err := run(t, a, "generate", "--fields", "name,tags[]", "--title", "Item", "--show-schema")
	require.NoError(t, err)

	assert.Contains(t, h.stdout.String(), `"title": "Item"`)
	assert.Contains(t, h.stdout.String(), `"tags": {`)
	assert.Empty(t, h.providerName)
	assert.Zero(t, h.provider.CallCount())
}

func TestGenerate_UsageErrors(t *testing.T) {
	path := writeFile(t, "schema.json", `{"type":"object"}`)
	tests := []struct {
		name string
		args []string
	}{
		{"no schema", []string{"generate", "x"}},
		{"both schema sources", []string{"generate", "--schema", path, "--fields", "a", "x"}},
		{"bad fields", []string{"generate", "--fields", "a:uuid", "x"}},
		{"missing schema file", []string{"generate", "--schema", "/no/such/file.json", "x"}},
		{"prompt twice", []string{"generate", "--fields", "a", "-p", "x", "y"}},
		{"empty prompt", []string{"generate", "--fields", "a"}},
		{"zero max tokens", []string{"generate", "--fields", "a", "--max-tokens", "0", "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, a := newHarness(t, "")
			err := run(t, a, tt.args...)
			require.Error(t, err)
			assert.Equal(t, exitUsage, exitCode(err), "%v", err)
			assert.Zero(t, h.provider.CallCount())
		})
	}
}

func TestGenerate_InvalidSchemaIsConfigurationError(t *testing.T) {
	_, a := newHarness(t, "")
	path := writeFile(t, "schema.json", `[1,2,3]`)

	err := run(t, a, "generate", "--schema", path, "x")
	require.Error(t, err)
	assert.Equal(t, exitUsage, exitCode(err))
}

func TestGenerate_ExitCodes(t *testing.T) {
	t.Run("parse error", func(t *testing.T) {
		h, a := newHarness(t, "")
		h.provider.WithResponse("Sure! Here is your JSON")
		err := run(t, a, "generate", "--fields", "name", "x")
		assert.Equal(t, exitInvalidJSON, exitCode(err))
	})
	t.Run("validation error", func(t *testing.T) {
		h, a := newHarness(t, "")
		h.provider.WithResponse(`{"age":1}`)
		err := run(t, a, "generate", "--fields", "name", "x")
		assert.Equal(t, exitInvalidJSON, exitCode(err))
	})
	t.Run("transport error", func(t *testing.T) {
		h, a := newHarness(t, "")
		h.provider.WithError(&llm.Error{Code: llm.ErrUnauthorized, Message: "bad key", HTTPStatus: 401})
		err := run(t, a, "generate", "--fields", "name", "x")
		assert.Equal(t, exitTransport, exitCode(err))
		assert.Equal(t, "bad key", err.Error())
	})
}

func TestGenerate_UnknownProvider(t *testing.T) {
	_, a := newHarness(t, "")
	a.newProvider = factory.NewProviderFromConfig

	err := run(t, a, "generate", "--fields", "name", "--provider", "nope", "x")
	require.Error(t, err)
	assert.Equal(t, exitUsage, exitCode(err))
	assert.Contains(t, err.Error(), "unknown provider")
}

// =============================================================================
// batch
// =============================================================================

func TestBatch_OrderedOutputAndMetricsFile(t *testing.T) {
	h, a := newHarness(t, "Lisbon\n\n# comment\nParis\nBerlin\n")
	h.provider.WithCompletionFunc(func(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
		city := req.Messages[1].Content
		return &llm.ChatResponse{
			Model:   "mock-model",
			Choices: []llm.ChatChoice{{Message: llm.Message{Role: llm.RoleAssistant, Content: `{"city":"` + city + `"}`}}},
		}, nil
	})
	metricsPath := filepath.Join(t.TempDir(), "jsonformer.prom")

	err := run(t, a, "batch", "--fields", "city", "-n", "2", "--metrics-file", metricsPath)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(h.stdout.String()), "\n")
	require.Len(t, lines, 3)
	assert.JSONEq(t, `{"index":0,"prompt":"Lisbon","output":{"city":"Lisbon"}}`, lines[0])
	assert.JSONEq(t, `{"index":1,"prompt":"Paris","output":{"city":"Paris"}}`, lines[1])
	assert.JSONEq(t, `{"index":2,"prompt":"Berlin","output":{"city":"Berlin"}}`, lines[2])
	assert.Equal(t, 3, h.provider.CallCount())

	data, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `jsonformer_generations_total{mode="typed",model="mock-model",outcome="success",provider="mock"} 3`)
	assert.Contains(t, string(data), `jsonformer_batch_items_total{success="true"} 3`)
}

func TestBatch_FailuresReported(t *testing.T) {
	input := writeFile(t, "prompts.txt", "good\nbad\n")
	h, a := newHarness(t, "")
	h.provider.WithCompletionFunc(func(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
		content := `{"city":"x"}`
		if req.Messages[1].Content == "bad" {
			content = "not json"
		}
		return &llm.ChatResponse{Choices: []llm.ChatChoice{{Message: llm.Message{Content: content}}}}, nil
	})

	err := run(t, a, "batch", "--fields", "city", "--input", input)
	require.Error(t, err)
	assert.Equal(t, "1 of 2 prompts failed", err.Error())

	lines := strings.Split(strings.TrimSpace(h.stdout.String()), "\n")
	require.Len(t, lines, 2)
	assert.JSONEq(t, `{"index":0,"prompt":"good","output":{"city":"x"}}`, lines[0])
	assert.Contains(t, lines[1], `"error_kind":"parse_error"`)
}

func TestBatch_FailFastSkipsQueuedPrompts(t *testing.T) {
	h, a := newHarness(t, "bad\nsecond\nthird\n")
	h.provider.WithCompletionFunc(func(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
		return &llm.ChatResponse{Choices: []llm.ChatChoice{{Message: llm.Message{Content: "not json"}}}}, nil
	})

	err := run(t, a, "batch", "--fields", "city", "-n", "1", "--fail-fast")
	require.Error(t, err)
	assert.Equal(t, 1, h.provider.CallCount())

	lines := strings.Split(strings.TrimSpace(h.stdout.String()), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], `"prompt":"bad"`)
	assert.Contains(t, lines[0], `"error_kind":"parse_error"`)
}

func TestBatch_EmptyInput(t *testing.T) {
	_, a := newHarness(t, "\n# nothing\n")
	err := run(t, a, "batch", "--fields", "city")
	require.Error(t, err)
	assert.Equal(t, exitUsage, exitCode(err))
}

// =============================================================================
// health / version
// =============================================================================

func TestHealth(t *testing.T) {
	h, a := newHarness(t, "")
	require.NoError(t, run(t, a, "health"))
	assert.Equal(t, "mock: healthy (latency 10ms)\n", h.stdout.String())

	h, a = newHarness(t, "")
	h.provider.WithHealthError(errors.New("connection refused"))
	err := run(t, a, "health")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestVersion(t *testing.T) {
	h, a := newHarness(t, "")
	require.NoError(t, run(t, a, "version"))
	assert.True(t, strings.HasPrefix(h.stdout.String(), "jsonformer dev\n"))
}

// =============================================================================
// helpers
// =============================================================================

func TestReadPrompt(t *testing.T) {
	tests := []struct {
		name    string
		stdin   string
		flag    string
		args    []string
		want    string
		wantErr bool
	}{
		{"argument", "", "", []string{"hello"}, "hello", false},
		{"flag", "", " hi ", nil, "hi", false},
		{"stdin", "from stdin\n", "", nil, "from stdin", false},
		{"dash reads stdin", "piped", "", []string{"-"}, "piped", false},
		{"both", "", "a", []string{"b"}, "", true},
		{"empty", "  \n", "", nil, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := readPrompt(strings.NewReader(tt.stdin), tt.flag, tt.args)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, exitUsage, exitCode(usagef("bad flag")))
	assert.Equal(t, exitUsage, exitCode(types.NewError(types.ErrConfiguration, "x")))
	assert.Equal(t, exitTransport, exitCode(&llm.Error{Code: llm.ErrUpstreamError}))
	assert.Equal(t, exitInvalidJSON, exitCode(types.NewError(types.ErrParse, "x")))
	assert.Equal(t, exitInvalidJSON, exitCode(types.NewError(types.ErrValidation, "x")))
	assert.Equal(t, exitError, exitCode(errors.New("boom")))
}

func TestInitLogger(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		logger, err := initLogger(config.LogConfig{Level: "debug", Format: format, OutputPaths: []string{"stderr"}})
		require.NoError(t, err)
		assert.True(t, logger.Core().Enabled(zap.DebugLevel))
	}

	logger, err := initLogger(config.LogConfig{Level: "nonsense", Format: "json"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zap.DebugLevel))

	_, err = initLogger(config.LogConfig{Level: "info", Format: "json", OutputPaths: []string{"/no/such/dir/log.txt"}})
	assert.Error(t, err)
}
