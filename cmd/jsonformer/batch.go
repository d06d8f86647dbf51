package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/jsonformer/structured"
)

// batchResult 是 batch 输出中的一行
type batchResult struct {
	Index  int    `json:"index"`
	Prompt string `json:"prompt"`
	Output any    `json:"output,omitempty"`
	Error  string `json:"error,omitempty"`
	Kind   string `json:"error_kind,omitempty"`

	ran bool
}

func newBatchCmd(a *app, g *globalFlags) *cobra.Command {
	var (
		schema      schemaFlags
		inputPath   string
		concurrency int
		metricsFile string
		failFast    bool
	)

	cmd := &cobra.Command{
		Use:   "batch [flags]",
		Short: "Generate one JSON document per input line and print JSON Lines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			schemaOpt, err := schema.option()
			if err != nil {
				return err
			}

			in := cmd.InOrStdin()
			if inputPath != "" && inputPath != "-" {
				f, err := os.Open(inputPath)
				if err != nil {
					return usagef("open input: %v", err)
				}
				defer f.Close()
				in = f
			}
			prompts, err := readPrompts(in)
			if err != nil {
				return err
			}

			rt, err := a.setup(cmd, g)
			if err != nil {
				return err
			}
			defer rt.close()

			if cmd.Flags().Changed("concurrency") {
				rt.cfg.Generator.Concurrency = concurrency
			}
			if rt.cfg.Generator.Concurrency <= 0 {
				return usagef("--concurrency must be positive")
			}
			if cmd.Flags().Changed("metrics-file") {
				rt.cfg.Metrics.TextfilePath = metricsFile
			}

			gen, err := structured.New(rt.provider, append(rt.generatorOptions(), schemaOpt)...)
			if err != nil {
				return err
			}

			failed, runErr := runBatch(cmd, rt, gen, prompts, failFast)

			if path := rt.cfg.Metrics.TextfilePath; path != "" {
				if err := prometheus.WriteToTextfile(path, rt.registry); err != nil {
					rt.logger.Warn("write metrics textfile failed", zap.String("path", path), zap.Error(err))
				}
			}
			if runErr != nil {
				return runErr
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d prompts failed", failed, len(prompts))
			}
			return nil
		},
	}

	schema.register(cmd)
	cmd.Flags().StringVarP(&inputPath, "input", "i", "", "file with one prompt per line (default stdin)")
	cmd.Flags().IntVarP(&concurrency, "concurrency", "n", 0, "number of concurrent requests")
	cmd.Flags().StringVar(&metricsFile, "metrics-file", "", "write Prometheus metrics in textfile format when done")
	cmd.Flags().BoolVar(&failFast, "fail-fast", false, "stop at the first failed prompt")
	return cmd
}

// runBatch 并发生成，结果按输入顺序输出。返回失败条数。
func runBatch(cmd *cobra.Command, rt *runtime, gen *structured.Generator, prompts []string, failFast bool) (int, error) {
	results := make([]batchResult, len(prompts))
	eg, ctx := errgroup.WithContext(cmd.Context())
	eg.SetLimit(rt.cfg.Generator.Concurrency)

	var mu sync.Mutex
	failed := 0
	for i, prompt := range prompts {
		eg.Go(func() error {
			if ctx.Err() != nil {
				// fail-fast 已取消，不再发起请求
				return nil
			}
			done := rt.collector.BatchStarted()
			res := batchResult{Index: i, Prompt: prompt, ran: true}
			out, err := gen.Generate(ctx, prompt)
			done(err == nil)
			if err != nil {
				res.Error = err.Error()
				res.Kind = errorKind(err)
				mu.Lock()
				failed++
				mu.Unlock()
				rt.logger.Debug("batch prompt failed", zap.Int("index", i), zap.Error(err))
				if failFast {
					results[i] = res
					return fmt.Errorf("prompt %d: %w", i, err)
				}
			} else {
				res.Output = out
			}
			results[i] = res
			return nil
		})
	}
	runErr := eg.Wait()

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetEscapeHTML(false)
	for _, res := range results {
		if !res.ran {
			// fail-fast 取消后未发起请求的提示
			continue
		}
		if err := enc.Encode(res); err != nil {
			return failed, fmt.Errorf("encode result: %w", err)
		}
	}
	return failed, runErr
}

// readPrompts 读取非空行，# 开头的行视为注释
func readPrompts(r io.Reader) ([]string, error) {
	var prompts []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		prompts = append(prompts, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read prompts: %w", err)
	}
	if len(prompts) == 0 {
		return nil, usagef("no prompts in input")
	}
	return prompts, nil
}

func errorKind(err error) string {
	switch {
	case structured.IsTransportError(err):
		return structured.OutcomeTransportError
	case structured.IsParseError(err):
		return structured.OutcomeParseError
	case structured.IsValidationError(err):
		return structured.OutcomeValidationError
	default:
		return "error"
	}
}
