package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/BaSui01/jsonformer/llm"
	"github.com/BaSui01/jsonformer/structured"
)

// schemaFlags 选择 schema 来源：JSON Schema 文件或字段声明，二选一
type schemaFlags struct {
	schemaPath string
	fields     string
	title      string
}

func (s *schemaFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&s.schemaPath, "schema", "s", "", "path to a JSON Schema file (untyped mode)")
	cmd.Flags().StringVarP(&s.fields, "fields", "f", "", `field declaration, e.g. "name,age:int,email?:string" (typed mode)`)
	cmd.Flags().StringVar(&s.title, "title", "", "schema title for --fields")
}

// option 返回对应的 schema 选项
func (s *schemaFlags) option() (structured.Option, error) {
	switch {
	case s.schemaPath != "" && s.fields != "":
		return nil, usagef("only one of --schema or --fields can be set")
	case s.schemaPath != "":
		data, err := os.ReadFile(s.schemaPath)
		if err != nil {
			return nil, usagef("read schema: %v", err)
		}
		return structured.WithJSONSchema(json.RawMessage(data)), nil
	case s.fields != "":
		desc, err := structured.ParseFields(s.fields)
		if err != nil {
			return nil, usagef("parse --fields: %v", err)
		}
		desc.Name = s.title
		return structured.WithModelDescriptor(desc), nil
	default:
		return nil, usagef("one of --schema or --fields is required")
	}
}

func newGenerateCmd(a *app, g *globalFlags) *cobra.Command {
	var (
		schema     schemaFlags
		prompt     string
		pretty     bool
		showSchema bool
	)

	cmd := &cobra.Command{
		Use:   `generate [flags] ["prompt"|-]`,
		Short: "Generate one JSON document for a prompt",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			schemaOpt, err := schema.option()
			if err != nil {
				return err
			}

			if showSchema {
				// 只渲染 schema，不需要 Provider
				gen, err := structured.New(offlineProvider{}, schemaOpt)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(gen.Schema()))
				return err
			}

			text, err := readPrompt(cmd.InOrStdin(), prompt, args)
			if err != nil {
				return err
			}

			rt, err := a.setup(cmd, g)
			if err != nil {
				return err
			}
			defer rt.close()

			gen, err := structured.New(rt.provider, append(rt.generatorOptions(), schemaOpt)...)
			if err != nil {
				return err
			}
			out, err := gen.Generate(cmd.Context(), text)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), out, pretty)
		},
	}

	schema.register(cmd)
	cmd.Flags().StringVarP(&prompt, "prompt", "p", "", "prompt text (alternative to the positional argument)")
	cmd.Flags().BoolVar(&pretty, "pretty", false, "indent the JSON output")
	cmd.Flags().BoolVar(&showSchema, "show-schema", false, "print the schema embedded in the system prompt and exit")
	return cmd
}

// readPrompt 依次取 --prompt、位置参数；参数为 "-" 或未提供时读取 stdin
func readPrompt(stdin io.Reader, flagPrompt string, args []string) (string, error) {
	if flagPrompt != "" && len(args) > 0 {
		return "", usagef("prompt given both as --prompt and as an argument")
	}
	text := flagPrompt
	if len(args) == 1 && args[0] != "-" {
		text = args[0]
	}
	if text == "" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read prompt from stdin: %w", err)
		}
		text = string(data)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", usagef("prompt is empty")
	}
	return text, nil
}

func writeJSON(w io.Writer, v any, pretty bool) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// offlineProvider 只用于 --show-schema，任何调用都会失败
type offlineProvider struct{}

func (offlineProvider) Name() string { return "offline" }

func (offlineProvider) Completion(context.Context, *llm.ChatRequest) (*llm.ChatResponse, error) {
	return nil, &llm.Error{Code: llm.ErrProviderUnavailable, Message: "offline provider cannot serve requests", Provider: "offline"}
}

func (offlineProvider) HealthCheck(context.Context) (*llm.HealthStatus, error) {
	return &llm.HealthStatus{Healthy: false}, nil
}
