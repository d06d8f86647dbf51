// =============================================================================
// jsonformer 主入口
// =============================================================================
//
// 使用方法:
//
//	jsonformer generate --schema user.json "a young software developer"
//	jsonformer generate --fields "name,age:int,hobbies[]" -p "a chess player"
//	jsonformer batch --fields "city,country" --input prompts.txt
//	jsonformer health --provider openai
//	jsonformer version
// =============================================================================

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/BaSui01/jsonformer/structured"
)

// 构建信息，通过 ldflags 注入
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// 进程退出码
const (
	exitError       = 1
	exitUsage       = 2
	exitTransport   = 3
	exitInvalidJSON = 4
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd(defaultApp()).ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	var usage *usageError
	switch {
	case errors.As(err, &usage), structured.IsConfigurationError(err):
		return exitUsage
	case structured.IsTransportError(err):
		return exitTransport
	case structured.IsParseError(err), structured.IsValidationError(err):
		return exitInvalidJSON
	default:
		return exitError
	}
}

// usageError 表示命令行参数错误
type usageError struct{ msg string }

func (e *usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}
