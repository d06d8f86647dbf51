package structured

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/BaSui01/jsonformer/llm"
	"github.com/BaSui01/jsonformer/types"
)

// 错误信息中最多保留的响应文本长度
const maxQuotedResponse = 200

func configurationError(format string, args ...any) *types.Error {
	return types.Errorf(types.ErrConfiguration, format, args...)
}

func parseError(text string, cause error) *types.Error {
	return types.Errorf(types.ErrParse, "failed to parse JSON from model response: %v (response: %q)",
		cause, truncate(text, maxQuotedResponse)).WithCause(cause)
}

func validationError(cause error) *types.Error {
	return types.Errorf(types.ErrValidation, "model response does not match the typed model: %v", cause).
		WithCause(cause)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + fmt.Sprintf("...(%d bytes)", len(s))
}

// IsConfigurationError 报告 err 是否为构造参数错误。
func IsConfigurationError(err error) bool {
	return types.IsErrorCode(err, types.ErrConfiguration)
}

// IsParseError 报告 err 是否因为模型输出不是合法 JSON。
func IsParseError(err error) bool {
	return types.IsErrorCode(err, types.ErrParse)
}

// IsValidationError 报告 err 是否因为 JSON 不满足类型化模型。
func IsValidationError(err error) bool {
	return types.IsErrorCode(err, types.ErrValidation)
}

// IsTransportError 报告 err 是否来自 Provider。
func IsTransportError(err error) bool {
	var llmErr *llm.Error
	return errors.As(err, &llmErr)
}

// ValidationDetails 取出校验失败的逐路径明细。
func ValidationDetails(err error) ([]ValidationError, bool) {
	var ve *ValidationErrors
	if !errors.As(err, &ve) {
		return nil, false
	}
	return ve.Errors, true
}
