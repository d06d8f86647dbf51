package tokenizer

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// TiktokenTokenizer 为 OpenAI 家族模型提供精确计数。
type TiktokenTokenizer struct {
	model    string
	encoding string
	enc      *tiktoken.Tiktoken
	once     sync.Once
	initErr  error
}

type encodingInfo struct {
	encoding string
}

var modelEncodings = map[string]encodingInfo{
	"gpt-4o":        {encoding: "o200k_base"},
	"gpt-4.1":       {encoding: "o200k_base"},
	"o1":            {encoding: "o200k_base"},
	"o3":            {encoding: "o200k_base"},
	"o4":            {encoding: "o200k_base"},
	"gpt-4-turbo":   {encoding: "cl100k_base"},
	"gpt-4":         {encoding: "cl100k_base"},
	"gpt-3.5-turbo": {encoding: "cl100k_base"},
}

// NewTiktokenTokenizer 创建 tiktoken 分词器，未知模型回退到 cl100k_base。
func NewTiktokenTokenizer(model string) *TiktokenTokenizer {
	info, ok := lookupEncoding(model)
	if !ok {
		info = encodingInfo{encoding: "cl100k_base"}
	}
	return &TiktokenTokenizer{model: model, encoding: info.encoding}
}

// init 延迟加载编码表（首次使用时可能需要下载）。
func (t *TiktokenTokenizer) init() error {
	t.once.Do(func() {
		enc, err := tiktoken.GetEncoding(t.encoding)
		if err != nil {
			t.initErr = fmt.Errorf("init tiktoken encoding %s: %w", t.encoding, err)
			return
		}
		t.enc = enc
	})
	return t.initErr
}

func (t *TiktokenTokenizer) CountTokens(text string) (int, error) {
	if err := t.init(); err != nil {
		return 0, err
	}
	return len(t.enc.Encode(text, nil, nil)), nil
}

func (t *TiktokenTokenizer) CountMessages(messages []Message) (int, error) {
	if err := t.init(); err != nil {
		return 0, err
	}
	total := 0
	for _, msg := range messages {
		// <|start|>role\n content<|end|>\n
		total += 4
		total += len(t.enc.Encode(msg.Content, nil, nil))
		total += len(t.enc.Encode(msg.Role, nil, nil))
	}
	return total + 3, nil
}

func (t *TiktokenTokenizer) Name() string {
	return fmt.Sprintf("tiktoken[%s]", t.encoding)
}
