package tokenizer

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// TiktokenTokenizer 为 OpenAI 系列模型封装 tiktoken。
// 编码数据在首次使用时加载；加载失败时回退到估算器。
type TiktokenTokenizer struct {
	model     string
	encoding  string
	maxTokens int
	fallback  *EstimatorTokenizer

	once    sync.Once
	enc     *tiktoken.Tiktoken
	initErr error
}

// modelEncodings 将模型名称映射到其 tiktoken 编码和上下文大小。
var modelEncodings = map[string]struct {
	encoding  string
	maxTokens int
}{
	"gpt-4.1":       {encoding: "o200k_base", maxTokens: 1047576},
	"gpt-4o":        {encoding: "o200k_base", maxTokens: 128000},
	"gpt-4o-mini":   {encoding: "o200k_base", maxTokens: 128000},
	"gpt-4-turbo":   {encoding: "cl100k_base", maxTokens: 128000},
	"gpt-4":         {encoding: "cl100k_base", maxTokens: 8192},
	"gpt-35-turbo":  {encoding: "cl100k_base", maxTokens: 16385},
	"gpt-3.5-turbo": {encoding: "cl100k_base", maxTokens: 16385},
}

// NewTiktokenTokenizer 为给定模型创建 tiktoken 分词器，未知模型默认 cl100k_base。
func NewTiktokenTokenizer(model string) *TiktokenTokenizer {
	info, ok := modelEncodings[model]
	if !ok {
		bestLen := 0
		for prefix, i := range modelEncodings {
			if strings.HasPrefix(model, prefix) && len(prefix) > bestLen {
				info, bestLen, ok = i, len(prefix), true
			}
		}
	}
	if !ok {
		info.encoding, info.maxTokens = "cl100k_base", 8192
	}
	return &TiktokenTokenizer{
		model:     model,
		encoding:  info.encoding,
		maxTokens: info.maxTokens,
		fallback:  NewEstimatorTokenizer(model, info.maxTokens),
	}
}

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
		return t.fallback.CountTokens(text)
	}
	return len(t.enc.Encode(text, nil, nil)), nil
}

func (t *TiktokenTokenizer) CountMessages(messages []Message) (int, error) {
	if err := t.init(); err != nil {
		return t.fallback.CountMessages(messages)
	}
	total := 0
	for _, msg := range messages {
		total += perMessageOverhead
		total += len(t.enc.Encode(msg.Content, nil, nil))
		total += len(t.enc.Encode(msg.Role, nil, nil))
	}
	return total + conversationEndOverhead, nil
}

func (t *TiktokenTokenizer) MaxTokens() int {
	return t.maxTokens
}

func (t *TiktokenTokenizer) Name() string {
	return fmt.Sprintf("tiktoken[%s]", t.encoding)
}

// RegisterOpenAITokenizers 为所有已知的 OpenAI 模型注册分词器。
func RegisterOpenAITokenizers() {
	for model := range modelEncodings {
		RegisterTokenizer(model, NewTiktokenTokenizer(model))
	}
}
