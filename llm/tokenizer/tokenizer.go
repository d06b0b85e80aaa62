package tokenizer

import (
	"strings"
	"sync"
)

// Tokenizer 是统一的 token 计数接口。
type Tokenizer interface {
	// CountTokens 返回给定文本的 token 数.
	CountTokens(text string) (int, error)

	// CountMessages 返回消息列表的总 token 数，包括每条消息的角色与分隔符开销。
	CountMessages(messages []Message) (int, error)

	// MaxTokens 返回模型的最大上下文长度.
	MaxTokens() int

	// Name 返回分词器的名称.
	Name() string
}

// Message 是 tokenizer 包使用的轻量级消息结构，避免与 llm 包循环依赖。
type Message struct {
	Role    string
	Content string
}

// 每条消息的开销: <|start|>role\n content<|end|>\n
const (
	perMessageOverhead      = 4
	conversationEndOverhead = 3
)

var (
	modelTokenizers   = make(map[string]Tokenizer)
	modelTokenizersMu sync.RWMutex
)

// RegisterTokenizer 为给定的模型名称注册分词器.
func RegisterTokenizer(model string, t Tokenizer) {
	modelTokenizersMu.Lock()
	defer modelTokenizersMu.Unlock()
	modelTokenizers[model] = t
}

// ForModel 返回为模型注册的分词器，支持前缀匹配；未注册时回退到估算器。
func ForModel(model string) Tokenizer {
	modelTokenizersMu.RLock()
	defer modelTokenizersMu.RUnlock()

	if t, ok := modelTokenizers[model]; ok {
		return t
	}
	var best Tokenizer
	bestLen := 0
	for prefix, t := range modelTokenizers {
		if strings.HasPrefix(model, prefix) && len(prefix) > bestLen {
			best, bestLen = t, len(prefix)
		}
	}
	if best != nil {
		return best
	}
	return NewEstimatorTokenizer(model, 0)
}

// TrimToBudget drops the oldest messages until the total fits within budget.
// The first message is kept when keepFirst is set (system instructions).
// The last message is always kept.
func TrimToBudget(t Tokenizer, messages []Message, budget int, keepFirst bool) ([]Message, int, error) {
	total, err := t.CountMessages(messages)
	if err != nil || budget <= 0 || total <= budget {
		return messages, total, err
	}

	head := 0
	if keepFirst && len(messages) > 0 {
		head = 1
	}
	out := append([]Message(nil), messages...)
	for total > budget && len(out) > head+1 {
		dropped, err := t.CountTokens(out[head].Content)
		if err != nil {
			return messages, total, err
		}
		total -= dropped + perMessageOverhead
		out = append(out[:head], out[head+1:]...)
	}
	return out, total, nil
}
