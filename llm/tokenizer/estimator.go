package tokenizer

import "unicode"

// 估算比例（字符/token），来自 cl100k 在英文、数字与 CJK 文本上的经验值
const (
	charsPerToken   = 4.0
	digitsPerToken  = 3.0
	ideographsRatio = 1.5
)

// EstimatorTokenizer 在没有 tiktoken 编码表的模型上按字符类别估算 token 数。
// 客户编号、保单号等数字串单独计数，避免整段按英文比例低估。
type EstimatorTokenizer struct {
	model     string
	maxTokens int
}

// NewEstimatorTokenizer 创建估算器，maxTokens <= 0 时取 8192
func NewEstimatorTokenizer(model string, maxTokens int) *EstimatorTokenizer {
	if maxTokens <= 0 {
		maxTokens = 8192
	}
	return &EstimatorTokenizer{model: model, maxTokens: maxTokens}
}

func (e *EstimatorTokenizer) CountTokens(text string) (int, error) {
	if text == "" {
		return 0, nil
	}

	var other, digits, ideographs int
	for _, r := range text {
		switch {
		case unicode.IsDigit(r):
			digits++
		case isIdeographic(r):
			ideographs++
		default:
			other++
		}
	}

	n := int(float64(other)/charsPerToken + float64(digits)/digitsPerToken + float64(ideographs)/ideographsRatio)
	return max(n, 1), nil
}

func (e *EstimatorTokenizer) CountMessages(messages []Message) (int, error) {
	total := conversationEndOverhead
	for _, msg := range messages {
		n, err := e.CountTokens(msg.Content)
		if err != nil {
			return 0, err
		}
		total += n + perMessageOverhead
	}
	return total, nil
}

func (e *EstimatorTokenizer) MaxTokens() int { return e.maxTokens }

func (e *EstimatorTokenizer) Name() string { return "estimator" }

func isIdeographic(r rune) bool {
	return unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul) ||
		(r >= 0x3000 && r <= 0x303F) || // CJK 标点
		(r >= 0xFF00 && r <= 0xFFEF) // 全角字符
}
