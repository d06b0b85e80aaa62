package tokenizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimatorTokenizer_CountTokens(t *testing.T) {
	e := NewEstimatorTokenizer("test", 0)

	n, err := e.CountTokens("")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, _ = e.CountTokens("abcd")
	assert.Equal(t, 1, n)

	n, _ = e.CountTokens(strings.Repeat("a", 400))
	assert.Equal(t, 100, n)

	n, _ = e.CountTokens("你好世")
	assert.Equal(t, 2, n)

	n, _ = e.CountTokens("123456")
	assert.Equal(t, 2, n)

	n, _ = e.CountTokens("client 123456")
	assert.Equal(t, 3, n)
	assert.Equal(t, 8192, e.MaxTokens())
}

func TestEstimatorTokenizer_CountMessages(t *testing.T) {
	e := NewEstimatorTokenizer("test", 100)
	n, err := e.CountMessages([]Message{
		{Role: "user", Content: strings.Repeat("a", 40)},
		{Role: "assistant", Content: strings.Repeat("b", 40)},
	})
	require.NoError(t, err)
	assert.Equal(t, 10+4+10+4+3, n)
}

func TestNewTiktokenTokenizer_ModelLookup(t *testing.T) {
	assert.Equal(t, "tiktoken[o200k_base]", NewTiktokenTokenizer("gpt-4o-2024-08-06").Name())
	assert.Equal(t, "tiktoken[cl100k_base]", NewTiktokenTokenizer("gpt-35-turbo").Name())
	unknown := NewTiktokenTokenizer("my-model")
	assert.Equal(t, "tiktoken[cl100k_base]", unknown.Name())
	assert.Equal(t, 8192, unknown.MaxTokens())
}

func TestForModel_FallsBackToEstimator(t *testing.T) {
	assert.Equal(t, "estimator", ForModel("unregistered-model-x").Name())

	RegisterTokenizer("unit-test-model", NewEstimatorTokenizer("unit-test-model", 42))
	assert.Equal(t, 42, ForModel("unit-test-model-v2").MaxTokens())
}

func TestTrimToBudget(t *testing.T) {
	e := NewEstimatorTokenizer("test", 0)
	msgs := []Message{
		{Role: "system", Content: strings.Repeat("s", 40)},
		{Role: "user", Content: strings.Repeat("u", 400)},
		{Role: "assistant", Content: strings.Repeat("a", 400)},
		{Role: "user", Content: strings.Repeat("q", 40)},
	}

	out, total, err := TrimToBudget(e, msgs, 60, true)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "system", out[0].Role)
	assert.Equal(t, strings.Repeat("q", 40), out[1].Content)
	assert.LessOrEqual(t, total, 60)
	assert.Len(t, msgs, 4, "input must not be modified")

	same, _, err := TrimToBudget(e, msgs, 0, true)
	require.NoError(t, err)
	assert.Len(t, same, 4)
}
