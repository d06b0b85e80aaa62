package testutil

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/BaSui01/moneta/types"
)

// TestContext returns a context cancelled when the test ends.
func TestContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}

// AssertEventuallyTrue polls condition until it holds or timeout expires.
func AssertEventuallyTrue(t *testing.T, condition func() bool, timeout time.Duration) {
	t.Helper()
	if !WaitFor(condition, timeout) {
		t.Fatalf("condition not met within %s", timeout)
	}
}

// WaitFor polls condition every 10ms until it holds or timeout expires.
func WaitFor(condition func() bool, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return condition()
}

// MustJSON marshals v or panics.
func MustJSON(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}

// Conversation builds a transcript alternating user turns and replies from
// author, starting with a user turn.
func Conversation(author string, texts ...string) types.Conversation {
	conv := make(types.Conversation, 0, len(texts))
	for i, text := range texts {
		if i%2 == 0 {
			conv = append(conv, types.NewUserMessage(text))
		} else {
			conv = append(conv, types.NewAssistantMessage(author, text))
		}
	}
	return conv
}

// UserTurns builds n consecutive user messages.
func UserTurns(n int) types.Conversation {
	conv := make(types.Conversation, n)
	for i := range conv {
		conv[i] = types.NewUserMessage("question " + string(rune('a'+i%26)))
	}
	return conv
}
