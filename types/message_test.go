package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversation_AppendDoesNotMutate(t *testing.T) {
	base := Conversation{NewUserMessage("hi")}
	next := base.Append(NewAssistantMessage("bank-coordinator", "hello"))

	require.Len(t, base, 1)
	require.Len(t, next, 2)
	assert.Equal(t, "hello", next[1].Content)
	assert.Equal(t, "bank-coordinator", next[1].Name)
}

func TestConversation_CountRoleAndLast(t *testing.T) {
	conv := Conversation{
		NewUserMessage("a"),
		NewAssistantMessage("x", "b"),
		NewUserMessage("c"),
	}
	assert.Equal(t, 2, conv.CountRole(RoleUser))
	assert.Equal(t, 1, conv.CountRole(RoleAssistant))

	last, ok := conv.Last()
	require.True(t, ok)
	assert.Equal(t, "c", last.Content)

	_, ok = Conversation{}.Last()
	assert.False(t, ok)
}

func TestFilterConversationRoles(t *testing.T) {
	in := []Message{
		NewUserMessage("keep"),
		{Role: RoleTool, Name: "fetch_news", Content: "{}"},
		NewAssistantMessage("bank-crm-agent", "   "),
		NewSystemMessage("bank-coordinator", "note"),
		{Role: "function", Content: "drop"},
	}
	out := FilterConversationRoles(in)

	require.Len(t, out, 2)
	assert.Equal(t, RoleUser, out[0].Role)
	assert.Equal(t, RoleSystem, out[1].Role)
}
