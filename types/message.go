package types

import "strings"

// Role represents the role of a message participant.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// AuthorUser is the author recorded on messages typed by the end user.
const AuthorUser = "user"

// Message is one entry of a conversation transcript.
// Name is the author: an agent name for produced replies, AuthorUser for user turns.
type Message struct {
	Role    Role   `json:"role" bson:"role"`
	Name    string `json:"name" bson:"name"`
	Content string `json:"content" bson:"content"`
}

// NewUserMessage creates a message typed by the end user.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Name: AuthorUser, Content: content}
}

// NewAssistantMessage creates a reply authored by the named agent.
func NewAssistantMessage(author, content string) Message {
	return Message{Role: RoleAssistant, Name: author, Content: content}
}

// NewSystemMessage creates a system message authored by the named agent.
func NewSystemMessage(author, content string) Message {
	return Message{Role: RoleSystem, Name: author, Content: content}
}

// IsConversational reports whether the role may appear in an engine input.
func (r Role) IsConversational() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	default:
		return false
	}
}

// Conversation is an append-only, ordered transcript.
type Conversation []Message

// Append returns a new conversation with msgs added at the end.
// The receiver is never modified.
func (c Conversation) Append(msgs ...Message) Conversation {
	out := make(Conversation, 0, len(c)+len(msgs))
	out = append(out, c...)
	return append(out, msgs...)
}

// Clone returns an independent copy.
func (c Conversation) Clone() Conversation {
	if c == nil {
		return nil
	}
	out := make(Conversation, len(c))
	copy(out, c)
	return out
}

// Last returns the final message, if any.
func (c Conversation) Last() (Message, bool) {
	if len(c) == 0 {
		return Message{}, false
	}
	return c[len(c)-1], true
}

// CountRole counts the messages with the given role.
func (c Conversation) CountRole(role Role) int {
	n := 0
	for _, m := range c {
		if m.Role == role {
			n++
		}
	}
	return n
}

// FilterConversationRoles drops messages whose role is not user, assistant or
// system, and messages with blank content.
func FilterConversationRoles(msgs []Message) Conversation {
	out := make(Conversation, 0, len(msgs))
	for _, m := range msgs {
		if !m.Role.IsConversational() {
			continue
		}
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		out = append(out, m)
	}
	return out
}
