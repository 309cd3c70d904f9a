package session

import "sync"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	// RoleBot is the presentation layer's name for assistant turns.
	RoleBot = "bot"
)

// Message represents a single chat message as sent upstream
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// MapRole converts a presentation role to its upstream form. It is
// idempotent: already-mapped roles are returned unchanged. ok is false for
// roles outside user, bot and assistant.
func MapRole(role string) (mapped string, ok bool) {
	switch role {
	case RoleBot, RoleAssistant:
		return RoleAssistant, true
	case RoleUser:
		return RoleUser, true
	default:
		return role, false
	}
}

// Conversation is the in-memory, append-only message list of one chat.
// It is never persisted.
type Conversation struct {
	mu       sync.Mutex
	messages []Message
}

// Append adds a message to the end of the conversation.
func (c *Conversation) Append(msg Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, msg)
}

// Messages returns a copy of the conversation in order.
func (c *Conversation) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Len returns the number of messages.
func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

// Clear drops every message.
func (c *Conversation) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = nil
}
