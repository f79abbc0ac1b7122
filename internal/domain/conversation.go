package domain

import "time"

const (
	DefaultTitle   = "New Conversation"
	DefaultPreview = "Start a new conversation..."

	titleLimit   = 50
	previewLimit = 100
	ellipsis     = "..."
)

// Message is one turn (user or assistant) of a conversation.
type Message struct {
	ID        MessageID `json:"id"`
	Text      string    `json:"text"`
	IsUser    bool      `json:"isUser"`
	Domain    Domain    `json:"domain"`
	Timestamp string    `json:"timestamp"`
	CreatedAt Timestamp `json:"createdAt"`
}

// Role reports who authored the message.
func (m *Message) Role() Role {
	if m.IsUser {
		return RoleUser
	}
	return RoleAssistant
}

// Conversation is a named, domain-tagged, ordered sequence of messages
// persisted as one record. Messages are append-only.
type Conversation struct {
	ID        ConversationID `json:"id"`
	Title     string         `json:"title"`
	Preview   string         `json:"preview"`
	Domain    Domain         `json:"domain"`
	Messages  []*Message     `json:"messages"`
	Timestamp string         `json:"timestamp"`
	UpdatedAt Timestamp      `json:"updatedAt"`
}

// Touch records a mutation at t.
func (c *Conversation) Touch(t time.Time) {
	c.UpdatedAt = t
	c.Timestamp = DisplayTime(t)
}

// Retitle derives title and preview from the latest user text.
func (c *Conversation) Retitle(text string) {
	c.Title = Truncate(text, titleLimit)
	c.Preview = Truncate(text, previewLimit)
}

// History returns the last n messages (all of them when n <= 0).
func (c *Conversation) History(n int) []*Message {
	if n <= 0 || len(c.Messages) <= n {
		return c.Messages
	}
	return c.Messages[len(c.Messages)-n:]
}

// Truncate keeps the first limit characters of s and marks the cut with "...".
func Truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit]) + ellipsis
}
