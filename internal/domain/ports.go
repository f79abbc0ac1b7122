package domain

import "context"

// CompletionClient defines how the core application asks an LLM for a reply.
// history is already bounded by the caller and must be sent as given.
type CompletionClient interface {
	Complete(ctx context.Context, prompt string, d Domain, history []*Message) (string, error)
}

// RemoteStore is the hosted document store holding one record per conversation.
type RemoteStore interface {
	// UpsertConversation replaces the whole record keyed by id.
	UpsertConversation(ctx context.Context, c *Conversation) error
	// ListConversations returns every record, most recently updated first.
	ListConversations(ctx context.Context) ([]*Conversation, error)
	DeleteConversation(ctx context.Context, id ConversationID) error
	CountConversations(ctx context.Context) (int64, error)
}

// LocalCache holds the full conversation list as a single blob.
// Reads and writes are always whole-blob.
type LocalCache interface {
	ReadAll() ([]*Conversation, error)
	WriteAll(convs []*Conversation) error
	// Update reads the list, applies fn and writes the result back as one
	// atomic step, so concurrent updates never drop each other's changes.
	Update(fn func([]*Conversation) []*Conversation) error
}
