package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/huandu/go-clone"

	"github.com/PabloGalante/lawless-ai/internal/domain"
)

// RemoteStore is an in-memory domain.RemoteStore.
// It is NOT persistent and is only suitable for development / tests.
type RemoteStore struct {
	mu    sync.RWMutex
	convs map[domain.ConversationID]*domain.Conversation
	fail  error
}

func NewRemoteStore() *RemoteStore {
	return &RemoteStore{
		convs: make(map[domain.ConversationID]*domain.Conversation),
	}
}

// SetFailure makes every following call return err. nil restores the store.
func (s *RemoteStore) SetFailure(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = err
}

func (s *RemoteStore) UpsertConversation(ctx context.Context, c *domain.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fail != nil {
		return s.fail
	}
	s.convs[c.ID] = clone.Clone(c).(*domain.Conversation)
	return nil
}

func (s *RemoteStore) ListConversations(ctx context.Context) ([]*domain.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.fail != nil {
		return nil, s.fail
	}

	out := make([]*domain.Conversation, 0, len(s.convs))
	for _, c := range s.convs {
		out = append(out, clone.Clone(c).(*domain.Conversation))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (s *RemoteStore) DeleteConversation(ctx context.Context, id domain.ConversationID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fail != nil {
		return s.fail
	}
	delete(s.convs, id)
	return nil
}

func (s *RemoteStore) CountConversations(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.fail != nil {
		return 0, s.fail
	}
	return int64(len(s.convs)), nil
}

var _ domain.RemoteStore = (*RemoteStore)(nil)
