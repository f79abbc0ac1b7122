package firestore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/lawless-ai/internal/domain"
)

// Runs against the Firestore emulator only:
//
//	gcloud emulators firestore start --host-port=localhost:8081
//	FIRESTORE_EMULATOR_HOST=localhost:8081 go test ./internal/adapters/storage/firestore/
func emulatorStore(t *testing.T) *Store {
	t.Helper()
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}

	s, err := NewStore(context.Background(), "lawless-test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testConversation(updated time.Time) *domain.Conversation {
	id := uuid.NewString()
	c := &domain.Conversation{
		ID:     domain.ConversationID(id),
		Domain: domain.DomainCoding,
		Messages: []*domain.Message{
			{ID: domain.MessageID(id + "-u"), Text: "why does this panic", IsUser: true, Domain: domain.DomainCoding, CreatedAt: updated},
			{ID: domain.MessageID(id + "-a"), Text: "nil map write", Domain: domain.DomainCoding, CreatedAt: updated},
		},
	}
	c.Retitle("why does this panic")
	c.Touch(updated)
	return c
}

func TestEmulatorRoundTrip(t *testing.T) {
	s := emulatorStore(t)
	ctx := context.Background()

	before, err := s.CountConversations(ctx)
	require.NoError(t, err)

	now := time.Now().UTC().Truncate(time.Millisecond)
	older := testConversation(now.Add(-time.Hour))
	newer := testConversation(now)
	require.NoError(t, s.UpsertConversation(ctx, older))
	require.NoError(t, s.UpsertConversation(ctx, newer))

	n, err := s.CountConversations(ctx)
	require.NoError(t, err)
	assert.Equal(t, before+2, n)

	listed, err := s.ListConversations(ctx)
	require.NoError(t, err)
	pos := map[domain.ConversationID]int{}
	for i, c := range listed {
		pos[c.ID] = i
	}
	require.Contains(t, pos, older.ID)
	require.Contains(t, pos, newer.ID)
	assert.Less(t, pos[newer.ID], pos[older.ID])

	got := listed[pos[newer.ID]]
	assert.Equal(t, newer.Title, got.Title)
	require.Len(t, got.Messages, 2)
	assert.True(t, got.Messages[0].IsUser)
	assert.Equal(t, "nil map write", got.Messages[1].Text)

	// Upsert replaces the message array.
	newer.Messages = newer.Messages[:1]
	require.NoError(t, s.UpsertConversation(ctx, newer))

	require.NoError(t, s.DeleteConversation(ctx, older.ID))
	require.NoError(t, s.DeleteConversation(ctx, older.ID))

	listed, err = s.ListConversations(ctx)
	require.NoError(t, err)
	for _, c := range listed {
		assert.NotEqual(t, older.ID, c.ID)
		if c.ID == newer.ID {
			assert.Len(t, c.Messages, 1)
		}
	}

	require.NoError(t, s.DeleteConversation(ctx, newer.ID))
}
