package postgres_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/PabloGalante/lawless-ai/internal/adapters/storage/postgres"
	"github.com/PabloGalante/lawless-ai/internal/domain"
)

// The store only relies on portable gorm features, so sqlite stands in for
// Postgres in unit tests.
func newStore(t *testing.T) *postgres.Store {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "lawless.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	s, err := postgres.NewStore(db)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sample(id string, at time.Time) *domain.Conversation {
	c := &domain.Conversation{
		ID:      domain.ConversationID(id),
		Title:   "fix this bug",
		Preview: "fix this bug",
		Domain:  domain.DomainCoding,
		Messages: []*domain.Message{
			{ID: "u1", Text: "fix this bug", IsUser: true, Domain: domain.DomainCoding, Timestamp: "10:00", CreatedAt: at},
			{ID: "a1", Text: "Here is a patch", Domain: domain.DomainCoding, Timestamp: "10:00", CreatedAt: at},
		},
	}
	c.Touch(at)
	return c
}

func TestUpsertAndListRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	at := time.Now().UTC().Truncate(time.Microsecond)

	in := sample("c1", at)
	require.NoError(t, s.UpsertConversation(ctx, in))

	list, err := s.ListConversations(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	got := list[0]
	assert.Equal(t, in.ID, got.ID)
	assert.Equal(t, in.Domain, got.Domain)
	require.Len(t, got.Messages, 2)
	for i := range in.Messages {
		assert.Equal(t, in.Messages[i].ID, got.Messages[i].ID)
		assert.Equal(t, in.Messages[i].Text, got.Messages[i].Text)
		assert.Equal(t, in.Messages[i].IsUser, got.Messages[i].IsUser)
	}
	assert.True(t, at.Equal(got.UpdatedAt))
}

func TestUpsertReplacesMessageArray(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	at := time.Now().UTC()

	c := sample("c1", at)
	require.NoError(t, s.UpsertConversation(ctx, c))

	c.Messages = c.Messages[:1]
	c.Title = "renamed"
	require.NoError(t, s.UpsertConversation(ctx, c))

	list, err := s.ListConversations(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "renamed", list[0].Title)
	assert.Len(t, list[0].Messages, 1)
}

func TestListOrdersByUpdatedAtDesc(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	base := time.Now().UTC()

	require.NoError(t, s.UpsertConversation(ctx, sample("older", base.Add(-time.Hour))))
	require.NoError(t, s.UpsertConversation(ctx, sample("newer", base)))

	list, err := s.ListConversations(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, domain.ConversationID("newer"), list[0].ID)
	assert.Equal(t, domain.ConversationID("older"), list[1].ID)
}

func TestEmptyTableIsNotAnError(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	list, err := s.ListConversations(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	n, err := s.CountConversations(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDeleteConversation(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	require.NoError(t, s.UpsertConversation(ctx, sample("c1", time.Now())))
	require.NoError(t, s.DeleteConversation(ctx, "c1"))
	require.NoError(t, s.DeleteConversation(ctx, "missing"))

	n, err := s.CountConversations(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
