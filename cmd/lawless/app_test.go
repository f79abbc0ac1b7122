package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/PabloGalante/lawless-ai/internal/app/conversation"
	"github.com/PabloGalante/lawless-ai/internal/app/persistence"
	"github.com/PabloGalante/lawless-ai/internal/config"
	"github.com/PabloGalante/lawless-ai/internal/domain"
)

func testConfig(t *testing.T, storage string) *config.Config {
	t.Helper()
	return &config.Config{
		Mode:    config.ModeLocal,
		Storage: config.Storage{Backend: storage},
		Cache:   config.Cache{Path: filepath.Join(t.TempDir(), "lawless.db")},
		Completion: config.Completion{
			Backend:      config.CompletionMock,
			HistoryLimit: 10,
		},
	}
}

func TestLocalCacheSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, config.StorageMemory)

	a, err := newApp(ctx, cfg)
	require.NoError(t, err)
	a.svc.Load(ctx)
	out, err := a.svc.SendMessage(ctx, conversation.SendMessageInput{Text: "Is my NDA enforceable?", Domain: domain.DomainLegal})
	require.NoError(t, err)
	require.NoError(t, a.Close())

	// Same cache file, no remote this time.
	cfg.Storage.Backend = config.StorageNone
	b, err := newApp(ctx, cfg)
	require.NoError(t, err)
	defer b.Close()

	assert.Equal(t, persistence.RemoteUnavailable, b.svc.Load(ctx))
	conv, ok := b.svc.Conversation(out.ConversationID)
	require.True(t, ok)
	assert.Len(t, conv.Messages, 2)
	assert.Equal(t, conversation.SyncLocalOnly, b.svc.Snapshot().Sync)
}

func TestInMemoryCache(t *testing.T) {
	cfg := testConfig(t, config.StorageNone)
	cfg.Cache.Path = config.CacheInMemory

	a, err := newApp(context.Background(), cfg)
	require.NoError(t, err)
	assert.NoError(t, a.Close())
}

func TestConversationOutYAML(t *testing.T) {
	c := &domain.Conversation{
		ID:     "c1",
		Domain: domain.DomainCoding,
		Messages: []*domain.Message{
			{ID: "m1", Text: "fix this bug", IsUser: true},
			{ID: "m2", Text: "Check the index."},
		},
	}
	c.Retitle("fix this bug")

	raw, err := yaml.Marshal(toConversationOut(c, true))
	require.NoError(t, err)

	var back map[string]any
	require.NoError(t, yaml.Unmarshal(raw, &back))
	assert.Equal(t, "fix this bug", back["title"])
	assert.Equal(t, 2, back["message_count"])
	msgs := back["messages"].([]any)
	assert.Equal(t, "assistant", msgs[1].(map[string]any)["role"])

	raw, err = yaml.Marshal(toConversationOut(c, false))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "messages:")
}
