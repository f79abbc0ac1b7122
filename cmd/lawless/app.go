package main

import (
	"context"
	"errors"
	"log/slog"

	pkgerrors "github.com/pkg/errors"

	"github.com/PabloGalante/lawless-ai/internal/adapters/llm"
	firestorestore "github.com/PabloGalante/lawless-ai/internal/adapters/storage/firestore"
	"github.com/PabloGalante/lawless-ai/internal/adapters/storage/local"
	memstore "github.com/PabloGalante/lawless-ai/internal/adapters/storage/memory"
	"github.com/PabloGalante/lawless-ai/internal/adapters/storage/postgres"
	"github.com/PabloGalante/lawless-ai/internal/app/conversation"
	"github.com/PabloGalante/lawless-ai/internal/app/persistence"
	"github.com/PabloGalante/lawless-ai/internal/config"
	"github.com/PabloGalante/lawless-ai/internal/domain"
	"github.com/PabloGalante/lawless-ai/internal/observability"
)

// app holds the wired components shared by every command.
type app struct {
	completion domain.CompletionClient
	store      *persistence.Orchestrator
	svc        *conversation.Service

	closers []func() error
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{}
	ok := false
	defer func() {
		if !ok {
			_ = a.Close()
		}
	}()

	log := observability.WithFields("component", "wiring")

	remote, err := a.openRemote(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	cache, err := a.openCache(cfg, log)
	if err != nil {
		return nil, err
	}
	a.store = persistence.New(remote, cache)

	completion, err := newCompletion(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	a.completion = completion
	a.svc = conversation.NewService(a.completion, a.store,
		conversation.WithHistoryLimit(cfg.Completion.HistoryLimit),
	)
	a.closers = append(a.closers, a.svc.Close)
	ok = true
	return a, nil
}

func (a *app) openRemote(ctx context.Context, cfg *config.Config, log *slog.Logger) (domain.RemoteStore, error) {
	switch cfg.Storage.Backend {
	case config.StoragePostgres:
		log.Info("using postgres remote store")
		store, err := postgres.Open(cfg.Storage.DSN)
		if err != nil {
			return nil, pkgerrors.Wrap(err, "opening postgres store")
		}
		a.closers = append(a.closers, store.Close)
		return store, nil

	case config.StorageFirestore:
		log.Info("using firestore remote store", "project", cfg.Storage.GCPProjectID)
		store, err := firestorestore.NewStore(ctx, cfg.Storage.GCPProjectID)
		if err != nil {
			return nil, pkgerrors.Wrap(err, "opening firestore store")
		}
		a.closers = append(a.closers, store.Close)
		return store, nil

	case config.StorageMemory:
		log.Info("using in-memory remote store")
		return memstore.NewRemoteStore(), nil

	default:
		log.Info("no remote store, running local-only")
		return nil, nil
	}
}

func (a *app) openCache(cfg *config.Config, log *slog.Logger) (domain.LocalCache, error) {
	if cfg.Cache.Path == config.CacheInMemory {
		log.Info("using in-memory local cache")
		return memstore.NewBlobCache(), nil
	}

	log.Info("using bbolt local cache", "path", cfg.Cache.Path)
	cache, err := local.Open(cfg.Cache.Path)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "opening local cache")
	}
	a.closers = append(a.closers, cache.Close)
	return cache, nil
}

func newCompletion(ctx context.Context, cfg *config.Config, log *slog.Logger) (domain.CompletionClient, error) {
	c := cfg.Completion
	switch c.Backend {
	case config.CompletionProxy:
		log.Info("using completion proxy", "url", c.ProxyURL)
		return llm.NewProxyClient(c.ProxyURL, c.Timeout), nil

	case config.CompletionOpenAI:
		log.Info("using openai compatible completion", "base_url", c.BaseURL, "model", c.Model)
		return llm.NewOpenAIClient(llm.OpenAIOptions{
			APIKey:  c.APIKey,
			BaseURL: c.BaseURL,
			Model:   c.Model,
			Timeout: c.Timeout,
		})

	case config.CompletionVertex:
		log.Info("using vertex completion", "project", c.GCPProjectID, "location", c.GCPLocation)
		return llm.NewVertexClient(ctx, llm.VertexOptions{
			ProjectID: c.GCPProjectID,
			Location:  c.GCPLocation,
			Model:     c.Model,
		})

	default:
		log.Info("using mock completion")
		return llm.NewMockLLM(), nil
	}
}

// Close releases everything in reverse opening order.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
