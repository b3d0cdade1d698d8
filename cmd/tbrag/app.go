package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/physicalai/tbrag/internal/api"
	"github.com/physicalai/tbrag/internal/auth"
	"github.com/physicalai/tbrag/internal/blob"
	"github.com/physicalai/tbrag/internal/cache"
	"github.com/physicalai/tbrag/internal/config"
	"github.com/physicalai/tbrag/internal/embedding"
	"github.com/physicalai/tbrag/internal/generation"
	"github.com/physicalai/tbrag/internal/ingest"
	"github.com/physicalai/tbrag/internal/llm"
	"github.com/physicalai/tbrag/internal/ollama"
	"github.com/physicalai/tbrag/internal/profile"
	"github.com/physicalai/tbrag/internal/retrieval"
	"github.com/physicalai/tbrag/internal/storage"
	"github.com/physicalai/tbrag/internal/textbook"
	"github.com/physicalai/tbrag/internal/vectorindex"
)

const healthProbeKey = "health/probe"

// app holds the wired services shared by serve, ingest and mcp.
type app struct {
	cfg    config.Config
	logger *slog.Logger

	store    *storage.Store
	blobs    *blob.BadgerStore
	index    vectorindex.Index
	embedder *embedding.Embedder
	chapters *textbook.Source
	profiles *profile.Manager
	sessions *auth.Client

	pipeline     *retrieval.Pipeline
	personalizer *cache.Personalizer
	translator   *cache.Translator
	ingester     *ingest.Ingester
	worker       *ingest.Worker
}

func openApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (*app, error) {
	if err := ensureOllamaModels(ctx, cfg); err != nil {
		return nil, err
	}

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}
	blobs, err := blob.OpenBadger(cfg.Blob.Dir)
	if err != nil {
		store.Close()
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger, store: store, blobs: blobs}

	provider, err := embedding.NewProvider(ctx, embedding.Settings{
		Provider:  cfg.Embedding.Provider,
		Model:     cfg.Embedding.Model,
		APIKey:    cfg.Embedding.APIKey,
		BaseURL:   cfg.Embedding.BaseURL,
		Dimension: cfg.Embedding.Dimension,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("creating embedding provider: %w", err)
	}
	a.embedder = embedding.New(provider, embedding.Options{
		Dimension:         cfg.Embedding.Dimension,
		RequestsPerSecond: cfg.Embedding.RequestsPerSecond,
		Concurrency:       cfg.Ingest.Concurrency,
		Logger:            logger,
	})

	switch cfg.Vector.Backend {
	case "sqlite":
		a.index = vectorindex.NewSQLite(store.DB())
	default:
		a.index = vectorindex.NewQdrant(vectorindex.QdrantConfig{
			URL:        cfg.Vector.URL,
			APIKey:     cfg.Vector.APIKey,
			Collection: cfg.Vector.Collection,
			Dimension:  cfg.Embedding.Dimension,
		})
	}

	genTimeout, _ := cfg.GenerationTimeout()
	gen, err := llm.New(ctx, llm.Settings{
		Provider: cfg.Generation.Provider,
		Model:    cfg.Generation.Model,
		APIKey:   cfg.Generation.APIKey,
		BaseURL:  cfg.Generation.BaseURL,
		Timeout:  genTimeout,
	}, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("creating generator: %w", err)
	}
	orchestrator := generation.New(gen, logger)

	authTimeout, _ := cfg.AuthTimeout()
	a.sessions = auth.NewClient(cfg.Auth.URL, authTimeout, logger)
	a.chapters = textbook.New(cfg.Ingest.DocsDir)
	a.profiles = profile.NewManager(store)

	a.pipeline = retrieval.New(a.embedder, a.index, store, orchestrator, logger)
	a.personalizer = cache.NewPersonalizer(a.profiles, a.chapters, store, blobs, orchestrator, logger)
	a.translator = cache.NewTranslator(a.chapters, store, orchestrator, logger)

	a.ingester = ingest.New(a.embedder, a.index, store, ingest.Options{
		ChunkSize:   cfg.Ingest.ChunkSize,
		Overlap:     cfg.Ingest.Overlap,
		Concurrency: cfg.Ingest.Concurrency,
		Logger:      logger,
	})
	a.worker = ingest.NewWorker(store, a.ingester, 500*time.Millisecond, logger)

	return a, nil
}

// ensureOllamaModels pulls the local models used by providers set to ollama.
func ensureOllamaModels(ctx context.Context, cfg config.Config) error {
	byURL := map[string][]string{}
	add := func(provider, baseURL, model string) {
		if provider != "ollama" {
			return
		}
		if baseURL == "" {
			baseURL = ollama.DefaultBaseURL
		}
		byURL[baseURL] = append(byURL[baseURL], model)
	}
	add(cfg.Embedding.Provider, cfg.Embedding.BaseURL, cfg.Embedding.Model)
	add(cfg.Generation.Provider, cfg.Generation.BaseURL, cfg.Generation.Model)

	for baseURL, models := range byURL {
		if err := ollama.EnsureModels(ctx, ollama.New(baseURL), models, os.Stderr); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) healthChecks() []api.HealthCheck {
	return []api.HealthCheck{
		{Name: "sqlite", Check: a.store.Ping},
		{Name: "blob_store", Check: func(ctx context.Context) error {
			_, err := a.blobs.Exists(ctx, healthProbeKey)
			return err
		}},
		{Name: "vector_index", Check: func(ctx context.Context) error {
			_, err := a.index.Count(ctx)
			return err
		}},
	}
}

func (a *app) Close() {
	if a.blobs != nil {
		if err := a.blobs.Close(); err != nil {
			a.logger.Warn("closing blob store", "error", err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("closing storage", "error", err)
		}
	}
}

// loadApp loads config, configures logging and opens the app.
func loadApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := setupLogging(cfg.Log.Level)
	return openApp(ctx, cfg, logger)
}
