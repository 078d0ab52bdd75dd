// Package app assembles stores, embedders and use cases from configuration.
package app

import (
	"errors"
	"fmt"
	"log/slog"

	"resumerag/config"
	"resumerag/internal/adapter/chunker"
	"resumerag/internal/adapter/embedding"
	"resumerag/internal/adapter/fs"
	"resumerag/internal/adapter/memstore"
	"resumerag/internal/adapter/ratelimit"
	"resumerag/internal/adapter/sqlite"
	"resumerag/internal/adapter/store"
	"resumerag/internal/adapter/validator"
	"resumerag/internal/logger"
	"resumerag/internal/port"
	"resumerag/internal/usecase"
)

// App owns the long-lived collaborators for one project directory.
type App struct {
	Config *config.Config
	Dir    string
	Log    *slog.Logger

	Store port.Store

	// Embedder is the raw provider used for ingestion. QueryEmbedder is
	// the same provider behind the query cache when one is configured.
	Embedder      port.Embedder
	QueryEmbedder port.Embedder

	// Limiter is nil when rate limiting is disabled.
	Limiter *ratelimit.FixedWindow
}

// Open validates cfg and opens everything it names. Close releases it.
func Open(cfg *config.Config, dir string, log *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if log == nil {
		log = logger.Discard()
	}

	emb, err := NewEmbedder(cfg.Embedding)
	if err != nil {
		return nil, err
	}

	st, err := OpenStore(cfg, dir)
	if err != nil {
		return nil, err
	}

	a := &App{
		Config:        cfg,
		Dir:           dir,
		Log:           log,
		Store:         st,
		Embedder:      emb,
		QueryEmbedder: emb,
	}
	if cfg.Embedding.QueryCacheSize > 0 {
		a.QueryEmbedder = embedding.NewCachedEmbedder(emb, cfg.Embedding.QueryCacheSize, cfg.Embedding.QueryCacheTTL)
	}
	if cfg.RateLimit.Enabled {
		a.Limiter = ratelimit.New(cfg.RateLimit.Window, cfg.RateLimit.MaxRequests,
			ratelimit.WithLogger(log.With("component", "ratelimit")))
		a.Limiter.Start(cfg.RateLimit.CleanupInterval)
	}
	return a, nil
}

// OpenStore opens the configured backend, creating .rag when the store
// lives in its default location.
func OpenStore(cfg *config.Config, dir string) (port.Store, error) {
	switch cfg.Store.Driver {
	case "memory":
		return memstore.NewMemoryStore(), nil
	case "sqlite":
		st, err := sqlite.NewStore(cfg.StorePath(dir))
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		return st, nil
	case "bolt", "":
		if cfg.Store.Path == "" {
			if err := config.EnsureRAGDir(dir); err != nil {
				return nil, fmt.Errorf("failed to create .rag directory: %w", err)
			}
		}
		st, err := store.NewBoltStore(cfg.StorePath(dir))
		if err != nil {
			return nil, fmt.Errorf("failed to open index store: %w", err)
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// NewEmbedder builds the configured provider.
func NewEmbedder(cfg config.EmbeddingConfig) (port.Embedder, error) {
	var opts []embedding.Option
	if cfg.RequestsPerSecond > 0 {
		opts = append(opts, embedding.WithRequestsPerSecond(cfg.RequestsPerSecond))
	}
	if cfg.Dimension > 0 {
		opts = append(opts, embedding.WithDimension(cfg.Dimension))
	}

	var (
		emb port.Embedder
		err error
	)
	switch cfg.Provider {
	case "openai":
		if cfg.BaseURL != "" {
			emb, err = embedding.NewOpenAICompatibleEmbedder(cfg.APIKeyEnv, cfg.Model, cfg.BaseURL, opts...)
		} else {
			emb, err = embedding.NewOpenAIEmbedder(cfg.APIKeyEnv, cfg.Model, opts...)
		}
	case "ollama":
		emb, err = embedding.NewOllamaEmbedder(cfg.Model, cfg.BaseURL, opts...)
	case "mock":
		emb = embedding.NewMockEmbedder(cfg.Dimension)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return emb, nil
}

func NewValidator(cfg config.ValidationConfig) *validator.Validator {
	return validator.New(validator.Options{
		MinQueryLength: cfg.MinQueryLength,
		MaxQueryLength: cfg.MaxQueryLength,
		MaxSlugs:       cfg.MaxSlugsPerRequest,
		AllowedSlugs:   cfg.AllowedSlugs,
	})
}

func RetrieveOptions(cfg config.RetrieveConfig) usecase.RetrieveOptions {
	return usecase.RetrieveOptions{
		CandidatesPerDoc: cfg.CandidatesPerDoc,
		Window: usecase.WindowOptions{
			SeedsPerDoc:   cfg.SeedsPerDoc,
			SeedGap:       cfg.SeedGap,
			Radius:        cfg.WindowRadius,
			TopCandidates: cfg.TopCandidates,
		},
		Concurrency:        cfg.Concurrency,
		LenientIdentifiers: cfg.LenientIdentifiers,
	}
}

func RetryPolicy(cfg config.EmbeddingConfig) usecase.RetryPolicy {
	return usecase.RetryPolicy{
		MaxRetries: cfg.MaxRetries,
		BaseDelay:  cfg.RetryBaseDelay,
		Jitter:     cfg.RetryJitter,
	}
}

// Retriever wires the query path.
func (a *App) Retriever() *usecase.RetrieveUseCase {
	var limiter port.RateLimiter
	if a.Limiter != nil {
		limiter = a.Limiter
	}
	return usecase.NewRetrieveUseCase(
		a.Store,
		a.QueryEmbedder,
		NewValidator(a.Config.Validation),
		limiter,
		a.Packer(),
		RetrieveOptions(a.Config.Retrieve),
		a.Log.With("component", "retrieve"),
	)
}

func (a *App) Packer() *usecase.PackUseCase {
	return usecase.NewPackUseCase(a.Config.Retrieve.MaxContextChars, a.Config.Retrieve.SeparatorChars)
}

// Ingester wires the write path.
func (a *App) Ingester() *usecase.IngestUseCase {
	return usecase.NewIngestUseCase(
		a.Store,
		chunker.NewTextChunker(a.Config.Chunk.TargetChars, a.Config.Chunk.OverlapChars),
		a.Embedder,
		usecase.IngestOptions{
			BatchSize: a.Config.Embedding.BatchSize,
			Retry:     RetryPolicy(a.Config.Embedding),
			Logger:    a.Log.With("component", "ingest"),
		},
	)
}

// Corpus returns the manifest reader rooted at the project directory.
func (a *App) Corpus() *fs.Corpus {
	entries := make([]fs.Entry, len(a.Config.Corpus.Documents))
	for i, d := range a.Config.Corpus.Documents {
		entries[i] = fs.Entry{
			Slug:   d.Slug,
			Title:  d.Title,
			Type:   d.Type,
			Weight: d.Weight,
			Path:   d.Path,
		}
	}
	return fs.NewCorpus(a.Config.CorpusRoot(a.Dir), entries)
}

// Close stops the limiter sweeper and closes the store.
func (a *App) Close() error {
	var errs []error
	if a.Limiter != nil {
		errs = append(errs, a.Limiter.Close())
	}
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	return errors.Join(errs...)
}
