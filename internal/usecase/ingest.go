package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"resumerag/internal/domain"
	"resumerag/internal/port"
)

// ErrSchemaMismatch means the store holds vectors from another model or
// dimension. Rebuild before ingesting.
var ErrSchemaMismatch = errors.New("stored vectors were produced by a different embedding model")

// ProgressFunc reports embedded chunks for one document after each batch.
type ProgressFunc func(slug string, done, total int)

// IngestOptions tune the embedding loop.
type IngestOptions struct {
	BatchSize int
	Retry     RetryPolicy
	Logger    *slog.Logger
}

// IngestUseCase makes the store's state for a document match its source.
type IngestUseCase struct {
	store     port.Store
	chunker   port.Chunker
	embedder  port.Embedder
	batchSize int
	retry     RetryPolicy
	log       *slog.Logger
	progress  ProgressFunc
}

// IngestResult describes one ingested document.
type IngestResult struct {
	Slug       string `json:"slug"`
	DocumentID int64  `json:"document_id"`
	Inserted   int    `json:"inserted"`
}

// NewIngestUseCase creates a new ingest use case.
func NewIngestUseCase(store port.Store, chunker port.Chunker, embedder port.Embedder, opts IngestOptions) *IngestUseCase {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 64
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &IngestUseCase{
		store:     store,
		chunker:   chunker,
		embedder:  embedder,
		batchSize: opts.BatchSize,
		retry:     opts.Retry,
		log:       opts.Logger,
	}
}

// OnProgress installs a progress callback. Not safe to call concurrently
// with Ingest.
func (u *IngestUseCase) OnProgress(fn ProgressFunc) {
	u.progress = fn
}

// CheckSchema compares the stored schema record with the configured
// embedder. An empty store always passes.
func (u *IngestUseCase) CheckSchema(ctx context.Context) error {
	info, err := u.store.SchemaInfo(ctx)
	if err != nil {
		return domain.NewDatabaseError("Failed to read schema info", err)
	}
	if info == (domain.SchemaInfo{}) {
		return nil
	}
	if info.EmbeddingModel != u.embedder.ModelName() || info.Dimension != u.embedder.Dimension() {
		return fmt.Errorf("%w: store has %s/%d, embedder is %s/%d", ErrSchemaMismatch,
			info.EmbeddingModel, info.Dimension, u.embedder.ModelName(), u.embedder.Dimension())
	}
	return nil
}

// Rebuild drops every document and stamps the store for the current
// embedder.
func (u *IngestUseCase) Rebuild(ctx context.Context) error {
	if err := u.store.Clear(ctx); err != nil {
		return domain.NewDatabaseError("Failed to clear store", err)
	}
	return u.stampSchema(ctx)
}

func (u *IngestUseCase) stampSchema(ctx context.Context) error {
	err := u.store.SetSchemaInfo(ctx, domain.SchemaInfo{
		Version:        domain.SchemaVersion,
		EmbeddingModel: u.embedder.ModelName(),
		Dimension:      u.embedder.Dimension(),
	})
	if err != nil {
		return domain.NewDatabaseError("Failed to write schema info", err)
	}
	return nil
}

// Ingest upserts doc, embeds its chunks in batches and swaps them in only
// after every batch succeeded. An empty body is a no-op.
func (u *IngestUseCase) Ingest(ctx context.Context, doc domain.Document) (IngestResult, error) {
	result := IngestResult{Slug: doc.Slug}

	var missing []string
	if strings.TrimSpace(doc.Slug) == "" {
		missing = append(missing, "slug is required")
	}
	if strings.TrimSpace(doc.Title) == "" {
		missing = append(missing, "title is required")
	}
	if len(missing) > 0 {
		return result, domain.NewValidationError("slug and title are required", missing)
	}
	if strings.TrimSpace(doc.Body) == "" {
		u.log.Info("skipping empty document", "slug", doc.Slug)
		return result, nil
	}
	if doc.Type == "" {
		doc.Type = "generic"
	}
	if doc.Weight == 0 {
		doc.Weight = 1
	}

	if err := u.CheckSchema(ctx); err != nil {
		return result, err
	}

	stored, err := u.store.UpsertDocument(ctx, doc)
	if err != nil {
		return result, domain.NewDatabaseError("Failed to upsert document", err)
	}
	result.DocumentID = stored.ID

	chunks := u.chunker.Chunk(stored, doc.Body)
	if len(chunks) == 0 {
		return result, nil
	}

	if err := u.embed(ctx, doc.Slug, chunks); err != nil {
		return result, err
	}

	if err := u.store.ReplaceChunks(ctx, stored.ID, chunks); err != nil {
		return result, domain.NewDatabaseError("Failed to replace chunks", err)
	}

	info, err := u.store.SchemaInfo(ctx)
	if err != nil {
		return result, domain.NewDatabaseError("Failed to read schema info", err)
	}
	if info == (domain.SchemaInfo{}) {
		if err := u.stampSchema(ctx); err != nil {
			return result, err
		}
	}

	result.Inserted = len(chunks)
	u.log.Info("ingested document", "slug", doc.Slug, "id", stored.ID, "chunks", len(chunks))
	return result, nil
}

// embed fills in chunk embeddings batch by batch. Nothing is written on
// failure.
func (u *IngestUseCase) embed(ctx context.Context, slug string, chunks []domain.Chunk) error {
	total := len(chunks)
	for start := 0; start < total; start += u.batchSize {
		end := start + u.batchSize
		if end > total {
			end = total
		}

		texts := make([]string, end-start)
		for i := range texts {
			texts[i] = chunks[start+i].Content
		}

		var vecs [][]float32
		err := u.retry.Do(ctx, func(ctx context.Context) error {
			var err error
			vecs, err = u.embedder.Embed(ctx, texts)
			if err != nil {
				u.log.Warn("embedding batch failed", "slug", slug, "start", start, "error", err)
				return err
			}
			if len(vecs) != len(texts) {
				return fmt.Errorf("provider returned %d vectors for %d texts", len(vecs), len(texts))
			}
			return nil
		})
		if err != nil {
			u.log.Error("embedding failed", "slug", slug, "error", err)
			return domain.NewEmbeddingError("Failed to generate embeddings", err)
		}

		for i, v := range vecs {
			chunks[start+i].Embedding = v
		}
		if u.progress != nil {
			u.progress(slug, end, total)
		}
	}
	return nil
}

// IngestCorpus ingests every document the reader yields, in order, and
// stops at the first failure.
func (u *IngestUseCase) IngestCorpus(ctx context.Context, corpus port.CorpusReader) ([]IngestResult, error) {
	docs, err := corpus.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus: %w", err)
	}

	results := make([]IngestResult, 0, len(docs))
	for _, doc := range docs {
		res, err := u.Ingest(ctx, doc)
		if err != nil {
			return results, fmt.Errorf("failed to ingest %s: %w", doc.Slug, err)
		}
		results = append(results, res)
	}
	return results, nil
}
