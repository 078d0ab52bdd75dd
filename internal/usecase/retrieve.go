package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"resumerag/internal/adapter/validator"
	"resumerag/internal/domain"
	"resumerag/internal/port"
)

// RetrieveOptions are the retrieval knobs.
type RetrieveOptions struct {
	CandidatesPerDoc int
	Window           WindowOptions
	Concurrency      int

	// LenientIdentifiers drops bad document identifiers instead of
	// rejecting the request. Query errors are always fatal.
	LenientIdentifiers bool
}

// DefaultRetrieveOptions returns the stock tuning.
func DefaultRetrieveOptions() RetrieveOptions {
	return RetrieveOptions{
		CandidatesPerDoc: 40,
		Window: WindowOptions{
			SeedsPerDoc:   1,
			SeedGap:       4,
			Radius:        2,
			TopCandidates: 6,
		},
		Concurrency: 4,
	}
}

// RetrieveUseCase turns a question into budgeted, similarity-ordered
// passages. It keeps no state between calls.
type RetrieveUseCase struct {
	store     port.RetrievalStore
	embedder  port.Embedder
	validator *validator.Validator
	limiter   port.RateLimiter
	packer    *PackUseCase
	opts      RetrieveOptions
	log       *slog.Logger
}

// NewRetrieveUseCase wires the retrieval pipeline. limiter may be nil to
// disable rate limiting; log may be nil.
func NewRetrieveUseCase(
	store port.RetrievalStore,
	embedder port.Embedder,
	validator *validator.Validator,
	limiter port.RateLimiter,
	packer *PackUseCase,
	opts RetrieveOptions,
	log *slog.Logger,
) *RetrieveUseCase {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &RetrieveUseCase{
		store:     store,
		embedder:  embedder,
		validator: validator,
		limiter:   limiter,
		packer:    packer,
		opts:      opts,
		log:       log,
	}
}

// Retrieve returns the packed passages for query. slugs may be empty for
// all documents; an empty clientID skips rate limiting.
func (u *RetrieveUseCase) Retrieve(ctx context.Context, slugs []string, query, clientID string) ([]domain.RetrievedChunk, error) {
	packed, err := u.Context(ctx, slugs, query, clientID)
	if err != nil {
		return nil, err
	}
	return packed.Chunks, nil
}

// Context is Retrieve with the packing bookkeeping attached.
func (u *RetrieveUseCase) Context(ctx context.Context, slugs []string, query, clientID string) (domain.PackedContext, error) {
	log := u.log.With("request_id", uuid.NewString())
	start := time.Now()

	packed, err := u.run(ctx, log, slugs, query, clientID)
	if err != nil {
		err = domain.WrapUnexpected(err)
		if domain.IsCode(err, domain.CodeUnexpected) {
			log.Error("unexpected error in retrieval", "error", err)
		}
		return domain.PackedContext{}, err
	}

	log.Debug("retrieval finished",
		"chunks", len(packed.Chunks),
		"used_chars", packed.UsedChars,
		"elapsed", time.Since(start))
	return packed, nil
}

func (u *RetrieveUseCase) run(ctx context.Context, log *slog.Logger, slugs []string, query, clientID string) (domain.PackedContext, error) {
	res := u.validator.Validate(query, slugs)
	if len(res.Errors) > 0 {
		log.Warn("input validation failed", "errors", res.Errors, "slugs", slugs)
		if !u.opts.LenientIdentifiers || !res.QueryValid() {
			return domain.PackedContext{}, res.Err()
		}
	}

	if clientID != "" && u.limiter != nil {
		allowed, resetAt := u.limiter.Allow(clientID)
		log.Debug("rate limit check", "client", clientID, "allowed", allowed)
		if !allowed {
			log.Warn("rate limit exceeded", "client", clientID, "reset_at", resetAt)
			return domain.PackedContext{}, domain.NewRateLimitError(resetAt)
		}
	}

	if err := ctx.Err(); err != nil {
		return domain.PackedContext{}, err
	}

	docs, err := u.store.ListDocuments(ctx, res.Slugs)
	if err != nil {
		if ctx.Err() != nil {
			return domain.PackedContext{}, ctx.Err()
		}
		log.Error("failed to fetch documents", "error", err)
		return domain.PackedContext{}, domain.NewDatabaseError("Failed to fetch documents", err)
	}
	if len(docs) == 0 {
		return u.packer.Pack(res.Query, nil), nil
	}

	vecs, err := u.embedder.Embed(ctx, []string{res.Query})
	if err == nil && len(vecs) != 1 {
		err = errEmbeddingCount(len(vecs))
	}
	if err != nil {
		if ctx.Err() != nil {
			return domain.PackedContext{}, ctx.Err()
		}
		log.Error("query embedding failed", "error", err)
		return domain.PackedContext{}, domain.NewEmbeddingError("Failed to generate query embedding", err)
	}
	qvec := vecs[0]

	gathered := u.gather(ctx, log, docs, qvec)
	if err := ctx.Err(); err != nil {
		return domain.PackedContext{}, err
	}

	return u.packer.Pack(res.Query, gathered), nil
}

// gather runs the per-document search concurrently. A failing document is
// logged and contributes nothing. Results are concatenated in document
// order so the final ranking does not depend on scheduling.
func (u *RetrieveUseCase) gather(ctx context.Context, log *slog.Logger, docs []domain.DocumentRef, qvec []float32) []domain.RetrievedChunk {
	perDoc := make([][]domain.RetrievedChunk, len(docs))

	var g errgroup.Group
	g.SetLimit(u.opts.Concurrency)
	for i, d := range docs {
		g.Go(func() error {
			chunks, err := u.searchDocument(ctx, d, qvec)
			if err != nil {
				log.Error("error processing document", "slug", d.Slug, "error", err)
				return nil
			}
			perDoc[i] = chunks
			return nil
		})
	}
	_ = g.Wait()

	var out []domain.RetrievedChunk
	for _, chunks := range perDoc {
		out = append(out, chunks...)
	}
	return out
}

func (u *RetrieveUseCase) searchDocument(ctx context.Context, d domain.DocumentRef, qvec []float32) ([]domain.RetrievedChunk, error) {
	candidates, err := u.store.NearestChunks(ctx, d.ID, qvec, u.opts.CandidatesPerDoc)
	if err != nil {
		return nil, err
	}

	indices := ExpandWindow(candidates, u.opts.Window)
	if len(indices) == 0 {
		return nil, nil
	}

	return u.store.ChunksByIndex(ctx, d.ID, qvec, indices)
}

func errEmbeddingCount(n int) error {
	return fmt.Errorf("provider returned %d vectors for one query", n)
}
