package port

import (
	"context"

	"resumerag/internal/domain"
)

// DocumentStore owns document metadata keyed by unique slug.
type DocumentStore interface {
	// UpsertDocument inserts the document if its slug is new, otherwise
	// overwrites title, body, type and weight and bumps UpdatedAt.
	UpsertDocument(ctx context.Context, doc domain.Document) (domain.Document, error)

	// ListDocuments returns documents matching slugs, or all documents
	// when slugs is empty. Results are ordered by ID.
	ListDocuments(ctx context.Context, slugs []string) ([]domain.DocumentRef, error)

	GetDocument(ctx context.Context, slug string) (domain.Document, error)
}

// ChunkStore owns chunk rows and their vectors.
type ChunkStore interface {
	// NearestChunks returns at most limit chunks of one document ordered by
	// ascending cosine distance to query. Similarity is 1-distance clamped
	// to [0,1].
	NearestChunks(ctx context.Context, docID int64, query []float32, limit int) ([]domain.RetrievedChunk, error)

	// ChunksByIndex returns the listed chunks of one document ordered by
	// index, each scored against query. Missing indices are skipped.
	ChunksByIndex(ctx context.Context, docID int64, query []float32, indices []int) ([]domain.RetrievedChunk, error)

	// ReplaceChunks deletes every chunk of the document and inserts chunks,
	// atomically for that document.
	ReplaceChunks(ctx context.Context, docID int64, chunks []domain.Chunk) error
}

// Store is the full persistence contract.
type Store interface {
	DocumentStore
	ChunkStore

	Stats(ctx context.Context) (domain.Stats, error)
	SchemaInfo(ctx context.Context) (domain.SchemaInfo, error)
	SetSchemaInfo(ctx context.Context, info domain.SchemaInfo) error

	// Clear drops every document and chunk, keeping the schema record.
	Clear(ctx context.Context) error
	Close() error
}

// RetrievalStore is the read side the retrieval path needs.
type RetrievalStore interface {
	ListDocuments(ctx context.Context, slugs []string) ([]domain.DocumentRef, error)
	NearestChunks(ctx context.Context, docID int64, query []float32, limit int) ([]domain.RetrievedChunk, error)
	ChunksByIndex(ctx context.Context, docID int64, query []float32, indices []int) ([]domain.RetrievedChunk, error)
}
