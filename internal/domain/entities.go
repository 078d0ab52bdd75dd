package domain

import "time"

// Document is a corpus member. Slug is the stable external reference.
type Document struct {
	ID        int64
	Slug      string
	Title     string
	Body      string
	Type      string
	Weight    int // stored for future ranking bias, not read by retrieval
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DocumentRef is the slice of a Document the retrieval path needs.
type DocumentRef struct {
	ID   int64
	Slug string
}

// Chunk is a contiguous slice of a document body. Index is zero-based and
// contiguous per document within one ingestion run.
type Chunk struct {
	DocumentID int64
	Index      int
	Content    string
	Embedding  []float32
}

// RetrievedChunk is a chunk scored against one query. Request scoped.
type RetrievedChunk struct {
	DocumentID   int64   `json:"document_id"`
	DocumentSlug string  `json:"document_slug"`
	ChunkIndex   int     `json:"chunk_index"`
	Content      string  `json:"content"`
	Similarity   float64 `json:"similarity"`
}

// PackedContext is the budgeted, similarity-ordered result of a retrieval.
type PackedContext struct {
	Query       string           `json:"query"`
	BudgetChars int              `json:"budget_chars"`
	UsedChars   int              `json:"used_chars"`
	Chunks      []RetrievedChunk `json:"chunks"`
}

type Stats struct {
	Documents int
	Chunks    int
	PerDoc    map[string]int
}

// SchemaVersion is the layout version written by this build.
const SchemaVersion = 1

// SchemaInfo records what produced the stored vectors.
type SchemaInfo struct {
	Version        int    `json:"version"`
	EmbeddingModel string `json:"embedding_model"`
	Dimension      int    `json:"dimension"`
}
