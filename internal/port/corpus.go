package port

import (
	"context"

	"resumerag/internal/domain"
)

// CorpusReader yields the documents to ingest, bodies already extracted
// and normalized. ID and timestamps are left zero.
type CorpusReader interface {
	Read(ctx context.Context) ([]domain.Document, error)
}
