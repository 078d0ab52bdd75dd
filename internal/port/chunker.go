package port

import "resumerag/internal/domain"

type Chunker interface {
	Chunk(doc domain.Document, body string) []domain.Chunk
}
