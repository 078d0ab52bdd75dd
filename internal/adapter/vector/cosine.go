// Package vector holds the similarity math shared by every store.
package vector

import (
	"encoding/binary"
	"math"
	"sort"

	"resumerag/internal/domain"
)

// CosineDistance returns 1 - cosine similarity. Mismatched or zero vectors
// are maximally distant from everything.
func CosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 1
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 1
	}

	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}

// Similarity converts a distance to a score in [0,1].
func Similarity(distance float64) float64 {
	return math.Min(1, math.Max(0, 1-distance))
}

// Scored is a chunk with its distance to a query.
type Scored struct {
	Chunk    domain.Chunk
	Distance float64
}

// Nearest scores chunks against query and returns at most limit of them
// by ascending distance, ties broken by chunk index.
func Nearest(chunks []domain.Chunk, query []float32, limit int) []Scored {
	scored := make([]Scored, 0, len(chunks))
	for _, c := range chunks {
		scored = append(scored, Scored{Chunk: c, Distance: CosineDistance(query, c.Embedding)})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Distance != scored[j].Distance {
			return scored[i].Distance < scored[j].Distance
		}
		return scored[i].Chunk.Index < scored[j].Chunk.Index
	})

	if limit >= 0 && limit < len(scored) {
		scored = scored[:limit]
	}
	return scored
}

// ToRetrieved annotates a chunk for the retrieval path.
func ToRetrieved(c domain.Chunk, slug string, distance float64) domain.RetrievedChunk {
	return domain.RetrievedChunk{
		DocumentID:   c.DocumentID,
		DocumentSlug: slug,
		ChunkIndex:   c.Index,
		Content:      c.Content,
		Similarity:   Similarity(distance),
	}
}

// Encode packs a vector as little-endian float32s.
func Encode(v []float32) []byte {
	if len(v) == 0 {
		return nil
	}
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// Decode reverses Encode.
func Decode(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	v := make([]float32, len(data)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return v
}
