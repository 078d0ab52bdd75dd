package usecase

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"resumerag/internal/domain"
)

func chunkOf(slug string, idx int, sim float64, content string) domain.RetrievedChunk {
	return domain.RetrievedChunk{DocumentSlug: slug, ChunkIndex: idx, Similarity: sim, Content: content}
}

func TestPackBudget(t *testing.T) {
	packer := NewPackUseCase(20, 2)
	chunks := []domain.RetrievedChunk{
		chunkOf("resume", 0, 0.5, strings.Repeat("a", 8)),
		chunkOf("resume", 1, 0.9, strings.Repeat("b", 8)),
		chunkOf("about", 0, 0.7, strings.Repeat("c", 8)),
	}

	packed := packer.Pack("q", chunks)

	// 10 + 10 fits exactly, the third would make 30.
	assert.Equal(t, 20, packed.UsedChars)
	assert.Equal(t, 20, packed.BudgetChars)
	assert.Equal(t, "q", packed.Query)
	if assert.Len(t, packed.Chunks, 2) {
		assert.Equal(t, 0.9, packed.Chunks[0].Similarity)
		assert.Equal(t, 0.7, packed.Chunks[1].Similarity)
	}
}

func TestPackStopsAtFirstOverflow(t *testing.T) {
	packer := NewPackUseCase(30, 2)
	chunks := []domain.RetrievedChunk{
		chunkOf("resume", 0, 0.9, strings.Repeat("a", 10)),
		chunkOf("resume", 1, 0.8, strings.Repeat("b", 40)),
		chunkOf("resume", 2, 0.7, "tiny"),
	}

	packed := packer.Pack("q", chunks)

	// The small chunk after the oversized one is not considered.
	assert.Len(t, packed.Chunks, 1)
	assert.Equal(t, 12, packed.UsedChars)
}

func TestPackStableOnTies(t *testing.T) {
	packer := NewPackUseCase(1000, 2)
	chunks := []domain.RetrievedChunk{
		chunkOf("resume", 4, 0.5, "x"),
		chunkOf("resume", 5, 0.5, "y"),
		chunkOf("about", 1, 0.5, "z"),
		chunkOf("about", 2, 0.6, "w"),
	}

	packed := packer.Pack("q", chunks)

	var order []string
	for _, c := range packed.Chunks {
		order = append(order, c.Content)
	}
	assert.Equal(t, []string{"w", "x", "y", "z"}, order)
	assert.Equal(t, "x", chunks[0].Content, "input is not reordered")
}

func TestPackCountsRunes(t *testing.T) {
	packer := NewPackUseCase(7, 2)
	packed := packer.Pack("q", []domain.RetrievedChunk{chunkOf("about", 0, 1, "héllo")})
	assert.Len(t, packed.Chunks, 1)
	assert.Equal(t, 7, packed.UsedChars)
}

func TestPackEmpty(t *testing.T) {
	packed := NewPackUseCase(4500, 2).Pack("q", nil)
	assert.NotNil(t, packed.Chunks)
	assert.Empty(t, packed.Chunks)
	assert.Zero(t, packed.UsedChars)
}

func TestPackNeverExceedsBudget(t *testing.T) {
	packer := NewPackUseCase(4500, 2)
	var chunks []domain.RetrievedChunk
	for i := 0; i < 60; i++ {
		chunks = append(chunks, chunkOf("resume", i, float64(i%7)/7, strings.Repeat("z", 50+i*13)))
	}

	packed := packer.Pack("q", chunks)

	total := 0
	for i, c := range packed.Chunks {
		total += len(c.Content) + 2
		if i > 0 {
			assert.GreaterOrEqual(t, packed.Chunks[i-1].Similarity, c.Similarity)
		}
	}
	assert.LessOrEqual(t, total, 4500)
	assert.Equal(t, total, packed.UsedChars)
}
