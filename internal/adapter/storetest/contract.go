// Package storetest holds the behaviour every port.Store must share.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resumerag/internal/domain"
	"resumerag/internal/port"
)

// Factory returns a fresh, empty store. Cleanup is the caller's job.
type Factory func(t *testing.T) port.Store

// Run executes the contract suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("UpsertInsertsThenOverwrites", func(t *testing.T) { testUpsert(t, newStore(t)) })
	t.Run("ListDocuments", func(t *testing.T) { testList(t, newStore(t)) })
	t.Run("NearestChunks", func(t *testing.T) { testNearest(t, newStore(t)) })
	t.Run("ChunksByIndex", func(t *testing.T) { testByIndex(t, newStore(t)) })
	t.Run("ReplaceChunksReplacesAll", func(t *testing.T) { testReplace(t, newStore(t)) })
	t.Run("UnknownDocument", func(t *testing.T) { testUnknown(t, newStore(t)) })
	t.Run("StatsAndSchema", func(t *testing.T) { testStatsAndSchema(t, newStore(t)) })
}

func mustUpsert(t *testing.T, s port.Store, slug string) domain.Document {
	t.Helper()
	doc, err := s.UpsertDocument(context.Background(), domain.Document{
		Slug:   slug,
		Title:  "Title " + slug,
		Body:   "Body of " + slug,
		Type:   "generic",
		Weight: 1,
	})
	require.NoError(t, err)
	require.NotZero(t, doc.ID)
	return doc
}

// chunks numbers vecs from zero and labels them "chunk a", "chunk b", ...
func chunks(docID int64, vecs ...[]float32) []domain.Chunk {
	out := make([]domain.Chunk, len(vecs))
	for i, v := range vecs {
		out[i] = domain.Chunk{
			DocumentID: docID,
			Index:      i,
			Content:    "chunk " + string(rune('a'+i)),
			Embedding:  v,
		}
	}
	return out
}

func testUpsert(t *testing.T, s port.Store) {
	ctx := context.Background()
	first := mustUpsert(t, s, "resume")

	time.Sleep(2 * time.Millisecond)
	second, err := s.UpsertDocument(ctx, domain.Document{
		Slug:   "resume",
		Title:  "Updated",
		Body:   "New body",
		Type:   "resume",
		Weight: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	got, err := s.GetDocument(ctx, "resume")
	require.NoError(t, err)
	assert.Equal(t, "Updated", got.Title)
	assert.Equal(t, "New body", got.Body)
	assert.Equal(t, "resume", got.Type)
	assert.Equal(t, 3, got.Weight)
	assert.False(t, got.UpdatedAt.Before(first.UpdatedAt))

	_, err = s.GetDocument(ctx, "missing")
	assert.Error(t, err)
}

func testList(t *testing.T, s port.Store) {
	ctx := context.Background()
	a := mustUpsert(t, s, "resume")
	b := mustUpsert(t, s, "about")

	all, err := s.ListDocuments(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, []domain.DocumentRef{{ID: a.ID, Slug: "resume"}, {ID: b.ID, Slug: "about"}}, all)

	some, err := s.ListDocuments(ctx, []string{"about", "nope", "about"})
	require.NoError(t, err)
	assert.Equal(t, []domain.DocumentRef{{ID: b.ID, Slug: "about"}}, some)
}

func testNearest(t *testing.T, s port.Store) {
	ctx := context.Background()
	doc := mustUpsert(t, s, "resume")
	require.NoError(t, s.ReplaceChunks(ctx, doc.ID, chunks(doc.ID,
		[]float32{0, 1, 0},  // orthogonal
		[]float32{1, 0, 0},  // identical direction
		[]float32{1, 1, 0},  // 45 degrees
		[]float32{-1, 0, 0}, // opposite
	)))

	got, err := s.NearestChunks(ctx, doc.ID, []float32{1, 0, 0}, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, 1, got[0].ChunkIndex)
	assert.InDelta(t, 1.0, got[0].Similarity, 1e-6)
	assert.Equal(t, 2, got[1].ChunkIndex)
	assert.InDelta(t, 0.7071, got[1].Similarity, 1e-3)
	assert.Equal(t, 0, got[2].ChunkIndex)
	assert.InDelta(t, 0.0, got[2].Similarity, 1e-6)

	for _, c := range got {
		assert.Equal(t, "resume", c.DocumentSlug)
		assert.Equal(t, doc.ID, c.DocumentID)
	}

	all, err := s.NearestChunks(ctx, doc.ID, []float32{1, 0, 0}, 40)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, 3, all[3].ChunkIndex)
	assert.Equal(t, 0.0, all[3].Similarity, "negative similarity is floored at zero")
}

func testByIndex(t *testing.T, s port.Store) {
	ctx := context.Background()
	doc := mustUpsert(t, s, "about")
	require.NoError(t, s.ReplaceChunks(ctx, doc.ID, chunks(doc.ID,
		[]float32{1, 0, 0},
		[]float32{0, 1, 0},
		[]float32{0, 0, 1},
		[]float32{1, 1, 1},
	)))

	got, err := s.ChunksByIndex(ctx, doc.ID, []float32{0, 1, 0}, []int{3, -1, 1, 9, 0, 1})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, 0, got[0].ChunkIndex)
	assert.Equal(t, 1, got[1].ChunkIndex)
	assert.Equal(t, 3, got[2].ChunkIndex)
	assert.InDelta(t, 1.0, got[1].Similarity, 1e-6)
	assert.Equal(t, "chunk b", got[1].Content)
}

func testReplace(t *testing.T, s port.Store) {
	ctx := context.Background()
	doc := mustUpsert(t, s, "resume")
	require.NoError(t, s.ReplaceChunks(ctx, doc.ID, chunks(doc.ID,
		[]float32{1, 0, 0}, []float32{0, 1, 0}, []float32{0, 0, 1},
	)))
	require.NoError(t, s.ReplaceChunks(ctx, doc.ID, chunks(doc.ID,
		[]float32{0, 0, 1},
	)))

	got, err := s.NearestChunks(ctx, doc.ID, []float32{1, 0, 0}, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 0, got[0].ChunkIndex)

	stale, err := s.ChunksByIndex(ctx, doc.ID, []float32{1, 0, 0}, []int{1, 2})
	require.NoError(t, err)
	assert.Empty(t, stale)
}

func testUnknown(t *testing.T, s port.Store) {
	ctx := context.Background()
	assert.Error(t, s.ReplaceChunks(ctx, 999, nil))
	_, err := s.NearestChunks(ctx, 999, []float32{1}, 5)
	assert.Error(t, err)

	doc := mustUpsert(t, s, "empty")
	got, err := s.NearestChunks(ctx, doc.ID, []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func testStatsAndSchema(t *testing.T, s port.Store) {
	ctx := context.Background()
	a := mustUpsert(t, s, "resume")
	mustUpsert(t, s, "about")
	require.NoError(t, s.ReplaceChunks(ctx, a.ID, chunks(a.ID, []float32{1, 0}, []float32{0, 1})))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Documents)
	assert.Equal(t, 2, stats.Chunks)
	assert.Equal(t, 2, stats.PerDoc["resume"])
	assert.Equal(t, 0, stats.PerDoc["about"])

	info, err := s.SchemaInfo(ctx)
	require.NoError(t, err)
	assert.Zero(t, info)

	want := domain.SchemaInfo{Version: 1, EmbeddingModel: "text-embedding-3-small", Dimension: 1536}
	require.NoError(t, s.SetSchemaInfo(ctx, want))
	info, err = s.SchemaInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, info)

	require.NoError(t, s.Clear(ctx))
	stats, err = s.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Documents)

	info, err = s.SchemaInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, info, "Clear keeps the schema record")
}
