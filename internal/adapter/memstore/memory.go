package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"resumerag/internal/adapter/vector"
	"resumerag/internal/domain"
	"resumerag/internal/port"
)

var _ port.Store = (*MemoryStore)(nil)

// MemoryStore is a process-local port.Store used by tests and dry runs.
type MemoryStore struct {
	mu     sync.RWMutex
	nextID int64
	docs   map[string]domain.Document
	slugs  map[int64]string
	chunks map[int64][]domain.Chunk
	schema domain.SchemaInfo
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:   make(map[string]domain.Document),
		slugs:  make(map[int64]string),
		chunks: make(map[int64][]domain.Chunk),
	}
}

func (s *MemoryStore) UpsertDocument(ctx context.Context, doc domain.Document) (domain.Document, error) {
	if err := ctx.Err(); err != nil {
		return domain.Document{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if existing, ok := s.docs[doc.Slug]; ok {
		doc.ID = existing.ID
		doc.CreatedAt = existing.CreatedAt
	} else {
		s.nextID++
		doc.ID = s.nextID
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	s.docs[doc.Slug] = doc
	s.slugs[doc.ID] = doc.Slug
	return doc, nil
}

func (s *MemoryStore) ListDocuments(ctx context.Context, slugs []string) ([]domain.DocumentRef, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var refs []domain.DocumentRef
	if len(slugs) == 0 {
		for id, slug := range s.slugs {
			refs = append(refs, domain.DocumentRef{ID: id, Slug: slug})
		}
	} else {
		seen := make(map[string]bool, len(slugs))
		for _, slug := range slugs {
			doc, ok := s.docs[slug]
			if !ok || seen[slug] {
				continue
			}
			seen[slug] = true
			refs = append(refs, domain.DocumentRef{ID: doc.ID, Slug: slug})
		}
	}

	sort.Slice(refs, func(i, j int) bool { return refs[i].ID < refs[j].ID })
	return refs, nil
}

func (s *MemoryStore) GetDocument(ctx context.Context, slug string) (domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[slug]
	if !ok {
		return domain.Document{}, fmt.Errorf("document not found: %s", slug)
	}
	return doc, nil
}

func (s *MemoryStore) NearestChunks(ctx context.Context, docID int64, query []float32, limit int) ([]domain.RetrievedChunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	slug, ok := s.slugs[docID]
	if !ok {
		return nil, fmt.Errorf("document not found: %d", docID)
	}

	var out []domain.RetrievedChunk
	for _, sc := range vector.Nearest(s.chunks[docID], query, limit) {
		out = append(out, vector.ToRetrieved(sc.Chunk, slug, sc.Distance))
	}
	return out, nil
}

func (s *MemoryStore) ChunksByIndex(ctx context.Context, docID int64, query []float32, indices []int) ([]domain.RetrievedChunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	slug, ok := s.slugs[docID]
	if !ok {
		return nil, fmt.Errorf("document not found: %d", docID)
	}

	want := make(map[int]bool, len(indices))
	for _, i := range indices {
		want[i] = true
	}

	// chunks are kept sorted by index, see ReplaceChunks
	var out []domain.RetrievedChunk
	for _, c := range s.chunks[docID] {
		if want[c.Index] {
			out = append(out, vector.ToRetrieved(c, slug, vector.CosineDistance(query, c.Embedding)))
		}
	}
	return out, nil
}

func (s *MemoryStore) ReplaceChunks(ctx context.Context, docID int64, chunks []domain.Chunk) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.slugs[docID]; !ok {
		return fmt.Errorf("document not found: %d", docID)
	}

	cp := make([]domain.Chunk, len(chunks))
	copy(cp, chunks)
	sort.SliceStable(cp, func(i, j int) bool { return cp[i].Index < cp[j].Index })
	s.chunks[docID] = cp
	return nil
}

func (s *MemoryStore) Stats(ctx context.Context) (domain.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := domain.Stats{Documents: len(s.docs), PerDoc: make(map[string]int, len(s.docs))}
	for id, slug := range s.slugs {
		n := len(s.chunks[id])
		stats.PerDoc[slug] = n
		stats.Chunks += n
	}
	return stats, nil
}

func (s *MemoryStore) SchemaInfo(ctx context.Context) (domain.SchemaInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.schema, nil
}

func (s *MemoryStore) SetSchemaInfo(ctx context.Context, info domain.SchemaInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schema = info
	return nil
}

func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs = make(map[string]domain.Document)
	s.slugs = make(map[int64]string)
	s.chunks = make(map[int64][]domain.Chunk)
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
