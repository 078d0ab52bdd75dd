package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.etcd.io/bbolt"
	"resumerag/internal/adapter/vector"
	"resumerag/internal/domain"
	"resumerag/internal/port"
)

var (
	bucketDocs   = []byte("docs")
	bucketDocIDs = []byte("doc_ids")
	bucketChunks = []byte("chunks")
	bucketMeta   = []byte("meta")
	keySchema    = []byte("schema")
)

var _ port.Store = (*BoltStore)(nil)

// BoltStore keeps documents keyed by slug and one nested chunk bucket per
// document, so replacing a document's chunks is a single transaction.
type BoltStore struct {
	db *bbolt.DB
}

func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	s := &BoltStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

type docRecord struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Type      string    `json:"type"`
	Weight    int       `json:"weight"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type storedChunk struct {
	Content string    `json:"c"`
	Vector  []float32 `json:"v"`
}

func (s *BoltStore) UpsertDocument(ctx context.Context, doc domain.Document) (domain.Document, error) {
	if err := ctx.Err(); err != nil {
		return domain.Document{}, err
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		docs := tx.Bucket(bucketDocs)
		now := time.Now().UTC()

		var rec docRecord
		if data := docs.Get([]byte(doc.Slug)); data != nil {
			if err := json.Unmarshal(data, &rec); err != nil {
				return fmt.Errorf("corrupt document %s: %w", doc.Slug, err)
			}
		} else {
			seq, err := docs.NextSequence()
			if err != nil {
				return err
			}
			rec.ID = int64(seq)
			rec.CreatedAt = now
		}

		rec.Title = doc.Title
		rec.Body = doc.Body
		rec.Type = doc.Type
		rec.Weight = doc.Weight
		rec.UpdatedAt = now

		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		if err := docs.Put([]byte(doc.Slug), data); err != nil {
			return err
		}
		if err := tx.Bucket(bucketDocIDs).Put(itob(rec.ID), []byte(doc.Slug)); err != nil {
			return err
		}

		doc.ID = rec.ID
		doc.CreatedAt = rec.CreatedAt
		doc.UpdatedAt = rec.UpdatedAt
		return nil
	})
	if err != nil {
		return domain.Document{}, err
	}
	return doc, nil
}

func (s *BoltStore) ListDocuments(ctx context.Context, slugs []string) ([]domain.DocumentRef, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var refs []domain.DocumentRef
	err := s.db.View(func(tx *bbolt.Tx) error {
		if len(slugs) == 0 {
			return tx.Bucket(bucketDocIDs).ForEach(func(k, v []byte) error {
				refs = append(refs, domain.DocumentRef{ID: btoi(k), Slug: string(v)})
				return nil
			})
		}

		docs := tx.Bucket(bucketDocs)
		seen := make(map[string]bool, len(slugs))
		for _, slug := range slugs {
			if seen[slug] {
				continue
			}
			seen[slug] = true
			data := docs.Get([]byte(slug))
			if data == nil {
				continue
			}
			var rec docRecord
			if err := json.Unmarshal(data, &rec); err != nil {
				return fmt.Errorf("corrupt document %s: %w", slug, err)
			}
			refs = append(refs, domain.DocumentRef{ID: rec.ID, Slug: slug})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(refs, func(i, j int) bool { return refs[i].ID < refs[j].ID })
	return refs, nil
}

// GetDocument returns the full document for slug.
func (s *BoltStore) GetDocument(ctx context.Context, slug string) (domain.Document, error) {
	var doc domain.Document
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketDocs).Get([]byte(slug))
		if data == nil {
			return fmt.Errorf("document not found: %s", slug)
		}
		var rec docRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return err
		}
		doc = domain.Document{
			ID:        rec.ID,
			Slug:      slug,
			Title:     rec.Title,
			Body:      rec.Body,
			Type:      rec.Type,
			Weight:    rec.Weight,
			CreatedAt: rec.CreatedAt,
			UpdatedAt: rec.UpdatedAt,
		}
		return nil
	})
	return doc, err
}

func (s *BoltStore) NearestChunks(ctx context.Context, docID int64, query []float32, limit int) ([]domain.RetrievedChunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []domain.RetrievedChunk
	err := s.db.View(func(tx *bbolt.Tx) error {
		slug, err := slugOf(tx, docID)
		if err != nil {
			return err
		}
		chunks, err := loadChunks(tx, docID)
		if err != nil {
			return err
		}
		for _, sc := range vector.Nearest(chunks, query, limit) {
			out = append(out, vector.ToRetrieved(sc.Chunk, slug, sc.Distance))
		}
		return nil
	})
	return out, err
}

func (s *BoltStore) ChunksByIndex(ctx context.Context, docID int64, query []float32, indices []int) ([]domain.RetrievedChunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sorted := append([]int(nil), indices...)
	sort.Ints(sorted)

	var out []domain.RetrievedChunk
	err := s.db.View(func(tx *bbolt.Tx) error {
		slug, err := slugOf(tx, docID)
		if err != nil {
			return err
		}
		b := tx.Bucket(bucketChunks).Bucket(itob(docID))
		if b == nil {
			return nil
		}
		last := -1
		for _, idx := range sorted {
			if idx < 0 || idx == last {
				continue
			}
			last = idx
			data := b.Get(idxKey(idx))
			if data == nil {
				continue
			}
			var sc storedChunk
			if err := json.Unmarshal(data, &sc); err != nil {
				return fmt.Errorf("corrupt chunk %d/%d: %w", docID, idx, err)
			}
			c := domain.Chunk{DocumentID: docID, Index: idx, Content: sc.Content, Embedding: sc.Vector}
			out = append(out, vector.ToRetrieved(c, slug, vector.CosineDistance(query, sc.Vector)))
		}
		return nil
	})
	return out, err
}

func (s *BoltStore) ReplaceChunks(ctx context.Context, docID int64, chunks []domain.Chunk) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket(bucketDocIDs).Get(itob(docID)) == nil {
			return fmt.Errorf("document not found: %d", docID)
		}

		parent := tx.Bucket(bucketChunks)
		key := itob(docID)
		if err := parent.DeleteBucket(key); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
			return err
		}
		b, err := parent.CreateBucket(key)
		if err != nil {
			return err
		}

		for _, c := range chunks {
			data, err := json.Marshal(storedChunk{Content: c.Content, Vector: c.Embedding})
			if err != nil {
				return err
			}
			if err := b.Put(idxKey(c.Index), data); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BoltStore) Stats(ctx context.Context) (domain.Stats, error) {
	stats := domain.Stats{PerDoc: make(map[string]int)}
	err := s.db.View(func(tx *bbolt.Tx) error {
		chunks := tx.Bucket(bucketChunks)
		return tx.Bucket(bucketDocIDs).ForEach(func(k, v []byte) error {
			stats.Documents++
			n := 0
			if b := chunks.Bucket(k); b != nil {
				n = b.Stats().KeyN
			}
			stats.PerDoc[string(v)] = n
			stats.Chunks += n
			return nil
		})
	})
	return stats, err
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

func slugOf(tx *bbolt.Tx, docID int64) (string, error) {
	v := tx.Bucket(bucketDocIDs).Get(itob(docID))
	if v == nil {
		return "", fmt.Errorf("document not found: %d", docID)
	}
	return string(v), nil
}

func loadChunks(tx *bbolt.Tx, docID int64) ([]domain.Chunk, error) {
	b := tx.Bucket(bucketChunks).Bucket(itob(docID))
	if b == nil {
		return nil, nil
	}
	var chunks []domain.Chunk
	err := b.ForEach(func(k, v []byte) error {
		var sc storedChunk
		if err := json.Unmarshal(v, &sc); err != nil {
			return fmt.Errorf("corrupt chunk %d/%d: %w", docID, binary.BigEndian.Uint32(k), err)
		}
		chunks = append(chunks, domain.Chunk{
			DocumentID: docID,
			Index:      int(binary.BigEndian.Uint32(k)),
			Content:    sc.Content,
			Embedding:  sc.Vector,
		})
		return nil
	})
	return chunks, err
}

func itob(v int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(v))
	return b
}

func btoi(b []byte) int64 {
	return int64(binary.BigEndian.Uint64(b))
}

func idxKey(i int) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, uint32(i))
	return b
}
