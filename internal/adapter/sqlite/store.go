// Package sqlite implements port.Store on an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"resumerag/internal/adapter/sqlite/migrations"
	"resumerag/internal/adapter/vector"
	"resumerag/internal/domain"
	"resumerag/internal/port"
)

var _ port.Store = (*Store)(nil)

// Store keeps documents and their embedded chunks in two tables. Vectors
// are little-endian float32 blobs.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens (or creates) the database file at path and applies any
// pending migrations.
func NewStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) migrate(fsys fs.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var current int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= current {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
	}
	return nil
}

func (s *Store) UpsertDocument(ctx context.Context, doc domain.Document) (domain.Document, error) {
	now := time.Now().UTC().UnixNano()

	var created, updated int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO documents (slug, title, body, type, weight, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(slug) DO UPDATE SET
			title = excluded.title,
			body = excluded.body,
			type = excluded.type,
			weight = excluded.weight,
			updated_at = excluded.updated_at
		RETURNING id, created_at, updated_at
	`, doc.Slug, doc.Title, doc.Body, doc.Type, doc.Weight, now, now).Scan(&doc.ID, &created, &updated)
	if err != nil {
		return domain.Document{}, fmt.Errorf("upserting document %s: %w", doc.Slug, err)
	}

	doc.CreatedAt = time.Unix(0, created).UTC()
	doc.UpdatedAt = time.Unix(0, updated).UTC()
	return doc, nil
}

func (s *Store) ListDocuments(ctx context.Context, slugs []string) ([]domain.DocumentRef, error) {
	query := "SELECT id, slug FROM documents"
	var args []any
	if len(slugs) > 0 {
		query += " WHERE slug IN (" + placeholders(len(slugs)) + ")"
		for _, slug := range slugs {
			args = append(args, slug)
		}
	}
	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var refs []domain.DocumentRef
	for rows.Next() {
		var ref domain.DocumentRef
		if err := rows.Scan(&ref.ID, &ref.Slug); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

func (s *Store) GetDocument(ctx context.Context, slug string) (domain.Document, error) {
	doc := domain.Document{Slug: slug}
	var created, updated int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, body, type, weight, created_at, updated_at
		FROM documents WHERE slug = ?
	`, slug).Scan(&doc.ID, &doc.Title, &doc.Body, &doc.Type, &doc.Weight, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Document{}, fmt.Errorf("document not found: %s", slug)
	}
	if err != nil {
		return domain.Document{}, fmt.Errorf("getting document %s: %w", slug, err)
	}
	doc.CreatedAt = time.Unix(0, created).UTC()
	doc.UpdatedAt = time.Unix(0, updated).UTC()
	return doc, nil
}

// NearestChunks scans the document's vectors in process; a résumé corpus is
// a few hundred rows at most.
func (s *Store) NearestChunks(ctx context.Context, docID int64, query []float32, limit int) ([]domain.RetrievedChunk, error) {
	slug, err := s.slugOf(ctx, docID)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT chunk_index, content, embedding FROM embeddings WHERE document_id = ?
	`, docID)
	if err != nil {
		return nil, fmt.Errorf("loading chunks for %d: %w", docID, err)
	}
	chunks, err := scanChunks(rows, docID)
	if err != nil {
		return nil, err
	}

	var out []domain.RetrievedChunk
	for _, sc := range vector.Nearest(chunks, query, limit) {
		out = append(out, vector.ToRetrieved(sc.Chunk, slug, sc.Distance))
	}
	return out, nil
}

func (s *Store) ChunksByIndex(ctx context.Context, docID int64, query []float32, indices []int) ([]domain.RetrievedChunk, error) {
	slug, err := s.slugOf(ctx, docID)
	if err != nil {
		return nil, err
	}

	args := []any{docID}
	for _, i := range indices {
		if i >= 0 {
			args = append(args, i)
		}
	}
	if len(args) == 1 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT chunk_index, content, embedding FROM embeddings
		WHERE document_id = ? AND chunk_index IN (`+placeholders(len(args)-1)+`)
		ORDER BY chunk_index
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("loading chunks for %d: %w", docID, err)
	}
	chunks, err := scanChunks(rows, docID)
	if err != nil {
		return nil, err
	}

	out := make([]domain.RetrievedChunk, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, vector.ToRetrieved(c, slug, vector.CosineDistance(query, c.Embedding)))
	}
	return out, nil
}

func (s *Store) ReplaceChunks(ctx context.Context, docID int64, chunks []domain.Chunk) error {
	if _, err := s.slugOf(ctx, docID); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DELETE FROM embeddings WHERE document_id = ?", docID); err != nil {
		return fmt.Errorf("deleting chunks for %d: %w", docID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO embeddings (document_id, chunk_index, content, embedding) VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		if _, err := stmt.ExecContext(ctx, docID, c.Index, c.Content, vector.Encode(c.Embedding)); err != nil {
			return fmt.Errorf("inserting chunk %d/%d: %w", docID, c.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing chunks for %d: %w", docID, err)
	}
	return nil
}

func (s *Store) Stats(ctx context.Context) (domain.Stats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.slug, COUNT(e.chunk_index)
		FROM documents d LEFT JOIN embeddings e ON e.document_id = d.id
		GROUP BY d.id
	`)
	if err != nil {
		return domain.Stats{}, fmt.Errorf("collecting stats: %w", err)
	}
	defer rows.Close()

	stats := domain.Stats{PerDoc: make(map[string]int)}
	for rows.Next() {
		var slug string
		var n int
		if err := rows.Scan(&slug, &n); err != nil {
			return domain.Stats{}, err
		}
		stats.Documents++
		stats.Chunks += n
		stats.PerDoc[slug] = n
	}
	return stats, rows.Err()
}

func (s *Store) SchemaInfo(ctx context.Context) (domain.SchemaInfo, error) {
	var info domain.SchemaInfo
	err := s.db.QueryRowContext(ctx, `
		SELECT version, embedding_model, dimension FROM schema_meta WHERE id = 1
	`).Scan(&info.Version, &info.EmbeddingModel, &info.Dimension)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.SchemaInfo{}, nil
	}
	return info, err
}

func (s *Store) SetSchemaInfo(ctx context.Context, info domain.SchemaInfo) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO schema_meta (id, version, embedding_model, dimension) VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			version = excluded.version,
			embedding_model = excluded.embedding_model,
			dimension = excluded.dimension
	`, info.Version, info.EmbeddingModel, info.Dimension)
	return err
}

func (s *Store) Clear(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	for _, stmt := range []string{"DELETE FROM embeddings", "DELETE FROM documents"} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("clearing store: %w", err)
		}
	}
	return tx.Commit()
}

func (s *Store) slugOf(ctx context.Context, docID int64) (string, error) {
	var slug string
	err := s.db.QueryRowContext(ctx, "SELECT slug FROM documents WHERE id = ?", docID).Scan(&slug)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("document not found: %d", docID)
	}
	return slug, err
}

func scanChunks(rows *sql.Rows, docID int64) ([]domain.Chunk, error) {
	defer rows.Close()
	var chunks []domain.Chunk
	for rows.Next() {
		c := domain.Chunk{DocumentID: docID}
		var blob []byte
		if err := rows.Scan(&c.Index, &c.Content, &blob); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		c.Embedding = vector.Decode(blob)
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
