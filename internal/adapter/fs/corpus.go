// Package fs reads corpus documents from local files.
package fs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"resumerag/internal/domain"
	"resumerag/internal/port"
)

var _ port.CorpusReader = (*Corpus)(nil)

// Entry is one manifest line. Path is relative to the corpus root and may
// be a doublestar glob.
type Entry struct {
	Slug   string
	Title  string
	Type   string
	Weight int
	Path   string
}

// Corpus resolves manifest entries to documents.
type Corpus struct {
	root    string
	entries []Entry
}

func NewCorpus(root string, entries []Entry) *Corpus {
	if root == "" {
		root = "."
	}
	return &Corpus{
		root:    root,
		entries: entries,
	}
}

// Read loads every entry in manifest order. A glob matching several files
// yields one document whose body joins them, in lexical order, with a
// blank line.
func (c *Corpus) Read(ctx context.Context) ([]domain.Document, error) {
	docs := make([]domain.Document, 0, len(c.entries))
	for _, e := range c.entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		files, err := c.Resolve(e)
		if err != nil {
			return nil, err
		}

		parts := make([]string, 0, len(files))
		for _, f := range files {
			text, err := ReadDocumentFile(f)
			if err != nil {
				return nil, fmt.Errorf("failed to read %s: %w", f, err)
			}
			if text != "" {
				parts = append(parts, text)
			}
		}

		docs = append(docs, domain.Document{
			Slug:   e.Slug,
			Title:  e.Title,
			Body:   strings.Join(parts, "\n\n"),
			Type:   e.Type,
			Weight: e.Weight,
		})
	}
	return docs, nil
}

// Resolve returns the files an entry points at, sorted.
func (c *Corpus) Resolve(e Entry) ([]string, error) {
	pattern := e.Path
	if !filepath.IsAbs(pattern) {
		pattern = filepath.Join(c.root, pattern)
	}

	found, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return nil, fmt.Errorf("bad path pattern for %s: %w", e.Slug, err)
	}

	var matches []string
	for _, m := range found {
		if info, err := os.Stat(m); err == nil && !info.IsDir() {
			matches = append(matches, m)
		}
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no files match %s for %s", e.Path, e.Slug)
	}
	sort.Strings(matches)
	return matches, nil
}
