package chunker

import (
	"regexp"
	"strings"
	"unicode"

	"resumerag/internal/domain"
)

var (
	trailingSpace = regexp.MustCompile(`[^\S\n]+\n`)
	blankRuns     = regexp.MustCompile(`\n{3,}`)
)

// TextChunker splits prose into overlapping segments that prefer to end on
// a sentence boundary.
type TextChunker struct {
	target  int
	overlap int
}

func NewTextChunker(target, overlap int) *TextChunker {
	return &TextChunker{
		target:  target,
		overlap: overlap,
	}
}

// Chunk splits body and numbers the segments from zero in body order.
func (c *TextChunker) Chunk(doc domain.Document, body string) []domain.Chunk {
	parts := Split(body, c.target, c.overlap)
	chunks := make([]domain.Chunk, 0, len(parts))
	for i, p := range parts {
		chunks = append(chunks, domain.Chunk{
			DocumentID: doc.ID,
			Index:      i,
			Content:    p,
		})
	}
	return chunks
}

// Split is a pure function of (body, target, overlap). Lengths are in runes.
func Split(body string, target, overlap int) []string {
	if strings.TrimSpace(body) == "" {
		return nil
	}
	if target <= 0 {
		return []string{strings.TrimSpace(body)}
	}
	if overlap < 0 {
		overlap = 0
	}

	text := []rune(Normalize(body))
	n := len(text)

	var parts []string
	for i := 0; i < n; {
		end := min(i+target, n)
		slice := text[i:end]

		if end < n {
			if cut := boundary(slice); cut > -1 {
				slice = slice[:cut+1]
			}
		}

		if trimmed := strings.TrimSpace(string(slice)); trimmed != "" {
			parts = append(parts, trimmed)
		}
		if i+len(slice) >= n {
			break
		}

		i += max(len(slice)-overlap, 1)
	}

	// Fold a tiny trailing fragment into its predecessor.
	if len(parts) >= 2 {
		last := parts[len(parts)-1]
		if len([]rune(last)) < max(80, target*3/10) {
			parts[len(parts)-2] = strings.TrimSpace(parts[len(parts)-2] + "\n\n" + last)
			parts = parts[:len(parts)-1]
		}
	}

	return parts
}

// Normalize unifies line endings, strips whitespace before newlines and
// collapses three or more newlines to a single blank line.
func Normalize(body string) string {
	s := strings.ReplaceAll(body, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = trailingSpace.ReplaceAllString(s, "\n")
	s = blankRuns.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// boundary returns the index in slice of the last rune to keep, or -1 to
// keep the whole slice. Only the back half is searched.
func boundary(slice []rune) int {
	start := len(slice) / 2
	for j := len(slice) - 2; j >= start; j-- {
		switch slice[j] {
		case '.', '!', '?':
			if slice[j+1] == ' ' {
				return j + 1
			}
		}
	}
	for j := len(slice) - 1; j >= start; j-- {
		if unicode.IsSpace(slice[j]) {
			return j
		}
	}
	return -1
}
