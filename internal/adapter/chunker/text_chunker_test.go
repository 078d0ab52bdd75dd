package chunker

import (
	"fmt"
	"strings"
	"testing"
	"unicode"

	"resumerag/internal/domain"
)

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

func TestSplitEmpty(t *testing.T) {
	for _, body := range []string{"", "   ", "\n\n\t "} {
		if parts := Split(body, 800, 120); len(parts) != 0 {
			t.Errorf("expected no segments for %q, got %d", body, len(parts))
		}
	}
}

func TestSplitNonPositiveTarget(t *testing.T) {
	parts := Split("  hello world  \n", 0, 10)
	if len(parts) != 1 || parts[0] != "hello world" {
		t.Fatalf("expected single trimmed segment, got %q", parts)
	}
}

func TestSplitShortBody(t *testing.T) {
	parts := Split("A short body.", 800, 120)
	if len(parts) != 1 || parts[0] != "A short body." {
		t.Fatalf("unexpected segments: %q", parts)
	}
}

func TestSplitStopsAtEndOfBody(t *testing.T) {
	body := strings.Repeat("Built distributed systems in Go for payments. ", 30)
	parts := Split(body, 800, 120)
	if len(parts) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(parts))
	}
	if !strings.HasSuffix(parts[1], "payments.") {
		t.Errorf("last segment should end the body, got tail %q", parts[1][len(parts[1])-20:])
	}
}

func TestSplitPrefersSentenceBoundary(t *testing.T) {
	body := strings.Repeat("This is a sentence. ", 20)
	parts := Split(body, 100, 0)

	if len(parts) != 4 {
		t.Fatalf("expected 4 segments, got %d: %q", len(parts), parts)
	}
	for i, p := range parts {
		if !strings.HasSuffix(p, ".") {
			t.Errorf("segment %d does not end on a sentence: %q", i, p)
		}
	}
}

func TestSplitFallsBackToWhitespace(t *testing.T) {
	body := strings.Repeat("word ", 50)
	parts := Split(body, 100, 0)

	// 100 + 100 + 49; the 49-rune tail is folded into the second segment.
	if len(parts) != 2 {
		t.Fatalf("expected 2 segments, got %d: %q", len(parts), parts)
	}
	for i, p := range parts {
		if strings.HasPrefix(p, "ord") || strings.HasSuffix(p, "wor") {
			t.Errorf("segment %d cut mid-word: %q", i, p)
		}
	}
	if !strings.Contains(parts[1], "\n\n") {
		t.Errorf("expected merged tail joined by a blank line, got %q", parts[1])
	}
}

func TestSplitCutsMidWordAsLastResort(t *testing.T) {
	body := strings.Repeat("x", 250)
	parts := Split(body, 100, 0)
	if len(parts) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(parts))
	}
	if len(parts[0]) != 100 {
		t.Errorf("expected a full-length first segment, got %d", len(parts[0]))
	}
}

func TestSplitForwardProgressWithLargeOverlap(t *testing.T) {
	body := strings.Repeat("y", 300)
	parts := Split(body, 50, 500)
	if len(parts) == 0 {
		t.Fatal("expected segments")
	}
	for i, p := range parts {
		if p == "" {
			t.Errorf("segment %d is empty", i)
		}
	}
}

func TestSplitNegativeOverlapIsClamped(t *testing.T) {
	body := strings.Repeat("This is a sentence. ", 20)
	a := Split(body, 100, -5)
	b := Split(body, 100, 0)
	if strings.Join(a, "|") != strings.Join(b, "|") {
		t.Errorf("negative overlap should behave like zero overlap")
	}
}

func TestSplitCoversBody(t *testing.T) {
	body := "Experience\n\n\n\nLed a team of five engineers building data pipelines. " +
		strings.Repeat("Shipped features across web and mobile platforms! ", 12) +
		"\n\nEducation  \nB.S. Computer Science? Yes. " +
		strings.Repeat("Graduated with honors and a minor in mathematics. ", 6)

	parts := Split(body, 120, 0)
	got := stripSpace(strings.Join(parts, ""))
	want := stripSpace(Normalize(body))
	if got != want {
		t.Errorf("segments do not reconstruct the normalized body\n got: %s\nwant: %s", got, want)
	}
}

func TestSplitNoEmptyOrAdjacentDuplicates(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 60; i++ {
		fmt.Fprintf(&sb, "Milestone %d shipped on schedule with a distinct outcome. ", i)
	}
	parts := Split(sb.String(), 200, 40)
	for i, p := range parts {
		if strings.TrimSpace(p) == "" {
			t.Errorf("segment %d is empty", i)
		}
		if i > 0 && parts[i-1] == p {
			t.Errorf("segments %d and %d are identical", i-1, i)
		}
	}
}

func TestSplitDeterministic(t *testing.T) {
	body := strings.Repeat("Repeatable output matters. ", 60)
	a := Split(body, 150, 30)
	b := Split(body, 150, 30)
	if strings.Join(a, "\x00") != strings.Join(b, "\x00") {
		t.Error("Split is not deterministic")
	}
}

func TestSplitStableOnNormalizedInput(t *testing.T) {
	body := "Summary  \r\n\r\n\r\n" + strings.Repeat("Built reliable systems at scale. ", 30)
	a := Split(body, 160, 0)
	b := Split(Normalize(body), 160, 0)
	if strings.Join(a, "\x00") != strings.Join(b, "\x00") {
		t.Error("re-chunking normalized text changed the boundaries")
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"a  \n\n\n\nb", "a\n\nb"},
		{"a\r\nb", "a\nb"},
		{"  a \t\nb  ", "a\nb"},
		{"a\n\nb", "a\n\nb"},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTextChunkerAssignsContiguousIndices(t *testing.T) {
	c := NewTextChunker(100, 20)
	doc := domain.Document{ID: 7, Slug: "resume"}

	chunks := c.Chunk(doc, strings.Repeat("Designed APIs used by millions. ", 20))
	if len(chunks) < 2 {
		t.Fatalf("expected several chunks, got %d", len(chunks))
	}
	for i, ch := range chunks {
		if ch.Index != i {
			t.Errorf("chunk %d has index %d", i, ch.Index)
		}
		if ch.DocumentID != 7 {
			t.Errorf("chunk %d has document id %d", i, ch.DocumentID)
		}
		if ch.Content == "" {
			t.Errorf("chunk %d is empty", i)
		}
	}
}
