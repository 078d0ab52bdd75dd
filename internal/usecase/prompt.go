package usecase

import (
	"embed"
	"fmt"
	"strings"
	"text/template"

	"resumerag/internal/domain"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var promptTemplates = template.Must(template.ParseFS(templateFS, "templates/*.tmpl"))

// Prompt is the system and user message pair handed to a chat model.
type Prompt struct {
	System string `json:"system"`
	User   string `json:"user"`
}

// FormatPassage labels a chunk with its document and position.
func FormatPassage(c domain.RetrievedChunk) string {
	return fmt.Sprintf("(%s #%d) %s", c.DocumentSlug, c.ChunkIndex, c.Content)
}

// BuildPrompt renders the hand-off messages for query over chunks, in
// the order given.
func BuildPrompt(subject, query string, chunks []domain.RetrievedChunk) (Prompt, error) {
	passages := make([]string, len(chunks))
	for i, c := range chunks {
		passages[i] = FormatPassage(c)
	}

	var system, user strings.Builder
	if err := promptTemplates.ExecuteTemplate(&system, "system.tmpl", map[string]any{
		"Subject": subject,
	}); err != nil {
		return Prompt{}, fmt.Errorf("failed to render system prompt: %w", err)
	}
	if err := promptTemplates.ExecuteTemplate(&user, "user.tmpl", map[string]any{
		"Query":    query,
		"Passages": passages,
	}); err != nil {
		return Prompt{}, fmt.Errorf("failed to render user prompt: %w", err)
	}

	return Prompt{
		System: strings.TrimSpace(system.String()),
		User:   strings.TrimSpace(user.String()),
	}, nil
}
