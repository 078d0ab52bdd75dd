package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resumerag/internal/domain"
)

func TestFormatPassage(t *testing.T) {
	got := FormatPassage(domain.RetrievedChunk{DocumentSlug: "resume", ChunkIndex: 7, Content: "Led the platform team."})
	assert.Equal(t, "(resume #7) Led the platform team.", got)
}

func TestBuildPrompt(t *testing.T) {
	chunks := []domain.RetrievedChunk{
		{DocumentSlug: "resume", ChunkIndex: 3, Content: "Go and Kubernetes."},
		{DocumentSlug: "about", ChunkIndex: 0, Content: "Enjoys climbing."},
	}

	p, err := BuildPrompt("Alex", "What are the key skills?", chunks)
	require.NoError(t, err)

	assert.Contains(t, p.System, "Alex's résumé")
	assert.Contains(t, p.System, "Use only the provided context")

	want := "Question:\nWhat are the key skills?\n\nContext:\n" +
		"### [chunk 0]\n(resume #3) Go and Kubernetes.\n\n" +
		"### [chunk 1]\n(about #0) Enjoys climbing.\n\nAnswer:"
	assert.Equal(t, want, p.User)
}

func TestBuildPromptNoContext(t *testing.T) {
	p, err := BuildPrompt("Alex", "Anything?", nil)
	require.NoError(t, err)
	assert.Equal(t, "Question:\nAnything?\n\nContext:\n\n\nAnswer:", p.User)
}
