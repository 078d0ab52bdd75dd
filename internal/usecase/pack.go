package usecase

import (
	"sort"
	"unicode/utf8"

	"resumerag/internal/domain"
)

// PackUseCase fits ranked chunks into a character budget.
type PackUseCase struct {
	budget    int
	separator int
}

// NewPackUseCase creates a packer. separator is the per-chunk allowance
// added to each chunk's length.
func NewPackUseCase(budget, separator int) *PackUseCase {
	if separator < 0 {
		separator = 0
	}
	return &PackUseCase{
		budget:    budget,
		separator: separator,
	}
}

// Budget returns the configured character ceiling.
func (u *PackUseCase) Budget() int {
	return u.budget
}

// Pack sorts chunks by similarity, highest first with ties in input order,
// and takes them whole until the next one would overflow the budget.
// chunks is not modified.
func (u *PackUseCase) Pack(query string, chunks []domain.RetrievedChunk) domain.PackedContext {
	ranked := make([]domain.RetrievedChunk, len(chunks))
	copy(ranked, chunks)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Similarity > ranked[j].Similarity
	})

	packed := domain.PackedContext{
		Query:       query,
		BudgetChars: u.budget,
		Chunks:      []domain.RetrievedChunk{},
	}
	for _, c := range ranked {
		n := utf8.RuneCountInString(c.Content) + u.separator
		if packed.UsedChars+n > u.budget {
			break
		}
		packed.Chunks = append(packed.Chunks, c)
		packed.UsedChars += n
	}
	return packed
}
