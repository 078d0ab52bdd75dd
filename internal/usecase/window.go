package usecase

import (
	"sort"

	"resumerag/internal/domain"
)

// WindowOptions control how a document's candidates become a set of chunk
// indices to materialize.
type WindowOptions struct {
	SeedsPerDoc   int // seeds opened per document
	SeedGap       int // minimum index distance between seeds
	Radius        int // neighbours taken on each side of a seed
	TopCandidates int // raw candidates always kept
}

// PickSeeds walks candidates best-first and keeps each one whose index is
// at least gap away from every seed already kept, up to maxSeeds. At least
// one seed is returned when candidates is non-empty.
func PickSeeds(candidates []domain.RetrievedChunk, maxSeeds, gap int) []domain.RetrievedChunk {
	var seeds []domain.RetrievedChunk
	for _, c := range candidates {
		if farFromAll(seeds, c.ChunkIndex, gap) {
			seeds = append(seeds, c)
			if len(seeds) >= maxSeeds {
				break
			}
		}
	}
	if len(seeds) == 0 && len(candidates) > 0 {
		seeds = append(seeds, candidates[0])
	}
	return seeds
}

func farFromAll(seeds []domain.RetrievedChunk, idx, gap int) bool {
	for _, s := range seeds {
		d := s.ChunkIndex - idx
		if d < 0 {
			d = -d
		}
		if d < gap {
			return false
		}
	}
	return true
}

// ExpandWindow returns the sorted union of every index within Radius of a
// seed (never below zero) and the indices of the first TopCandidates
// candidates.
func ExpandWindow(candidates []domain.RetrievedChunk, opts WindowOptions) []int {
	set := make(map[int]struct{})
	for _, s := range PickSeeds(candidates, opts.SeedsPerDoc, opts.SeedGap) {
		for i := s.ChunkIndex - opts.Radius; i <= s.ChunkIndex+opts.Radius; i++ {
			if i >= 0 {
				set[i] = struct{}{}
			}
		}
	}

	top := opts.TopCandidates
	if top > len(candidates) {
		top = len(candidates)
	}
	for _, c := range candidates[:max(top, 0)] {
		set[c.ChunkIndex] = struct{}{}
	}

	indices := make([]int, 0, len(set))
	for i := range set {
		indices = append(indices, i)
	}
	sort.Ints(indices)
	return indices
}
