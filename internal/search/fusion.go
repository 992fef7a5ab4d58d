package search

import (
	"sort"

	"github.com/qanoon-search/qanoon/internal/store"
)

// minMaxSpanEpsilon guards the degenerate rescale: when all scores in a
// list sit within this span, rescaling would amplify noise, so the
// whole list maps to zero instead.
const minMaxSpanEpsilon = 1e-9

// Candidate is one fused result before filtering and truncation.
type Candidate struct {
	ChunkID string

	// Raw per-modality scores; zero when the modality missed.
	BM25Score   float64
	VectorScore float64

	// Rescaled per-modality scores in [0,1].
	BM25Norm   float64
	VectorNorm float64

	// Fused is the weighted combination used for ranking.
	Fused float64

	// InBM25 and InVector record which candidate lists contained the
	// chunk.
	InBM25   bool
	InVector bool
}

// MinMaxNormalize rescales scores to [0,1] by the list's own min and
// max. Empty input yields empty output; a list whose span is below
// epsilon rescales to all zeros.
func MinMaxNormalize(scores []float64) []float64 {
	if len(scores) == 0 {
		return []float64{}
	}

	min, max := scores[0], scores[0]
	for _, s := range scores[1:] {
		if s < min {
			min = s
		}
		if s > max {
			max = s
		}
	}

	out := make([]float64, len(scores))
	span := max - min
	if span < minMaxSpanEpsilon {
		return out
	}
	for i, s := range scores {
		out[i] = (s - min) / span
	}
	return out
}

// Fuser combines BM25 and vector candidate lists. Each list is min-max
// rescaled independently, the union is scored as
// alpha*vector + (1-alpha)*bm25 with missing modalities contributing
// zero, and the result is sorted fused-score descending with chunk ID
// ascending on ties.
type Fuser struct {
	alpha float64
}

// NewFuser creates a fuser. Alpha outside [0,1] is clamped.
func NewFuser(alpha float64) *Fuser {
	if alpha < 0 {
		alpha = 0
	}
	if alpha > 1 {
		alpha = 1
	}
	return &Fuser{alpha: alpha}
}

// Alpha returns the vector weight.
func (f *Fuser) Alpha() float64 {
	return f.alpha
}

// Fuse merges the two candidate lists.
func (f *Fuser) Fuse(bm25 []*store.BM25Result, vector []*store.VectorResult) []*Candidate {
	byID := make(map[string]*Candidate, len(bm25)+len(vector))

	bm25Scores := make([]float64, len(bm25))
	for i, r := range bm25 {
		bm25Scores[i] = r.Score
	}
	bm25Norm := MinMaxNormalize(bm25Scores)

	for i, r := range bm25 {
		byID[r.ChunkID] = &Candidate{
			ChunkID:   r.ChunkID,
			BM25Score: r.Score,
			BM25Norm:  bm25Norm[i],
			InBM25:    true,
		}
	}

	vecScores := make([]float64, len(vector))
	for i, r := range vector {
		vecScores[i] = r.Score
	}
	vecNorm := MinMaxNormalize(vecScores)

	for i, r := range vector {
		c, ok := byID[r.ChunkID]
		if !ok {
			c = &Candidate{ChunkID: r.ChunkID}
			byID[r.ChunkID] = c
		}
		c.VectorScore = r.Score
		c.VectorNorm = vecNorm[i]
		c.InVector = true
	}

	candidates := make([]*Candidate, 0, len(byID))
	for _, c := range byID {
		c.Fused = f.alpha*c.VectorNorm + (1-f.alpha)*c.BM25Norm
		candidates = append(candidates, c)
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Fused != candidates[j].Fused {
			return candidates[i].Fused > candidates[j].Fused
		}
		return candidates[i].ChunkID < candidates[j].ChunkID
	})

	return candidates
}
