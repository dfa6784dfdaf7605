package reranker

import "context"

// DefaultRRFK is the default reciprocal-rank-fusion constant.
const DefaultRRFK = 60.0

// Hybrid combines N sub-rerankers by reciprocal rank fusion: each
// sub-reranker's Rerank order contributes 1/(k+rank) per candidate, summed
// across sub-rerankers, then the totals are sorted descending (ties broken
// by insertion order).
type Hybrid struct {
	subs []Reranker
	k    float64
}

// NewHybrid returns a [Hybrid] reranker fusing subs with RRF constant k. If
// k <= 0, [DefaultRRFK] is used.
func NewHybrid(k float64, subs ...Reranker) *Hybrid {
	if k <= 0 {
		k = DefaultRRFK
	}
	return &Hybrid{subs: subs, k: k}
}

// Score implements Reranker: the returned scores are the fused RRF totals,
// not a probability or comparable to any single sub-reranker's scale.
func (h *Hybrid) Score(ctx context.Context, query string, candidates []string) ([]float64, error) {
	fused := make([]float64, len(candidates))
	for _, sub := range h.subs {
		order, err := sub.Rerank(ctx, query, candidates)
		if err != nil {
			return nil, err
		}
		for rank, idx := range order {
			fused[idx] += 1.0 / (h.k + float64(rank+1))
		}
	}
	return fused, nil
}

// Rerank implements Reranker.
func (h *Hybrid) Rerank(ctx context.Context, query string, candidates []string) ([]int, error) {
	scores, err := h.Score(ctx, query, candidates)
	if err != nil {
		return nil, err
	}
	return rerankFromScores(scores), nil
}

// Ensure Hybrid implements Reranker at compile time.
var _ Reranker = (*Hybrid)(nil)
