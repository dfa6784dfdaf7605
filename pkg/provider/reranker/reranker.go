// Package reranker defines the Reranker interface for scoring and ordering
// candidate texts against a query, plus several concrete implementations:
// passthrough, lexical (BM25), embedding-based, cross-encoder, model-hosted,
// and a reciprocal-rank-fusion hybrid that combines any number of the above.
//
// Implementations must be safe for concurrent use.
package reranker

import "context"

// Reranker scores and orders candidate texts against a query.
type Reranker interface {
	// Score returns one relevance score per candidate, in the same order as
	// candidates. Higher is more relevant; the scale is implementation
	// defined and not necessarily comparable across Reranker instances.
	Score(ctx context.Context, query string, candidates []string) ([]float64, error)

	// Rerank returns the indices of candidates ordered by descending score.
	// Ties are broken by ascending original index (insertion order).
	Rerank(ctx context.Context, query string, candidates []string) ([]int, error)
}

// rerankFromScores is the shared tie-breaking sort used by every
// implementation in this package: descending score, ties broken by
// ascending original index.
func rerankFromScores(scores []float64) []int {
	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	// A simple insertion sort keeps the tie-break rule explicit and avoids
	// pulling in sort.Slice's less-predictable-for-equal-keys behavior.
	for i := 1; i < len(order); i++ {
		j := i
		for j > 0 && scores[order[j-1]] < scores[order[j]] {
			order[j-1], order[j] = order[j], order[j-1]
			j--
		}
	}
	return order
}
