package reranker

import "context"

// Passthrough is the identity reranker: every candidate scores 0, so Rerank
// returns candidates in their original order (S5 — rerank determinism).
type Passthrough struct{}

// NewPassthrough returns a [Passthrough] reranker.
func NewPassthrough() *Passthrough { return &Passthrough{} }

// Score implements Reranker.
func (p *Passthrough) Score(_ context.Context, _ string, candidates []string) ([]float64, error) {
	return make([]float64, len(candidates)), nil
}

// Rerank implements Reranker.
func (p *Passthrough) Rerank(_ context.Context, _ string, candidates []string) ([]int, error) {
	order := make([]int, len(candidates))
	for i := range order {
		order[i] = i
	}
	return order, nil
}

// Ensure Passthrough implements Reranker at compile time.
var _ Reranker = (*Passthrough)(nil)
