// Package mock provides a test double for the reranker.Reranker interface.
package mock

import (
	"context"
	"sync"

	"github.com/vaultmind/vaultmind/pkg/provider/reranker"
)

// Call records a single invocation.
type Call struct {
	Method     string
	Query      string
	Candidates []string
}

// Reranker is a configurable test double for [reranker.Reranker].
type Reranker struct {
	mu sync.Mutex

	calls []Call

	// ScoreResult is returned by Score. If nil, a zero-valued slice matching
	// len(candidates) is returned.
	ScoreResult []float64
	ScoreErr    error

	// RerankResult is returned by Rerank. If nil, the original order
	// (0..len(candidates)-1) is returned.
	RerankResult []int
	RerankErr    error
}

// Calls returns a copy of all recorded invocations.
func (r *Reranker) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, len(r.calls))
	copy(out, r.calls)
	return out
}

// Score implements reranker.Reranker.
func (r *Reranker) Score(_ context.Context, query string, candidates []string) ([]float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Call{Method: "Score", Query: query, Candidates: candidates})
	if r.ScoreResult != nil {
		return r.ScoreResult, r.ScoreErr
	}
	return make([]float64, len(candidates)), r.ScoreErr
}

// Rerank implements reranker.Reranker.
func (r *Reranker) Rerank(_ context.Context, query string, candidates []string) ([]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Call{Method: "Rerank", Query: query, Candidates: candidates})
	if r.RerankResult != nil {
		return r.RerankResult, r.RerankErr
	}
	order := make([]int, len(candidates))
	for i := range order {
		order[i] = i
	}
	return order, r.RerankErr
}

// Ensure Reranker implements reranker.Reranker at compile time.
var _ reranker.Reranker = (*Reranker)(nil)
