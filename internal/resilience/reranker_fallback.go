package resilience

import (
	"context"

	"github.com/vaultmind/vaultmind/pkg/provider/reranker"
)

// RerankerFallback implements [reranker.Reranker] with automatic failover
// across multiple reranker backends. Each backend has its own circuit
// breaker; when the primary fails or its breaker is open, the next healthy
// fallback is tried.
type RerankerFallback struct {
	group *FallbackGroup[reranker.Reranker]
}

// Compile-time interface assertion.
var _ reranker.Reranker = (*RerankerFallback)(nil)

// NewRerankerFallback creates a [RerankerFallback] with primary as the
// preferred backend.
func NewRerankerFallback(primary reranker.Reranker, primaryName string, cfg FallbackConfig) *RerankerFallback {
	return &RerankerFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional reranker as a fallback.
func (f *RerankerFallback) AddFallback(name string, r reranker.Reranker) {
	f.group.AddFallback(name, r)
}

// Score delegates to the first healthy reranker.
func (f *RerankerFallback) Score(ctx context.Context, query string, candidates []string) ([]float64, error) {
	return ExecuteWithResult(f.group, func(r reranker.Reranker) ([]float64, error) {
		return r.Score(ctx, query, candidates)
	})
}

// Rerank delegates to the first healthy reranker.
func (f *RerankerFallback) Rerank(ctx context.Context, query string, candidates []string) ([]int, error) {
	return ExecuteWithResult(f.group, func(r reranker.Reranker) ([]int, error) {
		return r.Rerank(ctx, query, candidates)
	})
}
