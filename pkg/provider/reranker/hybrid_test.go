package reranker

import (
	"context"
	"testing"

	rerankermock "github.com/vaultmind/vaultmind/pkg/provider/reranker/mock"
)

func TestHybridFusesSubRerankersByReciprocalRank(t *testing.T) {
	// Both subs rank candidate 0 first and disagree on candidates 1 and 2;
	// with equal weight via RRF, candidate 0 collects the top contribution
	// twice, while 1 and 2 tie and fall back to original index order.
	subA := &rerankermock.Reranker{RerankResult: []int{0, 1, 2}}
	subB := &rerankermock.Reranker{RerankResult: []int{0, 2, 1}}

	h := NewHybrid(DefaultRRFK, subA, subB)
	candidates := []string{"c0", "c1", "c2"}

	order, err := h.Rerank(context.Background(), "q", candidates)
	if err != nil {
		t.Fatalf("Rerank: %v", err)
	}
	if order[0] != 0 {
		t.Fatalf("order = %v, want candidate 0 ranked first (top in both sub-rerankers)", order)
	}
}

func TestHybridScoreSumsRRFContributions(t *testing.T) {
	sub := &rerankermock.Reranker{RerankResult: []int{1, 0}}
	h := NewHybrid(60, sub)

	scores, err := h.Score(context.Background(), "q", []string{"a", "b"})
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	// candidate 1 is rank 0 -> 1/(60+1); candidate 0 is rank 1 -> 1/(60+2)
	wantA := 1.0 / 62.0
	wantB := 1.0 / 61.0
	if !almostEqual(scores[0], wantA) {
		t.Errorf("scores[0] = %v, want %v", scores[0], wantA)
	}
	if !almostEqual(scores[1], wantB) {
		t.Errorf("scores[1] = %v, want %v", scores[1], wantB)
	}
}

func TestHybridDefaultsKWhenNonPositive(t *testing.T) {
	h := NewHybrid(0, &rerankermock.Reranker{})
	if h.k != DefaultRRFK {
		t.Fatalf("k = %v, want %v", h.k, DefaultRRFK)
	}
}

func TestHybridPropagatesSubRerankerError(t *testing.T) {
	sub := &rerankermock.Reranker{RerankErr: errHybridTest}
	h := NewHybrid(DefaultRRFK, sub)

	_, err := h.Rerank(context.Background(), "q", []string{"a"})
	if err == nil {
		t.Fatal("expected error propagated from sub-reranker")
	}
}

var errHybridTest = &hybridTestError{"sub-reranker failure"}

type hybridTestError struct{ msg string }

func (e *hybridTestError) Error() string { return e.msg }

func almostEqual(a, b float64) bool {
	const eps = 1e-9
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < eps
}
