package reranker

import (
	"context"
	"testing"
)

func TestPassthroughRerankIsIdentityOrder(t *testing.T) {
	p := NewPassthrough()
	candidates := []string{"alpha", "beta", "gamma", "delta"}

	order, err := p.Rerank(context.Background(), "anything", candidates)
	if err != nil {
		t.Fatalf("Rerank: %v", err)
	}
	for i, idx := range order {
		if idx != i {
			t.Fatalf("order[%d] = %d, want %d (identity)", i, idx, i)
		}
	}
}

func TestPassthroughScoreAllZero(t *testing.T) {
	p := NewPassthrough()
	scores, err := p.Score(context.Background(), "q", []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	for i, s := range scores {
		if s != 0 {
			t.Errorf("scores[%d] = %v, want 0", i, s)
		}
	}
}

func TestPassthroughDeterministicAcrossCalls(t *testing.T) {
	p := NewPassthrough()
	candidates := []string{"one", "two", "three"}
	first, err := p.Rerank(context.Background(), "q", candidates)
	if err != nil {
		t.Fatalf("Rerank: %v", err)
	}
	second, err := p.Rerank(context.Background(), "q", candidates)
	if err != nil {
		t.Fatalf("Rerank: %v", err)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("non-deterministic order: %v vs %v", first, second)
		}
	}
}
