package resilience

import (
	"context"
	"errors"
	"testing"

	rrmock "github.com/vaultmind/vaultmind/pkg/provider/reranker/mock"
)

func TestRerankerFallback_Score_PrimarySuccess(t *testing.T) {
	primary := &rrmock.Reranker{ScoreResult: []float64{0.5, 0.9}}
	secondary := &rrmock.Reranker{ScoreResult: []float64{0.1, 0.1}}

	fb := NewRerankerFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	scores, err := fb.Score(context.Background(), "q", []string{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(scores) != 2 || scores[1] != 0.9 {
		t.Fatalf("scores = %v, want primary's result", scores)
	}
	if len(secondary.Calls()) != 0 {
		t.Fatalf("secondary called %d times, want 0", len(secondary.Calls()))
	}
}

func TestRerankerFallback_Rerank_Failover(t *testing.T) {
	primary := &rrmock.Reranker{RerankErr: errors.New("primary down")}
	secondary := &rrmock.Reranker{RerankResult: []int{1, 0}}

	fb := NewRerankerFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	order, err := fb.Rerank(context.Background(), "q", []string{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(order) != 2 || order[0] != 1 || order[1] != 0 {
		t.Fatalf("order = %v, want [1 0]", order)
	}
}

func TestRerankerFallback_Score_AllFail(t *testing.T) {
	primary := &rrmock.Reranker{ScoreErr: errors.New("primary down")}
	secondary := &rrmock.Reranker{ScoreErr: errors.New("secondary down")}

	fb := NewRerankerFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	_, err := fb.Score(context.Background(), "q", []string{"a"})
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}
