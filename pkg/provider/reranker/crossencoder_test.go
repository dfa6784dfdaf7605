package reranker

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// overlapScorer is a minimal CrossEncoderScorer test double scoring by
// substring containment, standing in for a hosted cross-encoder model.
type overlapScorer struct {
	err error
}

func (o overlapScorer) ScorePair(_ context.Context, query, candidate string) (float64, error) {
	if o.err != nil {
		return 0, o.err
	}
	if strings.Contains(candidate, query) {
		return 1, nil
	}
	return 0, nil
}

func TestCrossEncoderScoresEachPairIndependently(t *testing.T) {
	ce := NewCrossEncoder(overlapScorer{})
	candidates := []string{"contains needle here", "no match", "needle again"}

	scores, err := ce.Score(context.Background(), "needle", candidates)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	want := []float64{1, 0, 1}
	for i := range want {
		if scores[i] != want[i] {
			t.Errorf("scores[%d] = %v, want %v", i, scores[i], want[i])
		}
	}
}

func TestCrossEncoderRerankOrdersByScore(t *testing.T) {
	ce := NewCrossEncoder(overlapScorer{})
	candidates := []string{"no match", "needle found"}

	order, err := ce.Rerank(context.Background(), "needle", candidates)
	if err != nil {
		t.Fatalf("Rerank: %v", err)
	}
	if order[0] != 1 {
		t.Fatalf("order = %v, want candidate 1 (matching) ranked first", order)
	}
}

func TestCrossEncoderPropagatesScorerError(t *testing.T) {
	wantErr := errors.New("backend unavailable")
	ce := NewCrossEncoder(overlapScorer{err: wantErr})

	_, err := ce.Score(context.Background(), "q", []string{"a"})
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}
}
