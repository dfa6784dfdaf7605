package reranker

import (
	"context"
	"testing"
)

func TestLexicalRanksExactTermMatchHighest(t *testing.T) {
	l := NewLexical()
	candidates := []string{
		"a grimjaw stalks the lower caverns",
		"nothing relevant here at all",
		"the weather today is mild and pleasant",
	}

	order, err := l.Rerank(context.Background(), "grimjaw", candidates)
	if err != nil {
		t.Fatalf("Rerank: %v", err)
	}
	if order[0] != 0 {
		t.Fatalf("top result = candidate %d, want 0 (contains query term)", order[0])
	}
}

func TestLexicalFuzzyMatchesNearMisspelling(t *testing.T) {
	l := NewLexical()
	candidates := []string{
		"a grimjaws emerges from the dark",
		"completely unrelated text about gardening",
	}

	scores, err := l.Score(context.Background(), "grimjaw", candidates)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if scores[0] <= scores[1] {
		t.Fatalf("scores = %v, want fuzzy match (candidate 0) to outscore unrelated candidate 1", scores)
	}
}

func TestLexicalDisablingFuzzyMatchYieldsZeroForNonExactTerm(t *testing.T) {
	l := NewLexical()
	l.FuzzyThreshold = 2 // > 1 disables fuzzy matching

	scores, err := l.Score(context.Background(), "grimjaw", []string{"a grimjaws emerges"})
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if scores[0] != 0 {
		t.Fatalf("score = %v, want 0 with fuzzy matching disabled and no exact term", scores[0])
	}
}

func TestLexicalEmptyCandidatesReturnsEmptyScores(t *testing.T) {
	l := NewLexical()
	scores, err := l.Score(context.Background(), "q", nil)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if len(scores) != 0 {
		t.Fatalf("scores = %v, want empty", scores)
	}
}

func TestLexicalRerankTieBreaksByOriginalIndex(t *testing.T) {
	l := NewLexical()
	// Neither candidate shares a term with the query, so both score 0.
	order, err := l.Rerank(context.Background(), "zzz", []string{"aaa", "bbb"})
	if err != nil {
		t.Fatalf("Rerank: %v", err)
	}
	if order[0] != 0 || order[1] != 1 {
		t.Fatalf("order = %v, want [0 1] (tie broken by original index)", order)
	}
}
