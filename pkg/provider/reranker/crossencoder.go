package reranker

import "context"

// CrossEncoderScorer scores a single (query, candidate) pair jointly, the
// way a cross-encoder model does (unlike embedding similarity, which scores
// query and candidate independently then compares vectors).
type CrossEncoderScorer interface {
	// ScorePair returns a relevance score for candidate against query.
	ScorePair(ctx context.Context, query, candidate string) (float64, error)
}

// CrossEncoder reranks candidates by delegating pairwise scoring to a
// [CrossEncoderScorer]. The Go ecosystem has no cross-encoder inference
// runtime of its own (these models typically run under a Python/ONNX
// serving stack); ScorePair is the seam where such a hosted model would be
// called, mirroring how a cross-encoder reranker is wired as a pluggable
// scoring backend rather than a bundled model.
type CrossEncoder struct {
	scorer CrossEncoderScorer
}

// NewCrossEncoder returns a [CrossEncoder] reranker delegating to scorer.
func NewCrossEncoder(scorer CrossEncoderScorer) *CrossEncoder {
	return &CrossEncoder{scorer: scorer}
}

// Score implements Reranker.
func (c *CrossEncoder) Score(ctx context.Context, query string, candidates []string) ([]float64, error) {
	scores := make([]float64, len(candidates))
	for i, cand := range candidates {
		s, err := c.scorer.ScorePair(ctx, query, cand)
		if err != nil {
			return nil, err
		}
		scores[i] = s
	}
	return scores, nil
}

// Rerank implements Reranker.
func (c *CrossEncoder) Rerank(ctx context.Context, query string, candidates []string) ([]int, error) {
	scores, err := c.Score(ctx, query, candidates)
	if err != nil {
		return nil, err
	}
	return rerankFromScores(scores), nil
}

// Ensure CrossEncoder implements Reranker at compile time.
var _ Reranker = (*CrossEncoder)(nil)
