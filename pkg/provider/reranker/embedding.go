package reranker

import (
	"context"
	"fmt"
	"math"

	"github.com/vaultmind/vaultmind/pkg/graphstore"
	"github.com/vaultmind/vaultmind/pkg/provider/embedding"
)

// Embedding reranks candidates by the similarity of their embedding vectors
// to the query's embedding vector, computed live via an
// [embedding.Provider] (cosine/dot/euclidean/manhattan, per
// [graphstore.SimilarityMetric]).
type Embedding struct {
	provider embedding.Provider
	metric   graphstore.SimilarityMetric
}

// NewEmbedding returns an [Embedding] reranker backed by provider, scoring
// with the given metric.
func NewEmbedding(provider embedding.Provider, metric graphstore.SimilarityMetric) *Embedding {
	return &Embedding{provider: provider, metric: metric}
}

// Score implements Reranker.
func (e *Embedding) Score(ctx context.Context, query string, candidates []string) ([]float64, error) {
	queryVec, err := e.provider.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("reranker/embedding: embed query: %w", err)
	}
	candidateVecs, err := e.provider.EmbedBatch(ctx, candidates)
	if err != nil {
		return nil, fmt.Errorf("reranker/embedding: embed candidates: %w", err)
	}

	scores := make([]float64, len(candidates))
	for i, vec := range candidateVecs {
		scores[i] = similarity(e.metric, queryVec, vec)
	}
	return scores, nil
}

// Rerank implements Reranker.
func (e *Embedding) Rerank(ctx context.Context, query string, candidates []string) ([]int, error) {
	scores, err := e.Score(ctx, query, candidates)
	if err != nil {
		return nil, err
	}
	return rerankFromScores(scores), nil
}

// similarity computes a higher-is-better score for the given metric,
// matching the ranking direction used by the graphstore backends.
func similarity(metric graphstore.SimilarityMetric, a, b []float32) float64 {
	switch metric {
	case graphstore.Dot:
		var sum float64
		for i := range a {
			sum += float64(a[i]) * float64(b[i])
		}
		return sum
	case graphstore.Euclidean:
		var sum float64
		for i := range a {
			d := float64(a[i]) - float64(b[i])
			sum += d * d
		}
		return -math.Sqrt(sum)
	case graphstore.Manhattan:
		var sum float64
		for i := range a {
			sum += math.Abs(float64(a[i]) - float64(b[i]))
		}
		return -sum
	default: // Cosine
		var dot, normA, normB float64
		for i := range a {
			dot += float64(a[i]) * float64(b[i])
			normA += float64(a[i]) * float64(a[i])
			normB += float64(b[i]) * float64(b[i])
		}
		if normA == 0 || normB == 0 {
			return 0
		}
		return dot / (math.Sqrt(normA) * math.Sqrt(normB))
	}
}

// Ensure Embedding implements Reranker at compile time.
var _ Reranker = (*Embedding)(nil)
