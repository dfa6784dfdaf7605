// Package reranker: ModelHosted calls an externally hosted reranking API
// (Cohere's Rerank endpoint) rather than scoring locally.
package reranker

import (
	"context"
	"fmt"

	cohere "github.com/cohere-ai/cohere-go/v2"
	cohereclient "github.com/cohere-ai/cohere-go/v2/client"
)

// DefaultModelHostedModel is used when ModelHosted.Model is empty.
const DefaultModelHostedModel = "rerank-english-v3.0"

// ModelHosted reranks candidates via Cohere's hosted Rerank API.
type ModelHosted struct {
	client *cohereclient.Client
	model  string
}

// NewModelHosted returns a [ModelHosted] reranker authenticated with
// apiKey. If model is empty, [DefaultModelHostedModel] is used.
func NewModelHosted(apiKey, model string) (*ModelHosted, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("reranker/modelhosted: apiKey must not be empty")
	}
	if model == "" {
		model = DefaultModelHostedModel
	}
	return &ModelHosted{
		client: cohereclient.NewClient(cohereclient.WithToken(apiKey)),
		model:  model,
	}, nil
}

// Score implements Reranker.
func (m *ModelHosted) Score(ctx context.Context, query string, candidates []string) ([]float64, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	docs := make([]*cohere.RerankRequestDocumentsItem, len(candidates))
	for i, c := range candidates {
		docs[i] = &cohere.RerankRequestDocumentsItem{String: c}
	}
	topN := len(candidates)

	resp, err := m.client.Rerank(ctx, &cohere.RerankRequest{
		Query:     query,
		Documents: docs,
		Model:     &m.model,
		TopN:      &topN,
	})
	if err != nil {
		return nil, fmt.Errorf("reranker/modelhosted: rerank: %w", err)
	}

	scores := make([]float64, len(candidates))
	if resp != nil {
		for _, r := range resp.Results {
			if r.Index >= 0 && r.Index < len(candidates) {
				scores[r.Index] = r.RelevanceScore
			}
		}
	}
	return scores, nil
}

// Rerank implements Reranker.
func (m *ModelHosted) Rerank(ctx context.Context, query string, candidates []string) ([]int, error) {
	scores, err := m.Score(ctx, query, candidates)
	if err != nil {
		return nil, err
	}
	return rerankFromScores(scores), nil
}

// Ensure ModelHosted implements Reranker at compile time.
var _ Reranker = (*ModelHosted)(nil)
