package resilience

import (
	"context"

	"github.com/vaultmind/vaultmind/pkg/provider/embedding"
)

// EmbeddingFallback implements [embedding.Provider] with automatic failover
// across multiple embedding backends. Each backend has its own circuit
// breaker; when the primary fails or its breaker is open, the next healthy
// fallback is tried.
type EmbeddingFallback struct {
	group *FallbackGroup[embedding.Provider]
}

// Compile-time interface assertion.
var _ embedding.Provider = (*EmbeddingFallback)(nil)

// NewEmbeddingFallback creates an [EmbeddingFallback] with primary as the
// preferred backend.
func NewEmbeddingFallback(primary embedding.Provider, primaryName string, cfg FallbackConfig) *EmbeddingFallback {
	return &EmbeddingFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional embedding provider as a fallback.
func (f *EmbeddingFallback) AddFallback(name string, provider embedding.Provider) {
	f.group.AddFallback(name, provider)
}

// Embed delegates to the first healthy provider.
func (f *EmbeddingFallback) Embed(ctx context.Context, text string) ([]float32, error) {
	return ExecuteWithResult(f.group, func(p embedding.Provider) ([]float32, error) {
		return p.Embed(ctx, text)
	})
}

// EmbedBatch delegates to the first healthy provider.
func (f *EmbeddingFallback) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return ExecuteWithResult(f.group, func(p embedding.Provider) ([][]float32, error) {
		return p.EmbedBatch(ctx, texts)
	})
}

// Dimensions returns the primary's dimensionality. Callers configuring a
// fallback chain are responsible for keeping all entries' dimensions
// consistent, since the embedding space must match across any store
// populated by either one.
func (f *EmbeddingFallback) Dimensions() int {
	if len(f.group.entries) > 0 {
		return f.group.entries[0].value.Dimensions()
	}
	return 0
}

// ModelID returns the primary's model identifier.
func (f *EmbeddingFallback) ModelID() string {
	if len(f.group.entries) > 0 {
		return f.group.entries[0].value.ModelID()
	}
	return ""
}
