package resilience

import (
	"context"
	"errors"
	"testing"

	embmock "github.com/vaultmind/vaultmind/pkg/provider/embedding/mock"
)

func TestEmbeddingFallback_Embed_PrimarySuccess(t *testing.T) {
	primary := &embmock.Provider{EmbedResult: []float32{0.1, 0.2}}
	secondary := &embmock.Provider{EmbedResult: []float32{0.9, 0.9}}

	fb := NewEmbeddingFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	vec, err := fb.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vec) != 2 || vec[0] != 0.1 {
		t.Fatalf("vec = %v, want primary's result", vec)
	}
	if len(secondary.EmbedCalls) != 0 {
		t.Fatalf("secondary called %d times, want 0", len(secondary.EmbedCalls))
	}
}

func TestEmbeddingFallback_Embed_Failover(t *testing.T) {
	primary := &embmock.Provider{EmbedErr: errors.New("primary down")}
	secondary := &embmock.Provider{EmbedResult: []float32{0.9, 0.9}}

	fb := NewEmbeddingFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	vec, err := fb.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vec) != 2 || vec[0] != 0.9 {
		t.Fatalf("vec = %v, want secondary's result", vec)
	}
}

func TestEmbeddingFallback_EmbedBatch_AllFail(t *testing.T) {
	primary := &embmock.Provider{EmbedBatchErr: errors.New("primary down")}
	secondary := &embmock.Provider{EmbedBatchErr: errors.New("secondary down")}

	fb := NewEmbeddingFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	_, err := fb.EmbedBatch(context.Background(), []string{"a", "b"})
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}

func TestEmbeddingFallback_DimensionsAndModelID_ReportPrimaryOnly(t *testing.T) {
	primary := &embmock.Provider{DimensionsValue: 1536, ModelIDValue: "text-embed-primary"}
	secondary := &embmock.Provider{DimensionsValue: 768, ModelIDValue: "text-embed-secondary"}

	fb := NewEmbeddingFallback(primary, "primary", FallbackConfig{})
	fb.AddFallback("secondary", secondary)

	if got := fb.Dimensions(); got != 1536 {
		t.Fatalf("Dimensions() = %d, want 1536", got)
	}
	if got := fb.ModelID(); got != "text-embed-primary" {
		t.Fatalf("ModelID() = %q, want text-embed-primary", got)
	}
}
