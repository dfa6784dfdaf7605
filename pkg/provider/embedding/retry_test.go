package embedding_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vaultmind/vaultmind/pkg/provider/embedding"
	"github.com/vaultmind/vaultmind/pkg/provider/embedding/mock"
)

func TestWithRetrySucceedsAfterTransientFailures(t *testing.T) {
	inner := &mock.Provider{}
	attempts := 0
	wrapped := &countingProvider{
		Provider: inner,
		embed: func(ctx context.Context, text string) ([]float32, error) {
			attempts++
			if attempts < 3 {
				return nil, errors.New("transient")
			}
			return []float32{1, 2, 3}, nil
		},
	}

	p := embedding.WithRetry(wrapped, embedding.RetryConfig{
		MaxAttempts:     5,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
	})

	vec, err := p.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed: unexpected error: %v", err)
	}
	if len(vec) != 3 {
		t.Errorf("Embed: want 3-length vector, got %v", vec)
	}
	if attempts != 3 {
		t.Errorf("want 3 attempts, got %d", attempts)
	}
}

func TestWithRetryGivesUpAfterMaxAttempts(t *testing.T) {
	attempts := 0
	wrapped := &countingProvider{
		Provider: &mock.Provider{},
		embed: func(ctx context.Context, text string) ([]float32, error) {
			attempts++
			return nil, errors.New("permanent")
		},
	}

	p := embedding.WithRetry(wrapped, embedding.RetryConfig{
		MaxAttempts:     3,
		InitialInterval: time.Millisecond,
		MaxInterval:     time.Millisecond,
	})

	_, err := p.Embed(context.Background(), "hello")
	if err == nil {
		t.Fatal("Embed: expected error after exhausting retries, got nil")
	}
	if attempts != 3 {
		t.Errorf("want 3 attempts, got %d", attempts)
	}
}

func TestWithRetryStopsOnContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	wrapped := &countingProvider{
		Provider: &mock.Provider{},
		embed: func(ctx context.Context, text string) ([]float32, error) {
			attempts++
			cancel()
			return nil, errors.New("transient")
		},
	}

	p := embedding.WithRetry(wrapped, embedding.RetryConfig{
		MaxAttempts:     10,
		InitialInterval: 10 * time.Millisecond,
	})

	_, err := p.Embed(ctx, "hello")
	if err == nil {
		t.Fatal("Embed: expected error, got nil")
	}
	if attempts != 1 {
		t.Errorf("want 1 attempt before ctx cancellation stops retrying, got %d", attempts)
	}
}

// countingProvider lets tests override Embed while delegating everything
// else to the embedded Provider.
type countingProvider struct {
	embedding.Provider
	embed func(ctx context.Context, text string) ([]float32, error)
}

func (c *countingProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	return c.embed(ctx, text)
}
