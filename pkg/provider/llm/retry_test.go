package llm_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vaultmind/vaultmind/pkg/provider/llm"
	"github.com/vaultmind/vaultmind/pkg/provider/llm/mock"
)

func TestWithRetryCompleteSucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	wrapped := &countingProvider{
		Provider: &mock.Provider{},
		complete: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			attempts++
			if attempts < 3 {
				return nil, errors.New("transient")
			}
			return &llm.CompletionResponse{Content: "ok"}, nil
		},
	}

	p := llm.WithRetry(wrapped, llm.RetryConfig{
		MaxAttempts:     5,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
	})

	resp, err := p.Complete(context.Background(), llm.CompletionRequest{})
	if err != nil {
		t.Fatalf("Complete: unexpected error: %v", err)
	}
	if resp.Content != "ok" {
		t.Errorf("Content = %q, want ok", resp.Content)
	}
	if attempts != 3 {
		t.Errorf("want 3 attempts, got %d", attempts)
	}
}

func TestWithRetryGivesUpAfterMaxAttempts(t *testing.T) {
	attempts := 0
	wrapped := &countingProvider{
		Provider: &mock.Provider{},
		complete: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			attempts++
			return nil, errors.New("permanent")
		},
	}

	p := llm.WithRetry(wrapped, llm.RetryConfig{
		MaxAttempts:     3,
		InitialInterval: time.Millisecond,
		MaxInterval:     time.Millisecond,
	})

	_, err := p.Complete(context.Background(), llm.CompletionRequest{})
	if err == nil {
		t.Fatal("Complete: expected error after exhausting retries, got nil")
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
		complete: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			attempts++
			cancel()
			return nil, errors.New("transient")
		},
	}

	p := llm.WithRetry(wrapped, llm.RetryConfig{
		MaxAttempts:     10,
		InitialInterval: 10 * time.Millisecond,
	})

	_, err := p.Complete(ctx, llm.CompletionRequest{})
	if err == nil {
		t.Fatal("Complete: expected error, got nil")
	}
	if attempts != 1 {
		t.Errorf("want 1 attempt before ctx cancellation stops retrying, got %d", attempts)
	}
}

func TestWithRetryStreamCompletionRetriesOnlyInitialCall(t *testing.T) {
	attempts := 0
	ch := make(chan llm.Chunk)
	close(ch)
	wrapped := &countingProvider{
		Provider: &mock.Provider{},
		stream: func(ctx context.Context, req llm.CompletionRequest) (<-chan llm.Chunk, error) {
			attempts++
			if attempts < 2 {
				return nil, errors.New("transient")
			}
			return ch, nil
		},
	}

	p := llm.WithRetry(wrapped, llm.RetryConfig{
		MaxAttempts:     5,
		InitialInterval: time.Millisecond,
	})

	got, err := p.StreamCompletion(context.Background(), llm.CompletionRequest{})
	if err != nil {
		t.Fatalf("StreamCompletion: unexpected error: %v", err)
	}
	if got != (<-chan llm.Chunk)(ch) {
		t.Error("expected the same channel instance returned by the successful attempt")
	}
	if attempts != 2 {
		t.Errorf("want 2 attempts, got %d", attempts)
	}
}

// countingProvider lets tests override individual methods while delegating
// everything else to the embedded Provider.
type countingProvider struct {
	llm.Provider
	complete func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error)
	stream   func(ctx context.Context, req llm.CompletionRequest) (<-chan llm.Chunk, error)
}

func (c *countingProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return c.complete(ctx, req)
}

func (c *countingProvider) StreamCompletion(ctx context.Context, req llm.CompletionRequest) (<-chan llm.Chunk, error) {
	return c.stream(ctx, req)
}
