package declarative

import (
	"context"
	"errors"
	"time"

	"github.com/vaultmind/vaultmind/pkg/provider/embedding"
)

// embedBatchWithRetries calls embedder.EmbedBatch up to maxAttempts times
// with exponential backoff (1s doubling, capped at 120s), matching C2's
// retry policy shape (spec §4.2) but scoped to this single bulk call as
// required by the ingestion and retrieval algorithms (spec §4.8 steps 2c
// and 2).
func embedBatchWithRetries(ctx context.Context, embedder embedding.Provider, texts []string, maxAttempts int) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	const (
		initialInterval = time.Second
		maxInterval     = 120 * time.Second
	)

	var (
		result [][]float32
		err    error
	)
	delay := initialInterval
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, err = embedder.EmbedBatch(ctx, texts)
		if err == nil {
			return result, nil
		}
		if attempt == maxAttempts || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > maxInterval {
			delay = maxInterval
		}
	}
	return nil, err
}
