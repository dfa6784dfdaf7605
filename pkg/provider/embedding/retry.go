package embedding

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// RetryConfig tunes the exponential backoff applied by [WithRetry].
type RetryConfig struct {
	// MaxAttempts is the maximum number of tries (the first call plus
	// retries). Default: 3.
	MaxAttempts int

	// InitialInterval is the backoff delay before the second attempt,
	// doubling on each subsequent attempt. Default: 1s.
	InitialInterval time.Duration

	// MaxInterval caps the backoff delay regardless of attempt count.
	// Default: 120s.
	MaxInterval time.Duration

	// Name is a human-readable label used in log messages.
	Name string
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.InitialInterval <= 0 {
		c.InitialInterval = time.Second
	}
	if c.MaxInterval <= 0 {
		c.MaxInterval = 120 * time.Second
	}
	return c
}

// retrying wraps a [Provider], retrying Embed and EmbedBatch calls that
// return an error with exponential backoff capped at MaxInterval.
type retrying struct {
	Provider
	cfg RetryConfig
}

// WithRetry wraps p so that Embed and EmbedBatch are retried on error with
// exponential backoff: the delay starts at cfg.InitialInterval, doubles on
// each attempt, and is capped at cfg.MaxInterval, for up to cfg.MaxAttempts
// tries total. Dimensions and ModelID are passed through unwrapped since
// they do not perform network calls.
func WithRetry(p Provider, cfg RetryConfig) Provider {
	return &retrying{Provider: p, cfg: cfg.withDefaults()}
}

// Embed implements Provider.
func (r *retrying) Embed(ctx context.Context, text string) ([]float32, error) {
	var (
		result []float32
		err    error
	)
	runWithBackoff(ctx, r.cfg, func() error {
		result, err = r.Provider.Embed(ctx, text)
		return err
	})
	return result, err
}

// EmbedBatch implements Provider.
func (r *retrying) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var (
		result [][]float32
		err    error
	)
	runWithBackoff(ctx, r.cfg, func() error {
		result, err = r.Provider.EmbedBatch(ctx, texts)
		return err
	})
	return result, err
}

// runWithBackoff invokes fn up to cfg.MaxAttempts times, sleeping between
// attempts per the configured exponential backoff. It stops early if ctx is
// cancelled or fn succeeds.
func runWithBackoff(ctx context.Context, cfg RetryConfig, fn func() error) {
	delay := cfg.InitialInterval
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return
		}
		if attempt == cfg.MaxAttempts || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}

		slog.Warn("embedding provider call failed, retrying",
			"name", cfg.Name,
			"attempt", attempt,
			"max_attempts", cfg.MaxAttempts,
			"delay", delay,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}

		delay *= 2
		if delay > cfg.MaxInterval {
			delay = cfg.MaxInterval
		}
	}
}

// Ensure retrying implements Provider at compile time.
var _ Provider = (*retrying)(nil)
