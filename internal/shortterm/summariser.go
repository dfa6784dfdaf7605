package shortterm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/vaultmind/vaultmind/internal/memory"
	"github.com/vaultmind/vaultmind/pkg/provider/llm"
	"github.com/vaultmind/vaultmind/pkg/types"
)

// summarizationSystemPrompt instructs the LM to fold evicted episodes into
// the rolling summary while preserving per-episode attribution.
const summarizationSystemPrompt = `You maintain a running summary of a conversation's memory episodes.
Given the prior summary and a new batch of episodes (each identified by its UUID, producer, and
user metadata), produce an updated summary that preserves every fact, decision, and piece of
state attributable to a specific episode. Be concise but never drop information that could later
be attributed back to a specific episode UUID.`

// Summariser produces an updated rolling summary from a prior summary and a
// batch of evicted episodes.
type Summariser interface {
	Summarise(ctx context.Context, prior string, episodes []memory.Episode) (string, error)
}

// LLMSummariser uses an LLM provider to fold evicted episodes into the
// rolling summary.
type LLMSummariser struct {
	Provider llm.Provider
}

// Summarise implements [Summariser]. It renders every episode's UUID,
// user-metadata, and content in a deterministic textual layout so the LM
// can correctly attribute facts, per spec §4.9.
func (s LLMSummariser) Summarise(ctx context.Context, prior string, episodes []memory.Episode) (string, error) {
	if len(episodes) == 0 {
		return prior, nil
	}

	var sb strings.Builder
	if prior != "" {
		fmt.Fprintf(&sb, "Prior summary:\n%s\n\n", prior)
	}
	sb.WriteString("New episodes:\n")
	for _, ep := range episodes {
		fmt.Fprintf(&sb, "- uuid=%s producer=%s metadata=%v content=%q\n", ep.ID, ep.ProducerID, ep.UserMetadata, ep.Content)
	}

	resp, err := s.Provider.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: summarizationSystemPrompt,
		Messages: []types.Message{
			{Role: "user", Content: sb.String()},
		},
		Temperature: 0.3,
	})
	if err != nil {
		return "", fmt.Errorf("summarise: %w", err)
	}
	return resp.Content, nil
}

// logSummarizationFailure logs a failed summarization without raising, per
// spec §4.9's failure semantics.
func logSummarizationFailure(err error) {
	slog.Warn("shortterm: summarization failed", "error", err)
}
