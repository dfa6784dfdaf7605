package mutate

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/vaultmind/vaultmind/internal/memory"
	"github.com/vaultmind/vaultmind/pkg/provider/llm"
	"github.com/vaultmind/vaultmind/pkg/types"
)

// lmRewriteSystemPrompt is the fixed instruction used to rewrite a
// derivative's content into third-person objective form.
const lmRewriteSystemPrompt = `You rewrite a single statement into objective, third-person prose suitable for long-term storage. Do not add information that isn't present. Do not address the reader. Output only the rewritten statement, with no preamble.`

// LMRewrite rewrites a Derivative's content into third-person objective
// form using the cluster's episodes as context.
type LMRewrite struct {
	Provider llm.Provider
}

// Mutate implements Mutator.
func (m LMRewrite) Mutate(ctx context.Context, d memory.Derivative, cluster memory.EpisodeCluster) ([]memory.Derivative, error) {
	userPrompt := renderClusterContext(cluster) + "\n\nRewrite: " + d.Content

	resp, err := m.Provider.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: lmRewriteSystemPrompt,
		Messages: []types.Message{
			{Role: "user", Content: userPrompt},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("mutate: lmrewrite: complete: %w", err)
	}

	out := d
	out.ID = uuid.NewString()
	out.DerivativeType = "lm_rewrite"
	out.Content = strings.TrimSpace(resp.Content)
	return []memory.Derivative{out}, nil
}

var _ Mutator = LMRewrite{}

// renderClusterContext renders a cluster's episodes chronologically as
// "[timestamp] producer: content" lines, giving the rewrite model enough
// context to disambiguate pronouns and references.
func renderClusterContext(cluster memory.EpisodeCluster) string {
	var b strings.Builder
	for _, ep := range cluster.Episodes {
		fmt.Fprintf(&b, "[%s] %s: %s\n", ep.Timestamp.Format("2006-01-02T15:04:05Z07:00"), ep.ProducerID, ep.Content)
	}
	return b.String()
}
