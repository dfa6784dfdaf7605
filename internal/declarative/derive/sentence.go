package derive

import (
	"context"
	"fmt"
	"strings"

	"github.com/tsawler/prose/v3"

	"github.com/vaultmind/vaultmind/internal/memory"
)

// Sentence returns one Derivative per sentence, after line-splitting each
// episode's content and running sentence tokenization over each line.
type Sentence struct{}

// Derive implements Deriver.
func (Sentence) Derive(_ context.Context, cluster memory.EpisodeCluster) ([]memory.Derivative, error) {
	var out []memory.Derivative
	for _, ep := range cluster.Episodes {
		for _, line := range strings.Split(ep.Content, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			doc, err := prose.NewDocument(line, prose.WithExtraction(false), prose.WithTagging(false))
			if err != nil {
				return nil, fmt.Errorf("derive: sentence: tokenize line: %w", err)
			}
			for _, sent := range doc.Sentences() {
				text := strings.TrimSpace(sent.Text)
				if text == "" {
					continue
				}
				out = append(out, derivativeFromCluster("sentence", text, cluster))
			}
		}
	}
	return out, nil
}

var _ Deriver = Sentence{}
