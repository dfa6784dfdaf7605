package mutate

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/vaultmind/vaultmind/internal/memory"
)

// Metadata rewrites a Derivative's content into a configured template. The
// template may reference $timestamp, $content, $producer_id, and any
// user-metadata key present on the source cluster's triggering episode
// (the last episode in cluster.Episodes, chronologically).
type Metadata struct {
	// Template is expanded with os.Expand; unrecognized keys expand to "".
	// Example default: "[$timestamp] $content".
	Template string
}

// DefaultMetadataTemplate is used when Template is empty.
const DefaultMetadataTemplate = "[$timestamp] $content"

// Mutate implements Mutator.
func (m Metadata) Mutate(_ context.Context, d memory.Derivative, cluster memory.EpisodeCluster) ([]memory.Derivative, error) {
	tpl := m.Template
	if tpl == "" {
		tpl = DefaultMetadataTemplate
	}

	vars := templateVars(d, cluster)
	rendered := os.Expand(tpl, func(key string) string {
		return vars[key]
	})

	out := d
	out.ID = uuid.NewString()
	out.DerivativeType = "metadata"
	out.Content = rendered
	return []memory.Derivative{out}, nil
}

var _ Mutator = Metadata{}

// templateVars assembles the substitution map for a template render: the
// fixed keys plus every user-metadata key on the triggering episode
// (stringified via fmt.Sprint).
func templateVars(d memory.Derivative, cluster memory.EpisodeCluster) map[string]string {
	vars := map[string]string{
		"timestamp":   d.Timestamp.Format("2006-01-02T15:04:05Z07:00"),
		"content":     d.Content,
		"producer_id": "",
	}
	if n := len(cluster.Episodes); n > 0 {
		trigger := cluster.Episodes[n-1]
		vars["producer_id"] = trigger.ProducerID
		for k, v := range trigger.UserMetadata {
			vars[k] = fmt.Sprint(v)
		}
	}
	return vars
}
