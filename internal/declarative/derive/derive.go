// Package derive implements the Derivative Deriver (spec §4.6): it
// transforms an EpisodeCluster into one or more search-indexable
// Derivatives.
package derive

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/vaultmind/vaultmind/internal/memory"
)

// Deriver produces Derivatives from an EpisodeCluster. The same interface
// is used for ingestion-time derivation and for query-time derivation
// (converting a raw query string into one or more search keys); the
// default for the latter is Identity.
type Deriver interface {
	Derive(ctx context.Context, cluster memory.EpisodeCluster) ([]memory.Derivative, error)
}

// newDerivativeID generates a random derivative identifier. Derivatives are
// always freshly minted, never inheriting an episode's ID, since many
// derivatives can trace back to the same cluster.
func newDerivativeID() string {
	return uuid.NewString()
}

func derivativeFromCluster(derivativeType, content string, cluster memory.EpisodeCluster) memory.Derivative {
	return memory.Derivative{
		ID:                   newDerivativeID(),
		DerivativeType:       derivativeType,
		ContentType:          memory.ContentTypeString,
		Content:              content,
		Timestamp:            cluster.Timestamp,
		FilterableProperties: cluster.FilterableProperties,
		UserMetadata:         cluster.UserMetadata,
	}
}

// Identity returns one Derivative per episode, content identical to the
// episode's.
type Identity struct{}

// Derive implements Deriver.
func (Identity) Derive(_ context.Context, cluster memory.EpisodeCluster) ([]memory.Derivative, error) {
	out := make([]memory.Derivative, 0, len(cluster.Episodes))
	for _, ep := range cluster.Episodes {
		out = append(out, derivativeFromCluster("identity", ep.Content, cluster))
	}
	return out, nil
}

var _ Deriver = Identity{}

// Concatenation returns a single Derivative whose content is the cluster's
// episodes' contents joined, in timestamp order, by Separator.
type Concatenation struct {
	// Separator joins episode contents. Defaults to "\n" when empty.
	Separator string
}

// Derive implements Deriver.
func (c Concatenation) Derive(_ context.Context, cluster memory.EpisodeCluster) ([]memory.Derivative, error) {
	sep := c.Separator
	if sep == "" {
		sep = "\n"
	}
	parts := make([]string, len(cluster.Episodes))
	for i, ep := range cluster.Episodes {
		parts[i] = ep.Content
	}
	content := strings.Join(parts, sep)
	return []memory.Derivative{derivativeFromCluster("concatenation", content, cluster)}, nil
}

var _ Deriver = Concatenation{}
