// Package mutate implements the Derivative Mutator (spec §4.7): it
// rewrites or augments Derivatives produced by a Deriver. Mutation can
// multiply — the final Derivative set for a cluster is the flat
// concatenation of every mutator's outputs across every deriver's outputs.
package mutate

import (
	"context"

	"github.com/google/uuid"

	"github.com/vaultmind/vaultmind/internal/memory"
)

// Mutator rewrites or augments a single Derivative, given its source
// cluster for context.
type Mutator interface {
	Mutate(ctx context.Context, derivative memory.Derivative, cluster memory.EpisodeCluster) ([]memory.Derivative, error)
}

// Identity returns a fresh Derivative with identical content. A fresh ID is
// still minted since mutators always produce new Derivative identities,
// never reusing the input's.
type Identity struct{}

// Mutate implements Mutator.
func (Identity) Mutate(_ context.Context, d memory.Derivative, _ memory.EpisodeCluster) ([]memory.Derivative, error) {
	out := d
	out.ID = uuid.NewString()
	return []memory.Derivative{out}, nil
}

var _ Mutator = Identity{}
