// Package postulate implements the Related-Episode Postulator (spec §4.5):
// given a newly ingested episode, propose other episodes that should be
// clustered with it.
package postulate

import (
	"context"

	"github.com/vaultmind/vaultmind/internal/memory"
)

// Postulator proposes episodes related to a newly ingested one. Cluster
// assembly then sorts episode plus postulated episodes by timestamp
// ascending and constructs an EpisodeCluster.
type Postulator interface {
	Postulate(ctx context.Context, episode memory.Episode) ([]memory.Episode, error)
}

// Null always returns an empty related set; clusters built from it contain
// only the triggering episode.
type Null struct{}

// Postulate implements Postulator.
func (Null) Postulate(context.Context, memory.Episode) ([]memory.Episode, error) {
	return nil, nil
}

var _ Postulator = Null{}
