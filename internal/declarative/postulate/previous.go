package postulate

import (
	"context"
	"fmt"

	"github.com/vaultmind/vaultmind/internal/declarative/graphmodel"
	"github.com/vaultmind/vaultmind/internal/memory"
	"github.com/vaultmind/vaultmind/pkg/graphstore"
)

// Previous returns the most recent N episodes strictly older than the
// triggering episode's timestamp, filtered by a configured set of
// filterable keys (typically group_id and session_id), ordered descending.
type Previous struct {
	Store graphstore.Store

	// FilterKeys are the filterable-property keys used to scope the
	// lookup (e.g. "group_id", "session_id"). Values are taken from the
	// triggering episode's own FilterableProperties.
	FilterKeys []string

	// Limit is N, the maximum number of prior episodes to propose.
	Limit int
}

// Postulate implements Postulator.
func (p Previous) Postulate(ctx context.Context, episode memory.Episode) ([]memory.Episode, error) {
	filters := make(graphstore.PropertyFilter, len(p.FilterKeys))
	for _, key := range p.FilterKeys {
		if v, ok := episode.FilterableProperties[key]; ok {
			filters[graphmodel.MangleFilterable(key)] = v
		}
	}

	nodes, err := p.Store.SearchDirectionalNodes(ctx, graphstore.DirectionalSearch{
		ByProperty:     "timestamp",
		StartAtValue:   episode.Timestamp,
		IncludeEqual:   false,
		OrderAscending: false,
		Limit:          p.Limit,
		RequiredLabels: []string{graphmodel.LabelEpisode},
		Filters:        filters,
	})
	if err != nil {
		return nil, fmt.Errorf("postulate: previous: search directional nodes: %w", err)
	}

	episodes := make([]memory.Episode, 0, len(nodes))
	for _, n := range nodes {
		episodes = append(episodes, graphmodel.NodeToEpisode(n))
	}
	return episodes, nil
}

var _ Postulator = Previous{}
