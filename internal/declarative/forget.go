package declarative

import (
	"context"
	"fmt"

	"github.com/vaultmind/vaultmind/internal/declarative/graphmodel"
	"github.com/vaultmind/vaultmind/pkg/graphstore"
)

// ForgetAll implements spec §4.8's forget_all: clears the entire graph.
func (m *Memory) ForgetAll(ctx context.Context) error {
	if err := m.Store.ClearData(ctx); err != nil {
		return fmt.Errorf("declarative: forget all: %w", err)
	}
	return nil
}

// ForgetFilteredEpisodes implements spec §4.8's
// forget_filtered_episodes(property_filter): finds every Episode matching
// the filter, traverses backward to EpisodeClusters (via CONTAINS) and
// backward again to Derivatives (via DERIVED_FROM), and deletes all three
// node sets.
func (m *Memory) ForgetFilteredEpisodes(ctx context.Context, propertyFilter map[string]string) error {
	filter := graphmodel.FilterProperties(propertyFilter)

	episodes, err := m.Store.SearchMatchingNodes(ctx, []string{graphmodel.LabelEpisode}, filter, false, graphstore.DefaultANNLimit)
	if err != nil {
		return fmt.Errorf("declarative: forget filtered episodes: find episodes: %w", err)
	}
	if len(episodes) == 0 {
		return nil
	}

	toDelete := map[string]struct{}{}
	for _, ep := range episodes {
		toDelete[ep.ID] = struct{}{}
	}

	clusters := map[string]struct{}{}
	for _, ep := range episodes {
		related, err := m.Store.SearchRelatedNodes(ctx, graphstore.RelatedSearch{
			NodeID:           ep.ID,
			AllowedRelations: []string{graphmodel.RelationContains},
			FindSources:      true,
			RequiredLabels:   []string{graphmodel.LabelEpisodeCluster},
		})
		if err != nil {
			return fmt.Errorf("declarative: forget filtered episodes: find clusters: %w", err)
		}
		for _, c := range related {
			clusters[c.ID] = struct{}{}
		}
	}
	for id := range clusters {
		toDelete[id] = struct{}{}
	}

	for id := range clusters {
		derivatives, err := m.Store.SearchRelatedNodes(ctx, graphstore.RelatedSearch{
			NodeID:           id,
			AllowedRelations: []string{graphmodel.RelationDerivedFrom},
			FindSources:      true,
			RequiredLabels:   []string{graphmodel.LabelDerivative},
		})
		if err != nil {
			return fmt.Errorf("declarative: forget filtered episodes: find derivatives: %w", err)
		}
		for _, d := range derivatives {
			toDelete[d.ID] = struct{}{}
		}
	}

	ids := make([]string, 0, len(toDelete))
	for id := range toDelete {
		ids = append(ids, id)
	}
	if err := m.Store.DeleteNodes(ctx, ids); err != nil {
		return fmt.Errorf("declarative: forget filtered episodes: delete nodes: %w", err)
	}
	return nil
}
