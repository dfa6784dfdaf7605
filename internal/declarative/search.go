package declarative

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vaultmind/vaultmind/internal/declarative/graphmodel"
	"github.com/vaultmind/vaultmind/internal/memory"
	"github.com/vaultmind/vaultmind/pkg/graphstore"
)

// SearchParams parameterizes [Memory.Search].
type SearchParams struct {
	Query            string
	NumEpisodesLimit int
	PropertyFilter   map[string]string
}

// nucleusContext is a nucleus episode plus its BFS context set, per spec
// §4.8 retrieval algorithm step 6.
type nucleusContext struct {
	nucleus  memory.Episode
	episodes []memory.Episode // includes nucleus; not yet sorted
}

// Search implements the retrieval algorithm of spec §4.8.
func (m *Memory) Search(ctx context.Context, p SearchParams) ([]memory.Episode, error) {
	if strings.TrimSpace(p.Query) == "" {
		return nil, ErrEmptyQuery
	}
	limit := p.NumEpisodesLimit
	if limit <= 0 {
		limit = DefaultEpisodesLimit
	}

	// Step 1: query derivation — wrap the query in a synthetic
	// single-episode cluster at the current timestamp.
	queryEpisode := memory.Episode{
		ID:                   "query-" + newID(),
		Content:              p.Query,
		Timestamp:            time.Now(),
		FilterableProperties: p.PropertyFilter,
	}
	queryCluster := memory.EpisodeCluster{
		ID:                   newID(),
		Episodes:             []memory.Episode{queryEpisode},
		Timestamp:            queryEpisode.Timestamp,
		FilterableProperties: p.PropertyFilter,
	}
	queryDerivatives, err := m.queryDeriver().Derive(ctx, queryCluster)
	if err != nil {
		return nil, fmt.Errorf("declarative: search: query derivation: %w", err)
	}
	if len(queryDerivatives) == 0 {
		return nil, nil
	}

	// Step 2: embed query derivatives (3 attempts; empty result on failure).
	texts := make([]string, len(queryDerivatives))
	for i, d := range queryDerivatives {
		texts[i] = d.Content
	}
	embeddings, err := embedBatchWithRetries(ctx, m.Embedder, texts, m.embedMaxAttempts())
	if err != nil {
		return nil, nil
	}

	filter := graphmodel.FilterProperties(p.PropertyFilter)

	// Step 3: vector match, union results across derivatives.
	matchedDerivatives := map[string]graphstore.Node{}
	var mu sync.Mutex
	eg, egCtx := errgroup.WithContext(ctx)
	for _, emb := range embeddings {
		emb := emb
		eg.Go(func() error {
			nodes, err := m.Store.SearchSimilarNodes(egCtx, graphstore.SimilarSearch{
				QueryVector:              emb,
				EmbeddingProperty:        graphstore.EmbeddingPropertyName(m.Embedder.ModelID(), m.Embedder.Dimensions()),
				Metric:                   graphstore.Cosine,
				RequiredLabels:           []string{graphmodel.LabelDerivative},
				RequiredProperties:       filter,
				IncludeMissingProperties: true,
			})
			if err != nil {
				return fmt.Errorf("search similar nodes: %w", err)
			}
			mu.Lock()
			for _, n := range nodes {
				matchedDerivatives[n.ID] = n
			}
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("declarative: search: %w", err)
	}

	// Step 4: Derivative → Cluster.
	clusters := map[string]graphstore.Node{}
	eg, egCtx = errgroup.WithContext(ctx)
	for id := range matchedDerivatives {
		id := id
		eg.Go(func() error {
			related, err := m.Store.SearchRelatedNodes(egCtx, graphstore.RelatedSearch{
				NodeID:             id,
				AllowedRelations:   []string{graphmodel.RelationDerivedFrom},
				FindTargets:        true,
				RequiredLabels:     []string{graphmodel.LabelEpisodeCluster},
				RequiredProperties: filter,
				IncludeMissing:     true,
			})
			if err != nil {
				return fmt.Errorf("search related nodes (derivative->cluster): %w", err)
			}
			mu.Lock()
			for _, n := range related {
				clusters[n.ID] = n
			}
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("declarative: search: %w", err)
	}

	// Step 5: Cluster → Episodes (nuclei), strict filter.
	nucleiSet := map[string]memory.Episode{}
	eg, egCtx = errgroup.WithContext(ctx)
	for id := range clusters {
		id := id
		eg.Go(func() error {
			episodeNodes, err := m.Store.SearchRelatedNodes(egCtx, graphstore.RelatedSearch{
				NodeID:             id,
				AllowedRelations:   []string{graphmodel.RelationContains},
				FindTargets:        true,
				RequiredLabels:     []string{graphmodel.LabelEpisode},
				RequiredProperties: filter,
				IncludeMissing:     false,
			})
			if err != nil {
				return fmt.Errorf("search related nodes (cluster->episodes): %w", err)
			}
			mu.Lock()
			for _, n := range episodeNodes {
				ep := graphmodel.NodeToEpisode(n)
				nucleiSet[ep.ID] = ep
			}
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("declarative: search: %w", err)
	}
	if len(nucleiSet) == 0 {
		return nil, nil
	}

	// Step 6: per-nucleus context expansion.
	contexts := make([]nucleusContext, 0, len(nucleiSet))
	var contextsMu sync.Mutex
	eg, egCtx = errgroup.WithContext(ctx)
	for _, nucleus := range nucleiSet {
		nucleus := nucleus
		eg.Go(func() error {
			episodes, err := m.expandContext(egCtx, nucleus, filter)
			if err != nil {
				return fmt.Errorf("context expansion for %q: %w", nucleus.ID, err)
			}
			contextsMu.Lock()
			contexts = append(contexts, nucleusContext{nucleus: nucleus, episodes: episodes})
			contextsMu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("declarative: search: %w", err)
	}

	// Stable order before reranking so that ties break by a deterministic
	// insertion order (spec edge-case policy).
	sort.Slice(contexts, func(i, j int) bool { return contexts[i].nucleus.ID < contexts[j].nucleus.ID })

	// Step 7: rerank contexts.
	rendered := make([]string, len(contexts))
	for i, c := range contexts {
		rendered[i] = renderContextChronologically(c, m.contextTemplate())
	}
	order, err := m.Reranker.Rerank(ctx, p.Query, rendered)
	if err != nil {
		return nil, fmt.Errorf("declarative: search: rerank: %w", err)
	}

	// Step 8: unify under budget.
	unified := map[string]memory.Episode{}
	for _, idx := range order {
		if len(unified) >= limit {
			break
		}
		c := contexts[idx]
		remaining := limit - len(unified)
		newCount := 0
		for _, ep := range c.episodes {
			if _, ok := unified[ep.ID]; !ok {
				newCount++
			}
		}
		if newCount <= remaining {
			for _, ep := range c.episodes {
				unified[ep.ID] = ep
			}
			continue
		}

		for _, ep := range episodesByProximity(c) {
			if remaining <= 0 {
				break
			}
			if _, ok := unified[ep.ID]; ok {
				continue
			}
			unified[ep.ID] = ep
			remaining--
		}
		break
	}

	// Step 9: reconstruct, sorted ascending by timestamp.
	out := make([]memory.Episode, 0, len(unified))
	for _, ep := range unified {
		out = append(out, ep)
	}
	return sortEpisodesByTimestamp(out), nil
}

// expandContext performs a BFS of depth m.contextDepth() hops over any
// relation, bi-directional, starting at nucleus, capped at
// m.contextNeighborLimit() neighbors per step.
func (m *Memory) expandContext(ctx context.Context, nucleus memory.Episode, filter graphstore.PropertyFilter) ([]memory.Episode, error) {
	visited := map[string]memory.Episode{nucleus.ID: nucleus}
	frontier := []memory.Episode{nucleus}

	for depth := 0; depth < m.contextDepth(); depth++ {
		var next []memory.Episode
		for _, node := range frontier {
			neighbors, err := m.Store.SearchRelatedNodes(ctx, graphstore.RelatedSearch{
				NodeID:             node.ID,
				FindSources:        true,
				FindTargets:        true,
				RequiredLabels:     []string{graphmodel.LabelEpisode},
				RequiredProperties: filter,
				IncludeMissing:     true,
				Limit:              m.contextNeighborLimit(),
			})
			if err != nil {
				return nil, err
			}
			for _, n := range neighbors {
				ep := graphmodel.NodeToEpisode(n)
				if _, ok := visited[ep.ID]; ok {
					continue
				}
				visited[ep.ID] = ep
				next = append(next, ep)
			}
		}
		frontier = next
		if len(frontier) == 0 {
			break
		}
	}

	out := make([]memory.Episode, 0, len(visited))
	for _, ep := range visited {
		out = append(out, ep)
	}
	return out, nil
}

// renderContextChronologically renders a context's episodes using tpl,
// joined by newline, for reranker scoring (spec §4.8 step 7).
func renderContextChronologically(c nucleusContext, tpl string) string {
	chron := sortEpisodesByTimestamp(c.episodes)
	lines := make([]string, len(chron))
	for i, ep := range chron {
		lines[i] = renderTemplate(tpl, map[string]string{
			"timestamp": ep.Timestamp.Format("2006-01-02T15:04:05Z07:00"),
			"content":   ep.Content,
		})
	}
	return strings.Join(lines, "\n")
}

// episodesByProximity orders a context's episodes by ascending
// chronological-index distance from the nucleus, per spec §4.8 step 8.
func episodesByProximity(c nucleusContext) []memory.Episode {
	chron := sortEpisodesByTimestamp(c.episodes)
	nucleusIdx := 0
	for i, ep := range chron {
		if ep.ID == c.nucleus.ID {
			nucleusIdx = i
			break
		}
	}
	type indexed struct {
		ep   memory.Episode
		dist int
		idx  int
	}
	items := make([]indexed, len(chron))
	for i, ep := range chron {
		d := i - nucleusIdx
		if d < 0 {
			d = -d
		}
		items[i] = indexed{ep: ep, dist: d, idx: i}
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].dist != items[j].dist {
			return items[i].dist < items[j].dist
		}
		return items[i].idx < items[j].idx
	})
	out := make([]memory.Episode, len(items))
	for i, it := range items {
		out[i] = it.ep
	}
	return out
}
