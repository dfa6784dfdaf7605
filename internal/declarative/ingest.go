package declarative

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/vaultmind/vaultmind/internal/declarative/graphmodel"
	"github.com/vaultmind/vaultmind/internal/declarative/postulate"
	"github.com/vaultmind/vaultmind/internal/memory"
	"github.com/vaultmind/vaultmind/pkg/graphstore"
)

// workflowContribution is the nodes/edges a single ClusterWorkflow
// contributes to an ingest, joined into the overall write after every
// workflow has run.
type workflowContribution struct {
	nodes []graphstore.Node
	edges []graphstore.Edge
}

// AddEpisode implements the ingestion algorithm of spec §4.8.
func (m *Memory) AddEpisode(ctx context.Context, ep memory.Episode) error {
	if ep.ID == "" {
		return ErrMissingEpisodeID
	}

	episodeNode := graphmodel.EpisodeToNode(ep)

	workflows := m.Workflows.workflowsFor(ep.EpisodeType)

	contributions := make([]workflowContribution, len(workflows))
	eg, egCtx := errgroup.WithContext(ctx)
	for i, wf := range workflows {
		i, wf := i, wf
		eg.Go(func() error {
			c, err := m.runClusterWorkflow(egCtx, wf, ep)
			if err != nil {
				// Embedding failures are tolerated per spec §4.8 step 2c /
				// failure semantics: drop this workflow's contribution,
				// the episode write still proceeds.
				slog.Warn("declarative: cluster workflow dropped", "episode_id", ep.ID, "error", err)
				return nil
			}
			contributions[i] = c
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return fmt.Errorf("declarative: add episode: %w", err)
	}

	allNodes := []graphstore.Node{episodeNode}
	var allEdges []graphstore.Edge
	for _, c := range contributions {
		allNodes = append(allNodes, c.nodes...)
		allEdges = append(allEdges, c.edges...)
	}

	// Step 3: independently run every postulator for RELATED_TO edges
	// (edge-only; no node rewriting).
	relatedEdges, err := m.relatedToEdges(ctx, workflows, ep)
	if err != nil {
		slog.Warn("declarative: related-episode postulation failed", "episode_id", ep.ID, "error", err)
	} else {
		allEdges = append(allEdges, relatedEdges...)
	}

	// Step 4: nodes before edges.
	if err := m.Store.AddNodes(ctx, allNodes); err != nil {
		return fmt.Errorf("declarative: add episode: add nodes: %w", err)
	}
	if len(allEdges) > 0 {
		if err := m.Store.AddEdges(ctx, allEdges); err != nil {
			return fmt.Errorf("declarative: add episode: add edges: %w", err)
		}
	}
	return nil
}

// runClusterWorkflow executes one ClusterWorkflow's postulate → cluster →
// derive → mutate → embed → build-nodes-and-edges pipeline.
func (m *Memory) runClusterWorkflow(ctx context.Context, wf ClusterWorkflow, ep memory.Episode) (workflowContribution, error) {
	cluster, err := m.buildCluster(ctx, wf.Postulator, ep)
	if err != nil {
		return workflowContribution{}, fmt.Errorf("build cluster: %w", err)
	}

	var all []memory.Derivative
	eg, egCtx := errgroup.WithContext(ctx)
	results := make([][]memory.Derivative, len(wf.Derivations))
	for i, dw := range wf.Derivations {
		i, dw := i, dw
		eg.Go(func() error {
			raw, err := dw.Deriver.Derive(egCtx, cluster)
			if err != nil {
				return fmt.Errorf("derive: %w", err)
			}

			var mutated []memory.Derivative
			megEg, megCtx := errgroup.WithContext(egCtx)
			mutResults := make([][]memory.Derivative, len(raw)*len(dw.Mutators))
			idx := 0
			for _, d := range raw {
				for _, mw := range dw.Mutators {
					d, mw, slot := d, mw, idx
					idx++
					megEg.Go(func() error {
						out, err := mw.Mutator.Mutate(megCtx, d, cluster)
						if err != nil {
							return fmt.Errorf("mutate: %w", err)
						}
						mutResults[slot] = out
						return nil
					})
				}
			}
			if err := megEg.Wait(); err != nil {
				return err
			}
			for _, r := range mutResults {
				mutated = append(mutated, r...)
			}
			results[i] = mutated
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return workflowContribution{}, err
	}
	for _, r := range results {
		all = append(all, r...)
	}

	if len(all) == 0 {
		return workflowContribution{}, nil
	}

	texts := make([]string, len(all))
	for i, d := range all {
		texts[i] = d.Content
	}
	embeddings, err := embedBatchWithRetries(ctx, m.Embedder, texts, m.embedMaxAttempts())
	if err != nil {
		return workflowContribution{}, fmt.Errorf("embed: %w", err)
	}
	for i := range all {
		all[i].Embedding = embeddings[i]
	}

	clusterNode := graphmodel.ClusterToNode(cluster)
	nodes := []graphstore.Node{clusterNode}
	edges := graphmodel.ClusterEdges(cluster.ID, cluster.Episodes)
	for _, d := range all {
		nodes = append(nodes, graphmodel.DerivativeToNode(d, m.Embedder.ModelID()))
		edges = append(edges, graphmodel.DerivedFromEdge(d.ID, cluster.ID))
	}

	return workflowContribution{nodes: nodes, edges: edges}, nil
}

// buildCluster runs the workflow's postulator and assembles the resulting
// EpisodeCluster per spec §4.5.
func (m *Memory) buildCluster(ctx context.Context, p postulate.Postulator, ep memory.Episode) (memory.EpisodeCluster, error) {
	related, err := p.Postulate(ctx, ep)
	if err != nil {
		return memory.EpisodeCluster{}, fmt.Errorf("postulate: %w", err)
	}

	members := append(append([]memory.Episode{}, related...), ep)
	sorted := sortEpisodesByTimestamp(members)

	filterMaps := make([]map[string]string, len(sorted))
	for i, e := range sorted {
		filterMaps[i] = e.FilterableProperties
	}

	return memory.EpisodeCluster{
		ID:                   newID(),
		Episodes:             sorted,
		Timestamp:            maxTimestamp(sorted),
		FilterableProperties: intersectFilterable(filterMaps),
		UserMetadata:         ep.UserMetadata,
	}, nil
}

// relatedToEdges runs each workflow's postulator over ep, in workflow order,
// and emits Episode --RELATED_TO--> Episode edges. A postulator shared by
// several workflows runs once per workflow.
func (m *Memory) relatedToEdges(ctx context.Context, workflows []ClusterWorkflow, ep memory.Episode) ([]graphstore.Edge, error) {
	var edges []graphstore.Edge
	for _, wf := range workflows {
		related, err := wf.Postulator.Postulate(ctx, ep)
		if err != nil {
			return nil, fmt.Errorf("postulate: %w", err)
		}
		for _, r := range related {
			edges = append(edges, graphmodel.RelatedToEdge(ep.ID, r.ID))
		}
	}
	return edges, nil
}
