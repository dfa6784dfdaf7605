package mock_test

import (
	"context"
	"testing"

	"github.com/vaultmind/vaultmind/pkg/graphstore"
	"github.com/vaultmind/vaultmind/pkg/graphstore/mock"
)

func TestAddAndSearchMatchingNodes(t *testing.T) {
	store := mock.NewStore()
	ctx := context.Background()

	nodes := []graphstore.Node{
		{ID: "n1", Labels: []string{"episode"}, Properties: map[string]any{"filterable_group_id": "g1"}},
		{ID: "n2", Labels: []string{"episode"}, Properties: map[string]any{"filterable_group_id": "g2"}},
		{ID: "n3", Labels: []string{"cluster"}, Properties: map[string]any{}},
	}
	if err := store.AddNodes(ctx, nodes); err != nil {
		t.Fatalf("AddNodes: %v", err)
	}
	if got := store.CallCount("AddNodes"); got != 1 {
		t.Errorf("CallCount(AddNodes): want 1, got %d", got)
	}

	got, err := store.SearchMatchingNodes(ctx, []string{"episode"}, graphstore.PropertyFilter{"filterable_group_id": "g1"}, false, 0)
	if err != nil {
		t.Fatalf("SearchMatchingNodes: %v", err)
	}
	if len(got) != 1 || got[0].ID != "n1" {
		t.Errorf("SearchMatchingNodes: want [n1], got %v", idsOf(got))
	}
}

func TestAddEdgesRejectsMissingEndpoint(t *testing.T) {
	store := mock.NewStore()
	ctx := context.Background()

	if err := store.AddNodes(ctx, []graphstore.Node{{ID: "n1"}}); err != nil {
		t.Fatalf("AddNodes: %v", err)
	}
	err := store.AddEdges(ctx, []graphstore.Edge{{ID: "e1", SourceID: "n1", TargetID: "does-not-exist", Relation: "REL"}})
	if err == nil {
		t.Fatal("AddEdges with missing endpoint: expected error, got nil")
	}
}

func TestSearchRelatedNodesDirection(t *testing.T) {
	store := mock.NewStore()
	ctx := context.Background()

	if err := store.AddNodes(ctx, []graphstore.Node{{ID: "a"}, {ID: "b"}, {ID: "c"}}); err != nil {
		t.Fatalf("AddNodes: %v", err)
	}
	if err := store.AddEdges(ctx, []graphstore.Edge{
		{ID: "e1", SourceID: "a", TargetID: "b", Relation: "NEXT"},
		{ID: "e2", SourceID: "c", TargetID: "a", Relation: "NEXT"},
	}); err != nil {
		t.Fatalf("AddEdges: %v", err)
	}

	targets, err := store.SearchRelatedNodes(ctx, graphstore.RelatedSearch{NodeID: "a", FindTargets: true})
	if err != nil {
		t.Fatalf("SearchRelatedNodes targets: %v", err)
	}
	if len(targets) != 1 || targets[0].ID != "b" {
		t.Errorf("targets of a: want [b], got %v", idsOf(targets))
	}

	sources, err := store.SearchRelatedNodes(ctx, graphstore.RelatedSearch{NodeID: "a", FindSources: true})
	if err != nil {
		t.Fatalf("SearchRelatedNodes sources: %v", err)
	}
	if len(sources) != 1 || sources[0].ID != "c" {
		t.Errorf("sources of a: want [c], got %v", idsOf(sources))
	}
}

func TestSearchSimilarNodesRanksByMetric(t *testing.T) {
	store := mock.NewStore()
	ctx := context.Background()

	if err := store.AddNodes(ctx, []graphstore.Node{
		{ID: "x1", Properties: map[string]any{"embedding_m_2d": []float32{1, 0}}},
		{ID: "x2", Properties: map[string]any{"embedding_m_2d": []float32{0, 1}}},
	}); err != nil {
		t.Fatalf("AddNodes: %v", err)
	}

	results, err := store.SearchSimilarNodes(ctx, graphstore.SimilarSearch{
		QueryVector:       []float32{1, 0},
		EmbeddingProperty: "embedding_m_2d",
		Metric:            graphstore.Cosine,
		Limit:             2,
	})
	if err != nil {
		t.Fatalf("SearchSimilarNodes: %v", err)
	}
	if len(results) != 2 || results[0].ID != "x1" {
		t.Errorf("want x1 ranked first, got %v", idsOf(results))
	}
}

func TestDeleteNodesCascadesEdges(t *testing.T) {
	store := mock.NewStore()
	ctx := context.Background()

	if err := store.AddNodes(ctx, []graphstore.Node{{ID: "a"}, {ID: "b"}}); err != nil {
		t.Fatalf("AddNodes: %v", err)
	}
	if err := store.AddEdges(ctx, []graphstore.Edge{{ID: "e1", SourceID: "a", TargetID: "b", Relation: "REL"}}); err != nil {
		t.Fatalf("AddEdges: %v", err)
	}
	if err := store.DeleteNodes(ctx, []string{"a"}); err != nil {
		t.Fatalf("DeleteNodes: %v", err)
	}
	related, err := store.SearchRelatedNodes(ctx, graphstore.RelatedSearch{NodeID: "b", FindSources: true})
	if err != nil {
		t.Fatalf("SearchRelatedNodes: %v", err)
	}
	if len(related) != 0 {
		t.Errorf("want edge cascaded away, got %v", idsOf(related))
	}
}

func idsOf(nodes []graphstore.Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.ID
	}
	return out
}
