package declarative

import (
	"context"
	"testing"
	"time"

	"github.com/vaultmind/vaultmind/internal/declarative/derive"
	"github.com/vaultmind/vaultmind/internal/declarative/mutate"
	"github.com/vaultmind/vaultmind/internal/declarative/postulate"
	"github.com/vaultmind/vaultmind/internal/memory"
	"github.com/vaultmind/vaultmind/pkg/graphstore/mock"
	embeddingmock "github.com/vaultmind/vaultmind/pkg/provider/embedding/mock"
	"github.com/vaultmind/vaultmind/pkg/provider/reranker"
)

func defaultTree() WorkflowTree {
	return WorkflowTree{
		DefaultEpisodeType: []ClusterWorkflow{
			{
				Postulator: postulate.Null{},
				Derivations: []DerivationWorkflow{
					{
						Deriver: derive.Identity{},
						Mutators: []MutationWorkflow{
							{Mutator: mutate.Identity{}},
						},
					},
				},
			},
		},
	}
}

func newTestMemory() (*Memory, *embeddingmock.Provider) {
	embedder := &embeddingmock.Provider{
		DimensionsValue: 3,
		ModelIDValue:    "test-embed",
	}
	m := &Memory{
		Store:     mock.NewStore(),
		Embedder:  embedder,
		Reranker:  reranker.NewPassthrough(),
		Workflows: defaultTree(),
	}
	return m, embedder
}

func episode(id, content string, ts time.Time) memory.Episode {
	return memory.Episode{
		ID:          id,
		EpisodeType: DefaultEpisodeType,
		Content:     content,
		Timestamp:   ts,
	}
}

func TestAddEpisodeRequiresID(t *testing.T) {
	m, _ := newTestMemory()
	err := m.AddEpisode(context.Background(), memory.Episode{Content: "hi"})
	if err != ErrMissingEpisodeID {
		t.Fatalf("expected ErrMissingEpisodeID, got %v", err)
	}
}

func TestAddEpisodeThenSearchFindsIt(t *testing.T) {
	m, embedder := newTestMemory()
	embedder.EmbedBatchResult = [][]float32{{1, 0, 0}}

	ctx := context.Background()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	ep := episode("ep-1", "the rocket launched successfully", base)
	if err := m.AddEpisode(ctx, ep); err != nil {
		t.Fatalf("AddEpisode: %v", err)
	}

	results, err := m.Search(ctx, SearchParams{Query: "rocket launch", NumEpisodesLimit: 10})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].ID != "ep-1" {
		t.Fatalf("expected to find ep-1, got %+v", results)
	}
}

func TestSearchRejectsEmptyQuery(t *testing.T) {
	m, _ := newTestMemory()
	_, err := m.Search(context.Background(), SearchParams{Query: "   "})
	if err != ErrEmptyQuery {
		t.Fatalf("expected ErrEmptyQuery, got %v", err)
	}
}

func TestSearchReturnsNilOnEmbedFailure(t *testing.T) {
	m, embedder := newTestMemory()
	embedder.EmbedBatchResult = [][]float32{{1, 0, 0}}

	ctx := context.Background()
	ep := episode("ep-1", "content", time.Now())
	if err := m.AddEpisode(ctx, ep); err != nil {
		t.Fatalf("AddEpisode: %v", err)
	}

	embedder.EmbedBatchErr = errTestBoom
	results, err := m.Search(ctx, SearchParams{Query: "content"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if results != nil {
		t.Fatalf("expected nil results on embed failure, got %+v", results)
	}
}

func TestAddEpisodeToleratesEmbedFailureAndStillPersistsEpisode(t *testing.T) {
	m, embedder := newTestMemory()
	embedder.EmbedBatchErr = errTestBoom

	ctx := context.Background()
	ep := episode("ep-1", "content", time.Now())
	if err := m.AddEpisode(ctx, ep); err != nil {
		t.Fatalf("AddEpisode should tolerate embed failure, got: %v", err)
	}

	nodes, err := m.Store.SearchMatchingNodes(ctx, []string{"Episode"}, nil, true, 100)
	if err != nil {
		t.Fatalf("SearchMatchingNodes: %v", err)
	}
	found := false
	for _, n := range nodes {
		if n.ID == "ep-1" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected episode ep-1 to persist despite embed failure")
	}
}

func TestForgetAllClearsStore(t *testing.T) {
	m, embedder := newTestMemory()
	embedder.EmbedBatchResult = [][]float32{{1, 0, 0}}

	ctx := context.Background()
	if err := m.AddEpisode(ctx, episode("ep-1", "content", time.Now())); err != nil {
		t.Fatalf("AddEpisode: %v", err)
	}
	if err := m.ForgetAll(ctx); err != nil {
		t.Fatalf("ForgetAll: %v", err)
	}
	nodes, err := m.Store.SearchMatchingNodes(ctx, []string{"Episode"}, nil, true, 100)
	if err != nil {
		t.Fatalf("SearchMatchingNodes: %v", err)
	}
	if len(nodes) != 0 {
		t.Fatalf("expected empty store after ForgetAll, got %d nodes", len(nodes))
	}
}

func TestForgetFilteredEpisodesDeletesMatchingSubgraph(t *testing.T) {
	m, embedder := newTestMemory()
	embedder.EmbedBatchResult = [][]float32{{1, 0, 0}}

	ctx := context.Background()
	ep := episode("ep-1", "content", time.Now())
	ep.FilterableProperties = map[string]string{"session_id": "s1"}
	if err := m.AddEpisode(ctx, ep); err != nil {
		t.Fatalf("AddEpisode: %v", err)
	}

	if err := m.ForgetFilteredEpisodes(ctx, map[string]string{"session_id": "s1"}); err != nil {
		t.Fatalf("ForgetFilteredEpisodes: %v", err)
	}

	nodes, err := m.Store.SearchMatchingNodes(ctx, []string{"Episode"}, nil, true, 100)
	if err != nil {
		t.Fatalf("SearchMatchingNodes: %v", err)
	}
	if len(nodes) != 0 {
		t.Fatalf("expected episode to be deleted, got %d nodes", len(nodes))
	}
}

var errTestBoom = &testBoomError{}

type testBoomError struct{}

func (*testBoomError) Error() string { return "boom" }
