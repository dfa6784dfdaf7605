package episodic

import (
	"context"
	"testing"
	"time"

	"github.com/vaultmind/vaultmind/internal/declarative"
	"github.com/vaultmind/vaultmind/internal/declarative/derive"
	"github.com/vaultmind/vaultmind/internal/declarative/mutate"
	"github.com/vaultmind/vaultmind/internal/declarative/postulate"
	"github.com/vaultmind/vaultmind/internal/memory"
	"github.com/vaultmind/vaultmind/internal/shortterm"
	"github.com/vaultmind/vaultmind/pkg/graphstore/mock"
	embeddingmock "github.com/vaultmind/vaultmind/pkg/provider/embedding/mock"
	"github.com/vaultmind/vaultmind/pkg/provider/reranker"
)

func testContext() memory.MemoryContext {
	return memory.MemoryContext{
		GroupID:   "g1",
		SessionID: "s1",
		AgentIDs:  map[string]struct{}{"agent-1": {}},
		UserIDs:   map[string]struct{}{"user-1": {}},
	}
}

func newTestDeclarative() *declarative.Memory {
	embedder := &embeddingmock.Provider{DimensionsValue: 3, ModelIDValue: "test-embed", EmbedBatchResult: [][]float32{{1, 0, 0}}}
	return &declarative.Memory{
		Store:    mock.NewStore(),
		Embedder: embedder,
		Reranker: reranker.NewPassthrough(),
		Workflows: declarative.WorkflowTree{
			declarative.DefaultEpisodeType: []declarative.ClusterWorkflow{
				{
					Postulator: postulate.Null{},
					Derivations: []declarative.DerivationWorkflow{
						{Deriver: derive.Identity{}, Mutators: []declarative.MutationWorkflow{{Mutator: mutate.Identity{}}}},
					},
				},
			},
		},
	}
}

func newTestShortTerm() *shortterm.Memory {
	return shortterm.New(shortterm.Config{Capacity: 100, Summariser: &stubSummariser{}})
}

type stubSummariser struct{}

func (stubSummariser) Summarise(_ context.Context, prior string, _ []memory.Episode) (string, error) {
	return prior, nil
}

func TestNewRequiresAtLeastOneMemory(t *testing.T) {
	_, err := New(Config{Context: testContext()})
	if err != ErrNoMemoryConfigured {
		t.Fatalf("expected ErrNoMemoryConfigured, got %v", err)
	}
}

func TestAddMemoryEpisodeRejectsInvalidParticipant(t *testing.T) {
	inst, err := New(Config{Context: testContext(), ShortTerm: newTestShortTerm()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ep := memory.Episode{ID: "e1", ProducerID: "stranger", ProducedForID: "user-1", Content: "hi", Timestamp: time.Now()}
	if err := inst.AddMemoryEpisode(context.Background(), ep); err != ErrInvalidParticipant {
		t.Fatalf("expected ErrInvalidParticipant, got %v", err)
	}
}

func TestAddMemoryEpisodeAndQueryMemory(t *testing.T) {
	inst, err := New(Config{
		Context:     testContext(),
		Declarative: newTestDeclarative(),
		ShortTerm:   newTestShortTerm(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx := context.Background()
	ep := memory.Episode{
		ID:                   "e1",
		EpisodeType:          declarative.DefaultEpisodeType,
		ContentType:          memory.ContentTypeString,
		ProducerID:           "agent-1",
		ProducedForID:        "user-1",
		Content:              "hello there",
		Timestamp:            time.Now(),
		GroupID:              "g1",
		SessionID:            "s1",
		FilterableProperties: map[string]string{"group_id": "g1", "session_id": "s1"},
	}
	if err := inst.AddMemoryEpisode(ctx, ep); err != nil {
		t.Fatalf("AddMemoryEpisode: %v", err)
	}

	result, err := inst.QueryMemory(ctx, "hello there", 10, nil)
	if err != nil {
		t.Fatalf("QueryMemory: %v", err)
	}
	if len(result.ShortTermEpisodes) != 1 || result.ShortTermEpisodes[0].ID != "e1" {
		t.Fatalf("expected e1 in short-term, got %+v", result.ShortTermEpisodes)
	}
	// e1 should be deduplicated out of long-term since it's already present
	// in short-term.
	for _, ep := range result.LongTermEpisodes {
		if ep.ID == "e1" {
			t.Fatalf("expected e1 to be deduplicated out of long-term results")
		}
	}
}

func TestFormalizeQueryWithContextWrapsEnvelope(t *testing.T) {
	inst, err := New(Config{Context: testContext(), ShortTerm: newTestShortTerm()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()
	ep := memory.Episode{
		ID: "e1", EpisodeType: "default", ContentType: memory.ContentTypeString,
		ProducerID: "agent-1", ProducedForID: "user-1", Content: "the door creaked",
		Timestamp: time.Now(),
	}
	if err := inst.AddMemoryEpisode(ctx, ep); err != nil {
		t.Fatalf("AddMemoryEpisode: %v", err)
	}

	out, err := inst.FormalizeQueryWithContext(ctx, "what happened?", 10, nil)
	if err != nil {
		t.Fatalf("FormalizeQueryWithContext: %v", err)
	}
	for _, want := range []string{"<Summary>", "</Summary>", "<Episodes>", "the door creaked", "</Episodes>", "<Query>what happened?</Query>"} {
		if !contains(out, want) {
			t.Errorf("expected output to contain %q, got %q", want, out)
		}
	}
}

func TestCloseDecrementsRefcountAndNotifiesAtZero(t *testing.T) {
	var notified memory.MemoryContext
	notifyCount := 0
	inst, err := New(Config{
		Context:   testContext(),
		ShortTerm: newTestShortTerm(),
		OnZeroRefcount: func(mc memory.MemoryContext) {
			notified = mc
			notifyCount++
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	inst.AddRef() // refcount now 2
	inst.Close()  // refcount 1, should not notify
	if notifyCount != 0 {
		t.Fatalf("expected no notification yet, got %d", notifyCount)
	}
	inst.Close() // refcount 0, should notify
	if notifyCount != 1 {
		t.Fatalf("expected exactly 1 notification, got %d", notifyCount)
	}
	if notified.GroupID != "g1" || notified.SessionID != "s1" {
		t.Fatalf("expected notification for g1/s1, got %+v", notified)
	}
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return len(substr) == 0
}
