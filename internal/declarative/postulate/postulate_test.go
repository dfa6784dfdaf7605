package postulate_test

import (
	"context"
	"testing"
	"time"

	"github.com/vaultmind/vaultmind/internal/declarative/graphmodel"
	"github.com/vaultmind/vaultmind/internal/declarative/postulate"
	"github.com/vaultmind/vaultmind/internal/memory"
	"github.com/vaultmind/vaultmind/pkg/graphstore"
	"github.com/vaultmind/vaultmind/pkg/graphstore/mock"
)

func TestNullPostulateAlwaysEmpty(t *testing.T) {
	got, err := (postulate.Null{}).Postulate(context.Background(), memory.Episode{ID: "e1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty result, got %d episodes", len(got))
	}
}

func TestPreviousReturnsRecentOlderEpisodesDescending(t *testing.T) {
	store := mock.NewStore()
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	older := []memory.Episode{
		{ID: "e1", Timestamp: base.Add(-3 * time.Minute), GroupID: "g1", SessionID: "s1", FilterableProperties: map[string]string{"group_id": "g1", "session_id": "s1"}},
		{ID: "e2", Timestamp: base.Add(-2 * time.Minute), GroupID: "g1", SessionID: "s1", FilterableProperties: map[string]string{"group_id": "g1", "session_id": "s1"}},
		{ID: "e3", Timestamp: base.Add(-1 * time.Minute), GroupID: "g1", SessionID: "s1", FilterableProperties: map[string]string{"group_id": "g1", "session_id": "s1"}},
		// different session: must be excluded by filter
		{ID: "other", Timestamp: base.Add(-1 * time.Minute), GroupID: "g1", SessionID: "s2", FilterableProperties: map[string]string{"group_id": "g1", "session_id": "s2"}},
	}
	for _, ep := range older {
		if err := store.AddNodes(ctx, []graphstore.Node{graphmodel.EpisodeToNode(ep)}); err != nil {
			t.Fatalf("AddNodes: %v", err)
		}
	}

	p := postulate.Previous{Store: store, FilterKeys: []string{"group_id", "session_id"}, Limit: 10}
	trigger := memory.Episode{
		ID:                   "trigger",
		Timestamp:            base,
		GroupID:              "g1",
		SessionID:            "s1",
		FilterableProperties: map[string]string{"group_id": "g1", "session_id": "s1"},
	}

	got, err := p.Postulate(ctx, trigger)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 prior episodes, got %d: %+v", len(got), got)
	}
	// descending order: e3, e2, e1
	wantOrder := []string{"e3", "e2", "e1"}
	for i, want := range wantOrder {
		if got[i].ID != want {
			t.Errorf("position %d: got %q, want %q", i, got[i].ID, want)
		}
	}
}
