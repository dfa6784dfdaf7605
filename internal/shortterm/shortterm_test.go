package shortterm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vaultmind/vaultmind/internal/memory"
)

// stubSummariser lets tests control summarization timing and results.
type stubSummariser struct {
	result  string
	err     error
	started chan struct{}
	release chan struct{}
}

func (s *stubSummariser) Summarise(ctx context.Context, prior string, episodes []memory.Episode) (string, error) {
	if s.started != nil {
		s.started <- struct{}{}
	}
	if s.release != nil {
		select {
		case <-s.release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if s.err != nil {
		return "", s.err
	}
	return s.result, nil
}

func ep(id, content string) memory.Episode {
	return memory.Episode{ID: id, Content: content, Timestamp: time.Now()}
}

func TestAddEpisodeEvictsAndTrimsToCapacity(t *testing.T) {
	summariser := &stubSummariser{result: "summary-1"}
	m := New(Config{Capacity: 2, Summariser: summariser})

	ctx := context.Background()
	m.AddEpisode(ctx, ep("e1", "one"))
	m.AddEpisode(ctx, ep("e2", "two"))   // reaches capacity, triggers eviction
	m.AddEpisode(ctx, ep("e3", "three")) // over capacity, triggers eviction and a trim

	episodes, summary, err := m.GetSessionMemoryContext(ctx, 10, 0)
	if err != nil {
		t.Fatalf("GetSessionMemoryContext: %v", err)
	}
	if summary != "summary-1" {
		t.Fatalf("expected summary to be set after eviction, got %q", summary)
	}
	if len(episodes) != 2 {
		t.Fatalf("expected the rolling tail to be trimmed to capacity 2, got %d: %+v", len(episodes), episodes)
	}
	if episodes[0].ID != "e3" || episodes[1].ID != "e2" {
		t.Fatalf("expected most-recent-first [e3,e2], got %+v", episodes)
	}
}

func TestGetSessionMemoryContextRespectsLimit(t *testing.T) {
	m := New(Config{Capacity: 100, Summariser: &stubSummariser{}})
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		m.AddEpisode(ctx, ep(string(rune('a'+i)), "x"))
	}

	episodes, _, err := m.GetSessionMemoryContext(ctx, 2, 0)
	if err != nil {
		t.Fatalf("GetSessionMemoryContext: %v", err)
	}
	if len(episodes) != 2 {
		t.Fatalf("expected 2 episodes, got %d", len(episodes))
	}
	if episodes[0].ID != "e" || episodes[1].ID != "d" {
		t.Fatalf("expected most-recent-first [e,d], got %+v", episodes)
	}
}

func TestGetSessionMemoryContextRespectsTokenBudget(t *testing.T) {
	m := New(Config{Capacity: 100, Summariser: &stubSummariser{}})
	ctx := context.Background()
	// 8 chars each -> 2 estimated tokens each at charsPerToken=4.
	m.AddEpisode(ctx, ep("e1", "aaaaaaaa"))
	m.AddEpisode(ctx, ep("e2", "bbbbbbbb"))
	m.AddEpisode(ctx, ep("e3", "cccccccc"))

	episodes, _, err := m.GetSessionMemoryContext(ctx, 10, 3)
	if err != nil {
		t.Fatalf("GetSessionMemoryContext: %v", err)
	}
	if len(episodes) != 1 {
		t.Fatalf("expected token budget to cap at 1 episode, got %d: %+v", len(episodes), episodes)
	}
	if episodes[0].ID != "e3" {
		t.Fatalf("expected most recent episode e3, got %s", episodes[0].ID)
	}
}

func TestGetSessionMemoryContextAwaitsPendingSummary(t *testing.T) {
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	summariser := &stubSummariser{result: "final-summary", started: started, release: release}
	m := New(Config{Capacity: 1, Summariser: summariser})

	ctx := context.Background()
	m.AddEpisode(ctx, ep("e1", "one")) // triggers eviction immediately (capacity 1)
	<-started

	resultCh := make(chan string, 1)
	go func() {
		_, summary, _ := m.GetSessionMemoryContext(context.Background(), 10, 0)
		resultCh <- summary
	}()

	select {
	case <-resultCh:
		t.Fatal("GetSessionMemoryContext returned before summarization completed")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	select {
	case summary := <-resultCh:
		if summary != "final-summary" {
			t.Fatalf("expected final-summary, got %q", summary)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for GetSessionMemoryContext")
	}
}

func TestClearMemoryCancelsPendingSummaryAndResetsState(t *testing.T) {
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	summariser := &stubSummariser{started: started, release: release}
	m := New(Config{Capacity: 1, Summariser: summariser})

	ctx := context.Background()
	m.AddEpisode(ctx, ep("e1", "one"))
	<-started

	m.ClearMemory()

	episodes, summary, err := m.GetSessionMemoryContext(ctx, 10, 0)
	if err != nil {
		t.Fatalf("GetSessionMemoryContext: %v", err)
	}
	if len(episodes) != 0 || summary != "" {
		t.Fatalf("expected reset state, got episodes=%+v summary=%q", episodes, summary)
	}
}

func TestSummarizationFailureIsToleratedNotRaised(t *testing.T) {
	summariser := &stubSummariser{err: errors.New("lm unavailable")}
	m := New(Config{Capacity: 1, Summariser: summariser})

	ctx := context.Background()
	m.AddEpisode(ctx, ep("e1", "one"))

	episodes, summary, err := m.GetSessionMemoryContext(ctx, 10, 0)
	if err != nil {
		t.Fatalf("expected no error from AddEpisode/GetSessionMemoryContext despite summariser failure, got %v", err)
	}
	if summary != "" {
		t.Fatalf("expected summary to remain empty after failed summarization, got %q", summary)
	}
	if len(episodes) != 1 {
		t.Fatalf("expected episode to remain in the rolling tail, got %+v", episodes)
	}
}
