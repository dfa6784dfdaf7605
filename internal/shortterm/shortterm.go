// Package shortterm implements the Session (short-term) Memory component
// (spec §4.9): a bounded deque of episodes with capacity and content/token
// soft caps, evicted by spawning an asynchronous language-model
// summarization whenever a cap is exceeded.
//
// All exported types are safe for concurrent use.
package shortterm

import (
	"context"
	"errors"
	"sync"

	"github.com/vaultmind/vaultmind/internal/memory"
)

// charsPerToken is the heuristic token-estimation ratio (character length
// divided by 4), matching the teacher's context-window accounting and
// avoiding a tokenizer dependency neither the teacher nor the rest of the
// pack carries.
const charsPerToken = 4

// Defaults per spec §4.9.
const (
	DefaultCapacity        = 1000
	DefaultMaxContentChars = 0 // 0 means unbounded
	DefaultMaxTokenNum     = 0 // 0 means unbounded
)

// Config configures a [Memory].
type Config struct {
	// Capacity is the maximum number of episodes held before eviction.
	// Defaults to 1000.
	Capacity int

	// MaxContentChars is a soft cap on total buffered content length. Zero
	// disables this cap.
	MaxContentChars int

	// MaxTokenNum is a soft cap on total buffered content, expressed in
	// estimated tokens (chars/4). Zero disables this cap.
	MaxTokenNum int

	// Summariser compresses evicted episodes into the rolling summary.
	// Must not be nil.
	Summariser Summariser
}

// pendingSummary tracks one in-flight asynchronous summarization task.
type pendingSummary struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Memory is the C9 Session (short-term) Memory.
type Memory struct {
	capacity        int
	maxContentChars int
	maxTokenNum     int
	summariser      Summariser

	mu         sync.Mutex
	episodes   []memory.Episode
	totalChars int
	summary    string
	pending    *pendingSummary
}

// New creates a new [Memory] with the given configuration. If Capacity is
// zero or negative, [DefaultCapacity] is used.
func New(cfg Config) *Memory {
	capacity := cfg.Capacity
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Memory{
		capacity:        capacity,
		maxContentChars: cfg.MaxContentChars,
		maxTokenNum:     cfg.MaxTokenNum,
		summariser:      cfg.Summariser,
	}
}

// AddEpisode appends ep and updates the running counters. If capacity or
// either soft cap is now exceeded, the deque is marked full and eviction
// runs (spawning an asynchronous summarization task).
func (m *Memory) AddEpisode(ctx context.Context, ep memory.Episode) {
	m.mu.Lock()
	m.episodes = append(m.episodes, ep)
	m.totalChars += len(ep.Content)
	full := len(m.episodes) >= m.capacity || m.isOverCharBudget() || m.isOverTokenBudget()
	m.mu.Unlock()

	if full {
		m.doEvict(ctx)
	}
}

// isOverCharBudget reports whether totalChars exceeds MaxContentChars. Must
// be called with m.mu held.
func (m *Memory) isOverCharBudget() bool {
	return m.maxContentChars > 0 && m.totalChars > m.maxContentChars
}

// isOverTokenBudget reports whether the estimated token count exceeds
// MaxTokenNum. Must be called with m.mu held.
func (m *Memory) isOverTokenBudget() bool {
	return m.maxTokenNum > 0 && m.totalChars/charsPerToken > m.maxTokenNum
}

// doEvict snapshots the current episodes, trims the deque back down to at
// most capacity entries (dropping the oldest overflow so the rolling tail
// never grows past capacity), resets the counters, awaits any in-flight
// summarization task, and spawns a new one over the snapshot plus the prior
// summary.
func (m *Memory) doEvict(ctx context.Context) {
	m.mu.Lock()
	snapshot := make([]memory.Episode, len(m.episodes))
	copy(snapshot, m.episodes)
	if len(m.episodes) > m.capacity {
		trimmed := make([]memory.Episode, m.capacity)
		copy(trimmed, m.episodes[len(m.episodes)-m.capacity:])
		m.episodes = trimmed
	}
	m.totalChars = 0
	prior := m.pending
	priorSummary := m.summary
	m.mu.Unlock()

	if prior != nil {
		<-prior.done
	}

	if m.summariser == nil || len(snapshot) == 0 {
		return
	}

	// Summarization is detached from the caller's context: it must
	// complete (or be cancelled by clear_memory) independently of the
	// add_episode call that triggered eviction.
	summCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	p := &pendingSummary{cancel: cancel, done: done}

	m.mu.Lock()
	m.pending = p
	m.mu.Unlock()

	go m.runSummarization(summCtx, p, priorSummary, snapshot)
}

// runSummarization calls the summariser and installs its result, logging
// (but not raising) on failure per spec §4.9.
func (m *Memory) runSummarization(ctx context.Context, p *pendingSummary, prior string, episodes []memory.Episode) {
	defer close(p.done)
	summary, err := m.summariser.Summarise(ctx, prior, episodes)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending == p {
		m.pending = nil
	}
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			logSummarizationFailure(err)
		}
		return
	}
	m.summary = summary
}

// GetSessionMemoryContext awaits any pending summarization, then returns
// the most-recent-first episodes up to limit and maxTokenNum, paired with
// the current rolling summary.
func (m *Memory) GetSessionMemoryContext(ctx context.Context, limit int, maxTokenNum int) ([]memory.Episode, string, error) {
	m.awaitPending()

	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]memory.Episode, 0, limit)
	tokens := 0
	for i := len(m.episodes) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		ep := m.episodes[i]
		t := len(ep.Content) / charsPerToken
		if maxTokenNum > 0 && tokens+t > maxTokenNum {
			break
		}
		out = append(out, ep)
		tokens += t
	}
	return out, m.summary, nil
}

// ClearMemory cancels any pending summary task and resets all state.
func (m *Memory) ClearMemory() {
	m.mu.Lock()
	pending := m.pending
	m.pending = nil
	m.episodes = nil
	m.totalChars = 0
	m.summary = ""
	m.mu.Unlock()

	if pending != nil {
		pending.cancel()
		<-pending.done
	}
}

// episodesSnapshot returns a copy of the current rolling deque, oldest
// first, for callers (e.g. [Consolidator]) that need to observe it outside
// the package's own lock.
func (m *Memory) episodesSnapshot() []memory.Episode {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]memory.Episode, len(m.episodes))
	copy(out, m.episodes)
	return out
}

// awaitPending blocks until any in-flight summarization task completes.
func (m *Memory) awaitPending() {
	m.mu.Lock()
	pending := m.pending
	m.mu.Unlock()
	if pending != nil {
		<-pending.done
	}
}
