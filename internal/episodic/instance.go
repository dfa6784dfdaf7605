// Package episodic implements the Episodic Memory Instance (spec §4.10):
// the per-session facade combining the Declarative (long-term, C8) and
// Session (short-term, C9) memories, with participant validation,
// reference counting, and combined query assembly.
//
// Instance is safe for concurrent use.
package episodic

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/vaultmind/vaultmind/internal/declarative"
	"github.com/vaultmind/vaultmind/internal/memory"
	"github.com/vaultmind/vaultmind/internal/shortterm"
)

// Config constructs an [Instance]. At least one of Declarative or
// ShortTerm must be set.
type Config struct {
	Context memory.MemoryContext

	// Declarative is the C8 long-term memory. Optional.
	Declarative *declarative.Memory

	// ShortTerm is the C9 session memory. Optional.
	ShortTerm *shortterm.Memory

	// OnZeroRefcount is invoked once, from Close, when the instance's
	// reference count reaches zero — used by C12 to deregister the
	// instance from its registry.
	OnZeroRefcount func(memory.MemoryContext)
}

// Instance is the C10 Episodic Memory Instance.
type Instance struct {
	context        memory.MemoryContext
	declarative    *declarative.Memory
	shortterm      *shortterm.Memory
	onZeroRefcount func(memory.MemoryContext)

	mu       sync.Mutex
	refcount int
}

// New constructs an Instance with refcount 1.
func New(cfg Config) (*Instance, error) {
	if cfg.Declarative == nil && cfg.ShortTerm == nil {
		return nil, ErrNoMemoryConfigured
	}
	return &Instance{
		context:        cfg.Context,
		declarative:    cfg.Declarative,
		shortterm:      cfg.ShortTerm,
		onZeroRefcount: cfg.OnZeroRefcount,
		refcount:       1,
	}, nil
}

// Context returns the MemoryContext the instance was constructed with.
func (inst *Instance) Context() memory.MemoryContext {
	return inst.context
}

// AddRef increments the reference count, e.g. when an already-open
// instance is reused by C12.
func (inst *Instance) AddRef() {
	inst.mu.Lock()
	inst.refcount++
	inst.mu.Unlock()
}

// AddMemoryEpisode validates ep's producer_id/produced_for_id against the
// session's agent∪user set, then appends it to short-term and ingests it
// into long-term memory under the instance's lock, so that episodes
// submitted to one instance complete in caller submission order.
func (inst *Instance) AddMemoryEpisode(ctx context.Context, ep memory.Episode) error {
	if !inst.context.IsParticipant(ep.ProducerID) || !inst.context.IsParticipant(ep.ProducedForID) {
		return ErrInvalidParticipant
	}

	inst.mu.Lock()
	defer inst.mu.Unlock()

	if inst.shortterm != nil {
		inst.shortterm.AddEpisode(ctx, ep)
	}
	if inst.declarative != nil {
		if err := inst.declarative.AddEpisode(ctx, ep); err != nil {
			return fmt.Errorf("episodic: add memory episode: %w", err)
		}
	}
	return nil
}

// QueryResult is the combined result of [Instance.QueryMemory].
type QueryResult struct {
	ShortTermEpisodes []memory.Episode
	LongTermEpisodes  []memory.Episode
	Summary           string
}

// QueryMemory implements spec §4.10's query_memory: scopes the search to
// the instance's group, concurrently queries short-term context and
// long-term search, then deduplicates by id with short-term taking
// precedence over long-term.
func (inst *Instance) QueryMemory(ctx context.Context, query string, limit int, propertyFilter map[string]string) (QueryResult, error) {
	filter := make(map[string]string, len(propertyFilter)+1)
	for k, v := range propertyFilter {
		filter[k] = v
	}
	filter["group_id"] = inst.context.GroupID

	var (
		shortTermEpisodes []memory.Episode
		summary           string
		longTermEpisodes  []memory.Episode
	)

	eg, egCtx := errgroup.WithContext(ctx)
	if inst.shortterm != nil {
		eg.Go(func() error {
			episodes, s, err := inst.shortterm.GetSessionMemoryContext(egCtx, limit, 0)
			if err != nil {
				return fmt.Errorf("short-term context: %w", err)
			}
			shortTermEpisodes, summary = episodes, s
			return nil
		})
	}
	if inst.declarative != nil {
		eg.Go(func() error {
			episodes, err := inst.declarative.Search(egCtx, declarative.SearchParams{
				Query:            query,
				NumEpisodesLimit: limit,
				PropertyFilter:   filter,
			})
			if err != nil {
				return fmt.Errorf("long-term search: %w", err)
			}
			longTermEpisodes = episodes
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return QueryResult{}, fmt.Errorf("episodic: query memory: %w", err)
	}

	seen := make(map[string]struct{}, len(shortTermEpisodes))
	for _, ep := range shortTermEpisodes {
		seen[ep.ID] = struct{}{}
	}
	uniqueLongTerm := make([]memory.Episode, 0, len(longTermEpisodes))
	for _, ep := range longTermEpisodes {
		if _, ok := seen[ep.ID]; ok {
			continue
		}
		uniqueLongTerm = append(uniqueLongTerm, ep)
	}

	return QueryResult{
		ShortTermEpisodes: shortTermEpisodes,
		LongTermEpisodes:  uniqueLongTerm,
		Summary:           summary,
	}, nil
}

// Close decrements the reference count; at zero it clears short-term
// memory and notifies the manager (via OnZeroRefcount) to deregister this
// instance's context from the registry.
func (inst *Instance) Close() {
	inst.mu.Lock()
	inst.refcount--
	remaining := inst.refcount
	inst.mu.Unlock()

	if remaining != 0 {
		return
	}
	if inst.shortterm != nil {
		inst.shortterm.ClearMemory()
	}
	if inst.onZeroRefcount != nil {
		inst.onZeroRefcount(inst.context)
	}
}
