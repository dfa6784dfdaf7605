package sessiondb

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/vaultmind/vaultmind/internal/memory"
)

// DegradingStore wraps a [Store] so that best-effort session enumeration
// queries degrade to an empty result instead of propagating a transient
// relational failure. Group/session lifecycle calls still raise their
// not-found/conflict errors unchanged: per spec.md §7's error taxonomy those
// are domain outcomes the caller must see, not external-service failures to
// tolerate. IsDegraded reports whether the most recent call hit anything
// other than one of those domain sentinel errors.
//
// DegradingStore implements [Store].
//
// All methods are safe for concurrent use.
type DegradingStore struct {
	store    Store
	degraded atomic.Bool
}

// NewDegradingStore creates a [DegradingStore] wrapping store.
func NewDegradingStore(store Store) *DegradingStore {
	return &DegradingStore{store: store}
}

// IsDegraded reports whether the underlying store's most recent call failed
// with something other than a domain sentinel error.
func (ds *DegradingStore) IsDegraded() bool {
	return ds.degraded.Load()
}

// noteOutcome updates the degraded flag: err being nil, or matching one of
// sentinels, means the backend itself is healthy.
func (ds *DegradingStore) noteOutcome(err error, sentinels ...error) {
	if err == nil {
		ds.degraded.Store(false)
		return
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			ds.degraded.Store(false)
			return
		}
	}
	ds.degraded.Store(true)
}

// CreateGroup delegates unchanged; ErrGroupAlreadyExists is a conflict the
// caller must see.
func (ds *DegradingStore) CreateGroup(ctx context.Context, g memory.Group) error {
	err := ds.store.CreateGroup(ctx, g)
	ds.noteOutcome(err, ErrGroupAlreadyExists)
	return err
}

// GetGroup delegates unchanged; ErrGroupNotFound is a not-found outcome the
// caller must see.
func (ds *DegradingStore) GetGroup(ctx context.Context, groupID string) (memory.Group, error) {
	g, err := ds.store.GetGroup(ctx, groupID)
	ds.noteOutcome(err, ErrGroupNotFound)
	return g, err
}

// DeleteGroup delegates unchanged.
func (ds *DegradingStore) DeleteGroup(ctx context.Context, groupID string) error {
	err := ds.store.DeleteGroup(ctx, groupID)
	ds.noteOutcome(err, ErrGroupNotFound)
	return err
}

// CreateSession delegates unchanged.
func (ds *DegradingStore) CreateSession(ctx context.Context, s memory.Session) error {
	err := ds.store.CreateSession(ctx, s)
	ds.noteOutcome(err, ErrGroupNotFound, ErrSessionAlreadyExists)
	return err
}

// OpenSession delegates unchanged.
func (ds *DegradingStore) OpenSession(ctx context.Context, groupID, sessionID string) (memory.Session, error) {
	s, err := ds.store.OpenSession(ctx, groupID, sessionID)
	ds.noteOutcome(err, ErrSessionNotFound)
	return s, err
}

// CreateSessionIfMissing delegates unchanged.
func (ds *DegradingStore) CreateSessionIfMissing(ctx context.Context, s memory.Session) (memory.Session, bool, error) {
	result, created, err := ds.store.CreateSessionIfMissing(ctx, s)
	ds.noteOutcome(err, ErrGroupNotFound)
	return result, created, err
}

// ListSessionsByUser degrades to an empty slice and a logged warning if the
// underlying store fails: this is a best-effort enumeration, not a lifecycle
// decision, so per spec.md §7's external-service tolerance policy it must
// not block the caller.
func (ds *DegradingStore) ListSessionsByUser(ctx context.Context, userID string) ([]memory.Session, error) {
	sessions, err := ds.store.ListSessionsByUser(ctx, userID)
	if err != nil {
		ds.degraded.Store(true)
		slog.Warn("sessiondb: ListSessionsByUser failed, returning empty", "user_id", userID, "error", err)
		return []memory.Session{}, nil
	}
	ds.degraded.Store(false)
	return sessions, nil
}

// ListSessionsByAgent degrades to an empty slice and a logged warning if the
// underlying store fails.
func (ds *DegradingStore) ListSessionsByAgent(ctx context.Context, agentID string) ([]memory.Session, error) {
	sessions, err := ds.store.ListSessionsByAgent(ctx, agentID)
	if err != nil {
		ds.degraded.Store(true)
		slog.Warn("sessiondb: ListSessionsByAgent failed, returning empty", "agent_id", agentID, "error", err)
		return []memory.Session{}, nil
	}
	ds.degraded.Store(false)
	return sessions, nil
}

// ListSessionsByGroup degrades to an empty slice and a logged warning if the
// underlying store fails.
func (ds *DegradingStore) ListSessionsByGroup(ctx context.Context, groupID string) ([]memory.Session, error) {
	sessions, err := ds.store.ListSessionsByGroup(ctx, groupID)
	if err != nil {
		ds.degraded.Store(true)
		slog.Warn("sessiondb: ListSessionsByGroup failed, returning empty", "group_id", groupID, "error", err)
		return []memory.Session{}, nil
	}
	ds.degraded.Store(false)
	return sessions, nil
}

// Close forwards to the underlying store if it implements io.Closer-style
// Close, so wrapping a closeable Store in a DegradingStore doesn't hide its
// shutdown hook from callers that type-assert for it.
func (ds *DegradingStore) Close() {
	if closer, ok := ds.store.(interface{ Close() }); ok {
		closer.Close()
	}
}

// Compile-time check that DegradingStore satisfies Store.
var _ Store = (*DegradingStore)(nil)
