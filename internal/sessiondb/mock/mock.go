// Package mock provides an in-memory [sessiondb.Store] for tests.
package mock

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/vaultmind/vaultmind/internal/memory"
	"github.com/vaultmind/vaultmind/internal/sessiondb"
)

type sessionKey struct{ groupID, sessionID string }

// Store is a thread-safe, in-memory [sessiondb.Store]. The zero value is
// ready to use.
type Store struct {
	mu       sync.RWMutex
	groups   map[string]memory.Group
	sessions map[sessionKey]memory.Session
}

var _ sessiondb.Store = (*Store)(nil)

// New returns an initialised [Store].
func New() *Store {
	return &Store{
		groups:   make(map[string]memory.Group),
		sessions: make(map[sessionKey]memory.Session),
	}
}

func (s *Store) init() {
	if s.groups == nil {
		s.groups = make(map[string]memory.Group)
	}
	if s.sessions == nil {
		s.sessions = make(map[sessionKey]memory.Session)
	}
}

// CreateGroup implements [sessiondb.Store].
func (s *Store) CreateGroup(ctx context.Context, g memory.Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.init()

	if _, exists := s.groups[g.GroupID]; exists {
		return sessiondb.ErrGroupAlreadyExists
	}
	if g.Config == nil {
		g.Config = map[string]any{}
	}
	g.CreatedAt = timeNow()
	s.groups[g.GroupID] = cloneGroup(g)
	return nil
}

// GetGroup implements [sessiondb.Store].
func (s *Store) GetGroup(ctx context.Context, groupID string) (memory.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.groups[groupID]
	if !ok {
		return memory.Group{}, sessiondb.ErrGroupNotFound
	}

	var agentIDs, userIDs []string
	for key, sess := range s.sessions {
		if key.groupID != groupID {
			continue
		}
		agentIDs = append(agentIDs, sess.AgentIDs...)
		userIDs = append(userIDs, sess.UserIDs...)
	}
	g.AgentIDs = dedupeSorted(agentIDs)
	g.UserIDs = dedupeSorted(userIDs)
	return cloneGroup(g), nil
}

// DeleteGroup implements [sessiondb.Store].
func (s *Store) DeleteGroup(ctx context.Context, groupID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.init()

	delete(s.groups, groupID)
	for key := range s.sessions {
		if key.groupID == groupID {
			delete(s.sessions, key)
		}
	}
	return nil
}

// CreateSession implements [sessiondb.Store].
func (s *Store) CreateSession(ctx context.Context, sess memory.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.init()

	if _, exists := s.groups[sess.GroupID]; !exists {
		return sessiondb.ErrGroupNotFound
	}

	key := sessionKey{sess.GroupID, sess.SessionID}
	if _, exists := s.sessions[key]; exists {
		return sessiondb.ErrSessionAlreadyExists
	}
	if sess.Config == nil {
		sess.Config = map[string]any{}
	}
	sess.CreatedAt = timeNow()
	s.sessions[key] = cloneSession(sess)
	return nil
}

// OpenSession implements [sessiondb.Store].
func (s *Store) OpenSession(ctx context.Context, groupID, sessionID string) (memory.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[sessionKey{groupID, sessionID}]
	if !ok {
		return memory.Session{}, sessiondb.ErrSessionNotFound
	}
	return cloneSession(sess), nil
}

// CreateSessionIfMissing implements [sessiondb.Store].
func (s *Store) CreateSessionIfMissing(ctx context.Context, sess memory.Session) (memory.Session, bool, error) {
	err := s.CreateSession(ctx, sess)
	switch {
	case err == nil:
		created, openErr := s.OpenSession(ctx, sess.GroupID, sess.SessionID)
		return created, true, openErr
	case err == sessiondb.ErrSessionAlreadyExists:
		existing, openErr := s.OpenSession(ctx, sess.GroupID, sess.SessionID)
		return existing, false, openErr
	default:
		return memory.Session{}, false, err
	}
}

// ListSessionsByUser implements [sessiondb.Store].
func (s *Store) ListSessionsByUser(ctx context.Context, userID string) ([]memory.Session, error) {
	return s.listWhere(func(sess memory.Session) bool {
		return slices.Contains(sess.UserIDs, userID)
	}), nil
}

// ListSessionsByAgent implements [sessiondb.Store].
func (s *Store) ListSessionsByAgent(ctx context.Context, agentID string) ([]memory.Session, error) {
	return s.listWhere(func(sess memory.Session) bool {
		return slices.Contains(sess.AgentIDs, agentID)
	}), nil
}

// ListSessionsByGroup implements [sessiondb.Store].
func (s *Store) ListSessionsByGroup(ctx context.Context, groupID string) ([]memory.Session, error) {
	return s.listWhere(func(sess memory.Session) bool {
		return sess.GroupID == groupID
	}), nil
}

func (s *Store) listWhere(pred func(memory.Session) bool) []memory.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []memory.Session
	for _, sess := range s.sessions {
		if pred(sess) {
			out = append(out, cloneSession(sess))
		}
	}
	slices.SortFunc(out, func(a, b memory.Session) int {
		if a.GroupID != b.GroupID {
			return compareStrings(a.GroupID, b.GroupID)
		}
		return compareStrings(a.SessionID, b.SessionID)
	})
	return out
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cloneGroup(g memory.Group) memory.Group {
	g.AgentIDs = slices.Clone(g.AgentIDs)
	g.UserIDs = slices.Clone(g.UserIDs)
	g.Config = maps.Clone(g.Config)
	return g
}

func cloneSession(sess memory.Session) memory.Session {
	sess.AgentIDs = slices.Clone(sess.AgentIDs)
	sess.UserIDs = slices.Clone(sess.UserIDs)
	sess.Config = maps.Clone(sess.Config)
	return sess
}

func dedupeSorted(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// timeNow is a seam so tests can exercise CreatedAt deterministically if
// ever needed; production code just wants "now".
var timeNow = func() time.Time { return time.Now() }
