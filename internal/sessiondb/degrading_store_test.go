package sessiondb

import (
	"context"
	"errors"
	"testing"

	"github.com/vaultmind/vaultmind/internal/memory"
)

// failingStore is a [Store] whose every method returns failErr, for
// exercising [DegradingStore]'s behavior on backend failure.
type failingStore struct {
	failErr error
}

func (s *failingStore) CreateGroup(ctx context.Context, g memory.Group) error { return s.failErr }
func (s *failingStore) GetGroup(ctx context.Context, groupID string) (memory.Group, error) {
	return memory.Group{}, s.failErr
}
func (s *failingStore) DeleteGroup(ctx context.Context, groupID string) error { return s.failErr }
func (s *failingStore) CreateSession(ctx context.Context, sess memory.Session) error {
	return s.failErr
}
func (s *failingStore) OpenSession(ctx context.Context, groupID, sessionID string) (memory.Session, error) {
	return memory.Session{}, s.failErr
}
func (s *failingStore) CreateSessionIfMissing(ctx context.Context, sess memory.Session) (memory.Session, bool, error) {
	return memory.Session{}, false, s.failErr
}
func (s *failingStore) ListSessionsByUser(ctx context.Context, userID string) ([]memory.Session, error) {
	return nil, s.failErr
}
func (s *failingStore) ListSessionsByAgent(ctx context.Context, agentID string) ([]memory.Session, error) {
	return nil, s.failErr
}
func (s *failingStore) ListSessionsByGroup(ctx context.Context, groupID string) ([]memory.Session, error) {
	return nil, s.failErr
}

var _ Store = (*failingStore)(nil)

var errBackendDown = errors.New("connection refused")

func TestDegradingStorePassesThroughDomainErrors(t *testing.T) {
	ds := NewDegradingStore(&failingStore{failErr: ErrGroupAlreadyExists})
	ctx := context.Background()

	if err := ds.CreateGroup(ctx, memory.Group{GroupID: "g1"}); !errors.Is(err, ErrGroupAlreadyExists) {
		t.Fatalf("want ErrGroupAlreadyExists, got %v", err)
	}
	if ds.IsDegraded() {
		t.Fatal("a domain conflict error must not mark the store degraded")
	}
}

func TestDegradingStoreListMethodsSwallowBackendErrors(t *testing.T) {
	ds := NewDegradingStore(&failingStore{failErr: errBackendDown})
	ctx := context.Background()

	sessions, err := ds.ListSessionsByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("ListSessionsByUser: expected nil error, got %v", err)
	}
	if len(sessions) != 0 {
		t.Fatalf("expected empty result, got %+v", sessions)
	}
	if !ds.IsDegraded() {
		t.Fatal("expected IsDegraded to be true after a swallowed backend failure")
	}
}

func TestDegradingStoreLifecycleCallsPropagateBackendErrors(t *testing.T) {
	ds := NewDegradingStore(&failingStore{failErr: errBackendDown})
	ctx := context.Background()

	if err := ds.CreateGroup(ctx, memory.Group{GroupID: "g1"}); !errors.Is(err, errBackendDown) {
		t.Fatalf("CreateGroup: want errBackendDown, got %v", err)
	}
	if !ds.IsDegraded() {
		t.Fatal("expected IsDegraded to be true after an unrecognised backend failure")
	}

	if _, err := ds.GetGroup(ctx, "g1"); !errors.Is(err, errBackendDown) {
		t.Fatalf("GetGroup: want errBackendDown, got %v", err)
	}
	if _, _, err := ds.CreateSessionIfMissing(ctx, memory.Session{}); !errors.Is(err, errBackendDown) {
		t.Fatalf("CreateSessionIfMissing: want errBackendDown, got %v", err)
	}
}

func TestDegradingStoreRecoversAfterSuccess(t *testing.T) {
	backend := &failingStore{failErr: errBackendDown}
	ds := NewDegradingStore(backend)
	ctx := context.Background()

	if _, err := ds.ListSessionsByGroup(ctx, "g1"); err != nil {
		t.Fatalf("ListSessionsByGroup: %v", err)
	}
	if !ds.IsDegraded() {
		t.Fatal("expected degraded after failure")
	}

	backend.failErr = nil
	if _, err := ds.ListSessionsByGroup(ctx, "g1"); err != nil {
		t.Fatalf("ListSessionsByGroup: %v", err)
	}
	if ds.IsDegraded() {
		t.Fatal("expected degraded flag to clear after a successful call")
	}
}
