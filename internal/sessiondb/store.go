// Package sessiondb implements the Session Manager persistence layer
// (spec §4.11): a relational store for groups, sessions, and their
// authorized agent/user membership.
package sessiondb

import (
	"context"

	"github.com/vaultmind/vaultmind/internal/memory"
)

// Store provides CRUD and lookup operations over groups and sessions.
// Implementations must be safe for concurrent use.
type Store interface {
	// CreateGroup inserts a new group. Returns [ErrGroupAlreadyExists] if
	// one with the same GroupID already exists.
	CreateGroup(ctx context.Context, g memory.Group) error

	// GetGroup retrieves a group by ID. Returns [ErrGroupNotFound] if none
	// exists.
	GetGroup(ctx context.Context, groupID string) (memory.Group, error)

	// DeleteGroup removes a group and, by cascade, every session (and
	// session membership row) that belongs to it.
	DeleteGroup(ctx context.Context, groupID string) error

	// CreateSession inserts a new session under an existing group. Returns
	// [ErrGroupNotFound] if the group does not exist, or
	// [ErrSessionAlreadyExists] if the session already exists.
	CreateSession(ctx context.Context, s memory.Session) error

	// OpenSession retrieves an existing session. Returns
	// [ErrSessionNotFound] if it does not exist.
	OpenSession(ctx context.Context, groupID, sessionID string) (memory.Session, error)

	// CreateSessionIfMissing opens the session if it already exists, or
	// creates it otherwise. The second return value reports whether the
	// session was newly created.
	CreateSessionIfMissing(ctx context.Context, s memory.Session) (memory.Session, bool, error)

	// ListSessionsByUser returns every session that userID is authorized to
	// participate in.
	ListSessionsByUser(ctx context.Context, userID string) ([]memory.Session, error)

	// ListSessionsByAgent returns every session that agentID is authorized
	// to participate in.
	ListSessionsByAgent(ctx context.Context, agentID string) ([]memory.Session, error)

	// ListSessionsByGroup returns every session under groupID.
	ListSessionsByGroup(ctx context.Context, groupID string) ([]memory.Session, error)
}
