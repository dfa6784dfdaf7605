package manager

import "errors"

var (
	// ErrGroupNotFound is returned by operations that require an existing
	// group — mirrors [sessiondb.ErrGroupNotFound] at the manager layer so
	// callers need not import internal/sessiondb to check errors.
	ErrGroupNotFound = errors.New("manager: group not found")

	// ErrGroupAlreadyExists is returned by CreateGroup for a duplicate
	// group_id.
	ErrGroupAlreadyExists = errors.New("manager: group already exists")

	// ErrSessionNotFound is returned when a lookup requires an existing
	// persisted session and none is found.
	ErrSessionNotFound = errors.New("manager: session not found")

	// ErrSessionAlreadyExists is returned by CreateEpisodicMemoryInstance
	// when a session already exists under the group.
	ErrSessionAlreadyExists = errors.New("manager: session already exists")

	// ErrInsufficientParameters is returned by GetEpisodicMemoryInstance
	// when no persisted session exists and the caller supplied no
	// agent/user set to create one with.
	ErrInsufficientParameters = errors.New("manager: session does not exist and no agent/user set was supplied to create one")

	// ErrNoMemoryEnabled is returned by NewManager when the configuration
	// disables both sessionmemory and long_term_memory — an Instance would
	// have nothing to back it.
	ErrNoMemoryEnabled = errors.New("manager: at least one of sessionmemory or long_term_memory must be enabled")

	// ErrShutDown is returned by any operation attempted after ShutDown.
	ErrShutDown = errors.New("manager: manager has been shut down")
)
