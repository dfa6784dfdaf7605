package episodic

import "errors"

var (
	// ErrNoMemoryConfigured is returned by New when neither a declarative
	// (C8) nor a short-term (C9) memory is supplied — spec §4.10 requires
	// at least one.
	ErrNoMemoryConfigured = errors.New("episodic: at least one of declarative or short-term memory must be configured")

	// ErrInvalidParticipant is returned by AddMemoryEpisode when an
	// episode's producer_id or produced_for_id is not a member of the
	// session's agent∪user set.
	ErrInvalidParticipant = errors.New("episodic: producer_id or produced_for_id is not a session participant")
)
