package declarative

import "errors"

// Error kinds per spec §7. Validation and Conflict are returned
// synchronously to the caller and never retried; External-service failures
// are tolerated per operation (see AddEpisode/Search doc comments); Internal
// errors indicate a graph invariant violation and are fatal for the
// instance.
var (
	// ErrEmptyQuery is returned by Search when the query string is empty.
	ErrEmptyQuery = errors.New("declarative: query must not be empty")

	// ErrMissingEpisodeID is returned when an Episode lacks a required field.
	ErrMissingEpisodeID = errors.New("declarative: episode id must not be empty")

	// ErrEdgeEndpointMissing indicates an internal graph invariant
	// violation: an edge was built referencing a node that was not also
	// queued for persistence. This is an Internal error, not a validation
	// failure — it is never expected to occur and is not retried.
	ErrEdgeEndpointMissing = errors.New("declarative: edge endpoint missing from node set")
)
