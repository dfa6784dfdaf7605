// Package memory holds the domain model shared by the declarative
// (long-term), short-term, and session-manager layers: Episodes and the
// structures built on top of them, plus the Group/Session/MemoryContext
// value objects used to key and authorize per-session state.
//
// These are plain data types; behavior lives in the packages that operate on
// them (internal/declarative, internal/shortterm, internal/episodic).
package memory

import "time"

// ContentType classifies the payload carried by an Episode or Derivative.
type ContentType string

// String is presently the only supported content type; the taxonomy is left
// open for future payload kinds (e.g. structured tool-call records).
const ContentTypeString ContentType = "STRING"

// Episode is an atomic event ingested into the memory engine: an utterance
// or action produced by one party for another within a session. Episodes
// are immutable once created.
type Episode struct {
	ID string

	// EpisodeType selects the ingestion workflow tree entry; unrecognized
	// values fall back to the "default" entry.
	EpisodeType string

	ContentType ContentType
	Content     string
	Timestamp   time.Time

	GroupID       string
	SessionID     string
	ProducerID    string
	ProducedForID string

	// UserMetadata is an optional, caller-supplied JSON-structured bag.
	UserMetadata map[string]any

	// FilterableProperties are the property keys (typically group_id and
	// session_id) that downstream Derivatives must agree on to be returned
	// under a property filter.
	FilterableProperties map[string]string
}

// EpisodeCluster is a time-ordered set of related Episodes assembled by a
// Related-Episode Postulator at ingestion time. Never mutated once built.
type EpisodeCluster struct {
	ID string

	// Episodes is ordered ascending by Timestamp.
	Episodes []Episode

	// Timestamp is the maximum member timestamp.
	Timestamp time.Time

	// FilterableProperties is the set-intersection of every member
	// episode's filterable properties.
	FilterableProperties map[string]string

	// UserMetadata is inherited from the episode that triggered cluster
	// assembly (the newly ingested episode, not its postulated neighbors).
	UserMetadata map[string]any
}

// Derivative is an indexable projection of an EpisodeCluster produced by a
// Derivative Deriver and, optionally, one or more Derivative Mutators.
// Immutable once created.
type Derivative struct {
	ID string

	DerivativeType string
	ContentType    ContentType
	Content        string
	Timestamp      time.Time

	FilterableProperties map[string]string
	UserMetadata         map[string]any

	// Embedding is attached once C2 has embedded Content; nil beforehand.
	Embedding []float32
}

// Group owns zero or more Sessions and the set of agent/user identities
// authorized to participate in them.
type Group struct {
	GroupID   string
	AgentIDs  []string
	UserIDs   []string
	Config    map[string]any
	CreatedAt time.Time
}

// Session is a conversational context under a Group, keyed by the
// composite (GroupID, SessionID) pair.
type Session struct {
	GroupID   string
	SessionID string

	// AgentIDs and UserIDs snapshot the parent Group's authorized
	// identities at session-creation time.
	AgentIDs []string
	UserIDs  []string

	// Config is merged with global defaults by the manager (C12) when the
	// session's memory instance is constructed.
	Config    map[string]any
	CreatedAt time.Time
}

// MemoryContext is the lookup key for an active in-memory Episodic Memory
// Instance. Equality and hashing consider only (GroupID, SessionID); the
// agent/user sets are carried for validation but are not part of the key.
type MemoryContext struct {
	GroupID   string
	SessionID string
	AgentIDs  map[string]struct{}
	UserIDs   map[string]struct{}
}

// Key returns the (GroupID, SessionID) pair used for registry lookups.
func (c MemoryContext) Key() (string, string) {
	return c.GroupID, c.SessionID
}

// IsParticipant reports whether id is a member of either the agent or user
// set, as required when validating an Episode's ProducerID/ProducedForID.
func (c MemoryContext) IsParticipant(id string) bool {
	if _, ok := c.AgentIDs[id]; ok {
		return true
	}
	_, ok := c.UserIDs[id]
	return ok
}
