// Package config provides the configuration schema, loader, and provider
// registry for vaultmind.
package config

// Config is the root configuration structure, loaded from a YAML file via
// [Load] or [LoadFromReader]. Top-level keys are lowercased recursively
// before decoding, so YAML authors may use any casing.
type Config struct {
	Model          map[string]ModelEntry    `yaml:"model"`
	SessionMemory  SessionMemoryConfig      `yaml:"sessionmemory"`
	LongTermMemory LongTermMemoryConfig     `yaml:"long_term_memory"`
	Embedder       map[string]EmbedderEntry `yaml:"embedder"`
	Storage        map[string]StorageEntry  `yaml:"storage"`
	Reranker       map[string]RerankerEntry `yaml:"reranker"`
	SessionDB      SessionDBConfig          `yaml:"sessiondb"`
	Prompts        map[string]string        `yaml:"prompts"`
	Logging        LoggingConfig            `yaml:"logging"`
}

// ModelEntry configures one named Language Model adapter (C4).
type ModelEntry struct {
	// ModelVendor selects the backend: "openai", "anthropic", or any other
	// value routed through the any-llm adapter.
	ModelVendor string         `yaml:"model_vendor"`
	ModelName   string         `yaml:"model_name"`
	APIKey      string         `yaml:"api_key"`
	BaseURL     string         `yaml:"base_url"`
	Options     map[string]any `yaml:"options"`

	// Fallbacks names other Config.Model entries to fail over to, in
	// order, behind a circuit breaker, when this entry's backend errors
	// or its breaker is open.
	Fallbacks []string `yaml:"fallbacks"`
}

// SessionMemoryConfig configures Session Memory (C9).
type SessionMemoryConfig struct {
	Enabled bool `yaml:"enabled"`

	// ModelName references an entry in Config.Model used to summarise the
	// deque when it overflows.
	ModelName string `yaml:"model_name"`

	MessageCapacity  int `yaml:"message_capacity"`
	MaxMessageLength int `yaml:"max_message_length"`
	MaxTokenNum      int `yaml:"max_token_num"`
}

// LongTermMemoryConfig configures Declarative Memory (C8) and its
// collaborators.
type LongTermMemoryConfig struct {
	Enabled bool `yaml:"enabled"`

	// Embedder, VectorGraphStore, and Reranker each reference a named entry
	// in the corresponding top-level map.
	Embedder          string `yaml:"embedder"`
	VectorGraphStore  string `yaml:"vector_graph_store"`
	Reranker          string `yaml:"reranker"`
	DerivativeDeriver string `yaml:"derivative_deriver"`

	// MetadataPrefix is parsed from the config file but no component reads
	// it: property names stored in the graph use the fixed prefixes of the
	// graphmodel and graphstore packages.
	MetadataPrefix string `yaml:"metadata_prefix"`
}

// EmbedderEntry configures one named Embedder (C2).
type EmbedderEntry struct {
	// Vendor selects the backend: "openai" or "ollama".
	Vendor     string         `yaml:"vendor"`
	Model      string         `yaml:"model"`
	APIKey     string         `yaml:"api_key"`
	BaseURL    string         `yaml:"base_url"`
	Dimensions int            `yaml:"dimensions"`
	Options    map[string]any `yaml:"options"`

	// Fallbacks names other Config.Embedder entries to fail over to, in
	// order, behind a circuit breaker.
	Fallbacks []string `yaml:"fallbacks"`
}

// StorageEntry configures one named Vector-Graph Store (C1) backend.
type StorageEntry struct {
	// VendorName selects the backend. "postgres" (default, concretely
	// implemented) or "neo4j" (accepted for forward-compatibility; logs a
	// startup warning, not yet implemented — see DESIGN.md).
	VendorName string `yaml:"vendor_name"`

	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`

	// DSN overrides Host/Port/User/Password/Database with a full connection
	// string when set.
	DSN string `yaml:"dsn"`

	// ForceExactSimilaritySearch is parsed from the config file but not
	// passed to any store; similarity search runs the same way whether it
	// is set or not.
	ForceExactSimilaritySearch bool `yaml:"force_exact_similarity_search"`

	Options map[string]any `yaml:"options"`
}

// RerankerEntry configures one named Reranker (C3).
type RerankerEntry struct {
	// Type selects the implementation: "passthrough", "lexical",
	// "embedding", "modelhosted", or "rrf-hybrid".
	Type string `yaml:"type"`

	// SubRerankers lists the names of other Reranker entries to fuse, used
	// only when Type is "rrf-hybrid".
	SubRerankers []string `yaml:"sub_rerankers"`

	// K is the reciprocal-rank-fusion constant, used only when Type is
	// "rrf-hybrid". Zero selects reranker.DefaultRRFK.
	K float64 `yaml:"k"`

	// APIKey and Model apply to Type "modelhosted" (Cohere Rerank).
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`

	// Embedder references an entry in Config.Embedder and Metric selects
	// a graphstore.SimilarityMetric name; both apply only to Type
	// "embedding".
	Embedder string `yaml:"embedder"`
	Metric   string `yaml:"metric"`

	// Fallbacks names other Config.Reranker entries to fail over to, in
	// order, behind a circuit breaker.
	Fallbacks []string `yaml:"fallbacks"`
}

// SessionDBConfig configures the Session Manager's relational store (C11).
type SessionDBConfig struct {
	URI    string `yaml:"uri"`
	Schema string `yaml:"schema"`
}

// LoggingConfig configures process-wide structured logging.
type LoggingConfig struct {
	// Path is a file path for log output; empty means stderr.
	Path  string `yaml:"path"`
	Level Level  `yaml:"level"`
}

// Level is a logging verbosity level.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// IsValid reports whether l is empty or one of the recognised levels.
func (l Level) IsValid() bool {
	switch l {
	case "", LevelDebug, LevelInfo, LevelWarn, LevelError:
		return true
	default:
		return false
	}
}
