package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, lowercasing every key
// recursively before decoding (per spec §4.12), and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}

	var generic any
	if err := yaml.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}

	normalized, err := yaml.Marshal(lowercaseKeys(generic))
	if err != nil {
		return nil, fmt.Errorf("config: normalize yaml: %w", err)
	}

	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(normalized))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// lowercaseKeys recursively lowercases every map key in v, leaving values
// (including string values) untouched. v is the generic tree produced by
// decoding YAML into an any.
func lowercaseKeys(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, vv := range val {
			out[strings.ToLower(k)] = lowercaseKeys(vv)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, vv := range val {
			out[i] = lowercaseKeys(vv)
		}
		return out
	default:
		return val
	}
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing every hard validation failure found; soft issues are
// logged as warnings rather than rejected.
func Validate(cfg *Config) error {
	var errs []error

	if !cfg.Logging.Level.IsValid() {
		errs = append(errs, fmt.Errorf("logging.level %q is invalid; valid values: debug, info, warn, error", cfg.Logging.Level))
	}

	for name, entry := range cfg.Model {
		if entry.ModelVendor == "" {
			errs = append(errs, fmt.Errorf("model.%s.model_vendor is required", name))
		}
	}

	for name, entry := range cfg.Embedder {
		if entry.Vendor != "" && entry.Vendor != "openai" && entry.Vendor != "ollama" {
			slog.Warn("unrecognised embedder vendor — may be a typo", "name", name, "vendor", entry.Vendor)
		}
	}

	for name, entry := range cfg.Storage {
		switch entry.VendorName {
		case "", "postgres", "postgresql":
			// Concretely implemented.
		case "neo4j":
			slog.Warn("storage vendor_name neo4j is accepted but not yet implemented; entry will fail if selected", "name", name)
		default:
			errs = append(errs, fmt.Errorf("storage.%s.vendor_name %q is unrecognised", name, entry.VendorName))
		}
	}

	for name, entry := range cfg.Reranker {
		switch entry.Type {
		case "passthrough", "lexical", "embedding", "modelhosted":
		case "rrf-hybrid":
			if len(entry.SubRerankers) == 0 {
				errs = append(errs, fmt.Errorf("reranker.%s: type rrf-hybrid requires a non-empty sub_rerankers list", name))
			}
			for _, sub := range entry.SubRerankers {
				if sub == name {
					errs = append(errs, fmt.Errorf("reranker.%s: sub_rerankers cannot reference itself", name))
				}
				if _, ok := cfg.Reranker[sub]; !ok {
					errs = append(errs, fmt.Errorf("reranker.%s: sub_rerankers references unknown reranker %q", name, sub))
				}
			}
		case "":
			errs = append(errs, fmt.Errorf("reranker.%s.type is required", name))
		default:
			errs = append(errs, fmt.Errorf("reranker.%s.type %q is unrecognised", name, entry.Type))
		}
	}

	if cfg.LongTermMemory.Enabled {
		if cfg.LongTermMemory.Embedder != "" {
			if _, ok := cfg.Embedder[cfg.LongTermMemory.Embedder]; !ok {
				errs = append(errs, fmt.Errorf("long_term_memory.embedder references unknown embedder %q", cfg.LongTermMemory.Embedder))
			}
		}
		if cfg.LongTermMemory.VectorGraphStore != "" {
			if _, ok := cfg.Storage[cfg.LongTermMemory.VectorGraphStore]; !ok {
				errs = append(errs, fmt.Errorf("long_term_memory.vector_graph_store references unknown storage %q", cfg.LongTermMemory.VectorGraphStore))
			}
		}
		if cfg.LongTermMemory.Reranker != "" {
			if _, ok := cfg.Reranker[cfg.LongTermMemory.Reranker]; !ok {
				errs = append(errs, fmt.Errorf("long_term_memory.reranker references unknown reranker %q", cfg.LongTermMemory.Reranker))
			}
		}
		if cfg.SessionDB.URI == "" {
			slog.Warn("long_term_memory is enabled but sessiondb.uri is empty; session persistence will not be available")
		}
	}

	if cfg.SessionMemory.Enabled && cfg.SessionMemory.ModelName != "" {
		if _, ok := cfg.Model[cfg.SessionMemory.ModelName]; !ok {
			errs = append(errs, fmt.Errorf("sessionmemory.model_name references unknown model %q", cfg.SessionMemory.ModelName))
		}
	}

	return errors.Join(errs...)
}
