package config

import (
	"context"
	"errors"
	"fmt"

	"github.com/vaultmind/vaultmind/internal/resilience"
	"github.com/vaultmind/vaultmind/pkg/graphstore"
	gspostgres "github.com/vaultmind/vaultmind/pkg/graphstore/postgres"
	"github.com/vaultmind/vaultmind/pkg/provider/embedding"
	embollama "github.com/vaultmind/vaultmind/pkg/provider/embedding/ollama"
	embopenai "github.com/vaultmind/vaultmind/pkg/provider/embedding/openai"
	"github.com/vaultmind/vaultmind/pkg/provider/llm"
	"github.com/vaultmind/vaultmind/pkg/provider/llm/anthropic"
	"github.com/vaultmind/vaultmind/pkg/provider/llm/anyllm"
	llmopenai "github.com/vaultmind/vaultmind/pkg/provider/llm/openai"
	"github.com/vaultmind/vaultmind/pkg/provider/reranker"
)

// ErrProviderNotRegistered is returned when a named entry is missing from
// the config section being built from.
var ErrProviderNotRegistered = errors.New("config: entry not registered")

// Registry constructs concrete provider instances from a [Config]'s named
// entries. Unlike the teacher's factory-map registry, each provider kind
// here has its own config shape (ModelEntry, EmbedderEntry, ...), so
// construction dispatches on Config contents directly rather than through
// registered constructor funcs.
type Registry struct {
	cfg *Config
}

// NewRegistry returns a [Registry] resolving entries from cfg.
func NewRegistry(cfg *Config) *Registry {
	return &Registry{cfg: cfg}
}

// BuildLLM constructs the named C4 Language Model adapter. If the entry
// names Fallbacks, the result is a [resilience.LLMFallback] chaining to
// each named entry in order behind a circuit breaker.
func (r *Registry) BuildLLM(name string) (llm.Provider, error) {
	return r.buildLLM(name, make(map[string]bool))
}

func (r *Registry) buildLLM(name string, visiting map[string]bool) (llm.Provider, error) {
	if visiting[name] {
		return nil, fmt.Errorf("config: model %q: cyclic fallbacks reference", name)
	}
	visiting[name] = true

	entry, ok := r.cfg.Model[name]
	if !ok {
		return nil, fmt.Errorf("%w: model %q", ErrProviderNotRegistered, name)
	}

	primary, err := newLLMProvider(entry)
	if err != nil {
		return nil, fmt.Errorf("config: model %q: %w", name, err)
	}
	if len(entry.Fallbacks) == 0 {
		return primary, nil
	}

	group := resilience.NewLLMFallback(primary, name, resilience.FallbackConfig{})
	for _, fb := range entry.Fallbacks {
		fbProvider, err := r.buildLLM(fb, visiting)
		if err != nil {
			return nil, fmt.Errorf("config: model %q: fallback %q: %w", name, fb, err)
		}
		group.AddFallback(fb, fbProvider)
	}
	return group, nil
}

// newLLMProvider constructs the concrete backend named by entry.ModelVendor,
// without regard to Fallbacks.
func newLLMProvider(entry ModelEntry) (llm.Provider, error) {
	switch entry.ModelVendor {
	case "openai":
		opts := []llmopenai.Option{}
		if entry.BaseURL != "" {
			opts = append(opts, llmopenai.WithBaseURL(entry.BaseURL))
		}
		return llmopenai.New(entry.APIKey, entry.ModelName, opts...)
	case "anthropic":
		return anthropic.New(entry.APIKey, entry.ModelName)
	default:
		// Any other vendor name is routed through the any-llm adapter,
		// which dispatches to whichever backend the name selects.
		return anyllm.New(entry.ModelVendor, entry.ModelName)
	}
}

// BuildEmbedder constructs the named C2 Embedder. If the entry names
// Fallbacks, the result is a [resilience.EmbeddingFallback] chaining to
// each named entry in order behind a circuit breaker.
func (r *Registry) BuildEmbedder(name string) (embedding.Provider, error) {
	return r.buildEmbedder(name, make(map[string]bool))
}

func (r *Registry) buildEmbedder(name string, visiting map[string]bool) (embedding.Provider, error) {
	if visiting[name] {
		return nil, fmt.Errorf("config: embedder %q: cyclic fallbacks reference", name)
	}
	visiting[name] = true

	entry, ok := r.cfg.Embedder[name]
	if !ok {
		return nil, fmt.Errorf("%w: embedder %q", ErrProviderNotRegistered, name)
	}

	primary, err := newEmbedderProvider(name, entry)
	if err != nil {
		return nil, err
	}
	if len(entry.Fallbacks) == 0 {
		return primary, nil
	}

	group := resilience.NewEmbeddingFallback(primary, name, resilience.FallbackConfig{})
	for _, fb := range entry.Fallbacks {
		fbProvider, err := r.buildEmbedder(fb, visiting)
		if err != nil {
			return nil, fmt.Errorf("config: embedder %q: fallback %q: %w", name, fb, err)
		}
		group.AddFallback(fb, fbProvider)
	}
	return group, nil
}

// newEmbedderProvider constructs the concrete backend named by
// entry.Vendor, without regard to Fallbacks.
func newEmbedderProvider(name string, entry EmbedderEntry) (embedding.Provider, error) {
	switch entry.Vendor {
	case "openai":
		opts := []embopenai.Option{}
		if entry.BaseURL != "" {
			opts = append(opts, embopenai.WithBaseURL(entry.BaseURL))
		}
		return embopenai.New(entry.APIKey, entry.Model, opts...)
	case "ollama":
		return embollama.New(entry.BaseURL, entry.Model)
	default:
		return nil, fmt.Errorf("config: embedder %q: unrecognised vendor %q", name, entry.Vendor)
	}
}

// BuildGraphStore constructs the named C1 Vector-Graph Store.
func (r *Registry) BuildGraphStore(ctx context.Context, name string) (graphstore.Store, error) {
	entry, ok := r.cfg.Storage[name]
	if !ok {
		return nil, fmt.Errorf("%w: storage %q", ErrProviderNotRegistered, name)
	}

	switch entry.VendorName {
	case "", "postgres", "postgresql":
		return gspostgres.NewStore(ctx, storageDSN(entry))
	case "neo4j":
		return nil, fmt.Errorf("config: storage %q: vendor_name neo4j is accepted but not yet implemented", name)
	default:
		return nil, fmt.Errorf("config: storage %q: unrecognised vendor_name %q", name, entry.VendorName)
	}
}

// storageDSN returns entry.DSN if set, otherwise composes a Postgres DSN
// from the discrete Host/Port/User/Password/Database fields.
func storageDSN(entry StorageEntry) string {
	if entry.DSN != "" {
		return entry.DSN
	}
	port := entry.Port
	if port == 0 {
		port = 5432
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s", entry.User, entry.Password, entry.Host, port, entry.Database)
}

// BuildReranker constructs the named C3 Reranker, recursively resolving
// "rrf-hybrid" sub-rerankers. If the entry names Fallbacks, the result is a
// [resilience.RerankerFallback] chaining to each named entry in order behind
// a circuit breaker.
func (r *Registry) BuildReranker(name string) (reranker.Reranker, error) {
	return r.buildReranker(name, make(map[string]bool))
}

func (r *Registry) buildReranker(name string, visiting map[string]bool) (reranker.Reranker, error) {
	if visiting[name] {
		return nil, fmt.Errorf("config: reranker %q: cyclic sub_rerankers/fallbacks reference", name)
	}
	visiting[name] = true

	entry, ok := r.cfg.Reranker[name]
	if !ok {
		return nil, fmt.Errorf("%w: reranker %q", ErrProviderNotRegistered, name)
	}

	primary, err := r.newRerankerBackend(name, entry, visiting)
	if err != nil {
		return nil, err
	}
	if len(entry.Fallbacks) == 0 {
		return primary, nil
	}

	group := resilience.NewRerankerFallback(primary, name, resilience.FallbackConfig{})
	for _, fb := range entry.Fallbacks {
		fbReranker, err := r.buildReranker(fb, visiting)
		if err != nil {
			return nil, fmt.Errorf("config: reranker %q: fallback %q: %w", name, fb, err)
		}
		group.AddFallback(fb, fbReranker)
	}
	return group, nil
}

// newRerankerBackend constructs the concrete reranker named by entry.Type,
// without regard to Fallbacks.
func (r *Registry) newRerankerBackend(name string, entry RerankerEntry, visiting map[string]bool) (reranker.Reranker, error) {
	switch entry.Type {
	case "passthrough":
		return reranker.NewPassthrough(), nil
	case "lexical":
		return reranker.NewLexical(), nil
	case "modelhosted":
		return reranker.NewModelHosted(entry.APIKey, entry.Model)
	case "embedding":
		embProvider, err := r.BuildEmbedder(entry.Embedder)
		if err != nil {
			return nil, fmt.Errorf("config: reranker %q: %w", name, err)
		}
		metric, err := parseSimilarityMetric(entry.Metric)
		if err != nil {
			return nil, fmt.Errorf("config: reranker %q: %w", name, err)
		}
		return reranker.NewEmbedding(embProvider, metric), nil
	case "rrf-hybrid":
		subs := make([]reranker.Reranker, 0, len(entry.SubRerankers))
		for _, sub := range entry.SubRerankers {
			built, err := r.buildReranker(sub, visiting)
			if err != nil {
				return nil, err
			}
			subs = append(subs, built)
		}
		return reranker.NewHybrid(entry.K, subs...), nil
	default:
		return nil, fmt.Errorf("config: reranker %q: unrecognised type %q", name, entry.Type)
	}
}

// parseSimilarityMetric maps a config string to a graphstore.SimilarityMetric.
func parseSimilarityMetric(name string) (graphstore.SimilarityMetric, error) {
	switch name {
	case "", "cosine":
		return graphstore.Cosine, nil
	case "dot":
		return graphstore.Dot, nil
	case "euclidean":
		return graphstore.Euclidean, nil
	case "manhattan":
		return graphstore.Manhattan, nil
	default:
		return 0, fmt.Errorf("unrecognised similarity metric %q", name)
	}
}
