// Package declarative implements the Declarative (long-term) Memory
// orchestrator (spec §4.8): it holds the C1-C4 collaborators plus a
// per-episode_type workflow tree, and exposes ingestion, retrieval, and
// forget operations built on top of them.
package declarative

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vaultmind/vaultmind/internal/declarative/derive"
	"github.com/vaultmind/vaultmind/internal/memory"
	"github.com/vaultmind/vaultmind/pkg/graphstore"
	"github.com/vaultmind/vaultmind/pkg/provider/embedding"
	"github.com/vaultmind/vaultmind/pkg/provider/reranker"
)

// Defaults per spec §4.8/§4.9.
const (
	DefaultEpisodesLimit        = 20
	DefaultEmbedMaxAttempts     = 3
	DefaultContextDepth         = 1
	DefaultContextNeighborLimit = 10
	DefaultContextTemplate      = "[$timestamp] $content"
)

// Memory is the C8 Declarative Memory: ingestion pipeline and retrieval
// algorithm built on top of C1 (Store), C2 (Embedder), C3 (Reranker).
type Memory struct {
	Store    graphstore.Store
	Embedder embedding.Provider
	Reranker reranker.Reranker

	// Workflows is the per-episode_type ingestion workflow tree.
	Workflows WorkflowTree

	// QueryDeriver converts a raw query string into search-key
	// derivatives at retrieval time. Defaults to derive.Identity.
	QueryDeriver derive.Deriver

	// EmbedMaxAttempts bounds the bulk embed calls made during ingestion
	// and retrieval. Defaults to 3 per spec §4.8.
	EmbedMaxAttempts int

	// ContextDepth is the BFS hop count for context expansion around a
	// nucleus episode. Defaults to 1.
	ContextDepth int

	// ContextNeighborLimit caps neighbors explored per BFS step. Defaults
	// to 10.
	ContextNeighborLimit int

	// ContextTemplate renders a context's episodes chronologically before
	// reranking. Defaults to "[$timestamp] $content".
	ContextTemplate string
}

func (m *Memory) embedMaxAttempts() int {
	if m.EmbedMaxAttempts > 0 {
		return m.EmbedMaxAttempts
	}
	return DefaultEmbedMaxAttempts
}

func (m *Memory) contextDepth() int {
	if m.ContextDepth > 0 {
		return m.ContextDepth
	}
	return DefaultContextDepth
}

func (m *Memory) contextNeighborLimit() int {
	if m.ContextNeighborLimit > 0 {
		return m.ContextNeighborLimit
	}
	return DefaultContextNeighborLimit
}

func (m *Memory) contextTemplate() string {
	if m.ContextTemplate != "" {
		return m.ContextTemplate
	}
	return DefaultContextTemplate
}

func (m *Memory) queryDeriver() derive.Deriver {
	if m.QueryDeriver != nil {
		return m.QueryDeriver
	}
	return derive.Identity{}
}

// newID mints a fresh random identifier for clusters and derivatives.
func newID() string {
	return uuid.NewString()
}

// sortEpisodesByTimestamp returns a new slice of episodes sorted ascending
// by Timestamp.
func sortEpisodesByTimestamp(episodes []memory.Episode) []memory.Episode {
	out := make([]memory.Episode, len(episodes))
	copy(out, episodes)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1].Timestamp.After(out[j].Timestamp); j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

// maxTimestamp returns the latest timestamp among episodes.
func maxTimestamp(episodes []memory.Episode) time.Time {
	var max time.Time
	for _, ep := range episodes {
		if ep.Timestamp.After(max) {
			max = ep.Timestamp
		}
	}
	return max
}

// intersectFilterable returns the set-intersection of filterable property
// maps: a key survives only if present with the same value in every map.
func intersectFilterable(maps []map[string]string) map[string]string {
	if len(maps) == 0 {
		return map[string]string{}
	}
	out := map[string]string{}
	for k, v := range maps[0] {
		agree := true
		for _, m := range maps[1:] {
			if mv, ok := m[k]; !ok || mv != v {
				agree = false
				break
			}
		}
		if agree {
			out[k] = v
		}
	}
	return out
}

// renderTemplate expands $key references in tpl against vars, same
// substitution style as internal/declarative/mutate.Metadata.
func renderTemplate(tpl string, vars map[string]string) string {
	var b strings.Builder
	i := 0
	for i < len(tpl) {
		if tpl[i] == '$' {
			j := i + 1
			for j < len(tpl) && isIdentByte(tpl[j]) {
				j++
			}
			if j > i+1 {
				b.WriteString(vars[tpl[i+1:j]])
				i = j
				continue
			}
		}
		b.WriteByte(tpl[i])
		i++
	}
	return b.String()
}

func isIdentByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
