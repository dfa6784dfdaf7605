package graphstore

import (
	"context"
	"strconv"
)

// Store is the labeled-property-graph contract required by the declarative
// memory pipeline (spec §4.1). A single concrete implementation,
// [postgres.Store], backs it with PostgreSQL + pgvector.
type Store interface {
	// AddNodes upserts nodes, grouped internally by label-set for batched
	// creation. Any []float32-valued property matching the
	// embedding_<model_id>_<dims>d convention is additionally written into a
	// lazily created per-(label, property) vector side table.
	AddNodes(ctx context.Context, nodes []Node) error

	// AddEdges inserts edges. Both endpoints of every edge must already
	// exist; violating this is an internal error per spec §7.
	AddEdges(ctx context.Context, edges []Edge) error

	// SearchSimilarNodes returns up to params.Limit nodes ordered by
	// descending similarity. An ANN index is used when exactly one required
	// label is supplied; otherwise the store falls back to an exact scan.
	SearchSimilarNodes(ctx context.Context, params SimilarSearch) ([]Node, error)

	// SearchRelatedNodes returns neighbors of params.NodeID reachable via
	// allowed relations in the requested direction(s).
	SearchRelatedNodes(ctx context.Context, params RelatedSearch) ([]Node, error)

	// SearchDirectionalNodes performs an ordered scan by a scalar property.
	SearchDirectionalNodes(ctx context.Context, params DirectionalSearch) ([]Node, error)

	// SearchMatchingNodes is a generic predicate scan over required labels
	// and property filters.
	SearchMatchingNodes(ctx context.Context, requiredLabels []string, filters PropertyFilter, includeMissing bool, limit int) ([]Node, error)

	// DeleteNodes detaches (removes incident edges) and deletes the given nodes.
	DeleteNodes(ctx context.Context, ids []string) error

	// ClearData wipes all nodes and edges. Used by forget_all.
	ClearData(ctx context.Context) error

	// Close releases underlying resources (connection pool).
	Close() error
}

// EmbeddingPropertyName builds the dimension-carrying property name
// convention required by spec §4.1 so that an embedder change which alters
// dimensionality is modeled as a distinct property rather than corrupting an
// existing vector index.
func EmbeddingPropertyName(modelID string, dims int) string {
	return "embedding_" + modelID + "_" + strconv.Itoa(dims) + "d"
}
