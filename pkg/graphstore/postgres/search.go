package postgres

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	pgvector "github.com/pgvector/pgvector-go"

	"github.com/vaultmind/vaultmind/pkg/graphstore"
)

// SearchSimilarNodes implements [graphstore.Store]. When exactly one required
// label is given and its vector side table has been created, an ANN query
// runs against the pgvector HNSW index; otherwise the store falls back to an
// in-process exact scan over the nodes table (spec §4.1, §9).
func (s *Store) SearchSimilarNodes(ctx context.Context, p graphstore.SimilarSearch) ([]graphstore.Node, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = graphstore.DefaultANNLimit
	}

	if len(p.RequiredLabels) == 1 {
		if table, ok := s.vectorTableIfKnown(ctx, p.RequiredLabels[0], p.EmbeddingProperty); ok {
			return s.searchSimilarANN(ctx, table, p, limit)
		}
	}
	return s.searchSimilarExact(ctx, p, limit)
}

func (s *Store) searchSimilarANN(ctx context.Context, table string, p graphstore.SimilarSearch, limit int) ([]graphstore.Node, error) {
	op, ascending := distanceOperator(p.Metric)
	queryVec := pgvector.NewVector(p.QueryVector)

	args := []any{queryVec}
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	var conditions []string
	conditions = append(conditions, propertyFilterSQL(p.RequiredProperties, p.IncludeMissingProperties, next)...)

	order := "ASC"
	if !ascending {
		order = "DESC"
	}

	q := fmt.Sprintf(`
		SELECT n.id, n.labels, n.properties, n.created_at
		FROM   %s v
		JOIN   nodes n ON n.id = v.node_id`, table)
	if len(conditions) > 0 {
		q += "\nWHERE " + strings.Join(conditions, " AND ")
	}
	args = append(args, limit)
	q += fmt.Sprintf("\nORDER BY v.embedding %s $1 %s\nLIMIT $%d", op, order, len(args))

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("graphstore/postgres: search similar nodes (ann): %w", err)
	}
	return collectNodes(rows)
}

// distanceOperator maps a [graphstore.SimilarityMetric] to the pgvector
// distance operator/function and whether "closer" sorts ascending.
func distanceOperator(m graphstore.SimilarityMetric) (op string, ascending bool) {
	switch m {
	case graphstore.Dot:
		return "<#>", true
	case graphstore.Euclidean:
		return "<->", true
	case graphstore.Manhattan:
		return "<+>", true
	default: // Cosine
		return "<=>", true
	}
}

func (s *Store) searchSimilarExact(ctx context.Context, p graphstore.SimilarSearch, limit int) ([]graphstore.Node, error) {
	var args []any
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	var conditions []string
	if len(p.RequiredLabels) > 0 {
		conditions = append(conditions, "labels @> "+next(p.RequiredLabels)+"::text[]")
	}
	conditions = append(conditions, propertyFilterSQL(p.RequiredProperties, p.IncludeMissingProperties, next)...)

	q := "SELECT id, labels, properties, created_at FROM nodes"
	if len(conditions) > 0 {
		q += " WHERE " + strings.Join(conditions, " AND ")
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("graphstore/postgres: search similar nodes (exact): %w", err)
	}
	candidates, err := collectNodes(rows)
	if err != nil {
		return nil, err
	}

	type scored struct {
		node  graphstore.Node
		score float64
		idx   int
	}
	var results []scored
	for i, n := range candidates {
		raw, ok := n.Properties[p.EmbeddingProperty]
		if !ok {
			continue
		}
		vec, ok := asFloat32Slice(raw)
		if !ok || len(vec) != len(p.QueryVector) {
			continue
		}
		results = append(results, scored{node: n, score: similarity(p.Metric, p.QueryVector, vec), idx: i})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		return results[i].idx < results[j].idx
	})

	if len(results) > limit {
		results = results[:limit]
	}
	out := make([]graphstore.Node, len(results))
	for i, r := range results {
		out[i] = r.node
	}
	return out, nil
}

// similarity computes a higher-is-better score for the exact-scan fallback,
// consistent in ranking direction with the ANN path's ORDER BY for each
// metric.
func similarity(metric graphstore.SimilarityMetric, a, b []float32) float64 {
	switch metric {
	case graphstore.Dot:
		var sum float64
		for i := range a {
			sum += float64(a[i]) * float64(b[i])
		}
		return sum
	case graphstore.Euclidean:
		var sum float64
		for i := range a {
			d := float64(a[i]) - float64(b[i])
			sum += d * d
		}
		return -math.Sqrt(sum)
	case graphstore.Manhattan:
		var sum float64
		for i := range a {
			sum += math.Abs(float64(a[i]) - float64(b[i]))
		}
		return -sum
	default: // Cosine
		var dot, normA, normB float64
		for i := range a {
			dot += float64(a[i]) * float64(b[i])
			normA += float64(a[i]) * float64(a[i])
			normB += float64(b[i]) * float64(b[i])
		}
		if normA == 0 || normB == 0 {
			return 0
		}
		return dot / (math.Sqrt(normA) * math.Sqrt(normB))
	}
}

// SearchRelatedNodes implements [graphstore.Store]: neighbors reachable via
// allowed relations in the requested direction(s).
func (s *Store) SearchRelatedNodes(ctx context.Context, p graphstore.RelatedSearch) ([]graphstore.Node, error) {
	var args []any
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	findSources, findTargets := p.FindSources, p.FindTargets
	if !findSources && !findTargets {
		findTargets = true
	}

	var dirParts []string
	if findTargets {
		dirParts = append(dirParts, fmt.Sprintf("(e.source_id = %s AND n.id = e.target_id)", next(p.NodeID)))
	}
	if findSources {
		dirParts = append(dirParts, fmt.Sprintf("(e.target_id = %s AND n.id = e.source_id)", next(p.NodeID)))
	}
	conditions := []string{"(" + strings.Join(dirParts, " OR ") + ")"}

	if len(p.AllowedRelations) > 0 {
		conditions = append(conditions, "e.relation = ANY("+next(p.AllowedRelations)+"::text[])")
	}
	if len(p.RequiredLabels) > 0 {
		conditions = append(conditions, "n.labels @> "+next(p.RequiredLabels)+"::text[]")
	}
	conditions = append(conditions, propertyFilterSQLPrefixed("n.properties", p.RequiredProperties, p.IncludeMissing, next)...)

	q := "SELECT DISTINCT n.id, n.labels, n.properties, n.created_at\n" +
		"FROM edges e JOIN nodes n ON TRUE\n" +
		"WHERE " + strings.Join(conditions, " AND ") + "\nORDER BY n.id"

	if p.Limit > 0 {
		args = append(args, p.Limit)
		q += fmt.Sprintf("\nLIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("graphstore/postgres: search related nodes: %w", err)
	}
	return collectNodes(rows)
}

// SearchDirectionalNodes implements [graphstore.Store]: an ordered scan by a
// scalar property, used e.g. for "previous episode by timestamp".
func (s *Store) SearchDirectionalNodes(ctx context.Context, p graphstore.DirectionalSearch) ([]graphstore.Node, error) {
	var args []any
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	var conditions []string
	if len(p.RequiredLabels) > 0 {
		conditions = append(conditions, "labels @> "+next(p.RequiredLabels)+"::text[]")
	}
	conditions = append(conditions, propertyFilterSQL(p.Filters, false, next)...)

	if p.ByProperty != "" && p.StartAtValue != nil {
		cmp := ">"
		if !p.OrderAscending {
			cmp = "<"
		}
		if p.IncludeEqual {
			cmp += "="
		}
		textVal := fmt.Sprintf("%v", p.StartAtValue)
		conditions = append(conditions, fmt.Sprintf("properties->>%s %s %s", next(p.ByProperty), cmp, next(textVal)))
	}

	order := "ASC"
	if !p.OrderAscending {
		order = "DESC"
	}

	q := "SELECT id, labels, properties, created_at FROM nodes"
	if len(conditions) > 0 {
		q += " WHERE " + strings.Join(conditions, " AND ")
	}
	if p.ByProperty != "" {
		q += fmt.Sprintf(" ORDER BY properties->>%s %s", next(p.ByProperty), order)
	}
	if p.Limit > 0 {
		args = append(args, p.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("graphstore/postgres: search directional nodes: %w", err)
	}
	return collectNodes(rows)
}

// propertyFilterSQLPrefixed is [propertyFilterSQL] for a non-default column
// reference (used when nodes are joined under an alias).
func propertyFilterSQLPrefixed(column string, filters graphstore.PropertyFilter, includeMissing bool, next func(any) string) []string {
	var conditions []string
	for k, v := range filters {
		textVal := fmt.Sprintf("%v", v)
		keyArg := next(k)
		valArg := next(textVal)
		if includeMissing {
			conditions = append(conditions, fmt.Sprintf("(NOT (%s ? %s) OR %s->>%s = %s)", column, keyArg, column, keyArg, valArg))
		} else {
			conditions = append(conditions, fmt.Sprintf("%s ? %s AND %s->>%s = %s", column, keyArg, column, keyArg, valArg))
		}
	}
	return conditions
}
