package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/vaultmind/vaultmind/pkg/graphstore"
)

// AddNodes implements [graphstore.Store]. It upserts nodes via a single
// batched round trip (pgx.Batch), then mirrors any embedding-valued
// properties into their lazily created vector side tables.
func (s *Store) AddNodes(ctx context.Context, nodes []graphstore.Node) error {
	if len(nodes) == 0 {
		return nil
	}

	const upsert = `
		INSERT INTO nodes (id, labels, properties, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
		ON CONFLICT (id) DO UPDATE SET
		    labels     = EXCLUDED.labels,
		    properties = EXCLUDED.properties`

	batch := &pgx.Batch{}
	type pending struct {
		node       graphstore.Node
		embeddings map[string][]float32
	}
	plans := make([]pending, 0, len(nodes))

	for _, n := range nodes {
		raw, embeddings, err := marshalProperties(n.Properties)
		if err != nil {
			return err
		}
		var createdAt any
		if !n.CreatedAt.IsZero() {
			createdAt = n.CreatedAt
		}
		batch.Queue(upsert, n.ID, n.Labels, raw, createdAt)
		plans = append(plans, pending{node: n, embeddings: embeddings})
	}

	br := s.pool.SendBatch(ctx, batch)
	for range plans {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("graphstore/postgres: add nodes: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("graphstore/postgres: add nodes: %w", err)
	}

	for _, p := range plans {
		for propName, vec := range p.embeddings {
			if len(vec) == 0 {
				continue
			}
			for _, label := range p.node.Labels {
				table, err := s.ensureVectorTable(ctx, label, propName, len(vec))
				if err != nil {
					return err
				}
				q := fmt.Sprintf(`
					INSERT INTO %s (node_id, embedding) VALUES ($1, $2)
					ON CONFLICT (node_id) DO UPDATE SET embedding = EXCLUDED.embedding`, table)
				if _, err := s.pool.Exec(ctx, q, p.node.ID, pgvector.NewVector(vec)); err != nil {
					return fmt.Errorf("graphstore/postgres: index embedding for node %q: %w", p.node.ID, err)
				}
			}
		}
	}
	return nil
}

// DeleteNodes implements [graphstore.Store]. Edges and vector side-table rows
// referencing the deleted nodes cascade automatically via foreign keys.
func (s *Store) DeleteNodes(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	const q = `DELETE FROM nodes WHERE id = ANY($1)`
	if _, err := s.pool.Exec(ctx, q, ids); err != nil {
		return fmt.Errorf("graphstore/postgres: delete nodes: %w", err)
	}
	return nil
}

// ClearData implements [graphstore.Store]. Truncating nodes cascades to
// edges and every vector side table via their foreign keys.
func (s *Store) ClearData(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `TRUNCATE nodes, edges CASCADE`); err != nil {
		return fmt.Errorf("graphstore/postgres: clear data: %w", err)
	}
	return nil
}

// SearchMatchingNodes implements [graphstore.Store]: a generic predicate scan
// over required labels and property filters.
func (s *Store) SearchMatchingNodes(ctx context.Context, requiredLabels []string, filters graphstore.PropertyFilter, includeMissing bool, limit int) ([]graphstore.Node, error) {
	var args []any
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	var conditions []string
	if len(requiredLabels) > 0 {
		conditions = append(conditions, "labels @> "+next(requiredLabels)+"::text[]")
	}
	conditions = append(conditions, propertyFilterSQL(filters, includeMissing, next)...)

	q := "SELECT id, labels, properties, created_at FROM nodes"
	if len(conditions) > 0 {
		q += " WHERE " + strings.Join(conditions, " AND ")
	}
	q += " ORDER BY created_at"
	if limit > 0 {
		args = append(args, limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("graphstore/postgres: search matching nodes: %w", err)
	}
	return collectNodes(rows)
}

// propertyFilterSQL builds AND-joined WHERE fragments for a property filter.
// When includeMissing is true, a node lacking the key is accepted rather
// than excluded (spec §4.1's include_missing_properties).
func propertyFilterSQL(filters graphstore.PropertyFilter, includeMissing bool, next func(any) string) []string {
	var conditions []string
	for k, v := range filters {
		textVal := fmt.Sprintf("%v", v)
		keyArg := next(k)
		valArg := next(textVal)
		if includeMissing {
			conditions = append(conditions, fmt.Sprintf("(NOT (properties ? %s) OR properties->>%s = %s)", keyArg, keyArg, valArg))
		} else {
			conditions = append(conditions, fmt.Sprintf("properties ? %s AND properties->>%s = %s", keyArg, keyArg, valArg))
		}
	}
	return conditions
}

// collectNodes scans pgx rows into a slice of [graphstore.Node].
func collectNodes(rows pgx.Rows) ([]graphstore.Node, error) {
	nodes, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (graphstore.Node, error) {
		var (
			n         graphstore.Node
			propsJSON []byte
			createdAt time.Time
		)
		if err := row.Scan(&n.ID, &n.Labels, &propsJSON, &createdAt); err != nil {
			return graphstore.Node{}, err
		}
		props, err := unmarshalProperties(propsJSON)
		if err != nil {
			return graphstore.Node{}, err
		}
		n.Properties = props
		n.CreatedAt = createdAt
		return n, nil
	})
	if err != nil {
		return nil, err
	}
	if nodes == nil {
		nodes = []graphstore.Node{}
	}
	return nodes, nil
}
