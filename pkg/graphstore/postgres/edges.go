package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vaultmind/vaultmind/pkg/graphstore"
)

// AddEdges implements [graphstore.Store]. Both endpoints must already exist
// — the foreign key constraints on edges enforce this; a violation is
// surfaced as an error rather than silently dropped, matching spec §7's
// Internal error-kind ("invariant violation … propagated as a fatal error").
func (s *Store) AddEdges(ctx context.Context, edges []graphstore.Edge) error {
	if len(edges) == 0 {
		return nil
	}

	const upsert = `
		INSERT INTO edges (id, source_id, target_id, relation, properties, created_at)
		VALUES ($1, $2, $3, $4, $5, COALESCE($6, now()))
		ON CONFLICT (id) DO UPDATE SET
		    source_id  = EXCLUDED.source_id,
		    target_id  = EXCLUDED.target_id,
		    relation   = EXCLUDED.relation,
		    properties = EXCLUDED.properties`

	batch := &pgx.Batch{}
	for _, e := range edges {
		raw, _, err := marshalProperties(e.Properties)
		if err != nil {
			return err
		}
		var createdAt any
		if !e.CreatedAt.IsZero() {
			createdAt = e.CreatedAt
		}
		batch.Queue(upsert, e.ID, e.SourceID, e.TargetID, e.Relation, raw, createdAt)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for _, e := range edges {
		if _, err := br.Exec(); err != nil {
			if isForeignKeyViolation(err) {
				return fmt.Errorf("graphstore/postgres: add edge %q: endpoint missing: %w", e.ID, err)
			}
			return fmt.Errorf("graphstore/postgres: add edge %q: %w", e.ID, err)
		}
	}
	return nil
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return false
}
