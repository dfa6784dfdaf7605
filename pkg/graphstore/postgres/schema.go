package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ddlNodes defines the generic node table. labels is a Postgres text array
// rather than a fixed column set, since episode_type-driven label sets are
// not known at compile time.
const ddlNodes = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS nodes (
    id          TEXT         PRIMARY KEY,
    labels      TEXT[]       NOT NULL DEFAULT '{}',
    properties  JSONB        NOT NULL DEFAULT '{}',
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_nodes_labels ON nodes USING GIN (labels);
CREATE INDEX IF NOT EXISTS idx_nodes_properties ON nodes USING GIN (properties);
`

// ddlEdges defines the generic edge table. Both endpoints reference nodes
// and cascade on delete, matching spec §4.1's "delete_nodes detaches and
// deletes" requirement.
const ddlEdges = `
CREATE TABLE IF NOT EXISTS edges (
    id          TEXT         PRIMARY KEY,
    source_id   TEXT         NOT NULL REFERENCES nodes (id) ON DELETE CASCADE,
    target_id   TEXT         NOT NULL REFERENCES nodes (id) ON DELETE CASCADE,
    relation    TEXT         NOT NULL,
    properties  JSONB        NOT NULL DEFAULT '{}',
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_edges_source ON edges (source_id, relation);
CREATE INDEX IF NOT EXISTS idx_edges_target ON edges (target_id, relation);
CREATE INDEX IF NOT EXISTS idx_edges_relation ON edges (relation);
`

// Migrate creates the base nodes/edges schema and the pgvector extension.
// Per-(label, embedding-property) vector side tables are created lazily by
// [Store.ensureVectorTable] on first use, not here, since their shape
// depends on runtime-chosen embedding property names and dimensionality.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range []string{ddlNodes, ddlEdges} {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("graphstore/postgres: migrate: %w", err)
		}
	}
	return nil
}
