package postgres

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/vaultmind/vaultmind/pkg/graphstore"
)

// maxIdentifierLen is PostgreSQL's identifier length limit.
const maxIdentifierLen = 63

// vectorTableName derives a deterministic, backend-legal table name for the
// per-(label, embedding-property) ANN side table (spec §4.1). Sanitized
// label/property names can be arbitrarily long once hex-escaped, so the name
// is hashed down to fit PostgreSQL's identifier limit when necessary.
func vectorTableName(label, property string) string {
	base := "vecidx_" + graphstore.Sanitize(label) + "_" + graphstore.Sanitize(property)
	if len(base) <= maxIdentifierLen {
		return base
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(base))
	return fmt.Sprintf("vecidx_h%x", h.Sum64())
}

// ensureVectorTable creates, if it does not already exist, the vector side
// table for (label, property) sized to dims and returns its name. Creation
// is serialized under s.vecTablesMu: CREATE TABLE/INDEX IF NOT EXISTS is
// idempotent but concurrent first-creates can still race at the catalog
// level (spec §4.1).
func (s *Store) ensureVectorTable(ctx context.Context, label, property string, dims int) (string, error) {
	name := vectorTableName(label, property)

	s.vecTablesMu.Lock()
	defer s.vecTablesMu.Unlock()

	if knownDims, ok := s.vecTables[name]; ok {
		if knownDims != dims {
			return "", fmt.Errorf("graphstore/postgres: vector table %q already exists with dimension %d, got %d", name, knownDims, dims)
		}
		return name, nil
	}

	ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %[1]s (
    node_id    TEXT PRIMARY KEY REFERENCES nodes (id) ON DELETE CASCADE,
    embedding  vector(%[2]d) NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_%[1]s_ann ON %[1]s USING hnsw (embedding vector_cosine_ops);
`, name, dims)

	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return "", fmt.Errorf("graphstore/postgres: create vector table %q: %w", name, err)
	}

	s.vecTables[name] = dims
	return name, nil
}

// vectorTableIfKnown returns the vector table name for (label, property) if
// it has already been created, either earlier in this process or by a prior
// process run (checked once against the catalog and then cached). Used by
// search paths that must not implicitly create an index.
func (s *Store) vectorTableIfKnown(ctx context.Context, label, property string) (string, bool) {
	name := vectorTableName(label, property)

	s.vecTablesMu.Lock()
	if _, ok := s.vecTables[name]; ok {
		s.vecTablesMu.Unlock()
		return name, true
	}
	s.vecTablesMu.Unlock()

	var dims int
	const q = `
		SELECT atttypmod
		FROM   pg_attribute
		WHERE  attrelid = $1::regclass AND attname = 'embedding'`
	if err := s.pool.QueryRow(ctx, q, name).Scan(&dims); err != nil {
		return "", false
	}

	s.vecTablesMu.Lock()
	s.vecTables[name] = dims
	s.vecTablesMu.Unlock()
	return name, true
}
