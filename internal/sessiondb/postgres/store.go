// Package postgres implements [sessiondb.Store] against a PostgreSQL
// database with the schema defined in [Schema].
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vaultmind/vaultmind/internal/memory"
	"github.com/vaultmind/vaultmind/internal/sessiondb"
)

// Store is a [sessiondb.Store] backed by PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// Compile-time interface check.
var _ sessiondb.Store = (*Store)(nil)

// New creates a new [Store] using pool. Call [Store.Migrate] to ensure the
// schema exists before issuing queries.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Migrate executes [Schema] against the database.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("sessiondb: migrate: %w", err)
	}
	return nil
}

// CreateGroup implements [sessiondb.Store].
func (s *Store) CreateGroup(ctx context.Context, g memory.Group) error {
	cfgJSON, err := json.Marshal(emptyMap(g.Config))
	if err != nil {
		return fmt.Errorf("sessiondb: marshal group config: %w", err)
	}

	const q = `INSERT INTO groups (group_id, config) VALUES ($1, $2)`
	if _, err := s.pool.Exec(ctx, q, g.GroupID, cfgJSON); err != nil {
		if isDuplicateKeyError(err) {
			return sessiondb.ErrGroupAlreadyExists
		}
		return fmt.Errorf("sessiondb: create group: %w", err)
	}
	return nil
}

// GetGroup implements [sessiondb.Store].
func (s *Store) GetGroup(ctx context.Context, groupID string) (memory.Group, error) {
	const q = `SELECT config, created_at FROM groups WHERE group_id = $1`

	var (
		cfgJSON []byte
		g       = memory.Group{GroupID: groupID}
	)
	if err := s.pool.QueryRow(ctx, q, groupID).Scan(&cfgJSON, &g.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return memory.Group{}, sessiondb.ErrGroupNotFound
		}
		return memory.Group{}, fmt.Errorf("sessiondb: get group %q: %w", groupID, err)
	}
	if err := json.Unmarshal(cfgJSON, &g.Config); err != nil {
		return memory.Group{}, fmt.Errorf("sessiondb: unmarshal group config: %w", err)
	}

	agentIDs, err := s.distinctIDs(ctx, "agents", "agent_id", groupID)
	if err != nil {
		return memory.Group{}, err
	}
	userIDs, err := s.distinctIDs(ctx, "users", "user_id", groupID)
	if err != nil {
		return memory.Group{}, err
	}
	g.AgentIDs, g.UserIDs = agentIDs, userIDs
	return g, nil
}

// distinctIDs returns every distinct value of idColumn across table for
// the given group, covering every session under it.
func (s *Store) distinctIDs(ctx context.Context, table, idColumn, groupID string) ([]string, error) {
	q := fmt.Sprintf(`SELECT DISTINCT %s FROM %s WHERE group_id = $1 ORDER BY %s`, idColumn, table, idColumn)
	rows, err := s.pool.Query(ctx, q, groupID)
	if err != nil {
		return nil, fmt.Errorf("sessiondb: list %s: %w", table, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sessiondb: scan %s: %w", table, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteGroup implements [sessiondb.Store]. Sessions and membership rows
// cascade via the foreign keys declared in [Schema].
func (s *Store) DeleteGroup(ctx context.Context, groupID string) error {
	const q = `DELETE FROM groups WHERE group_id = $1`
	if _, err := s.pool.Exec(ctx, q, groupID); err != nil {
		return fmt.Errorf("sessiondb: delete group %q: %w", groupID, err)
	}
	return nil
}

// CreateSession implements [sessiondb.Store].
func (s *Store) CreateSession(ctx context.Context, sess memory.Session) error {
	cfgJSON, err := json.Marshal(emptyMap(sess.Config))
	if err != nil {
		return fmt.Errorf("sessiondb: marshal session config: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("sessiondb: create session: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	const insertSession = `INSERT INTO sessions (group_id, session_id, config) VALUES ($1, $2, $3)`
	if _, err := tx.Exec(ctx, insertSession, sess.GroupID, sess.SessionID, cfgJSON); err != nil {
		if isForeignKeyViolation(err) {
			return sessiondb.ErrGroupNotFound
		}
		if isDuplicateKeyError(err) {
			return sessiondb.ErrSessionAlreadyExists
		}
		return fmt.Errorf("sessiondb: create session: %w", err)
	}

	const insertAgent = `INSERT INTO agents (group_id, session_id, agent_id) VALUES ($1, $2, $3)`
	for _, agentID := range sess.AgentIDs {
		if _, err := tx.Exec(ctx, insertAgent, sess.GroupID, sess.SessionID, agentID); err != nil {
			return fmt.Errorf("sessiondb: create session: insert agent %q: %w", agentID, err)
		}
	}

	const insertUser = `INSERT INTO users (group_id, session_id, user_id) VALUES ($1, $2, $3)`
	for _, userID := range sess.UserIDs {
		if _, err := tx.Exec(ctx, insertUser, sess.GroupID, sess.SessionID, userID); err != nil {
			return fmt.Errorf("sessiondb: create session: insert user %q: %w", userID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("sessiondb: create session: commit: %w", err)
	}
	return nil
}

// OpenSession implements [sessiondb.Store].
func (s *Store) OpenSession(ctx context.Context, groupID, sessionID string) (memory.Session, error) {
	const q = `SELECT config, created_at FROM sessions WHERE group_id = $1 AND session_id = $2`

	var (
		cfgJSON []byte
		sess    = memory.Session{GroupID: groupID, SessionID: sessionID}
	)
	if err := s.pool.QueryRow(ctx, q, groupID, sessionID).Scan(&cfgJSON, &sess.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return memory.Session{}, sessiondb.ErrSessionNotFound
		}
		return memory.Session{}, fmt.Errorf("sessiondb: open session %q/%q: %w", groupID, sessionID, err)
	}
	if err := json.Unmarshal(cfgJSON, &sess.Config); err != nil {
		return memory.Session{}, fmt.Errorf("sessiondb: unmarshal session config: %w", err)
	}

	agentIDs, err := s.sessionMemberIDs(ctx, "agents", "agent_id", groupID, sessionID)
	if err != nil {
		return memory.Session{}, err
	}
	userIDs, err := s.sessionMemberIDs(ctx, "users", "user_id", groupID, sessionID)
	if err != nil {
		return memory.Session{}, err
	}
	sess.AgentIDs, sess.UserIDs = agentIDs, userIDs
	return sess, nil
}

func (s *Store) sessionMemberIDs(ctx context.Context, table, idColumn, groupID, sessionID string) ([]string, error) {
	q := fmt.Sprintf(`SELECT %s FROM %s WHERE group_id = $1 AND session_id = $2 ORDER BY %s`, idColumn, table, idColumn)
	rows, err := s.pool.Query(ctx, q, groupID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("sessiondb: list %s: %w", table, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sessiondb: scan %s: %w", table, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CreateSessionIfMissing implements [sessiondb.Store].
func (s *Store) CreateSessionIfMissing(ctx context.Context, sess memory.Session) (memory.Session, bool, error) {
	err := s.CreateSession(ctx, sess)
	switch {
	case err == nil:
		created, openErr := s.OpenSession(ctx, sess.GroupID, sess.SessionID)
		if openErr != nil {
			return memory.Session{}, false, openErr
		}
		return created, true, nil
	case errors.Is(err, sessiondb.ErrSessionAlreadyExists):
		existing, openErr := s.OpenSession(ctx, sess.GroupID, sess.SessionID)
		if openErr != nil {
			return memory.Session{}, false, openErr
		}
		return existing, false, nil
	default:
		return memory.Session{}, false, err
	}
}

// ListSessionsByGroup implements [sessiondb.Store].
func (s *Store) ListSessionsByGroup(ctx context.Context, groupID string) ([]memory.Session, error) {
	const q = `SELECT session_id FROM sessions WHERE group_id = $1 ORDER BY session_id`
	return s.listSessionsByFilter(ctx, q, groupID, groupID)
}

// ListSessionsByUser implements [sessiondb.Store].
func (s *Store) ListSessionsByUser(ctx context.Context, userID string) ([]memory.Session, error) {
	const q = `
		SELECT DISTINCT s.group_id, s.session_id
		FROM sessions s
		JOIN users u ON u.group_id = s.group_id AND u.session_id = s.session_id
		WHERE u.user_id = $1
		ORDER BY s.group_id, s.session_id`
	return s.listSessionsByJoin(ctx, q, userID)
}

// ListSessionsByAgent implements [sessiondb.Store].
func (s *Store) ListSessionsByAgent(ctx context.Context, agentID string) ([]memory.Session, error) {
	const q = `
		SELECT DISTINCT s.group_id, s.session_id
		FROM sessions s
		JOIN agents a ON a.group_id = s.group_id AND a.session_id = s.session_id
		WHERE a.agent_id = $1
		ORDER BY s.group_id, s.session_id`
	return s.listSessionsByJoin(ctx, q, agentID)
}

// listSessionsByFilter handles the single-group case, where group_id is
// already fixed and the query only returns session_id.
func (s *Store) listSessionsByFilter(ctx context.Context, q, groupID, filterArg string) ([]memory.Session, error) {
	rows, err := s.pool.Query(ctx, q, filterArg)
	if err != nil {
		return nil, fmt.Errorf("sessiondb: list sessions by group: %w", err)
	}
	defer rows.Close()

	var out []memory.Session
	for rows.Next() {
		var sessionID string
		if err := rows.Scan(&sessionID); err != nil {
			return nil, fmt.Errorf("sessiondb: scan session: %w", err)
		}
		sess, err := s.OpenSession(ctx, groupID, sessionID)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// listSessionsByJoin handles the by-user/by-agent case, where each result
// row carries its own group_id.
func (s *Store) listSessionsByJoin(ctx context.Context, q string, arg string) ([]memory.Session, error) {
	rows, err := s.pool.Query(ctx, q, arg)
	if err != nil {
		return nil, fmt.Errorf("sessiondb: list sessions: %w", err)
	}
	defer rows.Close()

	type ref struct{ groupID, sessionID string }
	var refs []ref
	for rows.Next() {
		var r ref
		if err := rows.Scan(&r.groupID, &r.sessionID); err != nil {
			return nil, fmt.Errorf("sessiondb: scan session ref: %w", err)
		}
		refs = append(refs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]memory.Session, 0, len(refs))
	for _, r := range refs {
		sess, err := s.OpenSession(ctx, r.groupID, r.sessionID)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, nil
}

// emptyMap returns m if non-nil, otherwise an empty non-nil map, so JSON
// marshalling produces "{}" instead of "null".
func emptyMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

// isDuplicateKeyError reports whether err is a unique-violation (SQLSTATE 23505).
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

// isForeignKeyViolation reports whether err is a foreign-key violation (SQLSTATE 23503).
func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return false
}
