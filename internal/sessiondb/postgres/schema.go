package postgres

// Schema is the SQL DDL for the sessiondb tables. Execute it via
// [Store.Migrate] or apply it manually during deployment.
//
// sessions carries a composite primary key (group_id, session_id); agents
// and users are per-session membership rows that cascade on delete, per
// spec §4.11.
const Schema = `
CREATE TABLE IF NOT EXISTS groups (
    group_id   TEXT PRIMARY KEY,
    config     JSONB NOT NULL DEFAULT '{}',
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS sessions (
    group_id   TEXT NOT NULL REFERENCES groups(group_id) ON DELETE CASCADE,
    session_id TEXT NOT NULL,
    config     JSONB NOT NULL DEFAULT '{}',
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (group_id, session_id)
);

CREATE TABLE IF NOT EXISTS agents (
    group_id   TEXT NOT NULL,
    session_id TEXT NOT NULL,
    agent_id   TEXT NOT NULL,
    PRIMARY KEY (group_id, session_id, agent_id),
    FOREIGN KEY (group_id, session_id) REFERENCES sessions(group_id, session_id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_agents_agent_id ON agents(agent_id);

CREATE TABLE IF NOT EXISTS users (
    group_id   TEXT NOT NULL,
    session_id TEXT NOT NULL,
    user_id    TEXT NOT NULL,
    PRIMARY KEY (group_id, session_id, user_id),
    FOREIGN KEY (group_id, session_id) REFERENCES sessions(group_id, session_id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_users_user_id ON users(user_id);
`
