package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schemaMigration = `
CREATE TABLE IF NOT EXISTS teams (
    id bigint PRIMARY KEY,
    external_org_key text NOT NULL,
    name text NOT NULL,
    avatar_url text NOT NULL DEFAULT '',
    created_at timestamptz NOT NULL DEFAULT NOW(),
    updated_at timestamptz NOT NULL DEFAULT NOW(),
    CONSTRAINT teams_external_org_key_unique UNIQUE (external_org_key)
);

CREATE TABLE IF NOT EXISTS users (
    id bigint PRIMARY KEY,
    team_id bigint NOT NULL REFERENCES teams(id),
    provider text NOT NULL,
    external_user_id text NOT NULL,
    name text NOT NULL DEFAULT '',
    email text NOT NULL DEFAULT '',
    avatar_url text NOT NULL DEFAULT '',
    is_admin boolean NOT NULL DEFAULT false,
    created_at timestamptz NOT NULL DEFAULT NOW(),
    updated_at timestamptz NOT NULL DEFAULT NOW(),
    CONSTRAINT users_identity_unique UNIQUE (provider, external_user_id, team_id)
);

CREATE INDEX IF NOT EXISTS users_team_id_idx ON users (team_id);

CREATE TABLE IF NOT EXISTS collections (
    id bigint PRIMARY KEY,
    team_id bigint NOT NULL REFERENCES teams(id),
    creator_id bigint NOT NULL REFERENCES users(id),
    name text NOT NULL,
    description text NOT NULL DEFAULT '',
    created_at timestamptz NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS collections_team_id_idx ON collections (team_id);
`

// Migrate applies the schema. The unique constraints on teams and users are
// load-bearing: the repository find-or-create contract depends on them.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schemaMigration); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
