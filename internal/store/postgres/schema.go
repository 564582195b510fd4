package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// schema is idempotent. Positions carry no unique index: the bucket service
// rewrites them as a dense sequence and a reorder passes through transient
// duplicates.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS buckets (
        id         TEXT PRIMARY KEY,
        user_id    TEXT NOT NULL,
        name       TEXT NOT NULL CHECK (name <> ''),
        created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
        updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
    )`,
	`CREATE INDEX IF NOT EXISTS buckets_user_created_idx ON buckets (user_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS activities (
        id          TEXT PRIMARY KEY,
        bucket_id   TEXT NOT NULL REFERENCES buckets(id) ON DELETE CASCADE,
        text        TEXT NOT NULL CHECK (text <> ''),
        description TEXT NULL,
        position    INTEGER NOT NULL CHECK (position >= 0)
    )`,
	`CREATE INDEX IF NOT EXISTS activities_bucket_position_idx ON activities (bucket_id, position)`,
}

// EnsureSchema creates the bucket tables if they do not exist.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
