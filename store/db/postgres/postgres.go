package postgres

import (
	"context"
	"database/sql"
	"time"

	// Import the PostgreSQL driver.
	_ "github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/recallhq/recall/internal/profile"
	"github.com/recallhq/recall/store"
)

// DB is the PostgreSQL implementation of store.Driver. It is the reference
// backend and the only one with vector search support (pgvector).
type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

func NewDB(profile *profile.Profile) (store.Driver, error) {
	if profile == nil {
		return nil, errors.New("profile is nil")
	}

	db, err := sql.Open("postgres", profile.DSN)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database: %s", profile.DSN)
	}

	// Conservative pool settings; the service is read-heavy but low volume.
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(2 * time.Hour)
	db.SetConnMaxIdleTime(15 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, errors.Wrap(err, "failed to ping database")
	}

	return &DB{db: db, profile: profile}, nil
}

func (d *DB) GetDB() interface{} {
	return d.db
}

func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) IsInitialized(ctx context.Context) (bool, error) {
	var exists bool
	err := d.db.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = 'conversation')",
	).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

const latestSchema = `
CREATE TABLE IF NOT EXISTS conversation (
	id TEXT PRIMARY KEY,
	uid TEXT NOT NULL UNIQUE,
	user_id TEXT NOT NULL,
	timestamp BIGINT NOT NULL,
	messages JSONB NOT NULL DEFAULT '[]',
	summary TEXT NOT NULL DEFAULT '',
	tags JSONB NOT NULL DEFAULT '[]',
	metadata JSONB NOT NULL DEFAULT '{}',
	encrypted BOOLEAN NOT NULL DEFAULT FALSE,
	created_ts BIGINT NOT NULL,
	updated_ts BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_conversation_user_id ON conversation (user_id);
CREATE INDEX IF NOT EXISTS idx_conversation_user_ts ON conversation (user_id, timestamp);

CREATE TABLE IF NOT EXISTS user_preferences (
	user_id TEXT PRIMARY KEY,
	payload JSONB NOT NULL DEFAULT '{}',
	updated_ts BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS privacy_settings (
	user_id TEXT PRIMARY KEY,
	payload JSONB NOT NULL DEFAULT '{}',
	updated_ts BIGINT NOT NULL
);
`

const embeddingSchema = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS conversation_embedding (
	conversation_id TEXT PRIMARY KEY REFERENCES conversation (id) ON DELETE CASCADE,
	user_id TEXT NOT NULL,
	embedding vector(1536) NOT NULL,
	model TEXT NOT NULL DEFAULT '',
	created_ts BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_conversation_embedding_user ON conversation_embedding (user_id);
`

func (d *DB) Migrate(ctx context.Context) error {
	if _, err := d.db.ExecContext(ctx, latestSchema); err != nil {
		return errors.Wrap(err, "failed to apply schema")
	}
	// The embedding table needs the pgvector extension. Skip it gracefully
	// when the extension is unavailable; semantic search then stays off.
	if _, err := d.db.ExecContext(ctx, embeddingSchema); err != nil {
		return errors.Wrap(err, "failed to apply embedding schema (is pgvector installed?)")
	}
	return nil
}

func (d *DB) ListUserIDs(ctx context.Context) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT user_id FROM conversation
		UNION
		SELECT user_id FROM user_preferences
		UNION
		SELECT user_id FROM privacy_settings
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	userIDs := []string{}
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, err
		}
		userIDs = append(userIDs, userID)
	}
	return userIDs, rows.Err()
}
