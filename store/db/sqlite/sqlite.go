package sqlite

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	// Import the SQLite driver.
	_ "modernc.org/sqlite"

	"github.com/recallhq/recall/internal/profile"
	"github.com/recallhq/recall/store"
)

// DB is a SQLite implementation of store.Driver. It covers everything except
// vector search, which needs the postgres backend.
type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

func NewDB(profile *profile.Profile) (store.Driver, error) {
	if profile == nil {
		return nil, errors.New("profile is nil")
	}

	// Connect with busy_timeout so concurrent writers back off instead of
	// failing immediately, and foreign keys enforced.
	db, err := sql.Open("sqlite", profile.DSN+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database: %s", profile.DSN)
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
	var name string
	err := d.db.QueryRowContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'conversation'",
	).Scan(&name)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

const latestSchema = `
CREATE TABLE IF NOT EXISTS conversation (
	id TEXT PRIMARY KEY,
	uid TEXT NOT NULL UNIQUE,
	user_id TEXT NOT NULL,
	timestamp BIGINT NOT NULL,
	messages TEXT NOT NULL DEFAULT '[]',
	summary TEXT NOT NULL DEFAULT '',
	tags TEXT NOT NULL DEFAULT '[]',
	metadata TEXT NOT NULL DEFAULT '{}',
	encrypted INTEGER NOT NULL DEFAULT 0,
	created_ts BIGINT NOT NULL,
	updated_ts BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_conversation_user_id ON conversation (user_id);
CREATE INDEX IF NOT EXISTS idx_conversation_user_ts ON conversation (user_id, timestamp);

CREATE TABLE IF NOT EXISTS user_preferences (
	user_id TEXT PRIMARY KEY,
	payload TEXT NOT NULL DEFAULT '{}',
	updated_ts BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS privacy_settings (
	user_id TEXT PRIMARY KEY,
	payload TEXT NOT NULL DEFAULT '{}',
	updated_ts BIGINT NOT NULL
);
`

func (d *DB) Migrate(ctx context.Context) error {
	if _, err := d.db.ExecContext(ctx, latestSchema); err != nil {
		return errors.Wrap(err, "failed to apply schema")
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

func (*DB) UpsertConversationEmbedding(context.Context, *store.ConversationEmbedding) error {
	return store.ErrVectorSearchUnsupported
}

func (*DB) SearchConversationsByVector(context.Context, *store.FindConversationEmbedding) ([]*store.ConversationWithScore, error) {
	return nil, store.ErrVectorSearchUnsupported
}
