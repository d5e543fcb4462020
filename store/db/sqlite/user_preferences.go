package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/recallhq/recall/store"
)

func (d *DB) UpsertUserPreferences(ctx context.Context, upsert *store.UserPreferences) (*store.UserPreferences, error) {
	payload, err := json.Marshal(upsert)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal preferences")
	}

	stmt := `
		INSERT INTO user_preferences (user_id, payload, updated_ts)
		VALUES (?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET payload = excluded.payload, updated_ts = excluded.updated_ts
	`
	if _, err := d.db.ExecContext(ctx, stmt, upsert.UserID, string(payload), time.Now().Unix()); err != nil {
		return nil, err
	}
	return upsert, nil
}

func (d *DB) GetUserPreferences(ctx context.Context, find *store.FindUserPreferences) (*store.UserPreferences, error) {
	if find.UserID == nil {
		return nil, errors.New("user id is required")
	}

	var payload string
	err := d.db.QueryRowContext(ctx,
		"SELECT payload FROM user_preferences WHERE user_id = ?", *find.UserID,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	preferences := &store.UserPreferences{}
	if err := json.Unmarshal([]byte(payload), preferences); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal preferences")
	}
	return preferences, nil
}

func (d *DB) DeleteUserPreferences(ctx context.Context, userID string) error {
	_, err := d.db.ExecContext(ctx, "DELETE FROM user_preferences WHERE user_id = ?", userID)
	return err
}
