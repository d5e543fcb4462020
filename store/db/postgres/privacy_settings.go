package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/recallhq/recall/store"
)

func (d *DB) UpsertPrivacySettings(ctx context.Context, upsert *store.PrivacySettings) (*store.PrivacySettings, error) {
	payload, err := json.Marshal(upsert)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal privacy settings")
	}

	stmt := `
		INSERT INTO privacy_settings (user_id, payload, updated_ts)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET payload = EXCLUDED.payload, updated_ts = EXCLUDED.updated_ts
	`
	if _, err := d.db.ExecContext(ctx, stmt, upsert.UserID, string(payload), time.Now().Unix()); err != nil {
		return nil, err
	}
	return upsert, nil
}

func (d *DB) GetPrivacySettings(ctx context.Context, find *store.FindPrivacySettings) (*store.PrivacySettings, error) {
	if find.UserID == nil {
		return nil, errors.New("user id is required")
	}

	var payload []byte
	err := d.db.QueryRowContext(ctx,
		"SELECT payload FROM privacy_settings WHERE user_id = $1", *find.UserID,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	settings := &store.PrivacySettings{}
	if err := json.Unmarshal(payload, settings); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal privacy settings")
	}
	return settings, nil
}

func (d *DB) DeletePrivacySettings(ctx context.Context, userID string) error {
	_, err := d.db.ExecContext(ctx, "DELETE FROM privacy_settings WHERE user_id = $1", userID)
	return err
}
