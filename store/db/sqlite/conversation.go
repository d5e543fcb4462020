package sqlite

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/recallhq/recall/store"
)

func (d *DB) CreateConversation(ctx context.Context, create *store.Conversation) (*store.Conversation, error) {
	messages, err := json.Marshal(create.Messages)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal messages")
	}
	tags, err := json.Marshal(create.Tags)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal tags")
	}
	metadata, err := json.Marshal(create.Metadata)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal metadata")
	}

	now := time.Now().Unix()
	create.CreatedTs = now
	create.UpdatedTs = now

	stmt := `
		INSERT INTO conversation (id, uid, user_id, timestamp, messages, summary, tags, metadata, encrypted, created_ts, updated_ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := d.db.ExecContext(ctx, stmt,
		create.ID, create.UID, create.UserID, create.Timestamp.Unix(),
		string(messages), create.Summary, string(tags), string(metadata),
		boolToInt(create.Encrypted), create.CreatedTs, create.UpdatedTs,
	); err != nil {
		return nil, err
	}
	return create, nil
}

func (d *DB) ListConversations(ctx context.Context, find *store.FindConversation) ([]*store.Conversation, error) {
	where, args := []string{"1 = 1"}, []any{}

	if v := find.ID; v != nil {
		where, args = append(where, "id = ?"), append(args, *v)
	}
	if v := find.UID; v != nil {
		where, args = append(where, "uid = ?"), append(args, *v)
	}
	if v := find.UserID; v != nil {
		where, args = append(where, "user_id = ?"), append(args, *v)
	}
	if v := find.StartDate; v != nil {
		where, args = append(where, "timestamp >= ?"), append(args, v.Unix())
	}
	if v := find.EndDate; v != nil {
		where, args = append(where, "timestamp <= ?"), append(args, v.Unix())
	}
	for _, tag := range find.Tags {
		where, args = append(where, "tags LIKE ?"), append(args, "%"+jsonTagPattern(tag)+"%")
	}

	query := `
		SELECT id, uid, user_id, timestamp, messages, summary, tags, metadata, encrypted, created_ts, updated_ts
		FROM conversation
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY timestamp DESC
	`
	if find.Limit != nil {
		query += " LIMIT ?"
		args = append(args, *find.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []*store.Conversation{}
	for rows.Next() {
		conversation, err := scanConversation(rows.Scan)
		if err != nil {
			return nil, err
		}
		list = append(list, conversation)
	}
	return list, rows.Err()
}

func (d *DB) UpdateConversation(ctx context.Context, update *store.UpdateConversation) (*store.Conversation, error) {
	set, args := []string{}, []any{}

	if update.Messages != nil {
		messages, err := json.Marshal(update.Messages)
		if err != nil {
			return nil, errors.Wrap(err, "failed to marshal messages")
		}
		set, args = append(set, "messages = ?"), append(args, string(messages))
	}
	if v := update.Summary; v != nil {
		set, args = append(set, "summary = ?"), append(args, *v)
	}
	if update.Tags != nil {
		tags, err := json.Marshal(update.Tags)
		if err != nil {
			return nil, errors.Wrap(err, "failed to marshal tags")
		}
		set, args = append(set, "tags = ?"), append(args, string(tags))
	}
	if update.Metadata != nil {
		metadata, err := json.Marshal(update.Metadata)
		if err != nil {
			return nil, errors.Wrap(err, "failed to marshal metadata")
		}
		set, args = append(set, "metadata = ?"), append(args, string(metadata))
	}
	set, args = append(set, "updated_ts = ?"), append(args, time.Now().Unix())
	args = append(args, update.ID)

	stmt := "UPDATE conversation SET " + strings.Join(set, ", ") + " WHERE id = ?"
	if _, err := d.db.ExecContext(ctx, stmt, args...); err != nil {
		return nil, err
	}

	list, err := d.ListConversations(ctx, &store.FindConversation{ID: &update.ID})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, errors.Errorf("conversation %s not found", update.ID)
	}
	return list[0], nil
}

func (d *DB) DeleteConversation(ctx context.Context, delete *store.DeleteConversation) error {
	result, err := d.db.ExecContext(ctx, "DELETE FROM conversation WHERE id = ?", delete.ID)
	if err != nil {
		return err
	}
	if _, err := result.RowsAffected(); err != nil {
		return err
	}
	return nil
}

func (d *DB) DeleteConversationsByUser(ctx context.Context, userID string, start, end *int64) (int, error) {
	where, args := []string{"user_id = ?"}, []any{userID}
	if start != nil {
		where, args = append(where, "timestamp >= ?"), append(args, *start)
	}
	if end != nil {
		where, args = append(where, "timestamp <= ?"), append(args, *end)
	}

	result, err := d.db.ExecContext(ctx, "DELETE FROM conversation WHERE "+strings.Join(where, " AND "), args...)
	if err != nil {
		return 0, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

func scanConversation(scan func(dest ...any) error) (*store.Conversation, error) {
	conversation := &store.Conversation{}
	var timestamp int64
	var messages, tags, metadata string
	var encrypted int
	if err := scan(
		&conversation.ID, &conversation.UID, &conversation.UserID, &timestamp,
		&messages, &conversation.Summary, &tags, &metadata, &encrypted,
		&conversation.CreatedTs, &conversation.UpdatedTs,
	); err != nil {
		return nil, err
	}
	conversation.Timestamp = time.Unix(timestamp, 0).UTC()
	conversation.Encrypted = encrypted != 0
	if err := json.Unmarshal([]byte(messages), &conversation.Messages); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal messages")
	}
	if err := json.Unmarshal([]byte(tags), &conversation.Tags); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal tags")
	}
	if err := json.Unmarshal([]byte(metadata), &conversation.Metadata); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal metadata")
	}
	return conversation, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// jsonTagPattern matches a tag inside the serialized JSON array.
func jsonTagPattern(tag string) string {
	encoded, _ := json.Marshal(tag)
	return string(encoded)
}
