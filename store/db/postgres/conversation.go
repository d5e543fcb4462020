package postgres

import (
	"context"
	"encoding/json"
	"fmt"
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
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	if _, err := d.db.ExecContext(ctx, stmt,
		create.ID, create.UID, create.UserID, create.Timestamp.Unix(),
		string(messages), create.Summary, string(tags), string(metadata),
		create.Encrypted, create.CreatedTs, create.UpdatedTs,
	); err != nil {
		return nil, err
	}
	return create, nil
}

func (d *DB) ListConversations(ctx context.Context, find *store.FindConversation) ([]*store.Conversation, error) {
	where, args := []string{"TRUE"}, []any{}

	if v := find.ID; v != nil {
		args = append(args, *v)
		where = append(where, fmt.Sprintf("id = $%d", len(args)))
	}
	if v := find.UID; v != nil {
		args = append(args, *v)
		where = append(where, fmt.Sprintf("uid = $%d", len(args)))
	}
	if v := find.UserID; v != nil {
		args = append(args, *v)
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if v := find.StartDate; v != nil {
		args = append(args, v.Unix())
		where = append(where, fmt.Sprintf("timestamp >= $%d", len(args)))
	}
	if v := find.EndDate; v != nil {
		args = append(args, v.Unix())
		where = append(where, fmt.Sprintf("timestamp <= $%d", len(args)))
	}
	for _, tag := range find.Tags {
		encoded, err := json.Marshal([]string{tag})
		if err != nil {
			return nil, err
		}
		args = append(args, string(encoded))
		where = append(where, fmt.Sprintf("tags @> $%d::jsonb", len(args)))
	}

	query := `
		SELECT id, uid, user_id, timestamp, messages, summary, tags, metadata, encrypted, created_ts, updated_ts
		FROM conversation
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY timestamp DESC
	`
	if find.Limit != nil {
		args = append(args, *find.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
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
		args = append(args, string(messages))
		set = append(set, fmt.Sprintf("messages = $%d", len(args)))
	}
	if v := update.Summary; v != nil {
		args = append(args, *v)
		set = append(set, fmt.Sprintf("summary = $%d", len(args)))
	}
	if update.Tags != nil {
		tags, err := json.Marshal(update.Tags)
		if err != nil {
			return nil, errors.Wrap(err, "failed to marshal tags")
		}
		args = append(args, string(tags))
		set = append(set, fmt.Sprintf("tags = $%d", len(args)))
	}
	if update.Metadata != nil {
		metadata, err := json.Marshal(update.Metadata)
		if err != nil {
			return nil, errors.Wrap(err, "failed to marshal metadata")
		}
		args = append(args, string(metadata))
		set = append(set, fmt.Sprintf("metadata = $%d", len(args)))
	}
	args = append(args, time.Now().Unix())
	set = append(set, fmt.Sprintf("updated_ts = $%d", len(args)))
	args = append(args, update.ID)

	stmt := "UPDATE conversation SET " + strings.Join(set, ", ") + fmt.Sprintf(" WHERE id = $%d", len(args))
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
	_, err := d.db.ExecContext(ctx, "DELETE FROM conversation WHERE id = $1", delete.ID)
	return err
}

func (d *DB) DeleteConversationsByUser(ctx context.Context, userID string, start, end *int64) (int, error) {
	where, args := []string{"user_id = $1"}, []any{userID}
	if start != nil {
		args = append(args, *start)
		where = append(where, fmt.Sprintf("timestamp >= $%d", len(args)))
	}
	if end != nil {
		args = append(args, *end)
		where = append(where, fmt.Sprintf("timestamp <= $%d", len(args)))
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
	var messages, tags, metadata []byte
	if err := scan(
		&conversation.ID, &conversation.UID, &conversation.UserID, &timestamp,
		&messages, &conversation.Summary, &tags, &metadata, &conversation.Encrypted,
		&conversation.CreatedTs, &conversation.UpdatedTs,
	); err != nil {
		return nil, err
	}
	conversation.Timestamp = time.Unix(timestamp, 0).UTC()
	if err := json.Unmarshal(messages, &conversation.Messages); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal messages")
	}
	if err := json.Unmarshal(tags, &conversation.Tags); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal tags")
	}
	if err := json.Unmarshal(metadata, &conversation.Metadata); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal metadata")
	}
	return conversation, nil
}
