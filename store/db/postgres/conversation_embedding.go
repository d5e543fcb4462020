package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pgvector/pgvector-go"
	"github.com/pkg/errors"

	"github.com/recallhq/recall/store"
)

// UpsertConversationEmbedding inserts or replaces the embedding for a
// conversation.
func (d *DB) UpsertConversationEmbedding(ctx context.Context, upsert *store.ConversationEmbedding) error {
	stmt := `
		INSERT INTO conversation_embedding (conversation_id, user_id, embedding, model, created_ts)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (conversation_id)
		DO UPDATE SET embedding = EXCLUDED.embedding, model = EXCLUDED.model, created_ts = EXCLUDED.created_ts
	`
	if upsert.CreatedTs == 0 {
		upsert.CreatedTs = time.Now().Unix()
	}
	if _, err := d.db.ExecContext(ctx, stmt,
		upsert.ConversationID, upsert.UserID, pgvector.NewVector(upsert.Embedding),
		upsert.Model, upsert.CreatedTs,
	); err != nil {
		return errors.Wrap(err, "failed to upsert conversation embedding")
	}
	return nil
}

// SearchConversationsByVector performs a cosine similarity search with
// pgvector. The <=> operator computes cosine distance, so ordering by it
// ascending yields the most similar conversations first.
func (d *DB) SearchConversationsByVector(ctx context.Context, find *store.FindConversationEmbedding) ([]*store.ConversationWithScore, error) {
	limit := find.Limit
	if limit <= 0 {
		limit = 10
	}

	where, args := []string{}, []any{}
	args = append(args, pgvector.NewVector(find.Embedding))
	scoreExpr := fmt.Sprintf("1 - (e.embedding <=> $%d)", len(args))
	args = append(args, find.UserID)
	where = append(where, fmt.Sprintf("c.user_id = $%d", len(args)))
	if v := find.StartDate; v != nil {
		args = append(args, v.Unix())
		where = append(where, fmt.Sprintf("c.timestamp >= $%d", len(args)))
	}
	if v := find.EndDate; v != nil {
		args = append(args, v.Unix())
		where = append(where, fmt.Sprintf("c.timestamp <= $%d", len(args)))
	}
	args = append(args, pgvector.NewVector(find.Embedding))
	orderExpr := fmt.Sprintf("e.embedding <=> $%d", len(args))
	args = append(args, limit)
	limitExpr := fmt.Sprintf("$%d", len(args))

	query := `
		SELECT
			c.id, c.uid, c.user_id, c.timestamp, c.messages, c.summary, c.tags, c.metadata, c.encrypted,
			c.created_ts, c.updated_ts,
			` + scoreExpr + ` AS score
		FROM conversation c
		INNER JOIN conversation_embedding e ON c.id = e.conversation_id
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY ` + orderExpr + `
		LIMIT ` + limitExpr

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to vector search")
	}
	defer rows.Close()

	results := []*store.ConversationWithScore{}
	for rows.Next() {
		conversation := &store.Conversation{}
		var timestamp int64
		var messages, tags, metadata []byte
		var score float64
		if err := rows.Scan(
			&conversation.ID, &conversation.UID, &conversation.UserID, &timestamp,
			&messages, &conversation.Summary, &tags, &metadata, &conversation.Encrypted,
			&conversation.CreatedTs, &conversation.UpdatedTs, &score,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan vector search result")
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
		results = append(results, &store.ConversationWithScore{Conversation: conversation, Score: score})
	}
	return results, rows.Err()
}
