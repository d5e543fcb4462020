package privacy

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/recallhq/recall/store"
)

// ExportFormat selects the serialization of a data export.
type ExportFormat string

const (
	ExportFormatJSON ExportFormat = "json"
	ExportFormatCSV  ExportFormat = "csv"
)

// ExportAsJSON serializes a full user data export as indented JSON.
func ExportAsJSON(export *store.UserDataExport) ([]byte, error) {
	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal export")
	}
	return data, nil
}

// ExportConversationsCSV flattens conversations into one row per message.
func ExportConversationsCSV(conversations []*store.Conversation) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{"conversation_id", "timestamp", "message_id", "role", "content", "message_timestamp", "tags", "summary"}
	if err := w.Write(header); err != nil {
		return nil, errors.Wrap(err, "failed to write csv header")
	}
	for _, conversation := range conversations {
		tags := strings.Join(conversation.Tags, ";")
		for _, message := range conversation.Messages {
			row := []string{
				conversation.ID,
				conversation.Timestamp.UTC().Format(time.RFC3339),
				message.ID,
				string(message.Role),
				message.Content,
				message.Timestamp.UTC().Format(time.RFC3339),
				tags,
				conversation.Summary,
			}
			if err := w.Write(row); err != nil {
				return nil, errors.Wrap(err, "failed to write csv row")
			}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, errors.Wrap(err, "failed to flush csv")
	}
	return buf.Bytes(), nil
}

// ExportUserDataPackage assembles a multi-file export: the full JSON dump,
// a flat CSV of conversations, and a small summary manifest. Keys are file
// names, values are file contents.
func (c *Controller) ExportUserDataPackage(ctx context.Context, userID string) (map[string][]byte, error) {
	export, err := c.ExportUserData(ctx, userID)
	if err != nil {
		return nil, err
	}

	files := map[string][]byte{}

	jsonData, err := ExportAsJSON(export)
	if err != nil {
		return nil, err
	}
	files["user_data.json"] = jsonData

	csvData, err := ExportConversationsCSV(export.Conversations)
	if err != nil {
		return nil, err
	}
	files["conversations.csv"] = csvData

	summary := map[string]any{
		"user_id":             export.UserID,
		"export_timestamp":    export.ExportTimestamp.Format(time.RFC3339),
		"total_conversations": export.Metadata.TotalConversations,
		"total_messages":      export.Metadata.TotalMessages,
		"has_preferences":     export.Metadata.HasPreferences,
		"files":               []string{"user_data.json", "conversations.csv"},
		"total_size_bytes":    len(jsonData) + len(csvData),
	}
	summaryData, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal export summary")
	}
	files["export_summary.json"] = summaryData

	return files, nil
}
