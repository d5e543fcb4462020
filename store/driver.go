package store

import (
	"context"

	"github.com/pkg/errors"
)

// ErrVectorSearchUnsupported is returned by drivers that cannot execute
// vector similarity queries.
var ErrVectorSearchUnsupported = errors.New("vector search is not supported by this driver")

// Driver is an interface for store driver.
// It contains all methods that store database driver should implement.
type Driver interface {
	GetDB() interface{}
	Close() error

	IsInitialized(ctx context.Context) (bool, error)
	Migrate(ctx context.Context) error

	// Conversation model related methods.
	CreateConversation(ctx context.Context, create *Conversation) (*Conversation, error)
	ListConversations(ctx context.Context, find *FindConversation) ([]*Conversation, error)
	UpdateConversation(ctx context.Context, update *UpdateConversation) (*Conversation, error)
	DeleteConversation(ctx context.Context, delete *DeleteConversation) error
	DeleteConversationsByUser(ctx context.Context, userID string, start, end *int64) (int, error)

	// UserPreferences model related methods.
	UpsertUserPreferences(ctx context.Context, upsert *UserPreferences) (*UserPreferences, error)
	GetUserPreferences(ctx context.Context, find *FindUserPreferences) (*UserPreferences, error)
	DeleteUserPreferences(ctx context.Context, userID string) error

	// PrivacySettings model related methods.
	UpsertPrivacySettings(ctx context.Context, upsert *PrivacySettings) (*PrivacySettings, error)
	GetPrivacySettings(ctx context.Context, find *FindPrivacySettings) (*PrivacySettings, error)
	DeletePrivacySettings(ctx context.Context, userID string) error

	// ListUserIDs returns the distinct user IDs that have any stored data.
	ListUserIDs(ctx context.Context) ([]string, error)

	// ConversationEmbedding model related methods.
	UpsertConversationEmbedding(ctx context.Context, upsert *ConversationEmbedding) error
	SearchConversationsByVector(ctx context.Context, find *FindConversationEmbedding) ([]*ConversationWithScore, error)
}
