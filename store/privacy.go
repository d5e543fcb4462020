package store

import "time"

// PrivacyMode controls how much conversational data the system retains.
type PrivacyMode string

const (
	PrivacyModeFullMemory    PrivacyMode = "full_memory"
	PrivacyModeLimitedMemory PrivacyMode = "limited_memory"
	PrivacyModeNoMemory      PrivacyMode = "no_memory"
)

// RetentionPolicy controls how long conversational data is retained.
type RetentionPolicy string

const (
	RetentionSessionOnly RetentionPolicy = "session_only"
	Retention30Days      RetentionPolicy = "30_days"
	Retention90Days      RetentionPolicy = "90_days"
	Retention365Days     RetentionPolicy = "365_days"
	RetentionIndefinite  RetentionPolicy = "indefinite"
)

// RetentionDays returns the retention window in days. Zero means data only
// lives for the session; -1 means keep forever.
func (p RetentionPolicy) RetentionDays() int {
	switch p {
	case RetentionSessionOnly:
		return 0
	case Retention30Days:
		return 30
	case Retention90Days:
		return 90
	case Retention365Days:
		return 365
	case RetentionIndefinite:
		return -1
	default:
		return 90
	}
}

// DeleteScope selects what a user-initiated deletion covers.
type DeleteScope string

const (
	DeleteScopeAll                   DeleteScope = "all_data"
	DeleteScopeConversations         DeleteScope = "conversations"
	DeleteScopePreferences           DeleteScope = "preferences"
	DeleteScopeSearchHistory         DeleteScope = "search_history"
	DeleteScopeSpecificConversations DeleteScope = "specific_conversations"
	DeleteScopeDateRange             DeleteScope = "date_range"
)

// PrivacySettings is the per-user privacy configuration.
type PrivacySettings struct {
	UserID                  string          `json:"user_id"`
	PrivacyMode             PrivacyMode     `json:"privacy_mode"`
	RetentionPolicy         RetentionPolicy `json:"data_retention_policy"`
	AllowPreferenceLearning bool            `json:"allow_preference_learning"`
	AllowSearchIndexing     bool            `json:"allow_search_indexing"`
	EncryptSensitiveData    bool            `json:"encrypt_sensitive_data"`
	ShareAnalytics          bool            `json:"share_analytics"`
	UpdatedAt               time.Time       `json:"last_updated"`
}

// DefaultPrivacySettings returns the defaults applied to users who never
// changed their privacy configuration.
func DefaultPrivacySettings(userID string) *PrivacySettings {
	return &PrivacySettings{
		UserID:                  userID,
		PrivacyMode:             PrivacyModeFullMemory,
		RetentionPolicy:         Retention90Days,
		AllowPreferenceLearning: true,
		AllowSearchIndexing:     true,
		EncryptSensitiveData:    true,
		ShareAnalytics:          false,
		UpdatedAt:               time.Now().UTC(),
	}
}

// IsMemoryEnabled reports whether any conversation memory may be retained.
func (s *PrivacySettings) IsMemoryEnabled() bool {
	return s.PrivacyMode != PrivacyModeNoMemory
}

// AllowsLongTermStorage reports whether data may outlive the session.
func (s *PrivacySettings) AllowsLongTermStorage() bool {
	return s.RetentionPolicy != RetentionSessionOnly
}

// DeleteOptions describes a user-initiated deletion request. Deletion never
// proceeds unless ConfirmDeletion is set.
type DeleteOptions struct {
	Scope           DeleteScope `json:"scope"`
	ConversationIDs []string    `json:"conversation_ids,omitempty"`
	StartDate       *time.Time  `json:"date_range_start,omitempty"`
	EndDate         *time.Time  `json:"date_range_end,omitempty"`
	ConfirmDeletion bool        `json:"confirm_deletion"`
	Reason          string      `json:"reason,omitempty"`
}

// ExportMetadata carries aggregate statistics about an export.
type ExportMetadata struct {
	TotalConversations int        `json:"total_conversations"`
	TotalMessages      int        `json:"total_messages"`
	DateRangeStart     *time.Time `json:"date_range_start,omitempty"`
	DateRangeEnd       *time.Time `json:"date_range_end,omitempty"`
	UniqueTags         []string   `json:"unique_tags,omitempty"`
	HasPreferences     bool       `json:"has_preferences"`
}

// UserDataExport is the complete portable snapshot of a user's data.
type UserDataExport struct {
	UserID          string           `json:"user_id"`
	ExportTimestamp time.Time        `json:"export_timestamp"`
	Conversations   []*Conversation  `json:"conversations"`
	Preferences     *UserPreferences `json:"preferences,omitempty"`
	PrivacySettings *PrivacySettings `json:"privacy_settings,omitempty"`
	Metadata        ExportMetadata   `json:"metadata"`
}

// FindPrivacySettings specifies the conditions for finding privacy settings.
type FindPrivacySettings struct {
	UserID *string
}
