package store

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/recallhq/recall/internal/cryptor"
	"github.com/recallhq/recall/internal/profile"
	"github.com/recallhq/recall/store/cache"
)

// Store provides database access to all raw objects.
type Store struct {
	profile *profile.Profile
	driver  Driver
	cryptor *cryptor.Cryptor

	// Caches.
	userPreferencesCache *cache.Cache // userID -> *UserPreferences
	privacySettingsCache *cache.Cache // userID -> *PrivacySettings
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	cacheConfig := cache.Config{
		DefaultTTL:      10 * time.Minute,
		CleanupInterval: time.Minute,
		MaxItems:        10000,
	}

	store := &Store{
		driver:               driver,
		profile:              profile,
		userPreferencesCache: cache.New(cacheConfig),
		privacySettingsCache: cache.New(cacheConfig),
	}
	if profile.EncryptionKey != "" {
		c, err := cryptor.New(profile.EncryptionKey)
		if err == nil {
			store.cryptor = c
		}
	}
	return store
}

func (s *Store) Profile() *profile.Profile {
	return s.profile
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

func (s *Store) IsInitialized(ctx context.Context) (bool, error) {
	return s.driver.IsInitialized(ctx)
}

func (s *Store) Migrate(ctx context.Context) error {
	return s.driver.Migrate(ctx)
}

// Close closes the database connection and stops the caches.
func (s *Store) Close() error {
	s.userPreferencesCache.Close()
	s.privacySettingsCache.Close()
	return s.driver.Close()
}

// CreateConversation stores a conversation, encrypting message content when
// the user's privacy settings require it.
func (s *Store) CreateConversation(ctx context.Context, create *Conversation) (*Conversation, error) {
	settings, err := s.GetPrivacySettings(ctx, &FindPrivacySettings{UserID: &create.UserID})
	if err != nil {
		return nil, errors.Wrap(err, "failed to load privacy settings")
	}
	if !settings.IsMemoryEnabled() {
		return nil, errors.Errorf("conversation storage is disabled for user %s", create.UserID)
	}
	if settings.EncryptSensitiveData && s.cryptor != nil {
		if err := s.encryptConversation(create); err != nil {
			return nil, errors.Wrap(err, "failed to encrypt conversation")
		}
	}
	conversation, err := s.driver.CreateConversation(ctx, create)
	if err != nil {
		return nil, err
	}
	if err := s.decryptConversation(conversation); err != nil {
		return nil, err
	}
	return conversation, nil
}

// GetConversation returns the single conversation matching find, or nil.
func (s *Store) GetConversation(ctx context.Context, find *FindConversation) (*Conversation, error) {
	list, err := s.ListConversations(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

func (s *Store) ListConversations(ctx context.Context, find *FindConversation) ([]*Conversation, error) {
	list, err := s.driver.ListConversations(ctx, find)
	if err != nil {
		return nil, err
	}
	for _, conversation := range list {
		if err := s.decryptConversation(conversation); err != nil {
			return nil, err
		}
	}
	return list, nil
}

func (s *Store) UpdateConversation(ctx context.Context, update *UpdateConversation) (*Conversation, error) {
	existing, err := s.GetConversation(ctx, &FindConversation{ID: &update.ID})
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, errors.Errorf("conversation %s not found", update.ID)
	}
	if existing.Encrypted && s.cryptor != nil && update.Messages != nil {
		encrypted := make([]Message, len(update.Messages))
		copy(encrypted, update.Messages)
		for i := range encrypted {
			token, err := s.cryptor.Encrypt(encrypted[i].Content)
			if err != nil {
				return nil, errors.Wrap(err, "failed to encrypt message")
			}
			encrypted[i].Content = token
		}
		update.Messages = encrypted
	}
	conversation, err := s.driver.UpdateConversation(ctx, update)
	if err != nil {
		return nil, err
	}
	if err := s.decryptConversation(conversation); err != nil {
		return nil, err
	}
	return conversation, nil
}

func (s *Store) DeleteConversation(ctx context.Context, delete *DeleteConversation) error {
	return s.driver.DeleteConversation(ctx, delete)
}

// DeleteConversationsByUser removes a user's conversations, optionally bounded
// by a created-time range, and returns the number deleted.
func (s *Store) DeleteConversationsByUser(ctx context.Context, userID string, start, end *time.Time) (int, error) {
	var startTs, endTs *int64
	if start != nil {
		ts := start.Unix()
		startTs = &ts
	}
	if end != nil {
		ts := end.Unix()
		endTs = &ts
	}
	return s.driver.DeleteConversationsByUser(ctx, userID, startTs, endTs)
}

// GetUserPreferences returns the preference profile for a user, falling back
// to defaults when none is stored.
func (s *Store) GetUserPreferences(ctx context.Context, find *FindUserPreferences) (*UserPreferences, error) {
	if find.UserID != nil {
		if cached, ok := s.userPreferencesCache.Get(ctx, *find.UserID); ok {
			return cached.(*UserPreferences), nil
		}
	}
	preferences, err := s.driver.GetUserPreferences(ctx, find)
	if err != nil {
		return nil, err
	}
	if preferences == nil {
		if find.UserID == nil {
			return nil, errors.New("user id is required")
		}
		preferences = DefaultUserPreferences(*find.UserID)
	}
	s.userPreferencesCache.Set(ctx, preferences.UserID, preferences)
	return preferences, nil
}

func (s *Store) UpsertUserPreferences(ctx context.Context, upsert *UserPreferences) (*UserPreferences, error) {
	upsert.LastUpdated = time.Now().UTC()
	preferences, err := s.driver.UpsertUserPreferences(ctx, upsert)
	if err != nil {
		return nil, err
	}
	s.userPreferencesCache.Set(ctx, preferences.UserID, preferences)
	return preferences, nil
}

func (s *Store) DeleteUserPreferences(ctx context.Context, userID string) error {
	if err := s.driver.DeleteUserPreferences(ctx, userID); err != nil {
		return err
	}
	s.userPreferencesCache.Delete(ctx, userID)
	return nil
}

// GetPrivacySettings returns the privacy settings for a user, falling back to
// defaults when none are stored.
func (s *Store) GetPrivacySettings(ctx context.Context, find *FindPrivacySettings) (*PrivacySettings, error) {
	if find.UserID != nil {
		if cached, ok := s.privacySettingsCache.Get(ctx, *find.UserID); ok {
			return cached.(*PrivacySettings), nil
		}
	}
	settings, err := s.driver.GetPrivacySettings(ctx, find)
	if err != nil {
		return nil, err
	}
	if settings == nil {
		if find.UserID == nil {
			return nil, errors.New("user id is required")
		}
		settings = DefaultPrivacySettings(*find.UserID)
	}
	s.privacySettingsCache.Set(ctx, settings.UserID, settings)
	return settings, nil
}

func (s *Store) UpsertPrivacySettings(ctx context.Context, upsert *PrivacySettings) (*PrivacySettings, error) {
	upsert.UpdatedAt = time.Now().UTC()
	settings, err := s.driver.UpsertPrivacySettings(ctx, upsert)
	if err != nil {
		return nil, err
	}
	s.privacySettingsCache.Set(ctx, settings.UserID, settings)
	return settings, nil
}

func (s *Store) DeletePrivacySettings(ctx context.Context, userID string) error {
	if err := s.driver.DeletePrivacySettings(ctx, userID); err != nil {
		return err
	}
	s.privacySettingsCache.Delete(ctx, userID)
	return nil
}

func (s *Store) ListUserIDs(ctx context.Context) ([]string, error) {
	return s.driver.ListUserIDs(ctx)
}

func (s *Store) UpsertConversationEmbedding(ctx context.Context, upsert *ConversationEmbedding) error {
	return s.driver.UpsertConversationEmbedding(ctx, upsert)
}

func (s *Store) SearchConversationsByVector(ctx context.Context, find *FindConversationEmbedding) ([]*ConversationWithScore, error) {
	results, err := s.driver.SearchConversationsByVector(ctx, find)
	if err != nil {
		return nil, err
	}
	for _, result := range results {
		if err := s.decryptConversation(result.Conversation); err != nil {
			return nil, err
		}
	}
	return results, nil
}

func (s *Store) encryptConversation(conversation *Conversation) error {
	for i := range conversation.Messages {
		token, err := s.cryptor.Encrypt(conversation.Messages[i].Content)
		if err != nil {
			return err
		}
		conversation.Messages[i].Content = token
	}
	if conversation.Summary != "" {
		token, err := s.cryptor.Encrypt(conversation.Summary)
		if err != nil {
			return err
		}
		conversation.Summary = token
	}
	conversation.Encrypted = true
	return nil
}

func (s *Store) decryptConversation(conversation *Conversation) error {
	if conversation == nil || !conversation.Encrypted {
		return nil
	}
	if s.cryptor == nil {
		return errors.New("conversation is encrypted but no encryption key is configured")
	}
	for i := range conversation.Messages {
		plain, err := s.cryptor.Decrypt(conversation.Messages[i].Content)
		if err != nil {
			return errors.Wrap(err, "failed to decrypt message")
		}
		conversation.Messages[i].Content = plain
	}
	if conversation.Summary != "" {
		plain, err := s.cryptor.Decrypt(conversation.Summary)
		if err != nil {
			return errors.Wrap(err, "failed to decrypt summary")
		}
		conversation.Summary = plain
	}
	conversation.Encrypted = false
	return nil
}
