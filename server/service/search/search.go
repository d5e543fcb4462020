// Package search finds conversations by keywords, with optional semantic
// retrieval when an embedding provider and a vector-capable store are
// configured.
package search

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/recallhq/recall/plugin/ai"
	"github.com/recallhq/recall/store"
)

const (
	defaultLimit = 20

	// Recency decays linearly; conversations older than this keep a floor
	// score of 0.1.
	recencyWindowDays = 365
)

// Query describes one search request.
type Query struct {
	UserID    string     `json:"user_id"`
	Keywords  []string   `json:"keywords,omitempty"`
	Topics    []string   `json:"topics,omitempty"`
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`
	Limit     int        `json:"limit,omitempty"`
	Offset    int        `json:"offset,omitempty"`
	Semantic  bool       `json:"semantic_search,omitempty"`
}

// Highlight is a matched span with its surrounding context.
type Highlight struct {
	Field         string `json:"field"`
	MatchedText   string `json:"matched_text"`
	ContextBefore string `json:"context_before,omitempty"`
	ContextAfter  string `json:"context_after,omitempty"`
}

// Result is one search hit. MessageID is empty for summary-level hits.
type Result struct {
	ConversationID string      `json:"conversation_id"`
	MessageID      string      `json:"message_id,omitempty"`
	Score          float64     `json:"relevance_score"`
	Timestamp      time.Time   `json:"timestamp"`
	Snippet        string      `json:"content_snippet"`
	Highlights     []Highlight `json:"highlights,omitempty"`
	Topics         []string    `json:"topics,omitempty"`
	Source         string      `json:"source,omitempty"`

	keywordScore  float64
	semanticScore float64
	dualMatch     bool
}

// Service executes searches against the conversation store.
type Service struct {
	store    *store.Store
	provider *ai.Provider
}

// NewService creates a search service. provider may be nil, which disables
// semantic retrieval.
func NewService(st *store.Store, provider *ai.Provider) *Service {
	return &Service{store: st, provider: provider}
}

// SearchConversations runs a keyword search, optionally blended with semantic
// retrieval. A failing semantic path degrades to keyword-only results.
func (s *Service) SearchConversations(ctx context.Context, query *Query) ([]*Result, error) {
	if query.Limit <= 0 {
		query.Limit = defaultLimit
	}

	conversations, err := s.store.ListConversations(ctx, &store.FindConversation{
		UserID:    &query.UserID,
		StartDate: query.StartDate,
		EndDate:   query.EndDate,
		Tags:      query.Topics,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list conversations")
	}
	if len(conversations) == 0 {
		return []*Result{}, nil
	}

	keywords := cleanKeywords(query.Keywords)
	if len(keywords) == 0 {
		return paginate(basicResults(conversations), query.Offset, query.Limit), nil
	}

	var results []*Result
	for _, conversation := range conversations {
		results = append(results, searchInConversation(conversation, keywords)...)
	}

	if query.Semantic && s.semanticAvailable() {
		semantic, err := s.SemanticSearch(ctx, query.UserID, strings.Join(keywords, " "), query.Limit*2)
		if err != nil {
			slog.Warn("semantic search failed, keyword results only", "error", err)
		} else {
			results = combineResults(results, semantic)
		}
	}

	rankResults(results)
	return paginate(results, query.Offset, query.Limit), nil
}

// SemanticSearch embeds the query text and ranks conversations by vector
// similarity.
func (s *Service) SemanticSearch(ctx context.Context, userID, queryText string, limit int) ([]*Result, error) {
	if !s.semanticAvailable() {
		return nil, errors.New("semantic search is not configured")
	}
	if limit <= 0 {
		limit = defaultLimit
	}

	embedding, err := s.provider.Embedding(ctx, queryText)
	if err != nil {
		return nil, errors.Wrap(err, "failed to embed query")
	}
	scored, err := s.store.SearchConversationsByVector(ctx, &store.FindConversationEmbedding{
		UserID:    userID,
		Embedding: embedding,
		Limit:     limit,
	})
	if err != nil {
		return nil, errors.Wrap(err, "vector search failed")
	}

	results := make([]*Result, 0, len(scored))
	for _, hit := range scored {
		results = append(results, &Result{
			ConversationID: hit.Conversation.ID,
			Score:          hit.Score,
			Timestamp:      hit.Conversation.Timestamp,
			Snippet:        truncateText(conversationText(hit.Conversation), snippetMaxChars),
			Topics:         hit.Conversation.Tags,
			Source:         "semantic",
			semanticScore:  hit.Score,
		})
	}
	return results, nil
}

// SimilarConversations finds conversations close to the given one.
func (s *Service) SimilarConversations(ctx context.Context, userID, conversationID string, limit int) ([]*Result, error) {
	if limit <= 0 {
		limit = 5
	}
	conversation, err := s.store.GetConversation(ctx, &store.FindConversation{ID: &conversationID, UserID: &userID})
	if err != nil {
		return nil, errors.Wrap(err, "failed to load conversation")
	}
	if conversation == nil {
		return nil, errors.Errorf("conversation %s not found", conversationID)
	}

	// Fetch one extra so the conversation itself can be dropped.
	results, err := s.SemanticSearch(ctx, userID, conversationText(conversation), limit+1)
	if err != nil {
		return nil, err
	}
	filtered := make([]*Result, 0, limit)
	for _, result := range results {
		if result.ConversationID == conversationID {
			continue
		}
		filtered = append(filtered, result)
		if len(filtered) == limit {
			break
		}
	}
	return filtered, nil
}

// IndexConversation stores an embedding for the conversation. It is a no-op
// when semantic search is not configured.
func (s *Service) IndexConversation(ctx context.Context, conversation *store.Conversation) error {
	if !s.semanticAvailable() {
		return nil
	}
	embedding, err := s.provider.Embedding(ctx, conversationText(conversation))
	if err != nil {
		return errors.Wrap(err, "failed to embed conversation")
	}
	return s.store.UpsertConversationEmbedding(ctx, &store.ConversationEmbedding{
		ConversationID: conversation.ID,
		UserID:         conversation.UserID,
		Embedding:      embedding,
		Model:          s.provider.Model(),
		CreatedTs:      time.Now().Unix(),
	})
}

func (s *Service) semanticAvailable() bool {
	return s.provider != nil && s.store.Profile().IsSemanticSearchEnabled()
}

func cleanKeywords(keywords []string) []string {
	cleaned := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw != "" {
			cleaned = append(cleaned, kw)
		}
	}
	return cleaned
}

// conversationText flattens a conversation into one searchable string.
func conversationText(conversation *store.Conversation) string {
	var b strings.Builder
	if conversation.Summary != "" {
		b.WriteString(conversation.Summary)
		b.WriteString("\n")
	}
	for _, m := range conversation.Messages {
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}

// basicResults covers filter-only queries: every conversation matches with a
// neutral score, newest first.
func basicResults(conversations []*store.Conversation) []*Result {
	var results []*Result
	for _, conversation := range conversations {
		if len(conversation.Messages) == 0 {
			continue
		}
		first := conversation.Messages[0]
		results = append(results, &Result{
			ConversationID: conversation.ID,
			MessageID:      first.ID,
			Score:          0.5,
			Timestamp:      conversation.Timestamp,
			Snippet:        truncateText(first.Content, snippetMaxChars),
			Topics:         conversation.Tags,
			Source:         "filter",
		})
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].Timestamp.After(results[j].Timestamp)
	})
	return results
}

// searchInConversation scores the summary and each message separately.
// Summary hits get a modest boost since summaries condense the whole
// conversation.
func searchInConversation(conversation *store.Conversation, keywords []string) []*Result {
	var results []*Result

	if conversation.Summary != "" {
		if score := relevanceScore(conversation.Summary, keywords); score > 0 {
			boosted := score * 1.2
			if boosted > 1 {
				boosted = 1
			}
			results = append(results, &Result{
				ConversationID: conversation.ID,
				Score:          boosted,
				Timestamp:      conversation.Timestamp,
				Snippet:        truncateText(conversation.Summary, snippetMaxChars),
				Highlights:     findHighlights(conversation.Summary, "summary", keywords),
				Topics:         conversation.Tags,
				Source:         "summary",
				keywordScore:   boosted,
			})
		}
	}

	for _, message := range conversation.Messages {
		score := relevanceScore(message.Content, keywords)
		if score <= 0 {
			continue
		}
		results = append(results, &Result{
			ConversationID: conversation.ID,
			MessageID:      message.ID,
			Score:          score,
			Timestamp:      message.Timestamp,
			Snippet:        truncateText(message.Content, snippetMaxChars),
			Highlights:     findHighlights(message.Content, "content", keywords),
			Topics:         conversation.Tags,
			Source:         "message",
			keywordScore:   score,
		})
	}
	return results
}

// combineResults merges keyword and semantic hits, deduplicating by
// conversation and message. A hit found by both paths scores higher than
// either alone.
func combineResults(keyword, semantic []*Result) []*Result {
	type key struct{ conversationID, messageID string }
	combined := map[key]*Result{}
	var order []key

	for _, result := range keyword {
		k := key{result.ConversationID, result.MessageID}
		if _, ok := combined[k]; !ok {
			combined[k] = result
			order = append(order, k)
		}
	}
	for _, result := range semantic {
		k := key{result.ConversationID, result.MessageID}
		existing, ok := combined[k]
		if !ok {
			combined[k] = result
			order = append(order, k)
			continue
		}
		existing.semanticScore = result.semanticScore
		existing.dualMatch = true
		score := existing.keywordScore*0.6 + result.semanticScore*0.4
		score *= 1.2
		if score > 1 {
			score = 1
		}
		existing.Score = score
		existing.Source = "hybrid"
	}

	merged := make([]*Result, 0, len(order))
	for _, k := range order {
		merged = append(merged, combined[k])
	}
	return merged
}

// rankResults blends relevance with recency and sorts best first.
func rankResults(results []*Result) {
	now := time.Now().UTC()
	for _, result := range results {
		ageDays := now.Sub(result.Timestamp).Hours() / 24
		recency := 1 - ageDays/recencyWindowDays
		if recency < 0.1 {
			recency = 0.1
		}
		score := result.Score*0.7 + recency*0.3
		if score > 1 {
			score = 1
		}
		result.Score = score
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
}

func paginate(results []*Result, offset, limit int) []*Result {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(results) {
		return []*Result{}
	}
	end := offset + limit
	if end > len(results) {
		end = len(results)
	}
	return results[offset:end]
}
