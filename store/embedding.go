package store

import "time"

// ConversationEmbedding is a vector representation of a conversation used for
// semantic search. Only the postgres driver can store and query embeddings.
type ConversationEmbedding struct {
	ConversationID string
	UserID         string
	Embedding      []float32
	Model          string
	CreatedTs      int64
}

// ConversationWithScore pairs a conversation with a relevance score in [0,1].
type ConversationWithScore struct {
	Conversation *Conversation
	Score        float64
}

// FindConversationEmbedding specifies the conditions for a vector search.
type FindConversationEmbedding struct {
	UserID    string
	Embedding []float32
	Limit     int
	StartDate *time.Time
	EndDate   *time.Time
}
