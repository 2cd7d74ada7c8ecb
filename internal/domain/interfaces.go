package domain

import (
	"context"
	"time"
)

// Document is a single corpus entry before chunking.
type Document struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Chunk is a bounded slice of a document plus its embedding and provenance.
// Chunks belong to an index snapshot and are never mutated after creation.
type Chunk struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Source    string    `json:"source"`
	Embedding []float64 `json:"embedding"`
}

// UnsafeIntent is a curated phrase that requires a refusal instead of an answer.
type UnsafeIntent struct {
	Text      string    `json:"text"`
	Embedding []float64 `json:"embedding"`
}

// SearchResult represents a matching chunk with its cosine similarity score.
type SearchResult struct {
	ID     string  `json:"id"`
	Text   string  `json:"text"`
	Source string  `json:"source"`
	Score  float64 `json:"score"`
}

// SafetyVerdict is the classifier output. Reasons keep evaluation order:
// keyword categories first, then at most one semantic reason.
type SafetyVerdict struct {
	IsUnsafe bool     `json:"isUnsafe"`
	Reasons  []string `json:"unsafeReasons"`
}

// Role of a chat message sent to the completion service.
type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
)

// Message is one entry of a completion request.
type Message struct {
	Role    Role
	Content string
}

// Feedback is the user's rating of an answer.
type Feedback string

const (
	FeedbackNone Feedback = ""
	FeedbackUp   Feedback = "up"
	FeedbackDown Feedback = "down"
)

// Interaction is the record emitted after each answered query.
type Interaction struct {
	ID            string    `json:"id"`
	Query         string    `json:"query"`
	Answer        string    `json:"answer"`
	Sources       []string  `json:"sources"`
	IsUnsafe      bool      `json:"isUnsafe"`
	UnsafeReasons []string  `json:"unsafeReasons"`
	Feedback      Feedback  `json:"feedback,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// Embedder converts free text into a numeric vector representation.
type Embedder interface {
	Name() string
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Completer produces a chat completion for an ordered list of messages.
type Completer interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}
