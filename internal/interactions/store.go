// Package interactions keeps a log of answered queries and the feedback
// users leave on them.
package interactions

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"saferag/internal/domain"
)

var (
	// ErrNotFound is returned for an unknown interaction id.
	ErrNotFound = errors.New("interaction not found")
	// ErrInvalidFeedback is returned for a rating other than up or down.
	ErrInvalidFeedback = errors.New("invalid feedback")
)

// Store persists interactions. Save assigns the id.
type Store interface {
	Save(ctx context.Context, rec *domain.Interaction) (string, error)
	SetFeedback(ctx context.Context, id string, fb domain.Feedback) error
	Get(ctx context.Context, id string) (*domain.Interaction, error)
}

// ParseFeedback accepts "up" or "down" in any case.
func ParseFeedback(s string) (domain.Feedback, error) {
	switch fb := domain.Feedback(strings.ToLower(strings.TrimSpace(s))); fb {
	case domain.FeedbackUp, domain.FeedbackDown:
		return fb, nil
	default:
		return domain.FeedbackNone, fmt.Errorf("%w: %q", ErrInvalidFeedback, s)
	}
}
