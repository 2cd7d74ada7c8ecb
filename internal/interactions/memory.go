package interactions

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"saferag/internal/domain"
)

// MemoryStore keeps interactions for the lifetime of the process.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]domain.Interaction
	newID   func() string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]domain.Interaction), newID: uuid.NewString}
}

func (m *MemoryStore) Save(_ context.Context, rec *domain.Interaction) (string, error) {
	id := m.newID()
	cp := *rec
	cp.ID = id
	cp.Sources = append([]string(nil), rec.Sources...)
	cp.UnsafeReasons = append([]string(nil), rec.UnsafeReasons...)

	m.mu.Lock()
	m.records[id] = cp
	m.mu.Unlock()
	return id, nil
}

func (m *MemoryStore) SetFeedback(_ context.Context, id string, fb domain.Feedback) error {
	if fb != domain.FeedbackUp && fb != domain.FeedbackDown {
		return ErrInvalidFeedback
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return ErrNotFound
	}
	rec.Feedback = fb
	m.records[id] = rec
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*domain.Interaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}
