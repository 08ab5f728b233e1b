package mocks

import (
	"context"
	"database/sql"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/topicgen/internal/domain"
	"github.com/phrazzld/topicgen/internal/store"
)

// MockQuestionStore is an in-memory store.QuestionStore.
type MockQuestionStore struct {
	CreateErr error

	mu        sync.Mutex
	questions []*domain.Question
}

var _ store.QuestionStore = (*MockQuestionStore)(nil)

// CreateMultiple implements store.QuestionStore.
func (m *MockQuestionStore) CreateMultiple(ctx context.Context, questions []*domain.Question) error {
	if m.CreateErr != nil {
		return m.CreateErr
	}
	for _, q := range questions {
		if err := q.Validate(); err != nil {
			return store.ErrInvalidEntity
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.questions = append(m.questions, questions...)
	return nil
}

// CountByTopic implements store.QuestionStore.
func (m *MockQuestionStore) CountByTopic(ctx context.Context, topicID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, q := range m.questions {
		if q.TopicID == topicID {
			n++
		}
	}
	return n, nil
}

// Questions returns every saved question.
func (m *MockQuestionStore) Questions() []*domain.Question {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.Question, len(m.questions))
	copy(out, m.questions)
	return out
}

// WithTx implements store.QuestionStore. The mock ignores transactions.
func (m *MockQuestionStore) WithTx(*sql.Tx) store.QuestionStore {
	return m
}
