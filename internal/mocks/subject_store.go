package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/phrazzld/topicgen/internal/domain"
	"github.com/phrazzld/topicgen/internal/store"
)

// MockSubjectStore is a map-backed store.SubjectStore.
type MockSubjectStore struct {
	Subjects map[uuid.UUID]*domain.Subject
	Err      error
}

var _ store.SubjectStore = (*MockSubjectStore)(nil)

// GetByID implements store.SubjectStore.
func (m *MockSubjectStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Subject, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if s, ok := m.Subjects[id]; ok {
		return s, nil
	}
	return nil, store.ErrSubjectNotFound
}
