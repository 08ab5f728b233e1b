package mocks

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/topicgen/internal/domain"
	"github.com/phrazzld/topicgen/internal/service"
	"github.com/phrazzld/topicgen/internal/store"
)

// MockLedgerService implements service.LedgerService over the in-memory
// stores. Capacity is consumed first and only the granted prefix is saved,
// as in the transactional implementation. A failed insert restores the
// topic's previous counters.
type MockLedgerService struct {
	Topics    *MockTopicStore
	Questions *MockQuestionStore

	// SaveFn overrides the default behavior when set.
	SaveFn func(ctx context.Context, topicID uuid.UUID, questions []*domain.Question) (store.ConsumeResult, error)

	mu    sync.Mutex
	calls int
}

var _ service.LedgerService = (*MockLedgerService)(nil)

// NewMockLedgerService wires a ledger over the given stores.
func NewMockLedgerService(topics *MockTopicStore, questions *MockQuestionStore) *MockLedgerService {
	return &MockLedgerService{Topics: topics, Questions: questions}
}

// SaveGenerated implements service.LedgerService.
func (m *MockLedgerService) SaveGenerated(
	ctx context.Context,
	topicID uuid.UUID,
	questions []*domain.Question,
) (store.ConsumeResult, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.SaveFn != nil {
		return m.SaveFn(ctx, topicID, questions)
	}
	before := m.Topics.Topic(topicID)
	res, err := m.Topics.ConsumeCapacity(ctx, topicID, len(questions))
	if err != nil {
		return store.ConsumeResult{}, err
	}
	if err := m.Questions.CreateMultiple(ctx, questions[:res.Granted]); err != nil {
		// rollback
		m.Topics.Put(before)
		return store.ConsumeResult{}, err
	}
	return res, nil
}

// CallCount returns how many times SaveGenerated was called.
func (m *MockLedgerService) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
