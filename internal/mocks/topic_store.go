package mocks

import (
	"context"
	"database/sql"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/topicgen/internal/domain"
	"github.com/phrazzld/topicgen/internal/store"
)

// ListCall records the arguments of one ListEligibleAfter call.
type ListCall struct {
	After *uuid.UUID
	Limit int
}

// MockTopicStore is an in-memory store.TopicStore. Consumption follows
// domain.Topic.ApplyConsumption under a single mutex, mirroring the row lock
// of the SQL implementation.
type MockTopicStore struct {
	GetErr     error
	ListErr    error
	ConsumeErr error

	mu        sync.Mutex
	topics    map[uuid.UUID]*domain.Topic
	listCalls []ListCall
}

var _ store.TopicStore = (*MockTopicStore)(nil)

// NewMockTopicStore creates a store seeded with copies of topics.
func NewMockTopicStore(topics ...*domain.Topic) *MockTopicStore {
	m := &MockTopicStore{topics: make(map[uuid.UUID]*domain.Topic, len(topics))}
	for _, t := range topics {
		m.Put(t)
	}
	return m
}

// Put inserts or replaces a copy of t.
func (m *MockTopicStore) Put(t *domain.Topic) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.topics[t.ID] = &cp
}

// Topic returns a copy of the stored topic, or nil.
func (m *MockTopicStore) Topic(id uuid.UUID) *domain.Topic {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.topics[id]
	if !ok {
		return nil
	}
	cp := *t
	return &cp
}

// ListCalls returns the recorded ListEligibleAfter calls.
func (m *MockTopicStore) ListCalls() []ListCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ListCall, len(m.listCalls))
	copy(out, m.listCalls)
	return out
}

// GetByID implements store.TopicStore.
func (m *MockTopicStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Topic, error) {
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	if t := m.Topic(id); t != nil {
		return t, nil
	}
	return nil, store.ErrTopicNotFound
}

// ListEligibleAfter implements store.TopicStore. IDs are ordered by their
// canonical string form, which matches Postgres uuid ordering.
func (m *MockTopicStore) ListEligibleAfter(ctx context.Context, after *uuid.UUID, limit int) ([]store.TopicRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var call ListCall
	if after != nil {
		id := *after
		call.After = &id
	}
	call.Limit = limit
	m.listCalls = append(m.listCalls, call)

	if m.ListErr != nil {
		return nil, m.ListErr
	}

	refs := make([]store.TopicRef, 0, len(m.topics))
	for _, t := range m.topics {
		if !t.EligibleForGeneration {
			continue
		}
		if after != nil && t.ID.String() <= after.String() {
			continue
		}
		refs = append(refs, store.TopicRef{ID: t.ID, Capacity: t.Capacity, Consumed: t.Consumed})
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].ID.String() < refs[j].ID.String() })
	if len(refs) > limit {
		refs = refs[:limit]
	}
	return refs, nil
}

// ConsumeCapacity implements store.TopicStore.
func (m *MockTopicStore) ConsumeCapacity(ctx context.Context, id uuid.UUID, units int) (store.ConsumeResult, error) {
	if m.ConsumeErr != nil {
		return store.ConsumeResult{}, m.ConsumeErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.topics[id]
	if !ok {
		return store.ConsumeResult{}, store.ErrTopicNotFound
	}
	granted := t.ApplyConsumption(units)
	return store.ConsumeResult{Granted: granted, Stats: t.Stats()}, nil
}

// WithTx implements store.TopicStore. The mock ignores transactions.
func (m *MockTopicStore) WithTx(*sql.Tx) store.TopicStore {
	return m
}
