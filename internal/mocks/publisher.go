package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/phrazzld/topicgen/internal/queue"
)

// MockPublisher implements queue.Publisher and records accepted messages.
type MockPublisher struct {
	// PublishFn decides the outcome of each publish when set. Messages are
	// recorded only when it returns a nil error.
	PublishFn func(ctx context.Context, msg queue.Message) (string, error)
	Err       error

	mu       sync.Mutex
	messages []queue.Message
	attempts int
}

var _ queue.Publisher = (*MockPublisher)(nil)

// Publish implements queue.Publisher.
func (m *MockPublisher) Publish(ctx context.Context, msg queue.Message) (string, error) {
	m.mu.Lock()
	m.attempts++
	attempt := m.attempts
	m.mu.Unlock()

	id := fmt.Sprintf("msg-%d", attempt)
	var err error
	switch {
	case m.PublishFn != nil:
		id, err = m.PublishFn(ctx, msg)
	case m.Err != nil:
		err = m.Err
	}
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	m.messages = append(m.messages, msg)
	m.mu.Unlock()
	return id, nil
}

// Messages returns the accepted messages.
func (m *MockPublisher) Messages() []queue.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]queue.Message, len(m.messages))
	copy(out, m.messages)
	return out
}

// Attempts returns how many publishes were attempted.
func (m *MockPublisher) Attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}
