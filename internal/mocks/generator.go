package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/phrazzld/topicgen/internal/domain"
	"github.com/phrazzld/topicgen/internal/generation"
)

// MockGenerator implements generation.Generator for testing.
// Without GenerateFn, Questions or Err it returns req.Count valid questions.
type MockGenerator struct {
	// GenerateFn overrides the default behavior when set.
	GenerateFn func(ctx context.Context, req generation.Request) ([]*domain.Question, error)

	Questions []*domain.Question
	Err       error
	ModelName string

	mu       sync.Mutex
	requests []generation.Request
}

var _ generation.Generator = (*MockGenerator)(nil)

// Generate implements generation.Generator.
func (m *MockGenerator) Generate(ctx context.Context, req generation.Request) ([]*domain.Question, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if m.GenerateFn != nil {
		return m.GenerateFn(ctx, req)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Questions != nil {
		return m.Questions, nil
	}
	return QuestionsFor(req, m.Model())
}

// Model implements generation.Generator.
func (m *MockGenerator) Model() string {
	if m.ModelName == "" {
		return "mock-model"
	}
	return m.ModelName
}

// Requests returns the requests received so far.
func (m *MockGenerator) Requests() []generation.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]generation.Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// CallCount returns how many times Generate was called.
func (m *MockGenerator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// QuestionsFor builds req.Count valid questions matching the request.
func QuestionsFor(req generation.Request, model string) ([]*domain.Question, error) {
	out := make([]*domain.Question, 0, req.Count)
	for i := range req.Count {
		q, err := domain.NewQuestion(
			req.TopicID,
			fmt.Sprintf("%s question %d about %s?", req.Difficulty, i+1, req.TopicName),
			[]domain.Option{
				{Label: "A", Text: "first"},
				{Label: "B", Text: "second"},
				{Label: "C", Text: "third"},
				{Label: "D", Text: "fourth"},
			},
			"A",
			req.Difficulty,
			req.Language,
			domain.QuestionMetadata{
				Model:         model,
				Action:        domain.ActionScheduledGeneration,
				CorrelationID: req.CorrelationID,
				Mode:          req.Mode,
			},
		)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, nil
}
