package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/phrazzld/topicgen/internal/domain"
)

// TopicRef is the slice of a topic the scanner needs to dispatch a job.
type TopicRef struct {
	ID       uuid.UUID
	Capacity int
	Consumed int
}

// ConsumeResult reports a capacity consumption applied at commit time.
type ConsumeResult struct {
	// Granted is how many of the requested units fit under capacity.
	Granted int
	Stats   domain.LedgerStats
}

// TopicStore defines the interface for topic persistence.
type TopicStore interface {
	// GetByID retrieves a topic by its unique ID.
	// Returns ErrTopicNotFound if the topic does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Topic, error)

	// ListEligibleAfter returns up to limit topics that are still eligible for
	// generation and whose ID is strictly greater than after, in ascending ID
	// order. A nil after starts from the beginning.
	ListEligibleAfter(ctx context.Context, after *uuid.UUID, limit int) ([]TopicRef, error)

	// ConsumeCapacity atomically grants min(units, capacity - consumed),
	// increments consumed and decrements remaining_to_generate by the grant,
	// and clears eligible_for_generation when remaining reaches zero.
	// It MUST run inside the same transaction as the question inserts.
	// Returns ErrTopicNotFound if the topic does not exist.
	ConsumeCapacity(ctx context.Context, id uuid.UUID, units int) (ConsumeResult, error)

	// WithTx returns a new TopicStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) TopicStore
}

// QuestionStore defines the interface for generated question persistence.
type QuestionStore interface {
	// CreateMultiple saves questions in one statement batch.
	// IMPORTANT: run it within a transaction together with
	// TopicStore.ConsumeCapacity.
	CreateMultiple(ctx context.Context, questions []*domain.Question) error

	// CountByTopic returns how many questions exist for a topic.
	CountByTopic(ctx context.Context, topicID uuid.UUID) (int, error)

	// WithTx returns a new QuestionStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) QuestionStore
}

// SubjectStore resolves subject names for prompt context.
type SubjectStore interface {
	// GetByID returns ErrSubjectNotFound if the subject does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Subject, error)
}
