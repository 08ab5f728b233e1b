package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Difficulty is one of three ordinal tiers.
type Difficulty string

// Difficulty tiers in ascending order.
const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Difficulties lists the tiers in ascending order.
var Difficulties = []Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard}

// Level returns the ordinal level (1-3), or 0 for an unknown tier.
func (d Difficulty) Level() int {
	switch d {
	case DifficultyEasy:
		return 1
	case DifficultyMedium:
		return 2
	case DifficultyHard:
		return 3
	default:
		return 0
	}
}

// Valid reports whether d is one of the three tiers.
func (d Difficulty) Valid() bool {
	return d.Level() > 0
}

// Option is one labeled answer choice.
type Option struct {
	Label string `json:"label"`
	Text  string `json:"text"`
}

// QuestionMetadata records provenance of a generated question.
type QuestionMetadata struct {
	Model         string         `json:"model"`
	Action        string         `json:"action"`
	CorrelationID string         `json:"correlation_id,omitempty"`
	Mode          GenerationMode `json:"mode,omitempty"`
}

// ActionScheduledGeneration tags questions produced by the scan pipeline.
const ActionScheduledGeneration = "scheduled_generation"

// Question is a single generated multiple-choice item. It is immutable once
// persisted.
type Question struct {
	ID           uuid.UUID        `json:"id"`
	TopicID      uuid.UUID        `json:"topic_id"`
	Body         string           `json:"body"`
	Options      []Option         `json:"options"`
	CorrectLabel string           `json:"correct_label"`
	Explanation  string           `json:"explanation,omitempty"`
	Difficulty   Difficulty       `json:"difficulty"`
	Language     string           `json:"language"`
	Metadata     QuestionMetadata `json:"metadata"`
	CreatedAt    time.Time        `json:"created_at"`
}

// NewQuestion builds and validates a question for topicID.
func NewQuestion(
	topicID uuid.UUID,
	body string,
	options []Option,
	correctLabel string,
	difficulty Difficulty,
	language string,
	meta QuestionMetadata,
) (*Question, error) {
	q := &Question{
		ID:           uuid.New(),
		TopicID:      topicID,
		Body:         strings.TrimSpace(body),
		Options:      options,
		CorrectLabel: strings.ToUpper(strings.TrimSpace(correctLabel)),
		Difficulty:   difficulty,
		Language:     language,
		Metadata:     meta,
		CreatedAt:    time.Now().UTC(),
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}
	return q, nil
}

// Validate checks that the question is answerable.
func (q *Question) Validate() error {
	if q.ID == uuid.Nil {
		return NewValidationError("id", "cannot be empty", ErrInvalidID)
	}
	if q.TopicID == uuid.Nil {
		return NewValidationError("topic_id", "cannot be empty", ErrInvalidID)
	}
	if q.Body == "" {
		return NewValidationError("body", "cannot be empty", ErrEmptyContent)
	}
	if !q.Difficulty.Valid() {
		return NewValidationError("difficulty", "must be easy, medium or hard", ErrInvalidDifficulty)
	}
	if len(q.Options) < 2 {
		return NewValidationError("options", "need at least two choices", ErrInvalidOptions)
	}

	seen := make(map[string]struct{}, len(q.Options))
	for _, o := range q.Options {
		label := strings.ToUpper(strings.TrimSpace(o.Label))
		if label == "" || strings.TrimSpace(o.Text) == "" {
			return NewValidationError("options", "label and text are required", ErrInvalidOptions)
		}
		if _, dup := seen[label]; dup {
			return NewValidationError("options", "duplicate label "+label, ErrInvalidOptions)
		}
		seen[label] = struct{}{}
	}
	if _, ok := seen[q.CorrectLabel]; !ok {
		return NewValidationError("correct_label", "does not match any option", ErrInvalidOptions)
	}
	return nil
}
