package generation

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/phrazzld/topicgen/internal/domain"
)

// Request describes one tier of questions to generate for a topic.
type Request struct {
	TopicID   uuid.UUID
	TopicName string
	// Subject is the subject name used for prompt context.
	Subject  string
	Language string
	Mode     domain.GenerationMode
	// Text is the source material in text mode.
	Text string
	// Document is the source material in document mode.
	Document      *domain.DocumentRef
	Difficulty    domain.Difficulty
	Count         int
	CorrelationID string
}

// Validate checks that the request carries what its mode needs.
func (r Request) Validate() error {
	if r.TopicID == uuid.Nil {
		return fmt.Errorf("%w: topic id is required", ErrInvalidRequest)
	}
	if r.Count <= 0 {
		return fmt.Errorf("%w: count must be positive", ErrInvalidRequest)
	}
	if !r.Difficulty.Valid() {
		return fmt.Errorf("%w: unknown difficulty %q", ErrInvalidRequest, r.Difficulty)
	}
	switch r.Mode {
	case domain.ModeDocument:
		if r.Document == nil {
			return fmt.Errorf("%w: document mode without a document", ErrInvalidRequest)
		}
		if err := r.Document.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
	case domain.ModeText:
		if strings.TrimSpace(r.Text) == "" {
			return fmt.Errorf("%w: text mode without source text", ErrInvalidRequest)
		}
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidRequest, r.Mode)
	}
	return nil
}

// Generator defines the interface for generating questions from topic
// material. It serves as a boundary between the application core and
// external AI/LLM services.
type Generator interface {
	// Generate returns up to req.Count questions at req.Difficulty. It may
	// return fewer than requested; it never returns more. Implementations
	// must stop promptly once ctx is done.
	Generate(ctx context.Context, req Request) ([]*domain.Question, error)

	// Model names the backing model, recorded in question metadata.
	Model() string
}

// DocumentSource loads the bytes of a document referenced by a topic.
type DocumentSource interface {
	// Fetch returns the document content and its MIME type.
	Fetch(ctx context.Context, key string) ([]byte, string, error)
}
