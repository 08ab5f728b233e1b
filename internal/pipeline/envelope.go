package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var validate = validator.New()

// Envelope is the job payload handed from the Scanner to the Worker.
type Envelope struct {
	TopicID             string `json:"topicId" validate:"required,uuid"`
	CorrelationID       string `json:"correlationId"`
	QuestionsToGenerate int    `json:"questionsToGenerate" validate:"required,gt=0"`
}

// NewEnvelope builds the envelope for one topic of a scan run.
func NewEnvelope(topicID uuid.UUID, correlationID string, questions int) Envelope {
	return Envelope{
		TopicID:             topicID.String(),
		CorrelationID:       correlationID,
		QuestionsToGenerate: questions,
	}
}

// Validate checks that the target topic and requested count are present.
func (e Envelope) Validate() error {
	if err := validate.Struct(e); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("%w: invalid envelope fields: %s", ErrBadRequest, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	return nil
}

// TopicUUID parses TopicID. Call Validate first.
func (e Envelope) TopicUUID() (uuid.UUID, error) {
	id, err := uuid.Parse(e.TopicID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: topicId: %v", ErrBadRequest, err)
	}
	return id, nil
}

// DecodeEnvelope parses and validates a JSON envelope. On a validation
// failure the decoded envelope is still returned so callers can report its
// correlation ID.
func DecodeEnvelope(body []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: invalid JSON: %v", ErrBadRequest, err)
	}
	if err := env.Validate(); err != nil {
		return env, err
	}
	return env, nil
}

// Marshal encodes the envelope for publishing.
func (e Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}
