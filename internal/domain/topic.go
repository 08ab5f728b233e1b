package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultLanguage is used when a topic carries no language tag.
const DefaultLanguage = "en"

// GenerationMode selects the kind of source material sent to the generator.
type GenerationMode string

// Generation modes.
const (
	ModeText     GenerationMode = "text"
	ModeDocument GenerationMode = "document"
)

// DocumentRef points at a page range of a stored document.
type DocumentRef struct {
	Key       string `json:"key"`
	StartPage int    `json:"start_page"`
	EndPage   int    `json:"end_page"`
}

// Validate checks that the reference names an object and a sane page range.
func (d DocumentRef) Validate() error {
	if strings.TrimSpace(d.Key) == "" {
		return NewValidationError("document.key", "cannot be empty", ErrValidation)
	}
	if d.StartPage < 1 {
		return NewValidationError("document.start_page", "must be at least 1", ErrValidation)
	}
	if d.EndPage < d.StartPage {
		return NewValidationError("document.end_page", "must not precede start_page", ErrValidation)
	}
	return nil
}

// Topic is a curriculum unit against which generated questions are budgeted.
type Topic struct {
	ID        uuid.UUID  `json:"id"`
	Name      string     `json:"name"`
	SubjectID *uuid.UUID `json:"subject_id,omitempty"`
	Language  string     `json:"language"`

	Capacity              int  `json:"capacity"`
	Consumed              int  `json:"consumed"`
	RemainingToGenerate   int  `json:"remaining_to_generate"`
	EligibleForGeneration bool `json:"eligible_for_generation"`

	SourceText    string       `json:"source_text,omitempty"`
	Summary       string       `json:"summary,omitempty"`
	Document      *DocumentRef `json:"document,omitempty"`
	ForceTextMode bool         `json:"force_text_mode"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Mode returns the generation mode for the topic. Document mode wins when a
// document reference is present and text mode is not forced.
func (t *Topic) Mode() GenerationMode {
	if t.Document != nil && !t.ForceTextMode {
		return ModeDocument
	}
	return ModeText
}

// TextSource returns the text used in text mode, preferring the AI summary
// over the raw source text.
func (t *Topic) TextSource() string {
	if s := strings.TrimSpace(t.Summary); s != "" {
		return s
	}
	return strings.TrimSpace(t.SourceText)
}

// LanguageOrDefault returns the topic language or DefaultLanguage.
func (t *Topic) LanguageOrDefault() string {
	if l := strings.TrimSpace(t.Language); l != "" {
		return l
	}
	return DefaultLanguage
}

// Validate checks identity, counters, and source material.
func (t *Topic) Validate() error {
	if t.ID == uuid.Nil {
		return NewValidationError("id", "cannot be empty", ErrInvalidID)
	}
	if err := CheckLedger(t.Capacity, t.Consumed, t.RemainingToGenerate); err != nil {
		return err
	}
	switch t.Mode() {
	case ModeDocument:
		return t.Document.Validate()
	default:
		if t.TextSource() == "" {
			return ErrNoSourceMaterial
		}
	}
	return nil
}
