package domain

import "github.com/google/uuid"

// FallbackSubjectName labels prompts whose subject cannot be resolved.
const FallbackSubjectName = "General"

// Subject groups topics; only its name is used, as prompt context.
type Subject struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}
