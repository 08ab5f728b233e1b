package api

import (
	"errors"
	"net/http"

	"github.com/phrazzld/topicgen/internal/pipeline"
)

// MapErrorToStatusCode maps pipeline errors to HTTP status codes. The queue
// redelivers on any non-2xx status, so only terminal failures map to 4xx.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, pipeline.ErrUnauthorized):
		return http.StatusUnauthorized

	case errors.Is(err, pipeline.ErrBadRequest):
		return http.StatusBadRequest

	case errors.Is(err, pipeline.ErrTopicNotFound):
		return http.StatusNotFound

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a client-facing message that never includes
// internal error details.
func GetSafeErrorMessage(err error) string {
	switch {
	case err == nil:
		return "An unexpected error occurred"
	case errors.Is(err, pipeline.ErrUnauthorized):
		return "Unauthorized"
	case errors.Is(err, pipeline.ErrBadRequest):
		return "Invalid request"
	case errors.Is(err, pipeline.ErrTopicNotFound):
		return "Topic not found"
	case errors.Is(err, pipeline.ErrGenerationTimeout):
		return "Question generation timed out"
	case errors.Is(err, pipeline.ErrGenerationFailed):
		return "Question generation failed"
	case errors.Is(err, pipeline.ErrPersistenceFailure):
		return "Failed to save generated questions"
	default:
		return "An unexpected error occurred"
	}
}
