package pipeline

import "errors"

// Sentinel errors returned by the pipeline handlers. Callers match them with
// errors.Is; api.MapErrorToStatusCode turns them into HTTP status codes.
var (
	// ErrUnauthorized indicates a missing or invalid webhook signature.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrBadRequest indicates a malformed envelope or query parameter.
	ErrBadRequest = errors.New("bad request")

	// ErrTopicNotFound indicates the envelope names a topic that does not exist.
	ErrTopicNotFound = errors.New("topic not found")

	// ErrGenerationTimeout indicates generation did not finish before the deadline.
	ErrGenerationTimeout = errors.New("generation timed out")

	// ErrGenerationFailed indicates a generator call returned an error.
	ErrGenerationFailed = errors.New("generation failed")

	// ErrPersistenceFailure indicates the ledger transaction failed.
	ErrPersistenceFailure = errors.New("persistence failure")

	// ErrDispatchFailure indicates a worker job could not be published.
	ErrDispatchFailure = errors.New("dispatch failure")

	// ErrRelayFailure indicates the scanner could not publish its continuation.
	ErrRelayFailure = errors.New("relay failure")
)
