package task

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// Common errors returned by the task runner
var (
	ErrQueueClosed = errors.New("task queue is closed")
	ErrQueueFull   = errors.New("task queue is full")
)

// TaskTypeDelivery is the task type for HTTP job deliveries.
const TaskTypeDelivery = "http_delivery"

// Task represents a unit of background work to be processed
type Task interface {
	// ID returns the task's unique identifier
	ID() uuid.UUID

	// Type returns the task type identifier
	Type() string

	// Execute runs the task logic
	Execute(ctx context.Context) error
}
