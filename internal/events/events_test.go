package events_test

import (
	"context"
	"errors"
	"testing"

	"github.com/phrazzld/topicgen/internal/events"
	"github.com/phrazzld/topicgen/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitterFansOutAndReturnsFirstError(t *testing.T) {
	t.Parallel()

	log, _ := logger.NewTestLogger()
	first := errors.New("first")
	second := errors.New("second")

	var calls []string
	emitter := events.NewInMemoryEventEmitter(log,
		events.HandlerFunc(func(ctx context.Context, e *events.Event) error {
			calls = append(calls, "a")
			return first
		}),
		events.HandlerFunc(func(ctx context.Context, e *events.Event) error {
			calls = append(calls, "b")
			return second
		}),
	)
	emitter.RegisterHandler(events.HandlerFunc(func(ctx context.Context, e *events.Event) error {
		calls = append(calls, "c")
		return nil
	}))

	err := emitter.EmitEvent(context.Background(), events.New(events.TypeWorkerStarted, "corr"))
	assert.ErrorIs(t, err, first)
	assert.Equal(t, []string{"a", "b", "c"}, calls)
}

func TestEmitterWithoutHandlers(t *testing.T) {
	t.Parallel()

	log, _ := logger.NewTestLogger()
	emitter := events.NewInMemoryEventEmitter(log)
	assert.NoError(t, emitter.EmitEvent(context.Background(), events.New(events.TypeWorkerStarted, "corr")))
}

func TestLogHandler(t *testing.T) {
	t.Parallel()

	log, buf := logger.NewTestLogger()
	h := events.NewLogHandler(log)

	ev := events.New(events.TypeScanRelayFailed, "run-7").
		WithTopic("t-1").
		WithMessage("relay publish failed").
		With("last_id", "abc")
	require.NoError(t, h.HandleEvent(context.Background(), ev))
	require.NoError(t, h.HandleEvent(context.Background(), events.New(events.TypeWorkerCompleted, "run-7")))

	entries, err := buf.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "ERROR", entries[0]["level"])
	assert.Equal(t, "relay publish failed", entries[0]["msg"])
	assert.Equal(t, "scan.relay.failed", entries[0]["event_type"])
	assert.Equal(t, "run-7", entries[0]["correlation_id"])
	assert.Equal(t, "t-1", entries[0]["topic_id"])
	assert.Equal(t, "abc", entries[0]["last_id"])
	assert.Equal(t, true, entries[0]["critical"])

	assert.Equal(t, "INFO", entries[1]["level"])
	assert.Equal(t, "worker.completed", entries[1]["msg"])
}

func TestTypeClassification(t *testing.T) {
	t.Parallel()

	assert.True(t, events.TypeWorkerFailed.Failure())
	assert.True(t, events.TypeScanDispatchFailed.Failure())
	assert.False(t, events.TypeWorkerCompleted.Failure())
	assert.True(t, events.TypeScanRelayFailed.Critical())
	assert.False(t, events.TypeWorkerFailed.Critical())
}
