package task

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/topicgen/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type funcTask struct {
	id uuid.UUID
	fn func(ctx context.Context) error
}

func newFuncTask(fn func(ctx context.Context) error) *funcTask {
	return &funcTask{id: uuid.New(), fn: fn}
}

func (t *funcTask) ID() uuid.UUID                     { return t.id }
func (t *funcTask) Type() string                      { return "test" }
func (t *funcTask) Execute(ctx context.Context) error { return t.fn(ctx) }

func TestTaskRunnerExecutesTasks(t *testing.T) {
	t.Parallel()

	log, _ := logger.NewTestLogger()
	r := NewTaskRunner(TaskRunnerConfig{WorkerCount: 3, QueueSize: 10}, log)
	r.Start()
	defer r.Stop()

	var wg sync.WaitGroup
	var ran atomic.Int32
	for i := 0; i < 5; i++ {
		wg.Add(1)
		require.NoError(t, r.Submit(newFuncTask(func(ctx context.Context) error {
			defer wg.Done()
			ran.Add(1)
			return nil
		})))
	}

	wg.Wait()
	assert.Equal(t, int32(5), ran.Load())
}

func TestTaskRunnerErrorHandler(t *testing.T) {
	t.Parallel()

	log, _ := logger.NewTestLogger()
	r := NewTaskRunner(TaskRunnerConfig{WorkerCount: 1, QueueSize: 1}, log)

	boom := errors.New("boom")
	got := make(chan error, 1)
	r.SetErrorHandler(func(task Task, err error) { got <- err })
	r.Start()
	defer r.Stop()

	require.NoError(t, r.Submit(newFuncTask(func(ctx context.Context) error { return boom })))

	select {
	case err := <-got:
		assert.ErrorIs(t, err, boom)
	case <-time.After(2 * time.Second):
		t.Fatal("error handler was not called")
	}
}

func TestTaskRunnerQueueFull(t *testing.T) {
	t.Parallel()

	log, _ := logger.NewTestLogger()
	r := NewTaskRunner(TaskRunnerConfig{WorkerCount: 1, QueueSize: 1}, log)

	noop := func(ctx context.Context) error { return nil }
	require.NoError(t, r.Submit(newFuncTask(noop)))
	assert.ErrorIs(t, r.Submit(newFuncTask(noop)), ErrQueueFull)
}

func TestTaskRunnerRejectsAfterStop(t *testing.T) {
	t.Parallel()

	log, _ := logger.NewTestLogger()
	r := NewTaskRunner(DefaultTaskRunnerConfig(), log)
	r.Start()
	r.Stop()
	r.Stop()

	assert.ErrorIs(t, r.Submit(newFuncTask(func(ctx context.Context) error { return nil })), ErrQueueClosed)
}

func TestTaskRunnerSubmitAfter(t *testing.T) {
	t.Parallel()

	log, _ := logger.NewTestLogger()
	r := NewTaskRunner(TaskRunnerConfig{WorkerCount: 1, QueueSize: 4}, log)
	r.Start()
	defer r.Stop()

	start := time.Now()
	done := make(chan time.Duration, 1)
	r.SubmitAfter(50*time.Millisecond, newFuncTask(func(ctx context.Context) error {
		done <- time.Since(start)
		return nil
	}))

	select {
	case elapsed := <-done:
		assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
	case <-time.After(2 * time.Second):
		t.Fatal("delayed task did not run")
	}
}

func TestTaskRunnerStopCancelsDelayedTasks(t *testing.T) {
	t.Parallel()

	log, _ := logger.NewTestLogger()
	r := NewTaskRunner(TaskRunnerConfig{WorkerCount: 1, QueueSize: 4}, log)
	r.Start()

	var ran atomic.Bool
	r.SubmitAfter(time.Hour, newFuncTask(func(ctx context.Context) error {
		ran.Store(true)
		return nil
	}))

	stopped := make(chan struct{})
	go func() {
		r.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop blocked on a delayed task")
	}
	assert.False(t, ran.Load())
}
