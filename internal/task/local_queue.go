package task

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/topicgen/internal/queue"
)

// DeduplicationWindow is how long a deduplication ID suppresses repeats.
const DeduplicationWindow = 10 * time.Minute

// LocalQueueConfig configures a LocalQueue.
type LocalQueueConfig struct {
	// Retries is the default redelivery count when a message does not set one.
	Retries int
	// RetryBaseDelay is the first backoff interval.
	RetryBaseDelay time.Duration
	// Sign, when set, signs every delivery.
	Sign SignFunc
}

// LocalQueue implements queue.Publisher by delivering messages from this
// process through a TaskRunner.
type LocalQueue struct {
	runner *TaskRunner
	client *http.Client
	config LocalQueueConfig
	logger *slog.Logger
	now    func() time.Time

	mu   sync.Mutex
	seen map[string]time.Time
}

var _ queue.Publisher = (*LocalQueue)(nil)

// NewLocalQueue creates a LocalQueue on top of a started runner.
func NewLocalQueue(runner *TaskRunner, client *http.Client, config LocalQueueConfig, logger *slog.Logger) *LocalQueue {
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Minute}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if config.RetryBaseDelay <= 0 {
		config.RetryBaseDelay = time.Second
	}
	return &LocalQueue{
		runner: runner,
		client: client,
		config: config,
		logger: logger.With("component", "local_queue"),
		now:    time.Now,
		seen:   make(map[string]time.Time),
	}
}

// Publish implements queue.Publisher.
func (q *LocalQueue) Publish(ctx context.Context, msg queue.Message) (string, error) {
	if err := msg.Validate(); err != nil {
		return "", err
	}

	if msg.DeduplicationID != "" && q.isDuplicate(msg.DeduplicationID) {
		q.logger.Debug("suppressed duplicate message", "deduplication_id", msg.DeduplicationID)
		return "", nil
	}

	retries := q.config.Retries
	if msg.Retries >= 0 {
		retries = msg.Retries
	}

	t := &DeliveryTask{
		id:        uuid.New(),
		msg:       msg,
		client:    q.client,
		sign:      q.config.Sign,
		retries:   retries,
		baseDelay: q.config.RetryBaseDelay,
		logger:    q.logger,
	}

	if msg.Delay > 0 {
		q.runner.SubmitAfter(msg.Delay, t)
	} else if err := q.runner.Submit(t); err != nil {
		q.forget(msg.DeduplicationID)
		return "", err
	}

	id := "local_" + t.id.String()
	q.logger.Debug("message queued",
		"message_id", id,
		"url", msg.URL,
		"delay", msg.Delay.String())
	return id, nil
}

// isDuplicate records id and reports whether it was seen inside the window.
func (q *LocalQueue) isDuplicate(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	for k, at := range q.seen {
		if now.Sub(at) > DeduplicationWindow {
			delete(q.seen, k)
		}
	}
	if _, ok := q.seen[id]; ok {
		return true
	}
	q.seen[id] = now
	return false
}

func (q *LocalQueue) forget(id string) {
	if id == "" {
		return
	}
	q.mu.Lock()
	delete(q.seen, id)
	q.mu.Unlock()
}
