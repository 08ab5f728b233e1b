package task

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/topicgen/internal/queue"
)

// Headers set on local deliveries.
const (
	headerSignature = "Upstash-Signature"
	headerRetried   = "Upstash-Retried"
	headerMessageID = "Upstash-Message-Id"
)

// SignFunc signs a delivery body for a destination URL.
type SignFunc func(body []byte, url string) (string, error)

// DeliveryTask POSTs a queue message to its destination, retrying non-2xx
// responses and transport errors with exponential backoff and jitter.
type DeliveryTask struct {
	id        uuid.UUID
	msg       queue.Message
	client    *http.Client
	sign      SignFunc
	retries   int
	baseDelay time.Duration
	logger    *slog.Logger
}

var _ Task = (*DeliveryTask)(nil)

// ID implements Task.
func (t *DeliveryTask) ID() uuid.UUID { return t.id }

// Type implements Task.
func (t *DeliveryTask) Type() string { return TaskTypeDelivery }

// Execute implements Task.
func (t *DeliveryTask) Execute(ctx context.Context) error {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	var lastErr error
	for attempt := 0; attempt <= t.retries; attempt++ {
		if attempt > 0 {
			backoff := float64(t.baseDelay) * math.Pow(2, float64(attempt-1))
			delay := time.Duration(backoff * (0.5 + rng.Float64()*0.5))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return fmt.Errorf("delivery %s abandoned: %w", t.id, ctx.Err())
			}
		}

		lastErr = t.deliver(ctx, attempt)
		if lastErr == nil {
			t.logger.Debug("delivery succeeded",
				"task_id", t.id,
				"attempt", attempt+1)
			return nil
		}
		t.logger.Warn("delivery attempt failed",
			"task_id", t.id,
			"attempt", attempt+1,
			"max_attempts", t.retries+1,
			"error", lastErr)
	}
	return fmt.Errorf("delivery %s failed after %d attempts: %w", t.id, t.retries+1, lastErr)
}

func (t *DeliveryTask) deliver(ctx context.Context, attempt int) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.msg.URL, bytes.NewReader(t.msg.Body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerRetried, strconv.Itoa(attempt))
	req.Header.Set(headerMessageID, t.id.String())

	if t.sign != nil {
		sig, err := t.sign(t.msg.Body, t.msg.URL)
		if err != nil {
			return err
		}
		req.Header.Set(headerSignature, sig)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("destination responded %d", resp.StatusCode)
	}
	return nil
}
