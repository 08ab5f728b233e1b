// Package redis fans pipeline events out over Redis pub/sub.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/phrazzld/topicgen/internal/events"
)

// DefaultChannel is used when no channel is configured.
const DefaultChannel = "topicgen.events"

// ErrNoAddress is returned when the handler is constructed without an address.
var ErrNoAddress = errors.New("redis address is required")

// publisher is the subset of the go-redis client used by the handler.
type publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *goredis.IntCmd
}

// EventHandler publishes each event as JSON on a Redis channel.
type EventHandler struct {
	client  publisher
	closer  func() error
	channel string
	logger  *slog.Logger
}

// NewEventHandler connects to Redis and verifies the connection with a ping.
func NewEventHandler(ctx context.Context, addr, channel string, logger *slog.Logger) (*EventHandler, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, ErrNoAddress
	}
	if logger == nil {
		logger = slog.Default()
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	h := newEventHandler(rdb, channel, logger)
	h.closer = rdb.Close
	logger.Info("redis event fan-out enabled",
		slog.String("addr", addr),
		slog.String("channel", h.channel))
	return h, nil
}

func newEventHandler(client publisher, channel string, logger *slog.Logger) *EventHandler {
	channel = strings.TrimSpace(channel)
	if channel == "" {
		channel = DefaultChannel
	}
	return &EventHandler{
		client:  client,
		channel: channel,
		logger:  logger.With(slog.String("component", "redis_event_handler")),
	}
}

// HandleEvent implements events.EventHandler.
func (h *EventHandler) HandleEvent(ctx context.Context, event *events.Event) error {
	if event == nil {
		return nil
	}
	raw, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	if err := h.client.Publish(ctx, h.channel, raw).Err(); err != nil {
		h.logger.WarnContext(ctx, "failed to publish event",
			slog.String("event_type", string(event.Type)),
			slog.String("error", err.Error()))
		return fmt.Errorf("redis publish failed: %w", err)
	}
	return nil
}

// Channel returns the channel events are published on.
func (h *EventHandler) Channel() string {
	return h.channel
}

// Close releases the underlying connection.
func (h *EventHandler) Close() error {
	if h.closer == nil {
		return nil
	}
	return h.closer()
}
