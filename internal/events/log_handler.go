package events

import (
	"context"
	"log/slog"

	"github.com/phrazzld/topicgen/internal/platform/logger"
)

// LogHandler writes events as structured log records. Failures log at
// error level, everything else at info.
type LogHandler struct {
	logger *slog.Logger
}

var _ EventHandler = (*LogHandler)(nil)

// NewLogHandler creates a LogHandler.
func NewLogHandler(l *slog.Logger) *LogHandler {
	if l == nil {
		l = slog.Default()
	}
	return &LogHandler{logger: l.With("component", "events")}
}

// HandleEvent implements EventHandler.
func (h *LogHandler) HandleEvent(ctx context.Context, event *Event) error {
	log := logger.FromContextOrDefault(ctx, h.logger)

	attrs := []slog.Attr{
		slog.String("event_id", event.ID.String()),
		slog.String("event_type", string(event.Type)),
		slog.String("correlation_id", event.CorrelationID),
	}
	if event.TopicID != "" {
		attrs = append(attrs, slog.String("topic_id", event.TopicID))
	}
	if event.Type.Critical() {
		attrs = append(attrs, slog.Bool("critical", true))
	}
	for k, v := range event.Fields {
		attrs = append(attrs, slog.Any(k, v))
	}

	level := slog.LevelInfo
	if event.Type.Failure() {
		level = slog.LevelError
	}

	msg := event.Message
	if msg == "" {
		msg = string(event.Type)
	}
	log.LogAttrs(ctx, level, msg, attrs...)
	return nil
}
