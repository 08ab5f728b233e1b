package qstash

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/phrazzld/topicgen/internal/config"
	"github.com/phrazzld/topicgen/internal/platform/logger"
	"github.com/phrazzld/topicgen/internal/queue"
)

// Request headers understood by the publish API.
const (
	headerDelay           = "Upstash-Delay"
	headerRetries         = "Upstash-Retries"
	headerDeduplicationID = "Upstash-Deduplication-Id"
)

const defaultPublishTimeout = 10 * time.Second

// ErrPublishFailed is returned when QStash does not accept a message.
var ErrPublishFailed = errors.New("qstash publish failed")

type publishResponse struct {
	MessageID    string `json:"messageId"`
	Deduplicated bool   `json:"deduplicated,omitempty"`
}

// Publisher implements queue.Publisher using the QStash publish API.
type Publisher struct {
	baseURL string
	token   string
	retries int
	client  *http.Client
	logger  *slog.Logger
}

var _ queue.Publisher = (*Publisher)(nil)

// NewPublisher creates a Publisher. If client is nil a client with a
// default timeout is used.
func NewPublisher(cfg config.QueueConfig, client *http.Client, logger *slog.Logger) (*Publisher, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, fmt.Errorf("%w: token is required", ErrPublishFailed)
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("%w: base URL is required", ErrPublishFailed)
	}
	if client == nil {
		client = &http.Client{Timeout: defaultPublishTimeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		retries: cfg.Retries,
		client:  client,
		logger:  logger.With(slog.String("component", "qstash_publisher")),
	}, nil
}

// Publish implements queue.Publisher.
func (p *Publisher) Publish(ctx context.Context, msg queue.Message) (string, error) {
	if err := msg.Validate(); err != nil {
		return "", err
	}
	log := logger.FromContextOrDefault(ctx, p.logger)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.baseURL+"/v2/publish/"+msg.URL, bytes.NewReader(msg.Body))
	if err != nil {
		return "", fmt.Errorf("%w: build request: %v", ErrPublishFailed, err)
	}

	req.Header.Set("Authorization", "Bearer "+p.token)
	req.Header.Set("Content-Type", "application/json")
	if msg.Delay > 0 {
		req.Header.Set(headerDelay, formatDelay(msg.Delay))
	}
	retries := p.retries
	if msg.Retries >= 0 {
		retries = msg.Retries
	}
	req.Header.Set(headerRetries, strconv.Itoa(retries))
	if msg.DeduplicationID != "" {
		req.Header.Set(headerDeduplicationID, msg.DeduplicationID)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPublishFailed, err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			log.Warn("failed to close publish response body", slog.String("error", cerr.Error()))
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("%w: status %d: %s",
			ErrPublishFailed, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var out publishResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrPublishFailed, err)
	}

	log.Debug("message published",
		slog.String("message_id", out.MessageID),
		slog.Bool("deduplicated", out.Deduplicated),
		slog.Duration("delay", msg.Delay))
	return out.MessageID, nil
}

// formatDelay renders a delay in whole seconds, rounding up.
func formatDelay(d time.Duration) string {
	secs := int64((d + time.Second - 1) / time.Second)
	return strconv.FormatInt(secs, 10) + "s"
}
