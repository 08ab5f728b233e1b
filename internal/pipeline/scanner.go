package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/phrazzld/topicgen/internal/domain"
	"github.com/phrazzld/topicgen/internal/events"
	"github.com/phrazzld/topicgen/internal/platform/logger"
	"github.com/phrazzld/topicgen/internal/platform/tracing"
	"github.com/phrazzld/topicgen/internal/queue"
	"github.com/phrazzld/topicgen/internal/redact"
	"github.com/phrazzld/topicgen/internal/store"
)

// Job endpoints. Scanner relays and worker dispatches are addressed to these
// paths under the configured public base URL.
const (
	ScannerPath = "/jobs/mass-report-scanner"
	WorkerPath  = "/jobs/generate-topic-questions"
)

// Query parameters carried by relay messages.
const (
	QueryLastID        = "lastId"
	QueryCorrelationID = "correlationId"
)

// Scanner defaults.
const (
	DefaultPageSize            = 1000
	DefaultRelayDelay          = 2 * time.Second
	DefaultQuestionsPerJob     = 10
	DefaultDispatchConcurrency = 16
)

// ScannerConfig tunes the batch scanner.
type ScannerConfig struct {
	PageSize            int
	RelayDelay          time.Duration
	QuestionsPerJob     int
	DispatchConcurrency int
	// PublicBaseURL is the origin the queue delivers jobs to.
	PublicBaseURL string
	// Retries is passed through to the queue; negative uses its default.
	Retries int
}

// ScanRequest identifies one page of a scan run.
type ScanRequest struct {
	// LastID is the cursor; nil starts a new run from the beginning.
	LastID        *uuid.UUID
	CorrelationID string
}

// ParseScanRequest reads the cursor and correlation ID from a query string.
// A missing correlation ID starts a new run with a fresh one.
func ParseScanRequest(query url.Values) (ScanRequest, error) {
	var req ScanRequest
	if raw := strings.TrimSpace(query.Get(QueryLastID)); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return ScanRequest{}, fmt.Errorf("%w: invalid %s %q", ErrBadRequest, QueryLastID, raw)
		}
		req.LastID = &id
	}
	req.CorrelationID = strings.TrimSpace(query.Get(QueryCorrelationID))
	if req.CorrelationID == "" {
		req.CorrelationID = uuid.NewString()
	}
	return req, nil
}

// DispatchOutcome records the publish result for one topic.
type DispatchOutcome struct {
	TopicID   uuid.UUID
	MessageID string
	Err       error
}

// BatchResult summarizes one scanned page.
type BatchResult struct {
	CorrelationID string
	Processed     int
	// NextCursor is the last ID of the page, or nil when the page was empty.
	NextCursor   *uuid.UUID
	HasMore      bool
	Dispatched   int
	Failed       int
	Outcomes     []DispatchOutcome
	BatchStartID *uuid.UUID
	BatchEndID   *uuid.UUID
	// RelayMessageID is set when a continuation was published.
	RelayMessageID string
	// RelayErr is set when the continuation could not be published. The
	// batch itself still succeeded.
	RelayErr       error
	ProcessingTime time.Duration
}

// Scanner pages through eligible topics and dispatches one worker job each.
type Scanner struct {
	topics    store.TopicStore
	publisher queue.Publisher
	emitter   events.EventEmitter
	cfg       ScannerConfig
	logger    *slog.Logger
	now       func() time.Time
}

// NewScanner creates a Scanner, filling unset tuning values with defaults.
func NewScanner(
	topics store.TopicStore,
	publisher queue.Publisher,
	emitter events.EventEmitter,
	cfg ScannerConfig,
	logger *slog.Logger,
) (*Scanner, error) {
	if topics == nil {
		return nil, domain.NewValidationError("topics", "cannot be nil", domain.ErrValidation)
	}
	if publisher == nil {
		return nil, domain.NewValidationError("publisher", "cannot be nil", domain.ErrValidation)
	}
	if emitter == nil {
		return nil, domain.NewValidationError("emitter", "cannot be nil", domain.ErrValidation)
	}
	base, err := url.Parse(cfg.PublicBaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, domain.NewValidationError("publicBaseURL", "must be an absolute URL", domain.ErrValidation)
	}
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.RelayDelay < 0 {
		cfg.RelayDelay = DefaultRelayDelay
	}
	if cfg.QuestionsPerJob <= 0 {
		cfg.QuestionsPerJob = DefaultQuestionsPerJob
	}
	if cfg.DispatchConcurrency <= 0 {
		cfg.DispatchConcurrency = DefaultDispatchConcurrency
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{
		topics:    topics,
		publisher: publisher,
		emitter:   emitter,
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "scanner")),
		now:       time.Now,
	}, nil
}

// Config returns the effective tuning values.
func (s *Scanner) Config() ScannerConfig {
	return s.cfg
}

// ScanBatch processes one page. Individual dispatch failures are recorded in
// the result and never abort the page; only a failure to read the page is
// returned as an error.
func (s *Scanner) ScanBatch(ctx context.Context, req ScanRequest) (BatchResult, error) {
	start := s.now()
	if strings.TrimSpace(req.CorrelationID) == "" {
		req.CorrelationID = uuid.NewString()
	}

	ctx, span := tracing.StartSpan(ctx, "pipeline.scanner.scan_batch",
		attribute.String("correlation.id", req.CorrelationID),
		attribute.Bool("scan.first_page", req.LastID == nil))
	defer span.End()

	log := logger.FromContextOrDefault(ctx, s.logger).With(slog.String("correlation_id", req.CorrelationID))
	ctx = logger.WithLogger(ctx, log)

	result := BatchResult{CorrelationID: req.CorrelationID}

	startEvent := events.New(events.TypeScanBatchStarted, req.CorrelationID).With("pageSize", s.cfg.PageSize)
	if req.LastID != nil {
		startEvent.With(QueryLastID, req.LastID.String())
	}
	s.emit(ctx, startEvent)

	refs, err := s.topics.ListEligibleAfter(ctx, req.LastID, s.cfg.PageSize)
	if err != nil {
		err = fmt.Errorf("%w: list eligible topics: %w", ErrPersistenceFailure, err)
		tracing.RecordError(span, err)
		return result, err
	}

	result.Processed = len(refs)
	if len(refs) == 0 {
		result.ProcessingTime = s.now().Sub(start)
		log.InfoContext(ctx, "scan run complete, no eligible topics after cursor")
		s.emit(ctx, events.New(events.TypeScanBatchCompleted, req.CorrelationID).
			WithMessage("scan complete").
			With("processed", 0).
			With("hasMore", false))
		return result, nil
	}

	first, last := refs[0].ID, refs[len(refs)-1].ID
	result.BatchStartID = &first
	result.BatchEndID = &last
	result.NextCursor = &last
	result.HasMore = len(refs) == s.cfg.PageSize

	result.Outcomes = s.dispatch(ctx, refs, req.CorrelationID)
	for _, o := range result.Outcomes {
		if o.Err != nil {
			result.Failed++
		} else {
			result.Dispatched++
		}
	}

	if result.HasMore {
		msgID, err := s.relay(ctx, last, req.CorrelationID)
		if err != nil {
			result.RelayErr = err
			tracing.RecordError(span, err)
			log.ErrorContext(ctx, "CRITICAL: failed to publish scanner relay, scan run stalled",
				slog.String("last_id", last.String()),
				slog.String("error", redact.Error(err)))
			s.emit(ctx, events.New(events.TypeScanRelayFailed, req.CorrelationID).
				WithMessage(redact.Error(err)).
				With(QueryLastID, last.String()))
		} else {
			result.RelayMessageID = msgID
		}
	}

	result.ProcessingTime = s.now().Sub(start)
	span.SetAttributes(
		attribute.Int("scan.processed", result.Processed),
		attribute.Int("scan.dispatched", result.Dispatched),
		attribute.Int("scan.failed", result.Failed),
		attribute.Bool("scan.has_more", result.HasMore))

	log.InfoContext(ctx, "scan batch processed",
		slog.Int("processed", result.Processed),
		slog.Int("dispatched", result.Dispatched),
		slog.Int("failed", result.Failed),
		slog.Bool("has_more", result.HasMore),
		slog.String("batch_start_id", first.String()),
		slog.String("batch_end_id", last.String()),
		slog.Duration("processing_time", result.ProcessingTime))

	s.emit(ctx, events.New(events.TypeScanBatchCompleted, req.CorrelationID).
		With("processed", result.Processed).
		With("dispatched", result.Dispatched).
		With("failed", result.Failed).
		With("hasMore", result.HasMore).
		With("batchStartId", first.String()).
		With("batchEndId", last.String()))
	return result, nil
}

// dispatch publishes one envelope per topic with bounded concurrency.
// Outcomes are returned in page order.
func (s *Scanner) dispatch(ctx context.Context, refs []store.TopicRef, correlationID string) []DispatchOutcome {
	outcomes := make([]DispatchOutcome, len(refs))
	destination := s.cfg.PublicBaseURL + WorkerPath

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(s.cfg.DispatchConcurrency)
	for i, ref := range refs {
		g.Go(func() error {
			outcome := DispatchOutcome{TopicID: ref.ID}
			outcome.MessageID, outcome.Err = s.publishEnvelope(ctx, destination, ref.ID, correlationID)
			if outcome.Err != nil {
				logger.FromContextOrDefault(ctx, s.logger).WarnContext(ctx, "failed to dispatch worker job",
					slog.String("topic_id", ref.ID.String()),
					slog.String("error", redact.Error(outcome.Err)))
				mu.Lock()
				s.emit(ctx, events.New(events.TypeScanDispatchFailed, correlationID).
					WithTopic(ref.ID.String()).
					WithMessage(redact.Error(outcome.Err)))
				mu.Unlock()
			}
			outcomes[i] = outcome
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func (s *Scanner) publishEnvelope(ctx context.Context, destination string, topicID uuid.UUID, correlationID string) (string, error) {
	body, err := NewEnvelope(topicID, correlationID, s.cfg.QuestionsPerJob).Marshal()
	if err != nil {
		return "", fmt.Errorf("%w: encode envelope: %w", ErrDispatchFailure, err)
	}
	msgID, err := s.publisher.Publish(ctx, queue.Message{
		URL:             destination,
		Body:            body,
		Retries:         s.cfg.Retries,
		DeduplicationID: correlationID + "-" + topicID.String(),
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrDispatchFailure, err)
	}
	return msgID, nil
}

// RelayURL builds the continuation URL for the page ending at lastID.
func (s *Scanner) RelayURL(lastID uuid.UUID, correlationID string) string {
	q := url.Values{}
	q.Set(QueryLastID, lastID.String())
	q.Set(QueryCorrelationID, correlationID)
	return s.cfg.PublicBaseURL + ScannerPath + "?" + q.Encode()
}

func (s *Scanner) relay(ctx context.Context, lastID uuid.UUID, correlationID string) (string, error) {
	msgID, err := s.publisher.Publish(ctx, queue.Message{
		URL:             s.RelayURL(lastID, correlationID),
		Delay:           s.cfg.RelayDelay,
		Retries:         s.cfg.Retries,
		DeduplicationID: correlationID + "-relay-" + lastID.String(),
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrRelayFailure, err)
	}
	return msgID, nil
}

func (s *Scanner) emit(ctx context.Context, ev *events.Event) {
	_ = s.emitter.EmitEvent(ctx, ev)
}
