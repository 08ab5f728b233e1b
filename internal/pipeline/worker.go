package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/phrazzld/topicgen/internal/domain"
	"github.com/phrazzld/topicgen/internal/events"
	"github.com/phrazzld/topicgen/internal/generation"
	"github.com/phrazzld/topicgen/internal/platform/logger"
	"github.com/phrazzld/topicgen/internal/platform/tracing"
	"github.com/phrazzld/topicgen/internal/redact"
	"github.com/phrazzld/topicgen/internal/service"
	"github.com/phrazzld/topicgen/internal/store"
)

// DefaultGenerationTimeout bounds the parallel generator calls of one job.
const DefaultGenerationTimeout = 45 * time.Second

// WorkerConfig tunes the worker handler.
type WorkerConfig struct {
	GenerationTimeout time.Duration
}

// WorkerResult reports what one job produced.
type WorkerResult struct {
	TopicID       uuid.UUID
	CorrelationID string
	Requested     int
	// Planned is the request clamped to the remaining capacity.
	Planned int
	Tiers   domain.TierSplit
	// Generated is the number of questions saved.
	Generated int
	Stats     domain.LedgerStats
}

// Worker generates and saves questions for one topic per envelope.
type Worker struct {
	topics    store.TopicStore
	subjects  store.SubjectStore
	generator generation.Generator
	ledger    service.LedgerService
	emitter   events.EventEmitter
	cfg       WorkerConfig
	logger    *slog.Logger
}

// NewWorker creates a Worker. subjects may be nil, in which case every
// prompt uses the fallback subject name.
func NewWorker(
	topics store.TopicStore,
	subjects store.SubjectStore,
	generator generation.Generator,
	ledger service.LedgerService,
	emitter events.EventEmitter,
	cfg WorkerConfig,
	logger *slog.Logger,
) (*Worker, error) {
	if topics == nil {
		return nil, domain.NewValidationError("topics", "cannot be nil", domain.ErrValidation)
	}
	if generator == nil {
		return nil, domain.NewValidationError("generator", "cannot be nil", domain.ErrValidation)
	}
	if ledger == nil {
		return nil, domain.NewValidationError("ledger", "cannot be nil", domain.ErrValidation)
	}
	if emitter == nil {
		return nil, domain.NewValidationError("emitter", "cannot be nil", domain.ErrValidation)
	}
	if cfg.GenerationTimeout <= 0 {
		cfg.GenerationTimeout = DefaultGenerationTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		topics:    topics,
		subjects:  subjects,
		generator: generator,
		ledger:    ledger,
		emitter:   emitter,
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "worker")),
	}, nil
}

// GenerateForTopic runs one job. A topic without remaining capacity is a
// successful no-op, which makes redelivered jobs harmless.
func (w *Worker) GenerateForTopic(ctx context.Context, env Envelope) (WorkerResult, error) {
	if err := env.Validate(); err != nil {
		return WorkerResult{CorrelationID: env.CorrelationID}, err
	}
	topicID, err := env.TopicUUID()
	if err != nil {
		return WorkerResult{CorrelationID: env.CorrelationID}, err
	}
	if strings.TrimSpace(env.CorrelationID) == "" {
		env.CorrelationID = uuid.NewString()
	}

	ctx, span := tracing.StartSpan(ctx, "pipeline.worker.generate_for_topic",
		attribute.String("topic.id", env.TopicID),
		attribute.String("correlation.id", env.CorrelationID),
		attribute.Int("questions.requested", env.QuestionsToGenerate))
	defer span.End()

	log := logger.FromContextOrDefault(ctx, w.logger).With(
		slog.String("correlation_id", env.CorrelationID),
		slog.String("topic_id", env.TopicID))
	ctx = logger.WithLogger(ctx, log)

	result := WorkerResult{
		TopicID:       topicID,
		CorrelationID: env.CorrelationID,
		Requested:     env.QuestionsToGenerate,
	}

	w.emit(ctx, events.New(events.TypeWorkerStarted, env.CorrelationID).
		WithTopic(env.TopicID).
		With("questionsToGenerate", env.QuestionsToGenerate))

	topic, err := w.topics.GetByID(ctx, topicID)
	if err != nil {
		if store.IsNotFoundError(err) {
			w.emit(ctx, events.New(events.TypeWorkerFailed, env.CorrelationID).
				WithTopic(env.TopicID).
				WithMessage("topic not found").
				With("reason", "not_found"))
			err = fmt.Errorf("%w: %s", ErrTopicNotFound, env.TopicID)
		} else {
			w.emitFailure(ctx, env, nil, err)
			err = fmt.Errorf("%w: load topic: %w", ErrPersistenceFailure, err)
		}
		tracing.RecordError(span, err)
		return result, err
	}
	result.Stats = topic.Stats()

	remaining := domain.Remaining(topic.Capacity, topic.Consumed)
	if remaining <= 0 {
		log.InfoContext(ctx, "topic has no remaining capacity, nothing to generate",
			slog.Int("capacity", topic.Capacity),
			slog.Int("consumed", topic.Consumed))
		w.emit(ctx, events.New(events.TypeWorkerCompleted, env.CorrelationID).
			WithTopic(env.TopicID).
			WithMessage("capacity exhausted").
			With("generated", 0))
		return result, nil
	}

	result.Planned = domain.Clamp(env.QuestionsToGenerate, topic.Capacity, topic.Consumed)
	result.Tiers = domain.SplitTiers(result.Planned)
	span.SetAttributes(attribute.Int("questions.planned", result.Planned))

	subject := w.resolveSubject(ctx, topic)

	questions, err := w.generate(ctx, topic, subject, result.Tiers, env.CorrelationID)
	if err != nil {
		w.emitFailure(ctx, env, topic, err)
		tracing.RecordError(span, err)
		return result, err
	}

	if len(questions) == 0 {
		w.emit(ctx, events.New(events.TypeWorkerCompleted, env.CorrelationID).
			WithTopic(env.TopicID).
			WithMessage("generator returned no questions").
			With("generated", 0))
		return result, nil
	}

	saved, err := w.ledger.SaveGenerated(ctx, topic.ID, questions)
	if err != nil {
		w.emitFailure(ctx, env, topic, err)
		err = fmt.Errorf("%w: %w", ErrPersistenceFailure, err)
		tracing.RecordError(span, err)
		return result, err
	}

	result.Generated = saved.Granted
	result.Stats = saved.Stats
	span.SetAttributes(attribute.Int("questions.generated", saved.Granted))

	log.InfoContext(ctx, "generated questions for topic",
		slog.Int("requested", env.QuestionsToGenerate),
		slog.Int("planned", result.Planned),
		slog.Int("generated", saved.Granted),
		slog.Int("consumed", saved.Stats.Consumed),
		slog.Int("capacity", saved.Stats.Capacity))

	w.emit(ctx, events.New(events.TypeWorkerCompleted, env.CorrelationID).
		WithTopic(env.TopicID).
		With("generated", saved.Granted).
		With("consumed", saved.Stats.Consumed).
		With("capacity", saved.Stats.Capacity).
		With("remainingToGenerate", saved.Stats.RemainingToGenerate).
		With("eligibleForGeneration", saved.Stats.EligibleForGeneration))
	return result, nil
}

// generate calls the generator once per non-empty tier, in parallel, and
// races the calls against the generation deadline. On timeout the calls are
// cancelled and their output is discarded.
func (w *Worker) generate(
	ctx context.Context,
	topic *domain.Topic,
	subject string,
	split domain.TierSplit,
	correlationID string,
) ([]*domain.Question, error) {
	genCtx, cancel := context.WithTimeout(ctx, w.cfg.GenerationTimeout)
	defer cancel()

	tiers := []domain.Difficulty{domain.DifficultyEasy, domain.DifficultyMedium, domain.DifficultyHard}
	results := make([][]*domain.Question, len(tiers))

	g, gctx := errgroup.WithContext(genCtx)
	for i, difficulty := range tiers {
		count := split.Count(difficulty)
		if count == 0 {
			continue
		}
		req := w.buildRequest(topic, subject, difficulty, count, correlationID)
		g.Go(func() error {
			qs, err := w.generator.Generate(gctx, req)
			if err != nil {
				return fmt.Errorf("%s tier: %w", difficulty, err)
			}
			if len(qs) > count {
				qs = qs[:count]
			}
			results[i] = qs
			return nil
		})
	}

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	select {
	case err := <-done:
		if err != nil {
			if errors.Is(genCtx.Err(), context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w after %s: %w", ErrGenerationTimeout, w.cfg.GenerationTimeout, err)
			}
			return nil, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
		}
	case <-genCtx.Done():
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
		}
		return nil, fmt.Errorf("%w after %s: %w", ErrGenerationTimeout, w.cfg.GenerationTimeout, genCtx.Err())
	}

	questions := make([]*domain.Question, 0, split.Total())
	for _, qs := range results {
		questions = append(questions, qs...)
	}
	return questions, nil
}

func (w *Worker) buildRequest(
	topic *domain.Topic,
	subject string,
	difficulty domain.Difficulty,
	count int,
	correlationID string,
) generation.Request {
	req := generation.Request{
		TopicID:       topic.ID,
		TopicName:     topic.Name,
		Subject:       subject,
		Language:      topic.LanguageOrDefault(),
		Mode:          topic.Mode(),
		Difficulty:    difficulty,
		Count:         count,
		CorrelationID: correlationID,
	}
	if req.Mode == domain.ModeDocument {
		req.Document = topic.Document
	} else {
		req.Text = topic.TextSource()
	}
	return req
}

// resolveSubject returns the topic's subject name, or the fallback name when
// it cannot be loaded.
func (w *Worker) resolveSubject(ctx context.Context, topic *domain.Topic) string {
	if topic.SubjectID == nil || w.subjects == nil {
		return domain.FallbackSubjectName
	}
	subject, err := w.subjects.GetByID(ctx, *topic.SubjectID)
	if err != nil {
		logger.FromContextOrDefault(ctx, w.logger).WarnContext(ctx, "failed to resolve subject, using fallback",
			slog.String("subject_id", topic.SubjectID.String()),
			slog.String("error", err.Error()))
		return domain.FallbackSubjectName
	}
	if name := strings.TrimSpace(subject.Name); name != "" {
		return name
	}
	return domain.FallbackSubjectName
}

func (w *Worker) emitFailure(ctx context.Context, env Envelope, topic *domain.Topic, cause error) {
	ev := events.New(events.TypeWorkerFailed, env.CorrelationID).
		WithTopic(env.TopicID).
		WithMessage(redact.Error(cause))
	if topic != nil {
		ev.With("consumed", topic.Consumed).
			With("capacity", topic.Capacity).
			With("remainingToGenerate", topic.RemainingToGenerate)
	}
	w.emit(ctx, ev)
}

// emit never fails the job; handler errors are logged by the emitter.
func (w *Worker) emit(ctx context.Context, ev *events.Event) {
	_ = w.emitter.EmitEvent(ctx, ev)
}
