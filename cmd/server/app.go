package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/phrazzld/topicgen/internal/api"
	"github.com/phrazzld/topicgen/internal/api/middleware"
	"github.com/phrazzld/topicgen/internal/config"
	"github.com/phrazzld/topicgen/internal/events"
	"github.com/phrazzld/topicgen/internal/generation"
	"github.com/phrazzld/topicgen/internal/pipeline"
	"github.com/phrazzld/topicgen/internal/platform/gcs"
	"github.com/phrazzld/topicgen/internal/platform/gemini"
	"github.com/phrazzld/topicgen/internal/platform/postgres"
	"github.com/phrazzld/topicgen/internal/platform/qstash"
	"github.com/phrazzld/topicgen/internal/platform/redis"
	"github.com/phrazzld/topicgen/internal/queue"
	"github.com/phrazzld/topicgen/internal/service"
	"github.com/phrazzld/topicgen/internal/task"
)

// localSignatureTTL bounds how long a locally signed delivery stays valid,
// covering the retry backoff of the in-process queue.
const localSignatureTTL = 10 * time.Minute

// errMissingSigningKey is returned when production runs without a key to
// verify webhook deliveries with.
var errMissingSigningKey = errors.New("a current signing key is required in production")

// application holds the wired dependencies and everything that must be
// released on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	generator generation.Generator
	publisher queue.Publisher
	emitter   events.EventEmitter
	scanner   *pipeline.Scanner
	worker    *pipeline.Worker
	handler   http.Handler

	taskRunner *task.TaskRunner
	closers    []io.Closer
}

// newApplication wires stores, the generator, the queue, the event sinks and
// the HTTP router on top of an open database.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	if cfg.Server.IsProduction() && cfg.Queue.CurrentSigningKey == "" {
		return nil, errMissingSigningKey
	}

	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}
	ok := false
	defer func() {
		if !ok {
			app.cleanup()
		}
	}()

	topicStore := postgres.NewPostgresTopicStore(db, logger)
	subjectStore := postgres.NewPostgresSubjectStore(db, logger)
	questionStore := postgres.NewPostgresQuestionStore(db, logger)

	ledger, err := service.NewLedgerService(db, topicStore, questionStore, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create ledger service: %w", err)
	}

	if err := app.setupGenerator(ctx); err != nil {
		return nil, err
	}
	if err := app.setupPublisher(); err != nil {
		return nil, err
	}
	if err := app.setupEvents(ctx); err != nil {
		return nil, err
	}

	scannerCfg := pipeline.ScannerConfig{
		PageSize:            cfg.Pipeline.PageSize,
		RelayDelay:          cfg.Pipeline.RelayDelay,
		QuestionsPerJob:     cfg.Pipeline.QuestionsPerJob,
		DispatchConcurrency: cfg.Pipeline.DispatchConcurrency,
		PublicBaseURL:       cfg.Queue.PublicBaseURL,
		Retries:             cfg.Queue.Retries,
	}
	app.scanner, err = pipeline.NewScanner(topicStore, app.publisher, app.emitter, scannerCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create scanner: %w", err)
	}

	workerCfg := pipeline.WorkerConfig{GenerationTimeout: cfg.Pipeline.GenerationTimeout}
	app.worker, err = pipeline.NewWorker(topicStore, subjectStore, app.generator, ledger, app.emitter, workerCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker: %w", err)
	}

	verifier, err := newVerifier(cfg.Queue)
	if err != nil {
		return nil, err
	}

	handler := api.NewJobHandler(app.scanner, app.worker, api.JobHandlerConfig{
		Scanner: app.scanner.Config(),
		Worker:  workerCfg,
		Model:   app.generator.Model(),
	}, logger)
	signature := middleware.NewSignatureMiddleware(verifier, cfg.Server.IsProduction(), cfg.Queue.PublicBaseURL)
	app.handler = api.NewRouter(handler, signature, logger)

	logger.Info("application initialized",
		slog.String("model", app.generator.Model()),
		slog.Bool("signature_verification", verifier != nil))
	ok = true
	return app, nil
}

func (app *application) setupGenerator(ctx context.Context) error {
	var opts []gemini.Option
	if app.config.Storage.DocumentBucket != "" {
		documents, err := gcs.NewDocumentStore(ctx, app.config.Storage, app.logger)
		if err != nil {
			return fmt.Errorf("failed to create document store: %w", err)
		}
		app.closers = append(app.closers, documents)
		opts = append(opts, gemini.WithDocumentSource(documents))
		app.logger.Info("document mode enabled",
			slog.String("bucket", app.config.Storage.DocumentBucket))
	}

	generator, err := gemini.NewGeminiGenerator(ctx, app.logger, app.config.LLM, opts...)
	if err != nil {
		return fmt.Errorf("failed to create generator: %w", err)
	}
	app.generator = generator
	return nil
}

func (app *application) setupPublisher() error {
	qc := app.config.Queue
	switch qc.Provider {
	case config.QueueProviderLocal:
		app.taskRunner = task.NewTaskRunner(task.TaskRunnerConfig{
			WorkerCount: qc.LocalWorkers,
			QueueSize:   qc.LocalQueueSize,
		}, app.logger)
		app.taskRunner.Start()

		var sign task.SignFunc
		if qc.CurrentSigningKey != "" {
			key := qc.CurrentSigningKey
			sign = func(body []byte, url string) (string, error) {
				return qstash.Sign(key, body, url, time.Now(), localSignatureTTL)
			}
		}
		app.publisher = task.NewLocalQueue(app.taskRunner, nil, task.LocalQueueConfig{
			Retries: qc.Retries,
			Sign:    sign,
		}, app.logger)
		app.logger.Info("using in-process job queue", slog.Int("workers", qc.LocalWorkers))
	default:
		publisher, err := qstash.NewPublisher(qc, nil, app.logger)
		if err != nil {
			return fmt.Errorf("failed to create queue publisher: %w", err)
		}
		app.publisher = publisher
		app.logger.Info("using QStash job queue", slog.String("base_url", qc.BaseURL))
	}
	return nil
}

func (app *application) setupEvents(ctx context.Context) error {
	handlers := []events.EventHandler{events.NewLogHandler(app.logger)}
	if addr := app.config.Events.RedisAddr; addr != "" {
		h, err := redis.NewEventHandler(ctx, addr, app.config.Events.RedisChannel, app.logger)
		if err != nil {
			return fmt.Errorf("failed to connect event bus: %w", err)
		}
		app.closers = append(app.closers, h)
		handlers = append(handlers, h)
	}
	app.emitter = events.NewInMemoryEventEmitter(app.logger, handlers...)
	return nil
}

// newVerifier returns nil when no signing key is configured.
func newVerifier(qc config.QueueConfig) (middleware.SignatureVerifier, error) {
	if qc.CurrentSigningKey == "" && qc.NextSigningKey == "" {
		return nil, nil
	}
	v, err := qstash.NewVerifier(qc.CurrentSigningKey, qc.NextSigningKey, qstash.WithURLCheck())
	if err != nil {
		return nil, fmt.Errorf("failed to create signature verifier: %w", err)
	}
	return v, nil
}

// cleanup stops background work and closes external clients. It is safe to
// call more than once.
func (app *application) cleanup() {
	if app.taskRunner != nil {
		app.taskRunner.Stop()
		app.taskRunner = nil
	}
	for _, c := range app.closers {
		if err := c.Close(); err != nil {
			app.logger.Error("failed to close resource", slog.String("error", err.Error()))
		}
	}
	app.closers = nil
}
