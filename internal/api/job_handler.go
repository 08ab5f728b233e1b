package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/topicgen/internal/api/shared"
	"github.com/phrazzld/topicgen/internal/domain"
	"github.com/phrazzld/topicgen/internal/pipeline"
	"github.com/phrazzld/topicgen/internal/platform/logger"
)

// BatchScanner runs one page of a scan.
type BatchScanner interface {
	ScanBatch(ctx context.Context, req pipeline.ScanRequest) (pipeline.BatchResult, error)
}

// TopicWorker runs one generation job.
type TopicWorker interface {
	GenerateForTopic(ctx context.Context, env pipeline.Envelope) (pipeline.WorkerResult, error)
}

// JobHandlerConfig holds the non-secret settings reported by health checks.
type JobHandlerConfig struct {
	Scanner pipeline.ScannerConfig
	Worker  pipeline.WorkerConfig
	Model   string
}

// ScanResponse is the body of a successful scanner call.
type ScanResponse struct {
	Message          string  `json:"message"`
	Processed        int     `json:"processed"`
	NextLastID       *string `json:"nextLastId"`
	HasMore          bool    `json:"hasMore"`
	CorrelationID    string  `json:"correlationId"`
	BatchStartID     *string `json:"batchStartId"`
	BatchEndID       *string `json:"batchEndId"`
	ProcessingTimeMs int64   `json:"processingTimeMs"`
	Dispatched       int     `json:"dispatched"`
	DispatchFailures int     `json:"dispatchFailures"`
}

// CapacityPlan describes how a worker request was sized.
type CapacityPlan struct {
	Requested int              `json:"requested"`
	Planned   int              `json:"planned"`
	Tiers     domain.TierSplit `json:"tiers"`
}

// GenerateResponse is the body of a successful worker call.
type GenerateResponse struct {
	Success            bool               `json:"success"`
	TopicID            string             `json:"topicId"`
	QuestionsGenerated int                `json:"questionsGenerated"`
	CurrentStats       domain.LedgerStats `json:"currentStats"`
	Capacity           CapacityPlan       `json:"capacity"`
	CorrelationID      string             `json:"correlationId"`
}

// HealthResponse is the body of the job health checks.
type HealthResponse struct {
	Service   string    `json:"service"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Config    any       `json:"config"`
}

type scannerHealthConfig struct {
	PageSize            int   `json:"pageSize"`
	RelayDelayMs        int64 `json:"relayDelayMs"`
	QuestionsPerJob     int   `json:"questionsPerJob"`
	DispatchConcurrency int   `json:"dispatchConcurrency"`
}

type workerHealthConfig struct {
	GenerationTimeoutMs int64  `json:"generationTimeoutMs"`
	Model               string `json:"model"`
}

// JobHandler serves the scanner and worker job endpoints.
type JobHandler struct {
	scanner BatchScanner
	worker  TopicWorker
	cfg     JobHandlerConfig
	logger  *slog.Logger
	now     func() time.Time
}

// NewJobHandler creates a JobHandler.
func NewJobHandler(scanner BatchScanner, worker TopicWorker, cfg JobHandlerConfig, logger *slog.Logger) *JobHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &JobHandler{
		scanner: scanner,
		worker:  worker,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "job_handler")),
		now:     time.Now,
	}
}

// ScanBatch handles POST /jobs/mass-report-scanner.
func (h *JobHandler) ScanBatch(w http.ResponseWriter, r *http.Request) {
	req, err := pipeline.ParseScanRequest(r.URL.Query())
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	res, err := h.scanner.ScanBatch(r.Context(), req)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err,
			shared.WithCorrelationID(req.CorrelationID))
		return
	}

	message := "Batch processed"
	switch {
	case res.Processed == 0:
		message = "Scan complete, no eligible topics remaining"
	case !res.HasMore:
		message = "Final batch processed"
	}

	shared.RespondWithJSON(w, r, http.StatusOK, ScanResponse{
		Message:          message,
		Processed:        res.Processed,
		NextLastID:       idString(res.NextCursor),
		HasMore:          res.HasMore,
		CorrelationID:    res.CorrelationID,
		BatchStartID:     idString(res.BatchStartID),
		BatchEndID:       idString(res.BatchEndID),
		ProcessingTimeMs: res.ProcessingTime.Milliseconds(),
		Dispatched:       res.Dispatched,
		DispatchFailures: res.Failed,
	})
}

// GenerateTopicQuestions handles POST /jobs/generate-topic-questions.
func (h *JobHandler) GenerateTopicQuestions(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Failed to read request body", err)
		return
	}

	env, err := pipeline.DecodeEnvelope(body)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err,
			shared.WithCorrelationID(env.CorrelationID))
		return
	}

	res, err := h.worker.GenerateForTopic(r.Context(), env)
	if err != nil {
		correlationID := res.CorrelationID
		if correlationID == "" {
			correlationID = env.CorrelationID
		}
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err,
			shared.WithCorrelationID(correlationID))
		return
	}

	logger.FromContextOrDefault(r.Context(), h.logger).Debug("worker job complete",
		slog.String("correlation_id", res.CorrelationID),
		slog.String("topic_id", env.TopicID),
		slog.Int("generated", res.Generated))

	shared.RespondWithJSON(w, r, http.StatusOK, GenerateResponse{
		Success:            true,
		TopicID:            env.TopicID,
		QuestionsGenerated: res.Generated,
		CurrentStats:       res.Stats,
		Capacity: CapacityPlan{
			Requested: res.Requested,
			Planned:   res.Planned,
			Tiers:     res.Tiers,
		},
		CorrelationID: res.CorrelationID,
	})
}

// ScannerHealth handles GET /jobs/mass-report-scanner.
func (h *JobHandler) ScannerHealth(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, HealthResponse{
		Service:   "mass-report-scanner",
		Status:    "healthy",
		Timestamp: h.now().UTC(),
		Config: scannerHealthConfig{
			PageSize:            h.cfg.Scanner.PageSize,
			RelayDelayMs:        h.cfg.Scanner.RelayDelay.Milliseconds(),
			QuestionsPerJob:     h.cfg.Scanner.QuestionsPerJob,
			DispatchConcurrency: h.cfg.Scanner.DispatchConcurrency,
		},
	})
}

// WorkerHealth handles GET /jobs/generate-topic-questions.
func (h *JobHandler) WorkerHealth(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, HealthResponse{
		Service:   "generate-topic-questions",
		Status:    "healthy",
		Timestamp: h.now().UTC(),
		Config: workerHealthConfig{
			GenerationTimeoutMs: h.cfg.Worker.GenerationTimeout.Milliseconds(),
			Model:               h.cfg.Model,
		},
	})
}

func idString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}
