package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/phrazzld/topicgen/internal/api/middleware"
	"github.com/phrazzld/topicgen/internal/pipeline"
)

// NewRouter registers the job routes behind signature verification, the job
// health checks and /health.
func NewRouter(handler *JobHandler, signature *middleware.SignatureMiddleware, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.NewTraceMiddleware(logger))

	r.Get(pipeline.ScannerPath, handler.ScannerHealth)
	r.Get(pipeline.WorkerPath, handler.WorkerHealth)

	r.Group(func(r chi.Router) {
		r.Use(signature.Verify)
		r.Post(pipeline.ScannerPath, handler.ScanBatch)
		r.Post(pipeline.WorkerPath, handler.GenerateTopicQuestions)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			logger.Error("failed to write health check response", "error", err)
		}
	})

	return r
}
