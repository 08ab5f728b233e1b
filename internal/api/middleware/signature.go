package middleware

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/phrazzld/topicgen/internal/api/shared"
	"github.com/phrazzld/topicgen/internal/pipeline"
	"github.com/phrazzld/topicgen/internal/platform/logger"
	"github.com/phrazzld/topicgen/internal/platform/qstash"
)

// MaxJobBodyBytes caps the size of a job delivery body.
const MaxJobBodyBytes = 1 << 20

// SignatureVerifier authenticates a raw delivery body.
type SignatureVerifier interface {
	Verify(signature string, body []byte, url string) error
}

// SignatureMiddleware authenticates queue deliveries before any handler
// reads the body.
type SignatureMiddleware struct {
	verifier      SignatureVerifier
	production    bool
	publicBaseURL string
}

// NewSignatureMiddleware creates the middleware. verifier may be nil when no
// signing keys are configured; signed requests are then rejected. Unsigned
// requests are admitted only when production is false. publicBaseURL is the
// origin deliveries are addressed to, used to rebuild the signed URL.
func NewSignatureMiddleware(verifier SignatureVerifier, production bool, publicBaseURL string) *SignatureMiddleware {
	return &SignatureMiddleware{
		verifier:      verifier,
		production:    production,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}
}

// Verify reads the raw body, verifies its signature, and restores the body
// for the next handler.
func (m *SignatureMiddleware) Verify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromContext(r.Context())

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxJobBodyBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				shared.RespondWithErrorAndLog(w, r, http.StatusRequestEntityTooLarge, "Request body too large", err)
				return
			}
			shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Failed to read request body", err)
			return
		}
		_ = r.Body.Close()
		r.Body = io.NopCloser(bytes.NewReader(body))

		signature := r.Header.Get(qstash.SignatureHeader)
		if strings.TrimSpace(signature) == "" {
			if m.production {
				shared.RespondWithErrorAndLog(w, r, http.StatusUnauthorized, "Missing signature",
					fmt.Errorf("%w: %w", pipeline.ErrUnauthorized, qstash.ErrMissingSignature),
					shared.WithElevatedLogLevel())
				return
			}
			log.Debug("admitting unsigned request outside production", slog.String("path", r.URL.Path))
			next.ServeHTTP(w, r)
			return
		}

		if m.verifier == nil {
			shared.RespondWithErrorAndLog(w, r, http.StatusUnauthorized, "Invalid signature",
				fmt.Errorf("%w: %w", pipeline.ErrUnauthorized, qstash.ErrNoSigningKeys),
				shared.WithElevatedLogLevel())
			return
		}

		if err := m.verifier.Verify(signature, body, m.publicBaseURL+r.URL.RequestURI()); err != nil {
			shared.RespondWithErrorAndLog(w, r, http.StatusUnauthorized, "Invalid signature",
				fmt.Errorf("%w: %w", pipeline.ErrUnauthorized, err),
				shared.WithElevatedLogLevel())
			return
		}

		next.ServeHTTP(w, r)
	})
}
