package shared

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/topicgen/internal/platform/logger"
)

func TestRespondWithJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	w := httptest.NewRecorder()

	RespondWithJSON(w, req, http.StatusAccepted, map[string]any{"message": "ok", "n": 3})

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"message":"ok","n":3}`, w.Body.String())
}

func TestRespondWithErrorAndLog(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		opts      []ResponseOption
		wantLevel string
	}{
		{"server error logs at error", http.StatusInternalServerError, nil, "ERROR"},
		{"client error logs at debug", http.StatusBadRequest, nil, "DEBUG"},
		{"elevated client error logs at warn", http.StatusUnauthorized, []ResponseOption{WithElevatedLogLevel()}, "WARN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, buf := logger.NewTestLogger()
			req := httptest.NewRequest(http.MethodPost, "/jobs/x", nil)
			ctx := logger.WithLogger(SetTraceID(req.Context()), log)
			req = req.WithContext(ctx)
			w := httptest.NewRecorder()

			opts := append([]ResponseOption{WithCorrelationID("corr-7")}, tt.opts...)
			RespondWithErrorAndLog(w, req, tt.status, "Something failed",
				errors.New("dial postgres://app:hunter22@db/app refused"), opts...)

			assert.Equal(t, tt.status, w.Code)
			var body ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.False(t, body.Success)
			assert.Equal(t, "Something failed", body.Error)
			assert.Equal(t, "corr-7", body.CorrelationID)
			assert.Equal(t, GetTraceID(ctx), body.TraceID)
			assert.NotContains(t, w.Body.String(), "hunter22")

			entries, err := buf.Entries()
			require.NoError(t, err)
			require.Len(t, entries, 1)
			assert.Equal(t, tt.wantLevel, entries[0]["level"])
			assert.Equal(t, "corr-7", entries[0]["correlation_id"])
			assert.NotContains(t, entries[0]["error"], "hunter22")
		})
	}
}
