package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/topicgen/internal/api"
	"github.com/phrazzld/topicgen/internal/api/middleware"
	"github.com/phrazzld/topicgen/internal/domain"
	"github.com/phrazzld/topicgen/internal/generation"
	"github.com/phrazzld/topicgen/internal/mocks"
	"github.com/phrazzld/topicgen/internal/pipeline"
	"github.com/phrazzld/topicgen/internal/platform/logger"
	"github.com/phrazzld/topicgen/internal/platform/qstash"
)

const (
	publicBase = "https://gen.example.com"
	signingKey = "sig_routerkey00000000000000"
)

type harness struct {
	topics    *mocks.MockTopicStore
	generator *mocks.MockGenerator
	publisher *mocks.MockPublisher
	server    *httptest.Server
}

func newHarness(t *testing.T, production bool, topics ...*domain.Topic) *harness {
	t.Helper()
	log, _ := logger.NewTestLogger()

	h := &harness{
		topics:    mocks.NewMockTopicStore(topics...),
		generator: &mocks.MockGenerator{},
		publisher: &mocks.MockPublisher{},
	}
	questions := &mocks.MockQuestionStore{}
	rec := &mocks.EventRecorder{}

	scannerCfg := pipeline.ScannerConfig{PageSize: 2, QuestionsPerJob: 5, PublicBaseURL: publicBase}
	workerCfg := pipeline.WorkerConfig{GenerationTimeout: time.Second}

	scanner, err := pipeline.NewScanner(h.topics, h.publisher, rec, scannerCfg, log)
	require.NoError(t, err)
	worker, err := pipeline.NewWorker(h.topics, nil, h.generator,
		mocks.NewMockLedgerService(h.topics, questions), rec, workerCfg, log)
	require.NoError(t, err)

	verifier, err := qstash.NewVerifier(signingKey, "")
	require.NoError(t, err)

	handler := api.NewJobHandler(scanner, worker, api.JobHandlerConfig{
		Scanner: scanner.Config(),
		Worker:  workerCfg,
		Model:   "gemini-test",
	}, log)
	sig := middleware.NewSignatureMiddleware(verifier, production, publicBase)

	h.server = httptest.NewServer(api.NewRouter(handler, sig, log))
	t.Cleanup(h.server.Close)
	return h
}

func (h *harness) post(t *testing.T, path, body, signature string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, h.server.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set(qstash.SignatureHeader, signature)
	}
	resp, err := h.server.Client().Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func topicWith(capacity, consumed int) *domain.Topic {
	return &domain.Topic{
		ID:                    uuid.New(),
		Name:                  "Cells",
		Capacity:              capacity,
		Consumed:              consumed,
		RemainingToGenerate:   capacity - consumed,
		EligibleForGeneration: capacity > consumed,
		SourceText:            "Cells are the basic unit of life.",
	}
}

func envelopeBody(id uuid.UUID, n int) string {
	raw, _ := pipeline.NewEnvelope(id, "corr-http", n).Marshal()
	return string(raw)
}

func TestGenerateTopicQuestionsEndpoint(t *testing.T) {
	topic := topicWith(10, 8)
	h := newHarness(t, false, topic)

	resp, body := h.post(t, pipeline.WorkerPath, envelopeBody(topic.ID, 5), "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, topic.ID.String(), body["topicId"])
	assert.EqualValues(t, 2, body["questionsGenerated"])
	assert.Equal(t, "corr-http", body["correlationId"])

	stats := body["currentStats"].(map[string]any)
	assert.EqualValues(t, 10, stats["consumed"])
	assert.Equal(t, false, stats["eligibleForGeneration"])

	capacity := body["capacity"].(map[string]any)
	assert.EqualValues(t, 5, capacity["requested"])
	assert.EqualValues(t, 2, capacity["planned"])
}

func TestGenerateTopicQuestionsErrors(t *testing.T) {
	topic := topicWith(10, 0)

	t.Run("bad envelope", func(t *testing.T) {
		h := newHarness(t, false, topic)
		resp, body := h.post(t, pipeline.WorkerPath, `{"correlationId":"c"}`, "")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, false, body["success"])
		assert.Equal(t, "c", body["correlationId"])
	})

	t.Run("unknown topic", func(t *testing.T) {
		h := newHarness(t, false, topic)
		resp, body := h.post(t, pipeline.WorkerPath, envelopeBody(uuid.New(), 5), "")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "Topic not found", body["error"])
	})

	t.Run("generation failure", func(t *testing.T) {
		h := newHarness(t, false, topic)
		h.generator.Err = generation.ErrTransientFailure
		resp, body := h.post(t, pipeline.WorkerPath, envelopeBody(topic.ID, 5), "")
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		assert.Equal(t, false, body["success"])
		assert.Equal(t, "corr-http", body["correlationId"])
		assert.NotEmpty(t, body["error"])
	})
}

func TestJobsRequireSignatureInProduction(t *testing.T) {
	topic := topicWith(10, 0)
	h := newHarness(t, true, topic)
	body := envelopeBody(topic.ID, 3)

	resp, _ := h.post(t, pipeline.WorkerPath, body, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	signature, err := qstash.Sign(signingKey, []byte(body), publicBase+pipeline.WorkerPath, time.Now(), time.Minute)
	require.NoError(t, err)

	resp, _ = h.post(t, pipeline.WorkerPath, strings.Replace(body, `"questionsToGenerate":3`, `"questionsToGenerate":9`, 1), signature)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, 0, h.generator.CallCount())

	resp, decoded := h.post(t, pipeline.WorkerPath, body, signature)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 3, decoded["questionsGenerated"])
}

func TestScannerEndpoint(t *testing.T) {
	h := newHarness(t, false, topicWith(10, 0), topicWith(10, 0), topicWith(10, 0))

	resp, body := h.post(t, pipeline.ScannerPath+"?correlationId=run-http", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 2, body["processed"])
	assert.Equal(t, true, body["hasMore"])
	assert.Equal(t, "run-http", body["correlationId"])
	assert.EqualValues(t, 2, body["dispatched"])
	assert.EqualValues(t, 0, body["dispatchFailures"])
	next, ok := body["nextLastId"].(string)
	require.True(t, ok)

	resp, body = h.post(t, pipeline.ScannerPath+"?correlationId=run-http&lastId="+next, "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, body["processed"])
	assert.Equal(t, false, body["hasMore"])

	// 3 worker jobs and 1 relay.
	assert.Len(t, h.publisher.Messages(), 4)
}

func TestScannerEndpointRejectsBadCursor(t *testing.T) {
	h := newHarness(t, false)
	resp, body := h.post(t, pipeline.ScannerPath+"?lastId=nope", "", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, false, body["success"])
}

func TestHealthEndpoints(t *testing.T) {
	h := newHarness(t, true)

	for _, tc := range []struct {
		path    string
		service string
	}{
		{pipeline.ScannerPath, "mass-report-scanner"},
		{pipeline.WorkerPath, "generate-topic-questions"},
	} {
		resp, err := h.server.Client().Get(h.server.URL + tc.path)
		require.NoError(t, err)
		var body map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		_ = resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, tc.service, body["service"])
		assert.Equal(t, "healthy", body["status"])
		assert.NotNil(t, body["config"])
	}

	resp, err := h.server.Client().Get(h.server.URL + "/health")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
