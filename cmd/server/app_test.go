package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/topicgen/internal/config"
	"github.com/phrazzld/topicgen/internal/pipeline"
	"github.com/phrazzld/topicgen/internal/platform/logger"
	"github.com/phrazzld/topicgen/internal/platform/qstash"
)

const testSigningKey = "sig_testcurrentkey0001"

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Port:            8080,
			LogLevel:        "debug",
			Environment:     config.EnvDevelopment,
			ShutdownTimeout: time.Second,
		},
		Database: config.DatabaseConfig{URL: "postgres://localhost/topicgen", MaxOpenConns: 1},
		LLM: config.LLMConfig{
			GeminiAPIKey: "test-api-key",
			ModelName:    "gemini-test",
		},
		Queue: config.QueueConfig{
			Provider:          config.QueueProviderLocal,
			BaseURL:           "https://qstash.example.com",
			CurrentSigningKey: testSigningKey,
			PublicBaseURL:     "https://jobs.example.com",
			Retries:           1,
			LocalWorkers:      1,
			LocalQueueSize:    8,
		},
		Pipeline: config.PipelineConfig{
			PageSize:            50,
			RelayDelay:          time.Second,
			GenerationTimeout:   5 * time.Second,
			QuestionsPerJob:     4,
			DispatchConcurrency: 2,
		},
	}
}

func newTestApp(t *testing.T, cfg *config.Config) *application {
	t.Helper()
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	l, _ := logger.NewTestLogger()
	app, err := newApplication(context.Background(), cfg, l, db)
	require.NoError(t, err)
	t.Cleanup(app.cleanup)
	return app
}

func TestNewApplicationServesHealthChecks(t *testing.T) {
	app := newTestApp(t, testConfig())

	rec := httptest.NewRecorder()
	app.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	app.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, pipeline.WorkerPath, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "gemini-test")

	rec = httptest.NewRecorder()
	app.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, pipeline.ScannerPath, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"pageSize":50`)
}

func TestNewApplicationRejectsForgedDeliveries(t *testing.T) {
	app := newTestApp(t, testConfig())

	body := []byte(`{"topicId":"5b1f0c1e-4a43-4d7e-9d3c-2f0b9b0b8a11","questionsToGenerate":3}`)
	url := "https://jobs.example.com" + pipeline.WorkerPath
	sig, err := qstash.Sign("sig_someotherkey00000001", body, url, time.Now(), time.Minute)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, pipeline.WorkerPath, bytes.NewReader(body))
	req.Header.Set(qstash.SignatureHeader, sig)
	rec := httptest.NewRecorder()
	app.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestNewApplicationRequiresSigningKeyInProduction(t *testing.T) {
	cfg := testConfig()
	cfg.Server.Environment = config.EnvProduction
	cfg.Queue.CurrentSigningKey = ""

	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	_, err = newApplication(context.Background(), cfg, nil, db)
	assert.ErrorIs(t, err, errMissingSigningKey)
}

func TestNewApplicationQStashRequiresToken(t *testing.T) {
	cfg := testConfig()
	cfg.Queue.Provider = config.QueueProviderQStash

	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	l, _ := logger.NewTestLogger()
	_, err = newApplication(context.Background(), cfg, l, db)
	assert.ErrorIs(t, err, qstash.ErrPublishFailed)
}

func TestNewVerifier(t *testing.T) {
	v, err := newVerifier(config.QueueConfig{})
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = newVerifier(config.QueueConfig{NextSigningKey: "sig_nextkey0000000001"})
	require.NoError(t, err)
	assert.NotNil(t, v)
}
