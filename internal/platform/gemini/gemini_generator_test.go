package gemini_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/topicgen/internal/config"
	"github.com/phrazzld/topicgen/internal/domain"
	"github.com/phrazzld/topicgen/internal/generation"
	"github.com/phrazzld/topicgen/internal/platform/gemini"
	"github.com/phrazzld/topicgen/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const questionsJSON = `{"questions":[
 {"question":"What gas do plants absorb?","options":[{"label":"A","text":"Oxygen"},{"label":"B","text":"Carbon dioxide"},{"label":"C","text":"Nitrogen"},{"label":"D","text":"Helium"}],"correctAnswer":"B","explanation":"Plants take in CO2."},
 {"question":"Where does photosynthesis occur?","options":[{"label":"A","text":"Chloroplast"},{"label":"B","text":"Nucleus"},{"label":"C","text":"Ribosome"},{"label":"D","text":"Vacuole"}],"correctAnswer":"a"},
 {"question":"Broken","options":[{"label":"A","text":"Only one"}],"correctAnswer":"A"}
]}`

func geminiReply(t *testing.T, text, finishReason string) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"candidates": []map[string]any{{
			"content": map[string]any{
				"role":  "model",
				"parts": []map[string]any{{"text": text}},
			},
			"finishReason": finishReason,
		}},
	})
	require.NoError(t, err)
	return body
}

func newTestGenerator(t *testing.T, handler http.HandlerFunc, opts ...gemini.Option) *gemini.GeminiGenerator {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	log, _ := logger.NewTestLogger()
	cfg := config.LLMConfig{
		GeminiAPIKey:      "test-key",
		ModelName:         "gemini-2.0-flash",
		MaxRetries:        2,
		RetryDelaySeconds: 1,
	}
	opts = append([]gemini.Option{gemini.WithBaseURL(srv.URL), gemini.WithRetryBaseDelay(time.Millisecond)}, opts...)
	g, err := gemini.NewGeminiGenerator(context.Background(), log, cfg, opts...)
	require.NoError(t, err)
	return g
}

func textRequest(count int) generation.Request {
	return generation.Request{
		TopicID:       uuid.New(),
		TopicName:     "Photosynthesis",
		Subject:       "Biology",
		Language:      "en",
		Mode:          domain.ModeText,
		Text:          "Plants convert light energy into chemical energy.",
		Difficulty:    domain.DifficultyMedium,
		Count:         count,
		CorrelationID: "corr-1",
	}
}

func TestNewGeminiGeneratorConfig(t *testing.T) {
	t.Parallel()
	log, _ := logger.NewTestLogger()

	_, err := gemini.NewGeminiGenerator(context.Background(), log, config.LLMConfig{ModelName: "m"})
	assert.ErrorIs(t, err, generation.ErrInvalidConfig)

	_, err = gemini.NewGeminiGenerator(context.Background(), log, config.LLMConfig{GeminiAPIKey: "k"})
	assert.ErrorIs(t, err, generation.ErrInvalidConfig)

	_, err = gemini.NewGeminiGenerator(context.Background(), log, config.LLMConfig{
		GeminiAPIKey:       "k",
		ModelName:          "m",
		PromptTemplatePath: "/nonexistent/prompt.tmpl",
	})
	assert.ErrorIs(t, err, generation.ErrInvalidConfig)

	_, err = gemini.NewGeminiGenerator(context.Background(), nil, config.LLMConfig{GeminiAPIKey: "k", ModelName: "m"})
	assert.Error(t, err)
}

func TestGenerateTextMode(t *testing.T) {
	t.Parallel()

	var gotBody string
	g := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "gemini-2.0-flash:generateContent")
		raw, _ := io.ReadAll(r.Body)
		gotBody = string(raw)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(geminiReply(t, "```json\n"+questionsJSON+"\n```", "STOP"))
	})

	req := textRequest(5)
	questions, err := g.Generate(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, questions, 2, "invalid items are skipped")
	assert.Equal(t, "B", questions[0].CorrectLabel)
	assert.Equal(t, "Plants take in CO2.", questions[0].Explanation)
	assert.Equal(t, "A", questions[1].CorrectLabel)
	for _, q := range questions {
		assert.Equal(t, req.TopicID, q.TopicID)
		assert.Equal(t, domain.DifficultyMedium, q.Difficulty)
		assert.Equal(t, "gemini-2.0-flash", q.Metadata.Model)
		assert.Equal(t, domain.ActionScheduledGeneration, q.Metadata.Action)
		assert.Equal(t, "corr-1", q.Metadata.CorrelationID)
		assert.Equal(t, domain.ModeText, q.Metadata.Mode)
	}

	assert.Contains(t, gotBody, "Photosynthesis")
	assert.Contains(t, gotBody, "Biology")
	assert.Contains(t, gotBody, "application/json")
}

func TestGenerateTruncatesToCount(t *testing.T) {
	t.Parallel()

	g := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(geminiReply(t, questionsJSON, "STOP"))
	})

	questions, err := g.Generate(context.Background(), textRequest(1))
	require.NoError(t, err)
	assert.Len(t, questions, 1)
}

func TestGenerateRetriesTransientFailures(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	g := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, `{"error":{"code":503,"message":"overloaded","status":"UNAVAILABLE"}}`, http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write(geminiReply(t, questionsJSON, "STOP"))
	})

	questions, err := g.Generate(context.Background(), textRequest(2))
	require.NoError(t, err)
	assert.Len(t, questions, 2)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGenerateGivesUpAfterMaxRetries(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	g := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"error":{"code":500,"message":"internal","status":"INTERNAL"}}`, http.StatusInternalServerError)
	})

	_, err := g.Generate(context.Background(), textRequest(2))
	assert.ErrorIs(t, err, generation.ErrTransientFailure)
	assert.Equal(t, int32(3), calls.Load(), "one call plus two retries")
}

func TestGeneratePermanentFailuresAreNotRetried(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		reply   func(t *testing.T) []byte
		wantErr error
	}{
		{
			name:    "safety block",
			reply:   func(t *testing.T) []byte { return geminiReply(t, "", "SAFETY") },
			wantErr: generation.ErrContentBlocked,
		},
		{
			name:    "not json",
			reply:   func(t *testing.T) []byte { return geminiReply(t, "here are your questions", "STOP") },
			wantErr: generation.ErrInvalidResponse,
		},
		{
			name:    "no valid questions",
			reply:   func(t *testing.T) []byte { return geminiReply(t, `{"questions":[]}`, "STOP") },
			wantErr: generation.ErrInvalidResponse,
		},
		{
			name:    "no candidates",
			reply:   func(t *testing.T) []byte { return []byte(`{"candidates":[]}`) },
			wantErr: generation.ErrInvalidResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			g := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				_, _ = w.Write(tt.reply(t))
			})

			_, err := g.Generate(context.Background(), textRequest(2))
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, int32(1), calls.Load())
		})
	}
}

func TestGenerateStopsWhenContextCancelled(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	g := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	t.Cleanup(func() { close(release) })

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := g.Generate(ctx, textRequest(2))
	assert.ErrorIs(t, err, generation.ErrTransientFailure)
}

type stubDocuments struct {
	data []byte
	err  error
	keys []string
}

func (s *stubDocuments) Fetch(ctx context.Context, key string) ([]byte, string, error) {
	s.keys = append(s.keys, key)
	return s.data, "application/pdf", s.err
}

func TestGenerateDocumentMode(t *testing.T) {
	t.Parallel()

	docs := &stubDocuments{data: []byte("%PDF-1.4 fake")}
	var gotBody string
	g := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		gotBody = string(raw)
		_, _ = w.Write(geminiReply(t, questionsJSON, "STOP"))
	}, gemini.WithDocumentSource(docs))

	req := textRequest(2)
	req.Mode = domain.ModeDocument
	req.Text = ""
	req.Document = &domain.DocumentRef{Key: "topics/photosynthesis.pdf", StartPage: 3, EndPage: 7}

	questions, err := g.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Len(t, questions, 2)
	assert.Equal(t, []string{"topics/photosynthesis.pdf"}, docs.keys)
	assert.Contains(t, gotBody, "application/pdf")
	assert.Contains(t, gotBody, "pages 3 to 7")
	assert.Equal(t, domain.ModeDocument, questions[0].Metadata.Mode)
}

func TestGenerateDocumentModeWithoutSource(t *testing.T) {
	t.Parallel()

	g := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("API must not be called")
	})

	req := textRequest(2)
	req.Mode = domain.ModeDocument
	req.Document = &domain.DocumentRef{Key: "a.pdf", StartPage: 1, EndPage: 1}

	_, err := g.Generate(context.Background(), req)
	assert.ErrorIs(t, err, generation.ErrInvalidConfig)
}

func TestGenerateRejectsInvalidRequest(t *testing.T) {
	t.Parallel()

	g := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("API must not be called")
	})

	req := textRequest(0)
	_, err := g.Generate(context.Background(), req)
	assert.ErrorIs(t, err, generation.ErrInvalidRequest)
	assert.True(t, strings.Contains(err.Error(), "count"))
}
