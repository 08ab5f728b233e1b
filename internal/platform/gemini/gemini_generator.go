package gemini

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"os"
	"strings"
	"text/template"
	"time"

	"github.com/phrazzld/topicgen/internal/config"
	"github.com/phrazzld/topicgen/internal/domain"
	"github.com/phrazzld/topicgen/internal/generation"
	"google.golang.org/genai"
)

//go:embed prompts/questions.tmpl
var defaultPromptTemplate string

const (
	defaultMaxRetries = 3
	pdfMIMEType       = "application/pdf"
)

// Option customizes a GeminiGenerator.
type Option func(*options)

type options struct {
	baseURL        string
	retryBaseDelay time.Duration
	documents      generation.DocumentSource
}

// WithBaseURL points the client at a different API endpoint.
func WithBaseURL(url string) Option {
	return func(o *options) { o.baseURL = url }
}

// WithRetryBaseDelay overrides the configured base delay between retries.
func WithRetryBaseDelay(d time.Duration) Option {
	return func(o *options) { o.retryBaseDelay = d }
}

// WithDocumentSource enables document mode.
func WithDocumentSource(src generation.DocumentSource) Option {
	return func(o *options) { o.documents = src }
}

// GeminiGenerator implements the generation.Generator interface using
// Google's Gemini API to generate questions from topic material.
type GeminiGenerator struct {
	logger         *slog.Logger
	config         config.LLMConfig
	promptTemplate *template.Template
	client         *genai.Client
	model          string
	retryBaseDelay time.Duration
	documents      generation.DocumentSource
}

var _ generation.Generator = (*GeminiGenerator)(nil)

// NewGeminiGenerator creates a new GeminiGenerator. The prompt template is
// read from cfg.PromptTemplatePath when set, otherwise the embedded default
// is used.
func NewGeminiGenerator(
	ctx context.Context,
	logger *slog.Logger,
	cfg config.LLMConfig,
	opts ...Option,
) (*GeminiGenerator, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	o := options{retryBaseDelay: time.Duration(cfg.RetryDelaySeconds) * time.Second}
	for _, opt := range opts {
		opt(&o)
	}

	templateContent := defaultPromptTemplate
	if cfg.PromptTemplatePath != "" {
		raw, err := os.ReadFile(cfg.PromptTemplatePath)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read prompt template from %s: %v",
				generation.ErrInvalidConfig, cfg.PromptTemplatePath, err)
		}
		templateContent = string(raw)
	}

	promptTemplate, err := template.New("questions").Option("missingkey=error").Parse(templateContent)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse prompt template: %v",
			generation.ErrInvalidConfig, err)
	}

	clientConfig := &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if o.baseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: o.baseURL}
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v",
			generation.ErrInvalidConfig, err)
	}

	return &GeminiGenerator{
		logger:         logger.With(slog.String("component", "gemini_generator")),
		config:         cfg,
		promptTemplate: promptTemplate,
		client:         client,
		model:          cfg.ModelName,
		retryBaseDelay: o.retryBaseDelay,
		documents:      o.documents,
	}, nil
}

func validateConfig(cfg config.LLMConfig) error {
	if cfg.GeminiAPIKey == "" {
		return fmt.Errorf("%w: gemini API key cannot be empty", generation.ErrInvalidConfig)
	}
	if cfg.ModelName == "" {
		return fmt.Errorf("%w: model name cannot be empty", generation.ErrInvalidConfig)
	}
	return nil
}

// Model implements generation.Generator.
func (g *GeminiGenerator) Model() string {
	return g.model
}

// Generate implements generation.Generator.
func (g *GeminiGenerator) Generate(ctx context.Context, req generation.Request) ([]*domain.Question, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	log := g.logger.With(
		slog.String("correlation_id", req.CorrelationID),
		slog.String("topic_id", req.TopicID.String()),
		slog.String("difficulty", string(req.Difficulty)),
		slog.String("mode", string(req.Mode)))

	prompt, err := g.createPrompt(req)
	if err != nil {
		return nil, err
	}

	contents, err := g.buildContents(ctx, req, prompt)
	if err != nil {
		return nil, err
	}

	log.DebugContext(ctx, "requesting questions", "count", req.Count, "prompt_length", len(prompt))

	response, err := g.callGeminiWithRetry(ctx, log, contents)
	if err != nil {
		return nil, err
	}

	return g.parseResponse(ctx, log, response, req)
}

func (g *GeminiGenerator) createPrompt(req generation.Request) (string, error) {
	subject := req.Subject
	if strings.TrimSpace(subject) == "" {
		subject = domain.FallbackSubjectName
	}
	language := req.Language
	if strings.TrimSpace(language) == "" {
		language = domain.DefaultLanguage
	}

	data := promptData{
		TopicName:  req.TopicName,
		Subject:    subject,
		Language:   language,
		Difficulty: req.Difficulty,
		Level:      req.Difficulty.Level(),
		Count:      req.Count,
	}
	if req.Mode == domain.ModeDocument {
		data.Document = req.Document
	} else {
		data.Text = req.Text
	}

	var buf bytes.Buffer
	if err := g.promptTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute prompt template: %w", err)
	}
	prompt := strings.TrimSpace(buf.String())
	if prompt == "" {
		return "", ErrEmptyPrompt
	}
	return prompt, nil
}

func (g *GeminiGenerator) buildContents(
	ctx context.Context,
	req generation.Request,
	prompt string,
) ([]*genai.Content, error) {
	if req.Mode != domain.ModeDocument {
		return genai.Text(prompt), nil
	}

	if g.documents == nil {
		return nil, fmt.Errorf("%w: document mode requires a document source", generation.ErrInvalidConfig)
	}
	data, mimeType, err := g.documents.Fetch(ctx, req.Document.Key)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", generation.ErrDocumentUnavailable, req.Document.Key, err)
	}
	if mimeType == "" {
		mimeType = pdfMIMEType
	}

	parts := []*genai.Part{
		genai.NewPartFromBytes(data, mimeType),
		genai.NewPartFromText(prompt),
	}
	return []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}, nil
}

// callGeminiWithRetry calls the API with exponential backoff and jitter.
// Blocked and malformed responses are permanent and returned immediately.
func (g *GeminiGenerator) callGeminiWithRetry(
	ctx context.Context,
	log *slog.Logger,
	contents []*genai.Content,
) (*ResponseSchema, error) {
	maxRetries := g.config.MaxRetries
	if maxRetries < 0 {
		maxRetries = defaultMaxRetries
	}
	baseDelay := g.retryBaseDelay
	if baseDelay <= 0 {
		baseDelay = 2 * time.Second
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	genConfig := &genai.GenerateContentConfig{ResponseMIMEType: "application/json"}

	for attempt := 0; ; attempt++ {
		attemptNum := attempt + 1

		resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, genConfig)
		if err == nil {
			response, perr := decodeResponse(resp)
			if perr == nil {
				log.InfoContext(ctx, "Gemini API call successful", "attempt", attemptNum)
				return response, nil
			}
			log.WarnContext(ctx, "permanent Gemini error, not retrying",
				"attempt", attemptNum, "error", perr)
			return nil, perr
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%w: %v", generation.ErrTransientFailure, ctxErr)
		}

		log.ErrorContext(ctx, "Gemini API call failed", "attempt", attemptNum, "error", err)

		if attempt >= maxRetries {
			return nil, fmt.Errorf("%w: exceeded maximum retry attempts (%d): %v",
				generation.ErrTransientFailure, maxRetries, err)
		}

		// delay = baseDelay * 2^attempt * [0.5, 1.0)
		backoff := float64(baseDelay) * math.Pow(2, float64(attempt))
		delay := time.Duration(backoff * (0.5 + rng.Float64()*0.5))

		log.InfoContext(ctx, "retrying after delay", "attempt", attemptNum, "delay", delay.String())

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", generation.ErrTransientFailure, ctx.Err())
		}
	}
}

// decodeResponse extracts the JSON payload from a response.
func decodeResponse(resp *genai.GenerateContentResponse) (*ResponseSchema, error) {
	if resp == nil {
		return nil, fmt.Errorf("%w: nil response", generation.ErrInvalidResponse)
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return nil, fmt.Errorf("%w: prompt blocked (%s)", generation.ErrContentBlocked, resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("%w: no content generated", generation.ErrInvalidResponse)
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return nil, fmt.Errorf("%w: content blocked by safety filters", generation.ErrContentBlocked)
	}
	if candidate.Content == nil {
		return nil, fmt.Errorf("%w: empty content in response", generation.ErrInvalidResponse)
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if part != nil && part.Text != "" {
			sb.WriteString(part.Text)
		}
	}

	var parsed ResponseSchema
	if err := json.Unmarshal([]byte(cleanJSONBlock(sb.String())), &parsed); err != nil {
		return nil, fmt.Errorf("%w: failed to parse JSON response: %v", generation.ErrInvalidResponse, err)
	}
	return &parsed, nil
}

func cleanJSONBlock(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimSuffix(text, "```")
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(text, "```")
	}
	return strings.TrimSpace(text)
}

// parseResponse converts the model output into validated domain questions.
// Invalid items are skipped; a response with no valid item is an error.
// At most req.Count questions are returned.
func (g *GeminiGenerator) parseResponse(
	ctx context.Context,
	log *slog.Logger,
	response *ResponseSchema,
	req generation.Request,
) ([]*domain.Question, error) {
	if len(response.Questions) == 0 {
		return nil, fmt.Errorf("%w: no questions in response", generation.ErrInvalidResponse)
	}

	language := req.Language
	if strings.TrimSpace(language) == "" {
		language = domain.DefaultLanguage
	}
	meta := domain.QuestionMetadata{
		Model:         g.model,
		Action:        domain.ActionScheduledGeneration,
		CorrelationID: req.CorrelationID,
		Mode:          req.Mode,
	}

	questions := make([]*domain.Question, 0, min(len(response.Questions), req.Count))
	for i, qs := range response.Questions {
		if len(questions) == req.Count {
			break
		}

		opts := make([]domain.Option, 0, len(qs.Options))
		for _, o := range qs.Options {
			opts = append(opts, domain.Option{
				Label: strings.ToUpper(strings.TrimSpace(o.Label)),
				Text:  strings.TrimSpace(o.Text),
			})
		}

		q, err := domain.NewQuestion(req.TopicID, qs.Question, opts, qs.CorrectAnswer, req.Difficulty, language, meta)
		if err != nil {
			log.WarnContext(ctx, "skipping invalid question from model", "index", i, "error", err)
			continue
		}
		q.Explanation = strings.TrimSpace(qs.Explanation)
		questions = append(questions, q)
	}

	if len(questions) == 0 {
		return nil, fmt.Errorf("%w: no valid questions in response", generation.ErrInvalidResponse)
	}

	log.InfoContext(ctx, "parsed Gemini response",
		"requested", req.Count,
		"returned", len(response.Questions),
		"accepted", len(questions))
	return questions, nil
}
