// Package gcs loads topic source documents from Google Cloud Storage.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/phrazzld/topicgen/internal/config"
	"github.com/phrazzld/topicgen/internal/generation"
	"google.golang.org/api/option"
)

// MaxDocumentBytes caps the size of a document sent inline to the model.
const MaxDocumentBytes = 20 << 20

// ErrDocumentTooLarge is returned when a document exceeds MaxDocumentBytes.
var ErrDocumentTooLarge = errors.New("document exceeds inline size limit")

// opener returns a reader for an object and its content type.
type opener func(ctx context.Context, bucket, key string) (io.ReadCloser, string, error)

// DocumentStore implements generation.DocumentSource over a GCS bucket.
type DocumentStore struct {
	client *storage.Client
	bucket string
	open   opener
	logger *slog.Logger
}

var _ generation.DocumentSource = (*DocumentStore)(nil)

// NewDocumentStore creates a GCS-backed document store. A configured endpoint
// (for example a local emulator) disables authentication.
func NewDocumentStore(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (*DocumentStore, error) {
	if strings.TrimSpace(cfg.DocumentBucket) == "" {
		return nil, fmt.Errorf("%w: document bucket is required", generation.ErrInvalidConfig)
	}
	if logger == nil {
		logger = slog.Default()
	}

	opts := []option.ClientOption{option.WithScopes(storage.ScopeReadOnly)}
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	if endpoint := strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/"); endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint), option.WithoutAuthentication())
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	s := &DocumentStore{
		client: client,
		bucket: cfg.DocumentBucket,
		logger: logger.With(slog.String("component", "gcs_documents")),
	}
	s.open = s.openObject

	s.logger.Info("document storage initialized",
		slog.String("bucket", cfg.DocumentBucket),
		slog.Bool("custom_endpoint", cfg.Endpoint != ""))
	return s, nil
}

func (s *DocumentStore) openObject(ctx context.Context, bucket, key string) (io.ReadCloser, string, error) {
	r, err := s.client.Bucket(bucket).Object(key).NewReader(ctx)
	if err != nil {
		return nil, "", err
	}
	return r, r.Attrs.ContentType, nil
}

// Fetch implements generation.DocumentSource.
func (s *DocumentStore) Fetch(ctx context.Context, key string) ([]byte, string, error) {
	key = strings.TrimPrefix(strings.TrimSpace(key), "/")
	if key == "" {
		return nil, "", fmt.Errorf("%w: empty key", generation.ErrDocumentUnavailable)
	}

	rc, contentType, err := s.open(ctx, s.bucket, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
			return nil, "", fmt.Errorf("%w: gs://%s/%s not found", generation.ErrDocumentUnavailable, s.bucket, key)
		}
		return nil, "", fmt.Errorf("open gs://%s/%s: %w", s.bucket, key, err)
	}
	defer func() {
		if cerr := rc.Close(); cerr != nil {
			s.logger.Warn("failed to close object reader", slog.String("key", key), slog.String("error", cerr.Error()))
		}
	}()

	data, err := io.ReadAll(io.LimitReader(rc, MaxDocumentBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("read gs://%s/%s: %w", s.bucket, key, err)
	}
	if len(data) > MaxDocumentBytes {
		return nil, "", fmt.Errorf("%w: gs://%s/%s", ErrDocumentTooLarge, s.bucket, key)
	}

	s.logger.Debug("fetched document",
		slog.String("key", key),
		slog.Int("bytes", len(data)),
		slog.String("content_type", contentType))
	return data, contentType, nil
}

// Close releases the underlying client.
func (s *DocumentStore) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}
