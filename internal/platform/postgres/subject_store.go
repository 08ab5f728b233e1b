package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/topicgen/internal/domain"
	"github.com/phrazzld/topicgen/internal/store"
)

// PostgresSubjectStore implements store.SubjectStore.
type PostgresSubjectStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresSubjectStore creates a subject store.
func NewPostgresSubjectStore(db store.DBTX, logger *slog.Logger) *PostgresSubjectStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresSubjectStore{
		db:     db,
		logger: logger.With(slog.String("component", "subject_store")),
	}
}

var _ store.SubjectStore = (*PostgresSubjectStore)(nil)

// GetByID implements store.SubjectStore.GetByID.
func (s *PostgresSubjectStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Subject, error) {
	var subject domain.Subject
	err := s.db.QueryRowContext(ctx, `SELECT id, name FROM subjects WHERE id = $1`, id).
		Scan(&subject.ID, &subject.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrSubjectNotFound
		}
		return nil, store.NewStoreError("subject", "get", "query failed", MapError(err))
	}
	return &subject, nil
}
