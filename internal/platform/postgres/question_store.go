package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/phrazzld/topicgen/internal/domain"
	"github.com/phrazzld/topicgen/internal/platform/logger"
	"github.com/phrazzld/topicgen/internal/store"
)

// questionColumns is the number of bound parameters per inserted question.
const questionColumns = 10

// PostgresQuestionStore implements store.QuestionStore.
type PostgresQuestionStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresQuestionStore creates a question store.
func NewPostgresQuestionStore(db store.DBTX, logger *slog.Logger) *PostgresQuestionStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresQuestionStore{
		db:     db,
		logger: logger.With(slog.String("component", "question_store")),
	}
}

var _ store.QuestionStore = (*PostgresQuestionStore)(nil)

// CreateMultiple implements store.QuestionStore.CreateMultiple.
// All questions are validated before anything is written, and inserted with a
// single multi-row statement.
func (s *PostgresQuestionStore) CreateMultiple(ctx context.Context, questions []*domain.Question) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if len(questions) == 0 {
		return nil
	}

	var (
		sb   strings.Builder
		args = make([]any, 0, len(questions)*questionColumns)
	)
	sb.WriteString(`INSERT INTO questions
		(id, topic_id, body, options, correct_label, explanation, difficulty, language, metadata, created_at)
		VALUES `)

	for i, q := range questions {
		if err := q.Validate(); err != nil {
			log.Warn("question validation failed during create",
				slog.String("question_id", q.ID.String()),
				slog.String("error", err.Error()))
			return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
		}

		options, err := json.Marshal(q.Options)
		if err != nil {
			return fmt.Errorf("failed to encode options: %w", err)
		}
		meta, err := json.Marshal(q.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode metadata: %w", err)
		}

		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * questionColumns
		sb.WriteString("(")
		for c := 1; c <= questionColumns; c++ {
			if c > 1 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "$%d", base+c)
		}
		sb.WriteString(")")

		args = append(args,
			q.ID,
			q.TopicID,
			q.Body,
			string(options),
			q.CorrectLabel,
			q.Explanation,
			string(q.Difficulty),
			q.Language,
			string(meta),
			q.CreatedAt,
		)
	}

	if _, err := s.db.ExecContext(ctx, sb.String(), args...); err != nil {
		log.Error("failed to insert questions",
			slog.Int("count", len(questions)),
			slog.String("topic_id", questions[0].TopicID.String()),
			slog.String("error", err.Error()))
		return store.NewStoreError("question", "create", "insert failed", MapError(err))
	}

	log.Debug("questions created",
		slog.Int("count", len(questions)),
		slog.String("topic_id", questions[0].TopicID.String()))
	return nil
}

// CountByTopic implements store.QuestionStore.CountByTopic.
func (s *PostgresQuestionStore) CountByTopic(ctx context.Context, topicID uuid.UUID) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM questions WHERE topic_id = $1`, topicID).Scan(&n)
	if err != nil {
		return 0, store.NewStoreError("question", "count", "query failed", MapError(err))
	}
	return n, nil
}

// WithTx implements store.QuestionStore.WithTx.
func (s *PostgresQuestionStore) WithTx(tx *sql.Tx) store.QuestionStore {
	return &PostgresQuestionStore{db: tx, logger: s.logger}
}
