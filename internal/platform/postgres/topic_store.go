package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/topicgen/internal/domain"
	"github.com/phrazzld/topicgen/internal/platform/logger"
	"github.com/phrazzld/topicgen/internal/store"
)

// PostgresTopicStore implements store.TopicStore.
type PostgresTopicStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresTopicStore creates a topic store over a connection or transaction
// managed by the caller. If logger is nil, the default logger is used.
func NewPostgresTopicStore(db store.DBTX, logger *slog.Logger) *PostgresTopicStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresTopicStore{
		db:     db,
		logger: logger.With(slog.String("component", "topic_store")),
	}
}

var _ store.TopicStore = (*PostgresTopicStore)(nil)

const getTopicQuery = `
	SELECT id, name, subject_id, language, capacity, consumed,
	       remaining_to_generate, eligible_for_generation, source_text, summary,
	       document_key, document_start_page, document_end_page, force_text_mode,
	       created_at, updated_at
	FROM topics
	WHERE id = $1
`

// GetByID implements store.TopicStore.GetByID.
func (s *PostgresTopicStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Topic, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var (
		t         domain.Topic
		subjectID uuid.NullUUID
		docKey    sql.NullString
		docStart  sql.NullInt32
		docEnd    sql.NullInt32
	)
	err := s.db.QueryRowContext(ctx, getTopicQuery, id).Scan(
		&t.ID,
		&t.Name,
		&subjectID,
		&t.Language,
		&t.Capacity,
		&t.Consumed,
		&t.RemainingToGenerate,
		&t.EligibleForGeneration,
		&t.SourceText,
		&t.Summary,
		&docKey,
		&docStart,
		&docEnd,
		&t.ForceTextMode,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("topic not found", slog.String("topic_id", id.String()))
			return nil, store.ErrTopicNotFound
		}
		log.Error("failed to get topic",
			slog.String("topic_id", id.String()),
			slog.String("error", err.Error()))
		return nil, store.NewStoreError("topic", "get", "query failed", MapError(err))
	}

	if subjectID.Valid {
		sid := subjectID.UUID
		t.SubjectID = &sid
	}
	if docKey.Valid {
		t.Document = &domain.DocumentRef{
			Key:       docKey.String,
			StartPage: int(docStart.Int32),
			EndPage:   int(docEnd.Int32),
		}
	}
	return &t, nil
}

// ListEligibleAfter implements store.TopicStore.ListEligibleAfter.
func (s *PostgresTopicStore) ListEligibleAfter(
	ctx context.Context,
	after *uuid.UUID,
	limit int,
) ([]store.TopicRef, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", store.ErrInvalidEntity)
	}

	var (
		rows *sql.Rows
		err  error
	)
	if after == nil {
		rows, err = s.db.QueryContext(ctx, `
			SELECT id, capacity, consumed
			FROM topics
			WHERE eligible_for_generation
			ORDER BY id ASC
			LIMIT $1
		`, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT id, capacity, consumed
			FROM topics
			WHERE eligible_for_generation AND id > $1
			ORDER BY id ASC
			LIMIT $2
		`, *after, limit)
	}
	if err != nil {
		log.Error("failed to list eligible topics", slog.String("error", err.Error()))
		return nil, store.NewStoreError("topic", "list", "query failed", MapError(err))
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			log.Warn("failed to close rows", slog.String("error", cerr.Error()))
		}
	}()

	refs := make([]store.TopicRef, 0, limit)
	for rows.Next() {
		var ref store.TopicRef
		if err := rows.Scan(&ref.ID, &ref.Capacity, &ref.Consumed); err != nil {
			return nil, store.NewStoreError("topic", "list", "scan failed", err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("topic", "list", "row iteration failed", MapError(err))
	}

	log.Debug("listed eligible topics",
		slog.Int("count", len(refs)),
		slog.Int("limit", limit))
	return refs, nil
}

// consumeCapacityQuery grants at most the unused capacity under a row lock and
// applies the grant to both counters in the same statement.
const consumeCapacityQuery = `
	UPDATE topics t
	SET consumed = t.consumed + g.granted,
	    remaining_to_generate = GREATEST(t.remaining_to_generate - g.granted, 0),
	    eligible_for_generation = t.eligible_for_generation
	        AND GREATEST(t.remaining_to_generate - g.granted, 0) > 0,
	    updated_at = now()
	FROM (
	    SELECT id, LEAST($2::int, GREATEST(capacity - consumed, 0)) AS granted
	    FROM topics
	    WHERE id = $1
	    FOR UPDATE
	) g
	WHERE t.id = g.id
	RETURNING g.granted, t.consumed, t.capacity, t.remaining_to_generate, t.eligible_for_generation
`

// ConsumeCapacity implements store.TopicStore.ConsumeCapacity.
func (s *PostgresTopicStore) ConsumeCapacity(
	ctx context.Context,
	id uuid.UUID,
	units int,
) (store.ConsumeResult, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if units < 0 {
		units = 0
	}

	var res store.ConsumeResult
	err := s.db.QueryRowContext(ctx, consumeCapacityQuery, id, units).Scan(
		&res.Granted,
		&res.Stats.Consumed,
		&res.Stats.Capacity,
		&res.Stats.RemainingToGenerate,
		&res.Stats.EligibleForGeneration,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.ConsumeResult{}, store.ErrTopicNotFound
		}
		log.Error("failed to consume topic capacity",
			slog.String("topic_id", id.String()),
			slog.Int("units", units),
			slog.String("error", err.Error()))
		return store.ConsumeResult{}, store.NewStoreError("topic", "consume", "capacity update rejected",
			fmt.Errorf("%w: %w", store.ErrUpdateFailed, MapError(err)))
	}

	log.Debug("consumed topic capacity",
		slog.String("topic_id", id.String()),
		slog.Int("requested", units),
		slog.Int("granted", res.Granted),
		slog.Int("consumed", res.Stats.Consumed),
		slog.Int("remaining_to_generate", res.Stats.RemainingToGenerate))
	return res, nil
}

// WithTx implements store.TopicStore.WithTx.
func (s *PostgresTopicStore) WithTx(tx *sql.Tx) store.TopicStore {
	return &PostgresTopicStore{db: tx, logger: s.logger}
}
