package service

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/topicgen/internal/domain"
	"github.com/phrazzld/topicgen/internal/platform/logger"
	"github.com/phrazzld/topicgen/internal/store"
)

// LedgerService persists generated questions against a topic's capacity.
type LedgerService interface {
	// SaveGenerated consumes capacity for the questions and inserts the
	// granted prefix of them, all in one transaction. The grant is decided
	// under the topic's row lock, so concurrent deliveries for the same
	// topic can never push consumed past capacity.
	SaveGenerated(ctx context.Context, topicID uuid.UUID, questions []*domain.Question) (store.ConsumeResult, error)
}

type ledgerServiceImpl struct {
	db            *sql.DB
	topicStore    store.TopicStore
	questionStore store.QuestionStore
	logger        *slog.Logger
}

// NewLedgerService creates a new LedgerService.
// It returns an error if any of the required dependencies are nil.
func NewLedgerService(
	db *sql.DB,
	topicStore store.TopicStore,
	questionStore store.QuestionStore,
	logger *slog.Logger,
) (LedgerService, error) {
	if db == nil {
		return nil, domain.NewValidationError("db", "cannot be nil", domain.ErrValidation)
	}
	if topicStore == nil {
		return nil, domain.NewValidationError("topicStore", "cannot be nil", domain.ErrValidation)
	}
	if questionStore == nil {
		return nil, domain.NewValidationError("questionStore", "cannot be nil", domain.ErrValidation)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &ledgerServiceImpl{
		db:            db,
		topicStore:    topicStore,
		questionStore: questionStore,
		logger:        logger.With(slog.String("component", "ledger_service")),
	}, nil
}

// SaveGenerated implements LedgerService.SaveGenerated.
func (s *ledgerServiceImpl) SaveGenerated(
	ctx context.Context,
	topicID uuid.UUID,
	questions []*domain.Question,
) (store.ConsumeResult, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var result store.ConsumeResult
	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		consumed, err := s.topicStore.WithTx(tx).ConsumeCapacity(ctx, topicID, len(questions))
		if err != nil {
			return NewLedgerServiceError("save_generated", "failed to consume capacity", err)
		}

		granted := questions[:min(consumed.Granted, len(questions))]
		if err := s.questionStore.WithTx(tx).CreateMultiple(ctx, granted); err != nil {
			return NewLedgerServiceError("save_generated", "failed to save questions", err)
		}

		if dropped := len(questions) - len(granted); dropped > 0 {
			log.Warn("capacity exhausted at commit time, dropping surplus questions",
				slog.String("topic_id", topicID.String()),
				slog.Int("generated", len(questions)),
				slog.Int("dropped", dropped))
		}

		result = consumed
		return nil
	})
	if err != nil {
		log.Error("failed to save generated questions",
			slog.String("topic_id", topicID.String()),
			slog.Int("count", len(questions)),
			slog.String("error", err.Error()))
		return store.ConsumeResult{}, err
	}

	log.Info("saved generated questions",
		slog.String("topic_id", topicID.String()),
		slog.Int("granted", result.Granted),
		slog.Int("consumed", result.Stats.Consumed),
		slog.Int("capacity", result.Stats.Capacity),
		slog.Int("remaining_to_generate", result.Stats.RemainingToGenerate),
		slog.Bool("eligible_for_generation", result.Stats.EligibleForGeneration))
	return result, nil
}
