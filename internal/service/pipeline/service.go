// Package pipeline provides the transactional entry point that queue workers
// call per score event. It owns transaction lifetime: the processor chain
// itself never commits, rolls back, or persists the aggregate row.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/rhythmloop/score-stats/internal/models"
	"github.com/rhythmloop/score-stats/internal/processor"
	"github.com/rhythmloop/score-stats/internal/repository"
	"github.com/rhythmloop/score-stats/pkg/logger"
)

// Service processes score events end to end: one transaction per event,
// aggregate row locked for its duration, mutated by the processor chain, and
// written back before commit.
type Service struct {
	db         *repository.DB
	scoreRepo  *repository.ScoreRepository
	statsRepo  *repository.StatsRepository
	dispatcher *processor.Dispatcher
	log        *logger.Logger
}

// NewService creates a new pipeline service.
func NewService(
	db *repository.DB,
	scoreRepo *repository.ScoreRepository,
	statsRepo *repository.StatsRepository,
	dispatcher *processor.Dispatcher,
	log *logger.Logger,
) *Service {
	return &Service{
		db:         db,
		scoreRepo:  scoreRepo,
		statsRepo:  statsRepo,
		dispatcher: dispatcher,
		log:        log,
	}
}

// ProcessScoreEvent persists the score and applies it to the user's aggregate
// row inside one transaction. The transport delivers at least once, so the
// event id is checked against the persisted score set first: a redelivered or
// recalculated event reverts the previously applied version before the
// current one is applied, and user-independent effects fire only on first
// delivery. Replaying an unchanged event therefore leaves the aggregate and
// the global counters untouched.
func (s *Service) ProcessScoreEvent(ctx context.Context, score *models.Score) (*models.UserStats, error) {
	return s.run(ctx, score, nil)
}

// ReprocessScoreEvent handles a corrected event whose recorded version is
// known to the caller: the previously applied version is reverted, then the
// current version applied, in one transaction.
func (s *Service) ReprocessScoreEvent(ctx context.Context, score *models.Score, previousVersion int) (*models.UserStats, error) {
	return s.run(ctx, score, &previousVersion)
}

func (s *Service) run(ctx context.Context, score *models.Score, previousVersion *int) (*models.UserStats, error) {
	var result *models.UserStats

	err := s.db.Transaction(func(tx *gorm.DB) error {
		existing, err := s.previousDelivery(tx, score.ID)
		if err != nil {
			return fmt.Errorf("failed to check for previous delivery of score %d: %w", score.ID, err)
		}

		stats, err := s.statsRepo.WithTx(tx).GetOrCreate(score.UserID, score.RulesetID)
		if err != nil {
			return fmt.Errorf("failed to load aggregate row: %w", err)
		}

		// Undo the prior version's incremental effects before applying the
		// current one. The persisted row carries the values the tallies were
		// incremented with, so it is the row to revert, not the new event.
		if existing != nil {
			version := existing.ProcessedVersion
			if previousVersion != nil {
				version = *previousVersion
			}
			stats, err = s.dispatcher.Revert(ctx, existing, stats, version, tx)
			if err != nil {
				return err
			}
		}

		if err := s.persistScore(tx, score, existing != nil); err != nil {
			return fmt.Errorf("failed to persist score %d: %w", score.ID, err)
		}

		stats, err = s.dispatcher.Apply(ctx, score, stats, tx)
		if err != nil {
			return err
		}

		// Global effects fire once per event, not once per delivery.
		if existing == nil {
			if err := s.dispatcher.ApplyGlobal(ctx, score, tx); err != nil {
				return err
			}
		}

		if err := s.statsRepo.WithTx(tx).Save(stats); err != nil {
			return fmt.Errorf("failed to save aggregate row: %w", err)
		}

		result = stats
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// previousDelivery returns the persisted score row for the event id, or nil
// when this is the event's first delivery.
func (s *Service) previousDelivery(tx *gorm.DB, scoreID uint64) (*models.Score, error) {
	existing, err := s.scoreRepo.WithTx(tx).GetByID(scoreID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return existing, nil
}

// persistScore stores the event's score row, replacing a previously
// delivered version of the same event.
func (s *Service) persistScore(tx *gorm.DB, score *models.Score, replace bool) error {
	if replace {
		return tx.Save(score).Error
	}
	return s.scoreRepo.WithTx(tx).Create(score)
}
