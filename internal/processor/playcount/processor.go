// Package playcount implements the processor that maintains play count and
// total score tallies on the user's aggregate row.
package playcount

import (
	"context"

	"gorm.io/gorm"

	"github.com/rhythmloop/score-stats/internal/models"
	"github.com/rhythmloop/score-stats/internal/repository"
	"github.com/rhythmloop/score-stats/pkg/logger"
)

// GlobalPlayCountKey names the global counter bumped by ApplyGlobal.
const GlobalPlayCountKey = "play_count"

// Processor increments per-user tallies rather than recomputing them;
// unlike the recompute-based stages its Revert is the exact structural
// inverse of Apply, or replayed corrections would drift the aggregate.
type Processor struct {
	counterRepo *repository.CounterRepository
	log         *logger.Logger
}

// New creates a play count processor.
func New(counterRepo *repository.CounterRepository, log *logger.Logger) *Processor {
	return &Processor{
		counterRepo: counterRepo,
		log:         log,
	}
}

// Name implements Processor.
func (p *Processor) Name() string { return "playcount" }

// Priority implements Processor. Runs first so later stages observe the
// updated tallies.
func (p *Processor) Priority() int { return 0 }

// RunOnFailedScores implements Processor. A failed attempt is still a play.
func (p *Processor) RunOnFailedScores() bool { return true }

// RunOnLegacyScores implements Processor.
func (p *Processor) RunOnLegacyScores() bool { return true }

// Apply increments the user's play tallies.
func (p *Processor) Apply(_ context.Context, score *models.Score, stats *models.UserStats, _ *gorm.DB) error {
	stats.PlayCount++
	stats.TotalScore += score.TotalScore
	return nil
}

// Revert decrements the tallies incremented by a previous Apply of the same
// event, floored at zero against replayed reverts.
func (p *Processor) Revert(_ context.Context, score *models.Score, stats *models.UserStats, _ int, _ *gorm.DB) error {
	if stats.PlayCount > 0 {
		stats.PlayCount--
	}
	if stats.TotalScore >= score.TotalScore {
		stats.TotalScore -= score.TotalScore
	} else {
		stats.TotalScore = 0
	}
	return nil
}

// ApplyGlobal bumps the global play counter inside the caller's transaction.
func (p *Processor) ApplyGlobal(_ context.Context, _ *models.Score, tx *gorm.DB) error {
	return p.counterRepo.WithTx(tx).Increment(GlobalPlayCountKey, 1)
}
