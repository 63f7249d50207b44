package performance

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/rhythmloop/score-stats/internal/models"
	"github.com/rhythmloop/score-stats/internal/refdata"
	"github.com/rhythmloop/score-stats/internal/repository"
	"github.com/rhythmloop/score-stats/internal/scoring"
	"github.com/rhythmloop/score-stats/pkg/logger"
)

// Processor recomputes the user's rating, accuracy and rank index from the
// full current qualifying score set on every apply. Because the aggregate is
// always rebuilt from scratch, replaying or correcting an event self-heals
// the row and Revert has nothing to undo.
type Processor struct {
	scoreRepo *repository.ScoreRepository
	statsRepo *repository.StatsRepository
	ref       *refdata.Cache
	log       *logger.Logger
}

// New creates a performance processor.
func New(scoreRepo *repository.ScoreRepository, statsRepo *repository.StatsRepository, ref *refdata.Cache, log *logger.Logger) *Processor {
	return &Processor{
		scoreRepo: scoreRepo,
		statsRepo: statsRepo,
		ref:       ref,
		log:       log,
	}
}

// Name implements Processor.
func (p *Processor) Name() string { return "performance" }

// Priority implements Processor.
func (p *Processor) Priority() int { return 10 }

// RunOnFailedScores implements Processor. Failed scores never carry a rating.
func (p *Processor) RunOnFailedScores() bool { return false }

// RunOnLegacyScores implements Processor. Imported scores contribute to the
// rating but bypass build and modifier checks.
func (p *Processor) RunOnLegacyScores() bool { return true }

// Apply recomputes the aggregate from the user's qualifying scores.
func (p *Processor) Apply(_ context.Context, score *models.Score, stats *models.UserStats, tx *gorm.DB) error {
	scores, err := p.scoreRepo.WithTx(tx).QualifyingScores(score.UserID, score.RulesetID)
	if err != nil {
		return fmt.Errorf("failed to load qualifying scores: %w", err)
	}

	eligible := make([]models.Score, 0, len(scores))
	for _, s := range scores {
		ok, err := p.eligible(&s)
		if err != nil {
			return err
		}
		if ok {
			eligible = append(eligible, s)
		}
	}

	pp, accuracy := Calculate(BestPerBeatmap(eligible))
	stats.PP = pp
	stats.Accuracy = accuracy

	higher, err := p.statsRepo.WithTx(tx).CountHigherRated(score.RulesetID, stats.PP, score.UserID)
	if err != nil {
		return fmt.Errorf("failed to count higher rated users: %w", err)
	}
	stats.RankIndex = 1 + int(higher)

	p.log.Debug().
		Uint("user_id", score.UserID).
		Uint("ruleset_id", score.RulesetID).
		Int("qualifying_scores", len(eligible)).
		Float64("pp", stats.PP).
		Int("rank_index", stats.RankIndex).
		Msg("Recomputed performance aggregate")

	return nil
}

// Revert implements Processor as a no-op: the next Apply rebuilds the
// aggregate from the current score set, superseding any stale contribution.
func (p *Processor) Revert(_ context.Context, _ *models.Score, _ *models.UserStats, _ int, _ *gorm.DB) error {
	return nil
}

// ApplyGlobal implements Processor. This processor has no user-independent
// effect.
func (p *Processor) ApplyGlobal(_ context.Context, _ *models.Score, _ *gorm.DB) error {
	return nil
}

// eligible applies the reference-data checks that cannot be expressed in the
// qualifying-scores query. An absent map or build excludes the score; it is
// a filtering rule, never an error.
func (p *Processor) eligible(score *models.Score) (bool, error) {
	beatmap, err := p.ref.Beatmap(score.BeatmapID)
	if err != nil {
		return false, err
	}
	if !p.ref.IsEligibleForPerformance(beatmap, score.RulesetID) {
		return false, nil
	}

	if score.IsLegacy() {
		return true, nil
	}

	if score.BuildID == nil {
		return false, nil
	}
	build, err := p.ref.Build(*score.BuildID)
	if err != nil {
		return false, err
	}
	if build == nil || !build.AllowPerformance {
		return false, nil
	}

	return scoring.Scoreable(score.Mods), nil
}
