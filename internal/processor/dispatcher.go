package processor

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/rhythmloop/score-stats/internal/metrics"
	"github.com/rhythmloop/score-stats/internal/models"
	"github.com/rhythmloop/score-stats/internal/refdata"
	"github.com/rhythmloop/score-stats/pkg/logger"
)

// Dispatcher drives a single score event through all eligible processors in
// ascending priority order. All entry points run inside the caller-supplied
// transaction handle and never open a transaction of their own; the caller
// owns commit and rollback, and persists the returned aggregate row.
type Dispatcher struct {
	registry *Registry
	ref      *refdata.Cache
	log      *logger.Logger
}

// NewDispatcher creates a dispatcher over the given registry. The reference
// cache is primed here so first use on the hot path does not block on a cold
// load; a failed prime is logged and recovered lazily.
func NewDispatcher(registry *Registry, ref *refdata.Cache, log *logger.Logger) *Dispatcher {
	if err := ref.Prime(); err != nil {
		log.Warn().Err(err).Msg("Failed to prime reference-data cache")
	}

	return &Dispatcher{
		registry: registry,
		ref:      ref,
		log:      log,
	}
}

// Apply applies the event to the user's aggregate row through every eligible
// processor and returns the mutated row for the caller to persist.
func (d *Dispatcher) Apply(ctx context.Context, score *models.Score, stats *models.UserStats, tx *gorm.DB) (*models.UserStats, error) {
	start := time.Now()

	for _, p := range d.registry.Eligible(score) {
		if err := p.Apply(ctx, score, stats, tx); err != nil {
			metrics.RecordScoreEvent(score.RulesetID, "apply", "error")
			return nil, fmt.Errorf("processor %s: apply failed: %w", p.Name(), err)
		}
	}

	metrics.RecordScoreEvent(score.RulesetID, "apply", "ok")
	metrics.ObserveEventProcessing("apply", time.Since(start).Seconds())

	d.log.Debug().
		Uint64("score_id", score.ID).
		Uint("user_id", score.UserID).
		Uint("ruleset_id", score.RulesetID).
		Msg("Score event applied")

	return stats, nil
}

// Revert undoes the effect of a previously applied event whose recorded
// version differs from the current one.
func (d *Dispatcher) Revert(ctx context.Context, score *models.Score, stats *models.UserStats, previousVersion int, tx *gorm.DB) (*models.UserStats, error) {
	start := time.Now()

	for _, p := range d.registry.Eligible(score) {
		if err := p.Revert(ctx, score, stats, previousVersion, tx); err != nil {
			metrics.RecordScoreEvent(score.RulesetID, "revert", "error")
			return nil, fmt.Errorf("processor %s: revert failed: %w", p.Name(), err)
		}
	}

	metrics.RecordScoreEvent(score.RulesetID, "revert", "ok")
	metrics.ObserveEventProcessing("revert", time.Since(start).Seconds())

	d.log.Debug().
		Uint64("score_id", score.ID).
		Uint("user_id", score.UserID).
		Int("previous_version", previousVersion).
		Msg("Score event reverted")

	return stats, nil
}

// ApplyGlobal applies effects independent of any single user's aggregate,
// such as global counters.
func (d *Dispatcher) ApplyGlobal(ctx context.Context, score *models.Score, tx *gorm.DB) error {
	for _, p := range d.registry.Eligible(score) {
		if err := p.ApplyGlobal(ctx, score, tx); err != nil {
			metrics.RecordScoreEvent(score.RulesetID, "apply_global", "error")
			return fmt.Errorf("processor %s: apply global failed: %w", p.Name(), err)
		}
	}

	metrics.RecordScoreEvent(score.RulesetID, "apply_global", "ok")
	return nil
}
