// Package processor implements the ordered pipeline that recomputes per-user
// aggregate statistics and awards medals in response to score events.
package processor

import (
	"context"

	"gorm.io/gorm"

	"github.com/rhythmloop/score-stats/internal/models"
)

// Processor is one stage of the pipeline. Stages execute in ascending
// Priority order against the same mutable aggregate row, inside the
// transaction supplied by the caller; a later stage observes the state
// already written by earlier ones.
type Processor interface {
	// Name identifies the processor in logs and wrapped errors.
	Name() string

	// Priority orders execution; lower runs first.
	Priority() int

	// RunOnFailedScores gates the processor on the event's pass flag.
	RunOnFailedScores() bool

	// RunOnLegacyScores gates the processor on events imported from the
	// predecessor scoring system.
	RunOnLegacyScores() bool

	// Apply applies the processor's effect on the user's aggregate row.
	Apply(ctx context.Context, score *models.Score, stats *models.UserStats, tx *gorm.DB) error

	// Revert undoes the effect of a previously applied version of the event.
	// Processors whose state is derived by full recomputation implement this
	// as a no-op: the next Apply supersedes any stale contribution.
	Revert(ctx context.Context, score *models.Score, stats *models.UserStats, previousVersion int, tx *gorm.DB) error

	// ApplyGlobal applies effects independent of any single user's aggregate.
	ApplyGlobal(ctx context.Context, score *models.Score, tx *gorm.DB) error
}
