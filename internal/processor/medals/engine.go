// Package medals implements the processor that evaluates award rules against
// a user's current event and aggregate state, granting each achievement at
// most once.
package medals

import (
	"context"
	"fmt"
	"sync"

	"gorm.io/gorm"

	"github.com/rhythmloop/score-stats/internal/metrics"
	"github.com/rhythmloop/score-stats/internal/models"
	"github.com/rhythmloop/score-stats/internal/notify"
	"github.com/rhythmloop/score-stats/internal/refdata"
	"github.com/rhythmloop/score-stats/internal/repository"
	"github.com/rhythmloop/score-stats/pkg/logger"
)

// AwardContext carries everything an award rule may consult when deciding
// whether a candidate medal has been newly earned.
type AwardContext struct {
	Score *models.Score
	Stats *models.UserStats
	Ref   *refdata.Cache
	Tx    *gorm.DB
}

// Awarder is a pluggable award rule: given the remaining candidate medals
// and the evaluation context, it returns the subset newly earned. Each
// awarder owns its own domain logic; the engine only enforces the contract.
type Awarder interface {
	Name() string
	TriggersOnFailedScores() bool
	Check(candidates []models.Medal, actx *AwardContext) []models.Medal
}

// Notifier delivers medal notifications to the achievement service.
type Notifier interface {
	Notify(ctx context.Context, n notify.Notification) error
}

// Engine is the medal-awarding pipeline stage. Medal definitions are loaded
// once per engine lifetime and assumed static for the process; the granted
// set is queried fresh per event to prevent duplicate awards.
type Engine struct {
	medalRepo *repository.MedalRepository
	ref       *refdata.Cache
	notifier  Notifier
	awarders  []Awarder
	log       *logger.Logger

	observersMu sync.Mutex
	observers   []func(userID, medalID uint)

	defsMu      sync.Mutex
	definitions []models.Medal
	defsLoaded  bool
}

// NewEngine creates a medal award engine with an explicit awarder list.
func NewEngine(medalRepo *repository.MedalRepository, ref *refdata.Cache, notifier Notifier, log *logger.Logger, awarders ...Awarder) *Engine {
	return &Engine{
		medalRepo: medalRepo,
		ref:       ref,
		notifier:  notifier,
		awarders:  awarders,
		log:       log,
	}
}

// OnAwarded registers an in-process observer invoked after each grant.
// Used as a testing and metrics hook.
func (e *Engine) OnAwarded(fn func(userID, medalID uint)) {
	e.observersMu.Lock()
	defer e.observersMu.Unlock()
	e.observers = append(e.observers, fn)
}

// Name implements Processor.
func (e *Engine) Name() string { return "medals" }

// Priority implements Processor. Runs after the aggregate recomputation so
// award rules observe up-to-date statistics.
func (e *Engine) Priority() int { return 20 }

// RunOnFailedScores implements Processor. The engine runs for failed scores
// too; individual awarders gate on pass/fail themselves.
func (e *Engine) RunOnFailedScores() bool { return true }

// RunOnLegacyScores implements Processor. Bulk-imported legacy scores do not
// trigger achievement notifications.
func (e *Engine) RunOnLegacyScores() bool { return false }

// Apply evaluates all eligible award rules against the event.
func (e *Engine) Apply(ctx context.Context, score *models.Score, stats *models.UserStats, tx *gorm.DB) error {
	beatmap, err := e.ref.Beatmap(score.BeatmapID)
	if err != nil {
		return err
	}
	if beatmap == nil || !beatmap.HasRankedStatus() {
		return nil
	}

	candidates, err := e.candidates(score, tx)
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		return nil
	}

	actx := &AwardContext{
		Score: score,
		Stats: stats,
		Ref:   e.ref,
		Tx:    tx,
	}

	for _, awarder := range e.awarders {
		if !score.Passed && !awarder.TriggersOnFailedScores() {
			continue
		}

		for _, medal := range awarder.Check(candidates, actx) {
			if err := e.award(ctx, score, medal, tx); err != nil {
				return err
			}
			candidates = removeMedal(candidates, medal.ID)
		}
	}

	return nil
}

// Revert implements Processor as a no-op: achievements, once granted, are
// not retracted by this engine.
func (e *Engine) Revert(_ context.Context, _ *models.Score, _ *models.UserStats, _ int, _ *gorm.DB) error {
	return nil
}

// ApplyGlobal implements Processor. The engine has no user-independent effect.
func (e *Engine) ApplyGlobal(_ context.Context, _ *models.Score, _ *gorm.DB) error {
	return nil
}

// candidates returns the enabled definitions valid for the event's ruleset
// that the user has not been granted yet.
func (e *Engine) candidates(score *models.Score, tx *gorm.DB) ([]models.Medal, error) {
	definitions, err := e.loadDefinitions()
	if err != nil {
		return nil, err
	}

	granted, err := e.medalRepo.WithTx(tx).UserMedalIDs(score.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load granted medals: %w", err)
	}

	candidates := make([]models.Medal, 0, len(definitions))
	for _, medal := range definitions {
		if !medal.ForRuleset(score.RulesetID) {
			continue
		}
		if _, already := granted[medal.ID]; already {
			continue
		}
		candidates = append(candidates, medal)
	}
	return candidates, nil
}

// loadDefinitions loads the enabled medal definitions once per engine
// lifetime, where "once" means one successful load. A failed load fails the
// current event only; the next event re-attempts, so a transient storage
// error does not poison the engine until restart.
func (e *Engine) loadDefinitions() ([]models.Medal, error) {
	e.defsMu.Lock()
	defer e.defsMu.Unlock()

	if e.defsLoaded {
		return e.definitions, nil
	}

	definitions, err := e.medalRepo.Enabled()
	if err != nil {
		return nil, fmt.Errorf("failed to load medal definitions: %w", err)
	}

	e.definitions = definitions
	e.defsLoaded = true
	e.log.Info().Int("medals", len(definitions)).Msg("Loaded medal definitions")
	return e.definitions, nil
}

// award grants one medal: a defensive re-check closes the race with a
// concurrent pipeline instance for the same user, the notification is fired
// best-effort, and registered observers are signalled.
func (e *Engine) award(ctx context.Context, score *models.Score, medal models.Medal, tx *gorm.DB) error {
	repo := e.medalRepo.WithTx(tx)

	already, err := repo.HasUserMedal(score.UserID, medal.ID)
	if err != nil {
		return fmt.Errorf("failed to re-check granted medal: %w", err)
	}
	if already {
		return nil
	}

	beatmapID := score.BeatmapID
	if err := repo.Award(score.UserID, medal.ID, &beatmapID); err != nil {
		return fmt.Errorf("failed to award medal %s: %w", medal.Slug, err)
	}

	metrics.RecordMedalAwarded(medal.Slug, score.RulesetID)

	if err := e.notifier.Notify(ctx, notify.Notification{
		UserID:    score.UserID,
		MedalID:   medal.ID,
		BeatmapID: &beatmapID,
	}); err != nil {
		// Best-effort side channel; never roll back the grant.
		e.log.Warn().
			Err(err).
			Uint("user_id", score.UserID).
			Str("medal", medal.Slug).
			Msg("Failed to deliver medal notification")
	}

	e.observersMu.Lock()
	observers := make([]func(userID, medalID uint), len(e.observers))
	copy(observers, e.observers)
	e.observersMu.Unlock()
	for _, fn := range observers {
		fn(score.UserID, medal.ID)
	}

	e.log.Info().
		Uint("user_id", score.UserID).
		Str("medal", medal.Slug).
		Uint("beatmap_id", score.BeatmapID).
		Msg("Medal awarded")

	return nil
}

// removeMedal filters into a fresh slice. Awarders may return subslices of
// the candidate list, so the backing array must not be compacted in place
// while their results are still being iterated.
func removeMedal(medals []models.Medal, id uint) []models.Medal {
	remaining := make([]models.Medal, 0, len(medals))
	for _, medal := range medals {
		if medal.ID != id {
			remaining = append(remaining, medal)
		}
	}
	return remaining
}
