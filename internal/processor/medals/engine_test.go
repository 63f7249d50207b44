package medals

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/rhythmloop/score-stats/internal/models"
	"github.com/rhythmloop/score-stats/internal/notify"
	"github.com/rhythmloop/score-stats/internal/refdata"
	"github.com/rhythmloop/score-stats/internal/repository"
	"github.com/rhythmloop/score-stats/pkg/logger"
)

// recordingNotifier captures notifications instead of delivering them.
type recordingNotifier struct {
	sent []notify.Notification
	err  error
}

func (n *recordingNotifier) Notify(_ context.Context, notification notify.Notification) error {
	n.sent = append(n.sent, notification)
	return n.err
}

func setupTestDB(t *testing.T) *repository.DB {
	t.Helper()

	gormDB, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	db := &repository.DB{DB: gormDB}
	require.NoError(t, db.AutoMigrate())

	t.Cleanup(func() {
		sqlDB, _ := gormDB.DB()
		_ = sqlDB.Close()
	})

	return db
}

func newEngine(t *testing.T, db *repository.DB, notifier Notifier, awarders ...Awarder) *Engine {
	t.Helper()

	cache := refdata.New(repository.NewBeatmapRepository(db), time.Minute, logger.Nop())
	return NewEngine(repository.NewMedalRepository(db), cache, notifier, logger.Nop(), awarders...)
}

func seedMedal(t *testing.T, db *repository.DB, id uint, slug string, rulesetID *uint) {
	t.Helper()
	require.NoError(t, db.Create(&models.Medal{ID: id, Name: slug, Slug: slug, RulesetID: rulesetID, Enabled: true}).Error)
}

func seedBeatmap(t *testing.T, db *repository.DB, id uint, status string) {
	t.Helper()
	require.NoError(t, db.Create(&models.Beatmap{ID: id, RulesetID: 0, Status: status}).Error)
}

func TestApply_AwardsMedalOnce(t *testing.T) {
	db := setupTestDB(t)
	notifier := &recordingNotifier{}
	engine := newEngine(t, db, notifier, FirstPassAwarder{})

	seedBeatmap(t, db, 1, models.BeatmapStatusRanked)
	seedMedal(t, db, 1, SlugFirstSteps, nil)

	var signalled []uint
	engine.OnAwarded(func(_, medalID uint) {
		signalled = append(signalled, medalID)
	})

	event := &models.Score{ID: 1, UserID: 5, RulesetID: 0, BeatmapID: 1, Passed: true}
	stats := &models.UserStats{UserID: 5, RulesetID: 0}

	require.NoError(t, engine.Apply(context.Background(), event, stats, db.DB))

	granted, err := repository.NewMedalRepository(db).UserMedalIDs(5)
	require.NoError(t, err)
	assert.Contains(t, granted, uint(1))
	assert.Len(t, notifier.sent, 1)
	assert.Equal(t, uint(5), notifier.sent[0].UserID)
	assert.Equal(t, []uint{1}, signalled)

	// The rule's condition is still satisfied, but the grant must not recur.
	require.NoError(t, engine.Apply(context.Background(), event, stats, db.DB))
	assert.Len(t, notifier.sent, 1)
	assert.Equal(t, []uint{1}, signalled)
}

func TestApply_SkipsMapsWithoutRankedStatus(t *testing.T) {
	db := setupTestDB(t)
	notifier := &recordingNotifier{}
	engine := newEngine(t, db, notifier, FirstPassAwarder{})

	seedBeatmap(t, db, 1, models.BeatmapStatusPending)
	seedMedal(t, db, 1, SlugFirstSteps, nil)

	event := &models.Score{ID: 1, UserID: 5, RulesetID: 0, BeatmapID: 1, Passed: true}
	require.NoError(t, engine.Apply(context.Background(), event, &models.UserStats{}, db.DB))

	granted, err := repository.NewMedalRepository(db).UserMedalIDs(5)
	require.NoError(t, err)
	assert.Empty(t, granted)
	assert.Empty(t, notifier.sent)
}

func TestApply_NotificationFailureDoesNotFailPipeline(t *testing.T) {
	db := setupTestDB(t)
	notifier := &recordingNotifier{err: errors.New("achievement service down")}
	engine := newEngine(t, db, notifier, FirstPassAwarder{})

	seedBeatmap(t, db, 1, models.BeatmapStatusRanked)
	seedMedal(t, db, 1, SlugFirstSteps, nil)

	event := &models.Score{ID: 1, UserID: 5, RulesetID: 0, BeatmapID: 1, Passed: true}
	require.NoError(t, engine.Apply(context.Background(), event, &models.UserStats{}, db.DB))

	// The grant stands even though delivery failed.
	granted, err := repository.NewMedalRepository(db).UserMedalIDs(5)
	require.NoError(t, err)
	assert.Contains(t, granted, uint(1))
}

func TestApply_ModeRestrictedMedalsRequireMatchingRuleset(t *testing.T) {
	db := setupTestDB(t)
	notifier := &recordingNotifier{}
	engine := newEngine(t, db, notifier, FirstPassAwarder{})

	seedBeatmap(t, db, 1, models.BeatmapStatusRanked)
	otherRuleset := uint(2)
	seedMedal(t, db, 1, SlugFirstSteps, &otherRuleset)

	event := &models.Score{ID: 1, UserID: 5, RulesetID: 0, BeatmapID: 1, Passed: true}
	require.NoError(t, engine.Apply(context.Background(), event, &models.UserStats{}, db.DB))

	granted, err := repository.NewMedalRepository(db).UserMedalIDs(5)
	require.NoError(t, err)
	assert.Empty(t, granted)
}

func TestApply_FailedScoreGatesAwardersIndividually(t *testing.T) {
	db := setupTestDB(t)
	notifier := &recordingNotifier{}
	engine := newEngine(t, db, notifier, ComboAwarder{}, PlayCountAwarder{})

	seedBeatmap(t, db, 1, models.BeatmapStatusRanked)
	seedMedal(t, db, 1, SlugCombo500, nil)
	seedMedal(t, db, 2, SlugPlays100, nil)

	// Failed score with a big combo and a milestone play count: only the
	// play count rule may fire.
	event := &models.Score{ID: 1, UserID: 5, RulesetID: 0, BeatmapID: 1, Passed: false, MaxCombo: 900}
	stats := &models.UserStats{UserID: 5, RulesetID: 0, PlayCount: 100}

	require.NoError(t, engine.Apply(context.Background(), event, stats, db.DB))

	granted, err := repository.NewMedalRepository(db).UserMedalIDs(5)
	require.NoError(t, err)
	assert.NotContains(t, granted, uint(1))
	assert.Contains(t, granted, uint(2))
}

// aliasingAwarder returns the candidate slice it was handed, unfiltered.
type aliasingAwarder struct{}

func (aliasingAwarder) Name() string                 { return "aliasing" }
func (aliasingAwarder) TriggersOnFailedScores() bool { return false }
func (aliasingAwarder) Check(candidates []models.Medal, _ *AwardContext) []models.Medal {
	return candidates
}

func TestApply_AwarderMayReturnCandidateSubslice(t *testing.T) {
	db := setupTestDB(t)
	notifier := &recordingNotifier{}
	engine := newEngine(t, db, notifier, aliasingAwarder{})

	seedBeatmap(t, db, 1, models.BeatmapStatusRanked)
	seedMedal(t, db, 1, "alpha", nil)
	seedMedal(t, db, 2, "beta", nil)
	seedMedal(t, db, 3, "gamma", nil)

	event := &models.Score{ID: 1, UserID: 5, RulesetID: 0, BeatmapID: 1, Passed: true}
	require.NoError(t, engine.Apply(context.Background(), event, &models.UserStats{}, db.DB))

	// Every candidate the rule returned is granted, even though the result
	// aliases the list the engine prunes between grants.
	granted, err := repository.NewMedalRepository(db).UserMedalIDs(5)
	require.NoError(t, err)
	assert.Contains(t, granted, uint(1))
	assert.Contains(t, granted, uint(2))
	assert.Contains(t, granted, uint(3))
	assert.Len(t, notifier.sent, 3)
}

func TestApply_DefinitionLoadRetriesAfterFailure(t *testing.T) {
	db := setupTestDB(t)
	notifier := &recordingNotifier{}
	engine := newEngine(t, db, notifier, FirstPassAwarder{})

	seedBeatmap(t, db, 1, models.BeatmapStatusRanked)

	// Definitions are unreadable on the first event.
	require.NoError(t, db.Migrator().DropTable(&models.Medal{}))

	event := &models.Score{ID: 1, UserID: 5, RulesetID: 0, BeatmapID: 1, Passed: true}
	err := engine.Apply(context.Background(), event, &models.UserStats{}, db.DB)
	require.Error(t, err)

	// Storage recovers; the next event must load the definitions instead of
	// replaying the cached failure.
	require.NoError(t, db.DB.AutoMigrate(&models.Medal{}))
	seedMedal(t, db, 1, SlugFirstSteps, nil)

	require.NoError(t, engine.Apply(context.Background(), event, &models.UserStats{}, db.DB))

	granted, err := repository.NewMedalRepository(db).UserMedalIDs(5)
	require.NoError(t, err)
	assert.Contains(t, granted, uint(1))
}

func TestApply_ComboMilestones(t *testing.T) {
	db := setupTestDB(t)
	notifier := &recordingNotifier{}
	engine := newEngine(t, db, notifier, ComboAwarder{})

	seedBeatmap(t, db, 1, models.BeatmapStatusRanked)
	seedMedal(t, db, 1, SlugCombo500, nil)
	seedMedal(t, db, 2, SlugCombo750, nil)
	seedMedal(t, db, 3, SlugCombo1000, nil)

	event := &models.Score{ID: 1, UserID: 5, RulesetID: 0, BeatmapID: 1, Passed: true, MaxCombo: 800}
	require.NoError(t, engine.Apply(context.Background(), event, &models.UserStats{}, db.DB))

	granted, err := repository.NewMedalRepository(db).UserMedalIDs(5)
	require.NoError(t, err)
	assert.Contains(t, granted, uint(1))
	assert.Contains(t, granted, uint(2))
	assert.NotContains(t, granted, uint(3))
}
