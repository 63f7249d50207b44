package medals

import (
	"github.com/rhythmloop/score-stats/internal/models"
)

// Medal slugs referenced by the shipped awarders. Definitions live in the
// medals table; an awarder only fires for slugs present in the candidate set.
const (
	SlugFirstSteps = "first-steps"

	SlugPlays100  = "plays-100"
	SlugPlays1000 = "plays-1000"
	SlugPlays5000 = "plays-5000"

	SlugCombo500  = "combo-500"
	SlugCombo750  = "combo-750"
	SlugCombo1000 = "combo-1000"
)

// FirstPassAwarder grants the introductory medal on a user's first pass of a
// ranked map. The candidate set already excludes granted medals, so simply
// passing is the condition.
type FirstPassAwarder struct{}

// Name implements Awarder.
func (FirstPassAwarder) Name() string { return "first_pass" }

// TriggersOnFailedScores implements Awarder.
func (FirstPassAwarder) TriggersOnFailedScores() bool { return false }

// Check implements Awarder.
func (FirstPassAwarder) Check(candidates []models.Medal, actx *AwardContext) []models.Medal {
	if !actx.Score.Passed {
		return nil
	}
	return matchSlugs(candidates, func(slug string) bool {
		return slug == SlugFirstSteps
	})
}

// PlayCountAwarder grants milestone medals based on the aggregate play
// count. It relies on the play count stage having already run for this
// event, so the threshold includes the triggering play.
type PlayCountAwarder struct{}

var playCountThresholds = map[string]int{
	SlugPlays100:  100,
	SlugPlays1000: 1000,
	SlugPlays5000: 5000,
}

// Name implements Awarder.
func (PlayCountAwarder) Name() string { return "play_count" }

// TriggersOnFailedScores implements Awarder. Failed plays still count.
func (PlayCountAwarder) TriggersOnFailedScores() bool { return true }

// Check implements Awarder.
func (PlayCountAwarder) Check(candidates []models.Medal, actx *AwardContext) []models.Medal {
	return matchSlugs(candidates, func(slug string) bool {
		threshold, ok := playCountThresholds[slug]
		return ok && actx.Stats.PlayCount >= threshold
	})
}

// ComboAwarder grants milestone medals for the combo reached on the
// triggering score itself.
type ComboAwarder struct{}

var comboThresholds = map[string]int{
	SlugCombo500:  500,
	SlugCombo750:  750,
	SlugCombo1000: 1000,
}

// Name implements Awarder.
func (ComboAwarder) Name() string { return "combo" }

// TriggersOnFailedScores implements Awarder.
func (ComboAwarder) TriggersOnFailedScores() bool { return false }

// Check implements Awarder.
func (ComboAwarder) Check(candidates []models.Medal, actx *AwardContext) []models.Medal {
	if !actx.Score.Passed {
		return nil
	}
	return matchSlugs(candidates, func(slug string) bool {
		threshold, ok := comboThresholds[slug]
		return ok && actx.Score.MaxCombo >= threshold
	})
}

func matchSlugs(candidates []models.Medal, earned func(slug string) bool) []models.Medal {
	var matched []models.Medal
	for _, medal := range candidates {
		if earned(medal.Slug) {
			matched = append(matched, medal)
		}
	}
	return matched
}
