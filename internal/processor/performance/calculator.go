// Package performance implements the processor that recomputes a user's
// rating and normalized accuracy from their qualifying score set.
package performance

import (
	"math"
	"sort"

	"github.com/rhythmloop/score-stats/internal/models"
)

const (
	// weightDecay scales the k-th ranked score by weightDecay^k, so lower
	// ranked contributions matter exponentially less.
	weightDecay = 0.95

	// bonusScale and bonusDecay reproduce the asymptote of the predecessor
	// algorithm's per-score bonus. The constants are historical: they are not
	// derivable from first principles and must match exactly for parity.
	bonusScale = 417.0 - 1.0/3.0
	bonusDecay = 0.9994
)

// BestPerBeatmap reduces a score set so that at most one score per beatmap
// remains, keeping the highest rated.
func BestPerBeatmap(scores []models.Score) []models.Score {
	best := make(map[uint]models.Score, len(scores))
	for _, score := range scores {
		if score.PP == nil {
			continue
		}
		current, ok := best[score.BeatmapID]
		if !ok || *score.PP > *current.PP {
			best[score.BeatmapID] = score
		}
	}

	result := make([]models.Score, 0, len(best))
	for _, score := range best {
		result = append(result, score)
	}
	return result
}

// Calculate computes the diminishing-weight rating and normalized accuracy
// over a deduplicated qualifying score set. Scores are ranked descending by
// rating; the k-th score contributes with weight 0.95^k. Accuracy is summed
// with the same weights and normalized into [0, 100]. An empty set yields
// zero for both.
func Calculate(scores []models.Score) (pp, accuracy float64) {
	if len(scores) == 0 {
		return 0, 0
	}

	ranked := make([]models.Score, len(scores))
	copy(ranked, scores)
	sort.SliceStable(ranked, func(i, j int) bool {
		return *ranked[i].PP > *ranked[j].PP
	})

	weight := 1.0
	for _, score := range ranked {
		pp += *score.PP * weight
		accuracy += score.Accuracy * weight
		weight *= weightDecay
	}

	n := float64(len(ranked))
	pp += bonusScale * (1 - math.Pow(bonusDecay, n))
	accuracy *= 100.0 / (20 * (1 - math.Pow(weightDecay, n)))

	return pp, accuracy
}
