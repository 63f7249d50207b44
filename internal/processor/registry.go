package processor

import (
	"sort"

	"github.com/rhythmloop/score-stats/internal/models"
)

// Registry holds the ordered set of pipeline processors. Processors are
// registered explicitly at construction, never discovered at runtime, so the
// execution order is auditable from the registration list alone.
type Registry struct {
	processors []Processor
}

// NewRegistry creates a registry from an explicit registration list. The
// list is stably sorted by ascending priority; equal priorities preserve
// registration order.
func NewRegistry(processors ...Processor) *Registry {
	sorted := make([]Processor, len(processors))
	copy(sorted, processors)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority() < sorted[j].Priority()
	})
	return &Registry{processors: sorted}
}

// All returns every registered processor in execution order.
func (r *Registry) All() []Processor {
	return r.processors
}

// Eligible returns the processors that should run for the given score,
// filtering on its pass/fail and legacy status, in execution order.
func (r *Registry) Eligible(score *models.Score) []Processor {
	eligible := make([]Processor, 0, len(r.processors))
	for _, p := range r.processors {
		if !score.Passed && !p.RunOnFailedScores() {
			continue
		}
		if score.IsLegacy() && !p.RunOnLegacyScores() {
			continue
		}
		eligible = append(eligible, p)
	}
	return eligible
}
