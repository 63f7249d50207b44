package processor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"github.com/rhythmloop/score-stats/internal/models"
)

// fakeProcessor records its invocations into a shared trace.
type fakeProcessor struct {
	name      string
	priority  int
	onFailed  bool
	onLegacy  bool
	trace     *[]string
	applyErr  error
	revertErr error
}

func (f *fakeProcessor) Name() string            { return f.name }
func (f *fakeProcessor) Priority() int           { return f.priority }
func (f *fakeProcessor) RunOnFailedScores() bool { return f.onFailed }
func (f *fakeProcessor) RunOnLegacyScores() bool { return f.onLegacy }

func (f *fakeProcessor) Apply(_ context.Context, _ *models.Score, _ *models.UserStats, _ *gorm.DB) error {
	*f.trace = append(*f.trace, f.name+":apply")
	return f.applyErr
}

func (f *fakeProcessor) Revert(_ context.Context, _ *models.Score, _ *models.UserStats, _ int, _ *gorm.DB) error {
	*f.trace = append(*f.trace, f.name+":revert")
	return f.revertErr
}

func (f *fakeProcessor) ApplyGlobal(_ context.Context, _ *models.Score, _ *gorm.DB) error {
	*f.trace = append(*f.trace, f.name+":applyGlobal")
	return nil
}

func TestRegistry_OrdersByAscendingPriority(t *testing.T) {
	var trace []string
	registry := NewRegistry(
		&fakeProcessor{name: "third", priority: 30, onFailed: true, onLegacy: true, trace: &trace},
		&fakeProcessor{name: "first", priority: 1, onFailed: true, onLegacy: true, trace: &trace},
		&fakeProcessor{name: "second", priority: 20, onFailed: true, onLegacy: true, trace: &trace},
	)

	names := make([]string, 0, 3)
	for _, p := range registry.All() {
		names = append(names, p.Name())
	}
	assert.Equal(t, []string{"first", "second", "third"}, names)
}

func TestRegistry_EqualPrioritiesPreserveRegistrationOrder(t *testing.T) {
	var trace []string
	registry := NewRegistry(
		&fakeProcessor{name: "a", priority: 5, trace: &trace},
		&fakeProcessor{name: "b", priority: 5, trace: &trace},
		&fakeProcessor{name: "c", priority: 5, trace: &trace},
	)

	names := make([]string, 0, 3)
	for _, p := range registry.All() {
		names = append(names, p.Name())
	}
	assert.Equal(t, []string{"a", "b", "c"}, names)
}

func TestRegistry_FiltersOnFailedScores(t *testing.T) {
	var trace []string
	registry := NewRegistry(
		&fakeProcessor{name: "always", priority: 1, onFailed: true, onLegacy: true, trace: &trace},
		&fakeProcessor{name: "passed-only", priority: 2, onFailed: false, onLegacy: true, trace: &trace},
	)

	failed := &models.Score{Passed: false}
	eligible := registry.Eligible(failed)
	assert.Len(t, eligible, 1)
	assert.Equal(t, "always", eligible[0].Name())

	passed := &models.Score{Passed: true}
	assert.Len(t, registry.Eligible(passed), 2)
}

func TestRegistry_FiltersOnLegacyScores(t *testing.T) {
	var trace []string
	legacyID := uint64(42)
	registry := NewRegistry(
		&fakeProcessor{name: "legacy-ok", priority: 1, onFailed: true, onLegacy: true, trace: &trace},
		&fakeProcessor{name: "no-legacy", priority: 2, onFailed: true, onLegacy: false, trace: &trace},
	)

	legacy := &models.Score{Passed: true, LegacyScoreID: &legacyID}
	eligible := registry.Eligible(legacy)
	assert.Len(t, eligible, 1)
	assert.Equal(t, "legacy-ok", eligible[0].Name())
}
