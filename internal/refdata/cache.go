// Package refdata provides the shared cache of beatmap and build reference
// data consulted by pipeline processors to validate score eligibility.
package refdata

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rhythmloop/score-stats/internal/metrics"
	"github.com/rhythmloop/score-stats/internal/models"
	"github.com/rhythmloop/score-stats/pkg/logger"
)

// Source provides reference data from storage.
type Source interface {
	GetByID(id uint) (*models.Beatmap, error)
	AllBuilds() ([]models.Build, error)
}

// Cache caches two reference sets with different refresh disciplines:
// beatmaps are looked up lazily per id and memoised for the cache lifetime
// (hits and misses both), while the build set is reloaded wholesale once its
// TTL expires. Beatmap status changes are therefore not observed by a
// long-lived cache; see the package tests for the documented asymmetry.
type Cache struct {
	source   Source
	buildTTL time.Duration
	log      *logger.Logger

	beatmapMu sync.Mutex
	beatmaps  map[uint]*models.Beatmap // nil value records a known miss

	buildMu        sync.Mutex
	builds         atomic.Pointer[map[uint]models.Build]
	buildsLoadedAt atomic.Int64 // unix nanos of last successful reload
}

// New creates a reference-data cache over the given source.
func New(source Source, buildTTL time.Duration, log *logger.Logger) *Cache {
	return &Cache{
		source:   source,
		buildTTL: buildTTL,
		log:      log,
		beatmaps: make(map[uint]*models.Beatmap),
	}
}

// Prime loads the build set ahead of first use so the initial lookups on the
// hot path do not block on a cold load.
func (c *Cache) Prime() error {
	return c.refreshBuilds()
}

// Beatmap returns the beatmap with the given id, or nil when the map is
// unknown. Lookups hit storage at most once per id for the cache lifetime.
func (c *Cache) Beatmap(id uint) (*models.Beatmap, error) {
	c.beatmapMu.Lock()
	defer c.beatmapMu.Unlock()

	if beatmap, ok := c.beatmaps[id]; ok {
		return beatmap, nil
	}

	beatmap, err := c.source.GetByID(id)
	if err != nil {
		return nil, fmt.Errorf("failed to load beatmap %d: %w", id, err)
	}

	c.beatmaps[id] = beatmap
	return beatmap, nil
}

// Build returns the build with the given id, or nil when the build is
// unknown. The underlying set is reloaded synchronously once older than the
// TTL; concurrent readers observe either the previous or the new snapshot.
func (c *Cache) Build(id uint) (*models.Build, error) {
	if err := c.ensureBuilds(); err != nil {
		return nil, err
	}

	snapshot := c.builds.Load()
	if snapshot == nil {
		return nil, nil
	}

	build, ok := (*snapshot)[id]
	if !ok {
		return nil, nil
	}
	return &build, nil
}

// IsEligibleForPerformance reports whether the beatmap can contribute
// performance points in the given ruleset. Maps must carry a ranked or
// approved status; converts from ruleset 0 are eligible in any mode.
func (c *Cache) IsEligibleForPerformance(beatmap *models.Beatmap, rulesetID uint) bool {
	if beatmap == nil || !beatmap.HasRankedStatus() {
		return false
	}
	return beatmap.RulesetID == 0 || beatmap.RulesetID == rulesetID
}

func (c *Cache) ensureBuilds() error {
	if c.buildsFresh() {
		return nil
	}

	c.buildMu.Lock()
	defer c.buildMu.Unlock()

	// Another caller may have refreshed while we waited for the lock.
	if c.buildsFresh() {
		return nil
	}

	return c.refreshBuildsLocked()
}

func (c *Cache) buildsFresh() bool {
	loadedAt := c.buildsLoadedAt.Load()
	return loadedAt > 0 && time.Since(time.Unix(0, loadedAt)) < c.buildTTL
}

func (c *Cache) refreshBuilds() error {
	c.buildMu.Lock()
	defer c.buildMu.Unlock()
	return c.refreshBuildsLocked()
}

func (c *Cache) refreshBuildsLocked() error {
	builds, err := c.source.AllBuilds()
	if err != nil {
		return fmt.Errorf("failed to reload build set: %w", err)
	}

	snapshot := make(map[uint]models.Build, len(builds))
	for _, build := range builds {
		snapshot[build.ID] = build
	}

	c.builds.Store(&snapshot)
	c.buildsLoadedAt.Store(time.Now().UnixNano())
	metrics.RecordBuildCacheRefresh(len(builds))

	c.log.Debug().
		Int("builds", len(builds)).
		Msg("Build reference set reloaded")

	return nil
}
