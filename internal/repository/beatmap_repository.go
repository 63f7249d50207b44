package repository

import (
	"errors"

	"gorm.io/gorm"

	"github.com/rhythmloop/score-stats/internal/models"
)

// BeatmapRepository handles beatmap and build reference data lookups.
type BeatmapRepository struct {
	db *gorm.DB
}

// NewBeatmapRepository creates a new beatmap repository.
func NewBeatmapRepository(db *DB) *BeatmapRepository {
	return &BeatmapRepository{db: db.DB}
}

// GetByID retrieves a beatmap by its ID. Returns nil when the map is unknown;
// callers treat absence as "exclude this score".
func (r *BeatmapRepository) GetByID(id uint) (*models.Beatmap, error) {
	var beatmap models.Beatmap
	err := r.db.First(&beatmap, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &beatmap, nil
}

// AllBuilds retrieves the full build set. The reference-data cache reloads
// this wholesale on TTL expiry.
func (r *BeatmapRepository) AllBuilds() ([]models.Build, error) {
	var builds []models.Build
	err := r.db.Find(&builds).Error
	return builds, err
}
