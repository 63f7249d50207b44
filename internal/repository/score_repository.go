package repository

import (
	"gorm.io/gorm"

	"github.com/rhythmloop/score-stats/internal/models"
)

// ScoreRepository handles score-related database operations.
type ScoreRepository struct {
	db *gorm.DB
}

// NewScoreRepository creates a new score repository.
func NewScoreRepository(db *DB) *ScoreRepository {
	return &ScoreRepository{db: db.DB}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *ScoreRepository) WithTx(tx *gorm.DB) *ScoreRepository {
	return &ScoreRepository{db: tx}
}

// Create persists a score.
func (r *ScoreRepository) Create(score *models.Score) error {
	return r.db.Create(score).Error
}

// GetByID retrieves a score by its ID.
func (r *ScoreRepository) GetByID(id uint64) (*models.Score, error) {
	var score models.Score
	err := r.db.First(&score, id).Error
	if err != nil {
		return nil, err
	}
	return &score, nil
}

// QualifyingScores retrieves the full set of scores that can contribute to a
// user's rating in a ruleset: rated (pp not null), preserved, passed, and
// played on a map that was ranked at play time. Map, build and modifier
// checks are applied by the caller against the reference-data cache.
func (r *ScoreRepository) QualifyingScores(userID, rulesetID uint) ([]models.Score, error) {
	var scores []models.Score
	err := r.db.
		Where("user_id = ? AND ruleset_id = ?", userID, rulesetID).
		Where("pp IS NOT NULL AND preserve = ? AND passed = ? AND ranked = ?", true, true, true).
		Find(&scores).Error
	return scores, err
}

// CountPassesOnRankedMaps returns how many passing scores the user has on
// maps that were ranked at play time. Used by award rules.
func (r *ScoreRepository) CountPassesOnRankedMaps(userID, rulesetID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Score{}).
		Where("user_id = ? AND ruleset_id = ? AND passed = ? AND ranked = ?", userID, rulesetID, true, true).
		Count(&count).Error
	return count, err
}
