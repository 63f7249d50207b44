package repository

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rhythmloop/score-stats/internal/models"
)

// StatsRepository handles user aggregate statistics rows.
type StatsRepository struct {
	db *gorm.DB
}

// NewStatsRepository creates a new stats repository.
func NewStatsRepository(db *DB) *StatsRepository {
	return &StatsRepository{db: db.DB}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *StatsRepository) WithTx(tx *gorm.DB) *StatsRepository {
	return &StatsRepository{db: tx}
}

// GetOrCreate fetches the aggregate row for (user, ruleset), creating an
// empty one when it does not exist yet. On PostgreSQL the row is locked for
// the duration of the enclosing transaction, serializing concurrent
// recomputations for the same user.
func (r *StatsRepository) GetOrCreate(userID, rulesetID uint) (*models.UserStats, error) {
	query := r.db.Where("user_id = ? AND ruleset_id = ?", userID, rulesetID)
	if r.db.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var stats models.UserStats
	err := query.First(&stats).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		stats = models.UserStats{UserID: userID, RulesetID: rulesetID}
		if err := r.db.Create(&stats).Error; err != nil {
			return nil, err
		}
		return &stats, nil
	}
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// Get fetches the aggregate row for (user, ruleset) without creating it.
// Returns nil when no row exists.
func (r *StatsRepository) Get(userID, rulesetID uint) (*models.UserStats, error) {
	var stats models.UserStats
	err := r.db.Where("user_id = ? AND ruleset_id = ?", userID, rulesetID).First(&stats).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// Save persists the mutated aggregate row.
func (r *StatsRepository) Save(stats *models.UserStats) error {
	return r.db.Save(stats).Error
}

// CountHigherRated counts other users of the same ruleset with a strictly
// greater rating. The rank index is 1 + this count; it is a point-in-time
// figure and may lag concurrent updates from other users.
func (r *StatsRepository) CountHigherRated(rulesetID uint, pp float64, excludeUserID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.UserStats{}).
		Where("ruleset_id = ? AND pp > ? AND user_id <> ?", rulesetID, pp, excludeUserID).
		Count(&count).Error
	return count, err
}
