package repository

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rhythmloop/score-stats/internal/models"
)

// CounterRepository handles user-independent global counters.
type CounterRepository struct {
	db *gorm.DB
}

// NewCounterRepository creates a new counter repository.
func NewCounterRepository(db *DB) *CounterRepository {
	return &CounterRepository{db: db.DB}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *CounterRepository) WithTx(tx *gorm.DB) *CounterRepository {
	return &CounterRepository{db: tx}
}

// Increment adds delta to the named counter, creating it when missing. The
// upsert runs as a single statement so concurrent transactions cannot race a
// read-then-write and lose an increment.
func (r *CounterRepository) Increment(key string, delta int64) error {
	counter := models.GlobalCounter{Key: key, Value: delta, UpdatedAt: time.Now()}
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "key"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"value":      gorm.Expr("value + ?", delta),
			"updated_at": time.Now(),
		}),
	}).Create(&counter).Error
}

// Get retrieves the current value of a counter. Missing counters read as zero.
func (r *CounterRepository) Get(key string) (int64, error) {
	var counter models.GlobalCounter
	err := r.db.Where("key = ?", key).First(&counter).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return counter.Value, nil
}
