package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/rhythmloop/score-stats/internal/models"
)

// MedalRepository handles medal definitions and grants.
type MedalRepository struct {
	db *gorm.DB
}

// NewMedalRepository creates a new medal repository.
func NewMedalRepository(db *DB) *MedalRepository {
	return &MedalRepository{db: db.DB}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *MedalRepository) WithTx(tx *gorm.DB) *MedalRepository {
	return &MedalRepository{db: tx}
}

// Create persists a medal definition.
func (r *MedalRepository) Create(medal *models.Medal) error {
	return r.db.Create(medal).Error
}

// Enabled retrieves all enabled medal definitions.
func (r *MedalRepository) Enabled() ([]models.Medal, error) {
	var medals []models.Medal
	err := r.db.Where("enabled = ?", true).Order("id ASC").Find(&medals).Error
	return medals, err
}

// UserMedalIDs retrieves the set of medal ids already granted to a user.
func (r *MedalRepository) UserMedalIDs(userID uint) (map[uint]struct{}, error) {
	var ids []uint
	err := r.db.Model(&models.UserMedal{}).
		Where("user_id = ?", userID).
		Pluck("medal_id", &ids).Error
	if err != nil {
		return nil, err
	}

	granted := make(map[uint]struct{}, len(ids))
	for _, id := range ids {
		granted[id] = struct{}{}
	}
	return granted, nil
}

// HasUserMedal checks if a user has already been granted a specific medal.
func (r *MedalRepository) HasUserMedal(userID, medalID uint) (bool, error) {
	var count int64
	err := r.db.Model(&models.UserMedal{}).
		Where("user_id = ? AND medal_id = ?", userID, medalID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Award grants a medal to a user. Idempotent: a medal already granted is
// left untouched and no error is returned.
func (r *MedalRepository) Award(userID, medalID uint, beatmapID *uint) error {
	exists, err := r.HasUserMedal(userID, medalID)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	userMedal := &models.UserMedal{
		UserID:    userID,
		MedalID:   medalID,
		BeatmapID: beatmapID,
		AwardedAt: time.Now(),
	}
	return r.db.Create(userMedal).Error
}

// UserMedals retrieves all medals granted to a user with definitions preloaded.
func (r *MedalRepository) UserMedals(userID uint) ([]models.UserMedal, error) {
	var userMedals []models.UserMedal
	err := r.db.
		Where("user_id = ?", userID).
		Preload("Medal").
		Order("awarded_at DESC").
		Find(&userMedals).Error
	return userMedals, err
}
