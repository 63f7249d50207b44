package models

import (
	"time"
)

// Beatmap status constants.
const (
	BeatmapStatusGraveyard = "graveyard"
	BeatmapStatusPending   = "pending"
	BeatmapStatusRanked    = "ranked"
	BeatmapStatusApproved  = "approved"
	BeatmapStatusQualified = "qualified"
	BeatmapStatusLoved     = "loved"
)

// Beatmap represents reference data about a map. Read-only to the pipeline.
type Beatmap struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	RulesetID uint      `gorm:"not null" json:"ruleset_id"` // native ruleset; 0 converts to any mode
	Status    string    `gorm:"size:50;not null;index" json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for Beatmap model.
func (Beatmap) TableName() string {
	return "beatmaps"
}

// HasRankedStatus reports whether the beatmap carries a ranked or approved
// status. Medals and performance points are only granted on such maps.
func (b *Beatmap) HasRankedStatus() bool {
	return b.Status == BeatmapStatusRanked || b.Status == BeatmapStatusApproved
}

// Build represents a release of the client software. Builds with known
// rating-calculation defects carry AllowPerformance = false.
type Build struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	Version          string    `gorm:"size:50" json:"version"`
	AllowPerformance bool      `gorm:"not null;default:false" json:"allow_performance"`
	CreatedAt        time.Time `json:"created_at"`
}

// TableName specifies the table name for Build model.
func (Build) TableName() string {
	return "builds"
}
