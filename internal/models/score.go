// Package models defines domain models for the score statistics pipeline.
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ModList is a list of modifier acronyms, stored as a JSON column.
type ModList []string

// Value implements driver.Valuer for database storage.
func (m ModList) Value() (driver.Value, error) {
	if len(m) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner for database retrieval.
func (m *ModList) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("unsupported mods column type %T", value)
	}
}

// Score represents one finalized play. The same shape serves as the incoming
// score event and as the persisted row the performance recomputation reads
// back; the pipeline never mutates it.
type Score struct {
	ID               uint64    `gorm:"primaryKey" json:"id"`
	UserID           uint      `gorm:"not null;index:idx_scores_user_ruleset" json:"user_id"`
	RulesetID        uint      `gorm:"not null;index:idx_scores_user_ruleset" json:"ruleset_id"`
	BeatmapID        uint      `gorm:"not null;index" json:"beatmap_id"`
	BuildID          *uint     `json:"build_id"`
	LegacyScoreID    *uint64   `gorm:"index" json:"legacy_score_id"`
	PP               *float64  `gorm:"column:pp" json:"pp"`
	Accuracy         float64   `gorm:"not null" json:"accuracy"` // 0.0 - 1.0
	MaxCombo         int       `gorm:"default:0" json:"max_combo"`
	TotalScore       uint64    `gorm:"default:0" json:"total_score"`
	Passed           bool      `gorm:"not null" json:"passed"`
	Preserve         bool      `gorm:"not null" json:"preserve"`
	Ranked           bool      `gorm:"not null" json:"ranked"` // beatmap was ranked at play time
	Mods             ModList   `gorm:"type:json" json:"mods"`
	ProcessedVersion int       `gorm:"default:0" json:"processed_version"`
	CreatedAt        time.Time `json:"created_at"`
}

// TableName specifies the table name for Score model.
func (Score) TableName() string {
	return "scores"
}

// IsLegacy reports whether the score was imported from the predecessor
// scoring system. Legacy scores are exempt from build and modifier checks.
func (s *Score) IsLegacy() bool {
	return s.LegacyScoreID != nil
}
