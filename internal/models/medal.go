package models

import (
	"time"
)

// Medal represents a one-time achievement definition. Definitions are assumed
// static for the process lifetime and loaded once per award engine.
type Medal struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"not null;size:100" json:"name"`
	Slug        string    `gorm:"uniqueIndex;not null;size:100" json:"slug"`
	Description string    `gorm:"type:text" json:"description"`
	RulesetID   *uint     `json:"ruleset_id"` // nil = earnable in any mode
	// No gorm default on Enabled: a default tag makes gorm omit the zero
	// value from inserts, silently storing disabled definitions as enabled.
	Enabled   bool      `gorm:"not null;index" json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for Medal model.
func (Medal) TableName() string {
	return "medals"
}

// ForRuleset reports whether the medal can be earned in the given ruleset.
func (m *Medal) ForRuleset(rulesetID uint) bool {
	return m.RulesetID == nil || *m.RulesetID == rulesetID
}

// UserMedal represents a medal granted to a user. At most one row exists per
// (user, medal) pair.
type UserMedal struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_user_medals_pair" json:"user_id"`
	MedalID   uint      `gorm:"not null;uniqueIndex:idx_user_medals_pair" json:"medal_id"`
	Medal     Medal     `gorm:"foreignKey:MedalID" json:"medal,omitempty"`
	BeatmapID *uint     `json:"beatmap_id"`
	AwardedAt time.Time `gorm:"not null" json:"awarded_at"`
}

// TableName specifies the table name for UserMedal model.
func (UserMedal) TableName() string {
	return "user_medals"
}
