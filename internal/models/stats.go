package models

import (
	"time"
)

// UserStats is the per-(user, ruleset) aggregate row mutated in place by the
// processor pipeline and persisted by the caller once the pipeline returns.
type UserStats struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     uint      `gorm:"not null;uniqueIndex:idx_user_stats_user_ruleset" json:"user_id"`
	RulesetID  uint      `gorm:"not null;uniqueIndex:idx_user_stats_user_ruleset" json:"ruleset_id"`
	PP         float64   `gorm:"column:pp;default:0" json:"pp"`
	Accuracy   float64   `gorm:"default:0" json:"accuracy"` // normalized, 0 - 100
	RankIndex  int       `gorm:"default:0" json:"rank_index"`
	PlayCount  int       `gorm:"default:0" json:"play_count"`
	TotalScore uint64    `gorm:"default:0" json:"total_score"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName specifies the table name for UserStats model.
func (UserStats) TableName() string {
	return "user_stats"
}

// GlobalCounter is a user-independent counter updated by ApplyGlobal
// processor steps inside the caller's transaction.
type GlobalCounter struct {
	Key       string    `gorm:"primaryKey;size:100" json:"key"`
	Value     int64     `gorm:"default:0" json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for GlobalCounter model.
func (GlobalCounter) TableName() string {
	return "global_counters"
}
