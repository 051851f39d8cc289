package models

import (
	"time"
)

const (
	InteractionView     = "view"
	InteractionReaction = "reaction"
	InteractionBookmark = "bookmark"
	InteractionFork     = "fork"
)

type ThreadAnalytics struct {
	ThreadID      string    `gorm:"primaryKey;size:36" json:"thread_id"`
	ViewCount     int       `gorm:"not null;default:0" json:"view_count"`
	UniqueViewers int       `gorm:"not null;default:0" json:"unique_viewers"`
	TrendScore    float64   `gorm:"not null;default:0;index" json:"trend_score"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// InteractionLog is append only.
type InteractionLog struct {
	ID              uint      `gorm:"primaryKey" json:"-"`
	ThreadID        string    `gorm:"not null;size:36;index:idx_interaction_lookup" json:"thread_id"`
	UserID          string    `gorm:"not null;size:64;index:idx_interaction_lookup" json:"user_id"`
	InteractionType string    `gorm:"not null;size:16;index:idx_interaction_lookup" json:"interaction_type"`
	CreatedAt       time.Time `gorm:"index" json:"created_at"`
}
