package models

import (
	"time"
)

// ThreadTarget is the Target value of a reaction placed on the thread itself.
const ThreadTarget = "thread"

// Reaction is unique per (thread, target, user). Target mirrors SegmentID, or
// ThreadTarget when the reaction is thread level, so the unique index also
// covers the NULL segment case.
type Reaction struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	ThreadID  string    `gorm:"not null;size:36;uniqueIndex:idx_reaction_target" json:"thread_id"`
	SegmentID *string   `gorm:"size:36;index" json:"segment_id"`
	Target    string    `gorm:"not null;size:36;uniqueIndex:idx_reaction_target" json:"-"`
	UserID    string    `gorm:"not null;size:64;uniqueIndex:idx_reaction_target" json:"user_id"`
	Type      string    `gorm:"not null;size:16" json:"type"`
	CreatedAt time.Time `json:"created_at"`
}

func ReactionTarget(segmentID *string) string {
	if segmentID == nil || *segmentID == "" {
		return ThreadTarget
	}
	return *segmentID
}
