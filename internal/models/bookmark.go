package models

import (
	"time"
)

type Bookmark struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	UserID    string    `gorm:"not null;size:64;uniqueIndex:idx_user_thread" json:"user_id"`
	ThreadID  string    `gorm:"not null;size:36;index;uniqueIndex:idx_user_thread" json:"thread_id"`
	CreatedAt time.Time `json:"created_at"`
}
