package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Thread struct {
	ID               string    `gorm:"primaryKey;size:36" json:"id"`
	UserID           string    `gorm:"not null;index;size:64" json:"user_id"`
	Title            string    `gorm:"not null" json:"title"`
	IsPublished      bool      `gorm:"not null;default:false;index" json:"is_published"`
	IsPrivate        bool      `gorm:"not null;default:false;index" json:"is_private"`
	CoverImage       *string   `json:"cover_image"`
	Snippet          *string   `gorm:"type:text" json:"snippet"`
	OriginalThreadID *string   `gorm:"index;size:36" json:"original_thread_id"`
	ForkCount        int       `gorm:"not null;default:0" json:"fork_count"`
	Version          int       `gorm:"not null;default:1" json:"version"` // optimistic write precondition
	CreatedAt        time.Time `gorm:"index" json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (t *Thread) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Version == 0 {
		t.Version = 1
	}
	return nil
}

// Segment is one ordered content unit of a thread. OrderIndex is dense and
// zero based per thread.
type Segment struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	ThreadID   string    `gorm:"not null;size:36;uniqueIndex:idx_segment_order" json:"thread_id"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	OrderIndex int       `gorm:"not null;uniqueIndex:idx_segment_order" json:"order_index"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (Segment) TableName() string { return "thread_segments" }

func (s *Segment) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

type Tag struct {
	ID   string `gorm:"primaryKey;size:36" json:"id"`
	Name string `gorm:"uniqueIndex;not null;size:50" json:"name"`
}

func (t *Tag) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

type ThreadTag struct {
	ThreadID string `gorm:"primaryKey;size:36" json:"thread_id"`
	TagID    string `gorm:"primaryKey;size:36;index" json:"tag_id"`
}
