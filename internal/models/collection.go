package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Collection struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	UserID    string    `gorm:"not null;index;size:64" json:"user_id"`
	Name      string    `gorm:"not null" json:"name"`
	IsPrivate bool      `gorm:"not null;default:false" json:"is_private"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c *Collection) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

type CollectionThread struct {
	CollectionID string    `gorm:"primaryKey;size:36" json:"collection_id"`
	ThreadID     string    `gorm:"primaryKey;size:36;index" json:"thread_id"`
	CreatedAt    time.Time `json:"created_at"`
}
