package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Draft keeps Content exactly as it was written; readers normalize it.
type Draft struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	UserID    string    `gorm:"not null;index;size:64" json:"user_id"`
	Title     string    `json:"title"`
	Content   string    `gorm:"type:text" json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (d *Draft) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	return nil
}
