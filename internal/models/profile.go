package models

import (
	"time"
)

// Profile carries the public display data of an identity. The id comes from
// the identity provider; there is no local account.
type Profile struct {
	UserID      string    `gorm:"primaryKey;size:64" json:"user_id"`
	DisplayName string    `gorm:"not null;size:80" json:"display_name"`
	Avatar      string    `gorm:"size:255" json:"avatar"`
	Bio         string    `gorm:"size:200" json:"bio"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
