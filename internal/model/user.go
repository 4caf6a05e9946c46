package model

import (
	"time"

	"gorm.io/gorm"
)

// User represents the platform-wide user account stored in the database
type User struct {
	ID            uint           `json:"id" gorm:"primaryKey"`
	Email         string         `json:"email" gorm:"type:varchar(100);uniqueIndex"`
	Password      string         `json:"-" gorm:"type:varchar(255)"`
	DefaultSiteID *uint          `json:"default_site_id,omitempty" gorm:"index"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `json:"-" gorm:"index"`
}
