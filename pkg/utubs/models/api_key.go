package models

import (
	"time"

	"gorm.io/gorm"
)

// APIKey is a long-lived credential for the command line client. Only the
// hash of the key is stored.
type APIKey struct {
	ID          uint           `gorm:"primarykey" json:"id"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
	UserID      uint           `gorm:"not null;index" json:"user_id"`
	KeyHash     string         `gorm:"uniqueIndex;not null" json:"-"`
	KeyPrefix   string         `gorm:"not null" json:"key_prefix"`
	Description string         `json:"description"`
	LastUsedAt  *time.Time     `json:"last_used_at"`

	User User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (APIKey) TableName() string { return "api_keys" }
