package models

import (
	"time"

	"gorm.io/gorm"
)

// User represents an account
type User struct {
	ID           uint           `gorm:"primarykey" json:"id"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
	Username     string         `gorm:"uniqueIndex;not null" json:"username"`
	Email        string         `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string         `json:"-"`

	// Relationships
	Memberships []UTubMember `gorm:"foreignKey:UserID" json:"memberships,omitempty"`
}
