package models

import (
	"time"

	"gorm.io/gorm"
)

// UTub is a shared collection of URLs
type UTub struct {
	ID          uint           `gorm:"primarykey" json:"id"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
	Name        string         `gorm:"not null" json:"name"`
	Description string         `json:"description"`
	OwnerID     uint           `gorm:"not null;index" json:"owner_id"`

	// Relationships
	Owner   User         `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
	Members []UTubMember `gorm:"foreignKey:UTubID" json:"members,omitempty"`
	URLs    []UTubURL    `gorm:"foreignKey:UTubID" json:"urls,omitempty"`
	Tags    []UTubTag    `gorm:"foreignKey:UTubID" json:"tags,omitempty"`
}

func (UTub) TableName() string { return "utubs" }
