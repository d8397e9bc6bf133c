package models

import (
	"time"
)

// UTubTag is a tag scoped to one UTub. Labels are unique within a UTub.
type UTubTag struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UTubID    uint      `gorm:"column:utub_id;not null;index" json:"utub_id"`
	Label     string    `gorm:"not null" json:"label"`

	// Relationships
	URLs []UTubURL `gorm:"many2many:utub_url_tags;" json:"urls,omitempty"`
}

func (UTubTag) TableName() string { return "utub_tags" }
