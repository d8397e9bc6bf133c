package models

import (
	"time"
)

// UTubURL is a URL saved in a UTub. URLs and their tag associations are
// hard-deleted.
type UTubURL struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	UTubID    uint      `gorm:"column:utub_id;not null;index" json:"utub_id"`
	AddedByID uint      `gorm:"not null" json:"added_by_id"`
	URLString string    `gorm:"not null" json:"url_string"`
	Title     string    `json:"title"`

	// Relationships
	AddedBy User      `gorm:"foreignKey:AddedByID" json:"added_by,omitempty"`
	Tags    []UTubTag `gorm:"many2many:utub_url_tags;" json:"tags,omitempty"`
}

// CanMutate reports whether member may edit or delete u.
func (u UTubURL) CanMutate(member UTubMember) bool {
	return member.CanManage() || u.AddedByID == member.UserID
}

func (UTubURL) TableName() string { return "utub_urls" }
