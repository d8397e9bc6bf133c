package models

import (
	"time"
)

// MemberRole is a user's role within a UTub
type MemberRole string

const (
	MemberRoleOwner   MemberRole = "owner"
	MemberRoleCoOwner MemberRole = "co-owner"
	MemberRoleMember  MemberRole = "member"
)

// UTubMember is the many-to-many relationship between users and UTubs
type UTubMember struct {
	ID        uint       `gorm:"primarykey" json:"id"`
	CreatedAt time.Time  `json:"created_at"`
	UTubID    uint       `gorm:"column:utub_id;not null;uniqueIndex:idx_utub_user" json:"utub_id"`
	UserID    uint       `gorm:"not null;uniqueIndex:idx_utub_user" json:"user_id"`
	Role      MemberRole `gorm:"type:varchar(20);default:'member'" json:"role"`

	// Relationships
	User User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// CanManage reports whether the member may edit any URL and the UTub itself.
func (m UTubMember) CanManage() bool {
	return m.Role == MemberRoleOwner || m.Role == MemberRoleCoOwner
}

func (UTubMember) TableName() string { return "utub_members" }
