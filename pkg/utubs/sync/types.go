// Package sync keeps a client-side view of one UTub consistent with the
// server and evaluates the tag filter over it.
//
// The Store owns the entities and the selection. The Filter derives
// visibility and tag counts from the Store, the Reconciler merges server
// snapshots into it, and the Coordinator drives mutations against a Remote.
// Renderers observe everything through a Projector.
package sync

import (
	"slices"
)

// UTubID identifies a UTub.
type UTubID uint

// URLID identifies a URL within a UTub.
type URLID uint

// TagID identifies a UTub tag.
type TagID uint

// UserID identifies a user/member.
type UserID uint

// Role is the current user's role in a UTub.
type Role string

const (
	RoleOwner   Role = "owner"
	RoleCoOwner Role = "co-owner"
	RoleMember  Role = "member"
)

// UTub is the collection metadata.
type UTub struct {
	ID              UTubID
	Name            string
	Description     string
	OwnerID         UserID
	CurrentUserRole Role
}

// URL is a bookmarked link in the active UTub.
type URL struct {
	ID        URLID
	Title     string
	Href      string
	TagIDs    TagSet
	CanMutate bool
}

// Clone returns a deep copy of u.
func (u URL) Clone() URL {
	u.TagIDs = u.TagIDs.Clone()
	return u
}

// Tag is a UTub-scoped tag.
type Tag struct {
	ID    TagID
	Label string
}

// Member is a user sharing the UTub.
type Member struct {
	ID       UserID
	Username string
	IsOwner  bool
}

// Snapshot is a server-authoritative copy of a whole UTub.
type Snapshot struct {
	UTub    UTub
	URLs    []URL
	Tags    []Tag
	Members []Member
}

// TagSet is an unordered set of tag ids.
type TagSet map[TagID]struct{}

// NewTagSet builds a set from ids.
func NewTagSet(ids ...TagID) TagSet {
	s := make(TagSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has reports whether id is in the set.
func (s TagSet) Has(id TagID) bool {
	_, ok := s[id]
	return ok
}

// Contains reports whether every id of other is in s.
func (s TagSet) Contains(other TagSet) bool {
	if len(other) > len(s) {
		return false
	}
	for id := range other {
		if _, ok := s[id]; !ok {
			return false
		}
	}
	return true
}

// Equal reports whether both sets hold the same ids.
func (s TagSet) Equal(other TagSet) bool {
	return len(s) == len(other) && s.Contains(other)
}

// Clone copies the set. A nil set clones to an empty one.
func (s TagSet) Clone() TagSet {
	c := make(TagSet, len(s))
	for id := range s {
		c[id] = struct{}{}
	}
	return c
}

// Sorted returns the ids in ascending order.
func (s TagSet) Sorted() []TagID {
	ids := make([]TagID, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
