// Package api holds the JSON wire types shared by the UTubs server and its
// HTTP client.
package api

import (
	"time"

	"github.com/mikepea/utubs/pkg/utubs/sync"
)

// Server-side limits.
const (
	MaxTagsPerURL     = 5
	MaxTagLength      = 30
	MaxURLTitleLength = 140
	MaxURLLength      = 2000
	MaxUTubNameLength = 30
	MaxUTubDescLength = 500
)

// StatusFailure is the "status" of every error body.
const StatusFailure = "Failure"

// URL is a URL as seen by one member of its UTub.
type URL struct {
	ID        uint   `json:"id"`
	Title     string `json:"urlTitle"`
	URLString string `json:"urlString"`
	TagIDs    []uint `json:"tagIds"`
	CanMutate bool   `json:"canMutate"`
}

// Tag is a UTub tag.
type Tag struct {
	ID        uint   `json:"id"`
	TagString string `json:"tagString"`
}

// Member is a member of a UTub.
type Member struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	IsOwner  bool   `json:"isOwner"`
}

// UTub is the full snapshot returned by GET /utubs/:utubId.
type UTub struct {
	ID              uint     `json:"id"`
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	OwnerID         uint     `json:"ownerId"`
	CurrentUserRole string   `json:"currentUserRole"`
	URLs            []URL    `json:"urls"`
	Tags            []Tag    `json:"tags"`
	Members         []Member `json:"members"`
}

// UTubSummary is an entry of GET /utubs.
type UTubSummary struct {
	ID          uint   `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Role        string `json:"role"`
	MemberCount int    `json:"memberCount"`
}

// URLTag is the echo of adding or removing a tag on a URL.
type URLTag struct {
	URL URL `json:"url"`
	Tag Tag `json:"tag"`
}

// User is the public view of an account.
type User struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// Requests.

type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=20"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type CreateUTubRequest struct {
	Name        string `json:"name" binding:"required,max=30"`
	Description string `json:"description" binding:"max=500"`
}

type UpdateUTubRequest struct {
	Name        *string `json:"name" binding:"omitempty,min=1,max=30"`
	Description *string `json:"description" binding:"omitempty,max=500"`
}

type AddMemberRequest struct {
	Username string `json:"username" binding:"required"`
}

type CreateURLRequest struct {
	URLString string `json:"urlString" binding:"required,max=2000"`
	URLTitle  string `json:"urlTitle" binding:"max=140"`
}

type UpdateURLTitleRequest struct {
	URLTitle string `json:"urlTitle" binding:"required,max=140"`
}

type UpdateURLStringRequest struct {
	URLString string `json:"urlString" binding:"required,max=2000"`
}

type TagRequest struct {
	TagString string `json:"tagString" binding:"required,max=30"`
}

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Status  string              `json:"status"`
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors,omitempty"`
	Details map[string]any      `json:"details,omitempty"`
}

// NewError builds an ErrorResponse.
func NewError(message string, fields map[string][]string) ErrorResponse {
	return ErrorResponse{Status: StatusFailure, Message: message, Errors: fields}
}

// WithDetails attaches details to the response.
func (e ErrorResponse) WithDetails(kv map[string]any) ErrorResponse {
	e.Details = kv
	return e
}

// ToSync converts the wire URL.
func (u URL) ToSync() sync.URL {
	tags := sync.NewTagSet()
	for _, id := range u.TagIDs {
		tags[sync.TagID(id)] = struct{}{}
	}
	return sync.URL{
		ID:        sync.URLID(u.ID),
		Title:     u.Title,
		Href:      u.URLString,
		TagIDs:    tags,
		CanMutate: u.CanMutate,
	}
}

// ToSync converts the wire tag.
func (t Tag) ToSync() sync.Tag {
	return sync.Tag{ID: sync.TagID(t.ID), Label: t.TagString}
}

// ToSync converts the wire snapshot.
func (u UTub) ToSync() sync.Snapshot {
	snap := sync.Snapshot{
		UTub: sync.UTub{
			ID:              sync.UTubID(u.ID),
			Name:            u.Name,
			Description:     u.Description,
			OwnerID:         sync.UserID(u.OwnerID),
			CurrentUserRole: sync.Role(u.CurrentUserRole),
		},
		URLs:    make([]sync.URL, 0, len(u.URLs)),
		Tags:    make([]sync.Tag, 0, len(u.Tags)),
		Members: make([]sync.Member, 0, len(u.Members)),
	}
	for _, url := range u.URLs {
		snap.URLs = append(snap.URLs, url.ToSync())
	}
	for _, t := range u.Tags {
		snap.Tags = append(snap.Tags, t.ToSync())
	}
	for _, m := range u.Members {
		snap.Members = append(snap.Members, sync.Member{ID: sync.UserID(m.ID), Username: m.Username, IsOwner: m.IsOwner})
	}
	return snap
}

// Bookmark is a URL in Pinboard JSON format, used by import and export.
// Tags are space separated.
type Bookmark struct {
	Href        string `json:"href"`
	Description string `json:"description"`
	Extended    string `json:"extended"`
	Tags        string `json:"tags"`
	Time        string `json:"time"`
}

type ImportRequest struct {
	Bookmarks []Bookmark `json:"bookmarks" binding:"required"`
}

// ImportResult reports what an import did.
type ImportResult struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors,omitempty"`
}

// APIKey describes a key without revealing it.
type APIKey struct {
	ID          uint       `json:"id"`
	KeyPrefix   string     `json:"keyPrefix"`
	Description string     `json:"description"`
	LastUsedAt  *time.Time `json:"lastUsedAt"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// NewAPIKey is returned once, on creation. Key is never shown again.
type NewAPIKey struct {
	APIKey
	Key string `json:"key"`
}

type CreateAPIKeyRequest struct {
	Description string `json:"description" binding:"max=100"`
}
