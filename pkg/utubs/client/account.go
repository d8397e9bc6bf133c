package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/mikepea/utubs/pkg/utubs/api"
)

// Register creates an account and adopts the returned token.
func (c *Client) Register(ctx context.Context, username, email, password string) (api.AuthResponse, error) {
	var out api.AuthResponse
	req := api.RegisterRequest{Username: username, Email: email, Password: password}
	if err := c.do(ctx, http.MethodPost, "/auth/register", req, &out); err != nil {
		return out, err
	}
	c.SetToken(out.Token)
	return out, nil
}

// Login signs in and adopts the returned token.
func (c *Client) Login(ctx context.Context, email, password string) (api.AuthResponse, error) {
	var out api.AuthResponse
	req := api.LoginRequest{Email: email, Password: password}
	if err := c.do(ctx, http.MethodPost, "/auth/login", req, &out); err != nil {
		return out, err
	}
	c.SetToken(out.Token)
	return out, nil
}

// Me returns the signed-in user.
func (c *Client) Me(ctx context.Context) (api.User, error) {
	var out api.User
	err := c.do(ctx, http.MethodGet, "/auth/me", nil, &out)
	return out, err
}

// ListUTubs returns the UTubs the caller belongs to.
func (c *Client) ListUTubs(ctx context.Context) ([]api.UTubSummary, error) {
	var out []api.UTubSummary
	err := c.do(ctx, http.MethodGet, "/utubs", nil, &out)
	return out, err
}

// CreateUTub creates a UTub owned by the caller.
func (c *Client) CreateUTub(ctx context.Context, name, description string) (api.UTub, error) {
	var out api.UTub
	req := api.CreateUTubRequest{Name: name, Description: description}
	err := c.do(ctx, http.MethodPost, "/utubs", req, &out)
	return out, err
}

// DeleteUTub deletes a UTub. Only its owner may do this.
func (c *Client) DeleteUTub(ctx context.Context, utubID uint) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/utubs/%d", utubID), nil, nil)
}

// AddMember adds a user to a UTub by username.
func (c *Client) AddMember(ctx context.Context, utubID uint, username string) (api.Member, error) {
	var out api.Member
	req := api.AddMemberRequest{Username: username}
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/utubs/%d/members", utubID), req, &out)
	return out, err
}

// RemoveMember removes a member, or leaves the UTub when userID is the caller.
func (c *Client) RemoveMember(ctx context.Context, utubID, userID uint) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/utubs/%d/members/%d", utubID, userID), nil, nil)
}

// ImportBookmarks adds Pinboard bookmarks to a UTub.
func (c *Client) ImportBookmarks(ctx context.Context, utubID uint, bookmarks []api.Bookmark) (api.ImportResult, error) {
	var out api.ImportResult
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/utubs/%d/import", utubID), api.ImportRequest{Bookmarks: bookmarks}, &out)
	return out, err
}

// ExportBookmarks returns the URLs of a UTub as Pinboard bookmarks.
func (c *Client) ExportBookmarks(ctx context.Context, utubID uint) ([]api.Bookmark, error) {
	var out []api.Bookmark
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/utubs/%d/export", utubID), nil, &out)
	return out, err
}

// CreateAPIKey issues a long-lived key. Requires a login token.
func (c *Client) CreateAPIKey(ctx context.Context, description string) (api.NewAPIKey, error) {
	var out api.NewAPIKey
	err := c.do(ctx, http.MethodPost, "/api-keys", api.CreateAPIKeyRequest{Description: description}, &out)
	return out, err
}

// ListAPIKeys returns the caller's keys without their secrets.
func (c *Client) ListAPIKeys(ctx context.Context) ([]api.APIKey, error) {
	var out []api.APIKey
	err := c.do(ctx, http.MethodGet, "/api-keys", nil, &out)
	return out, err
}

// DeleteAPIKey revokes a key.
func (c *Client) DeleteAPIKey(ctx context.Context, id uint) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api-keys/%d", id), nil, nil)
}
