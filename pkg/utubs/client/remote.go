package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/mikepea/utubs/pkg/utubs/api"
	"github.com/mikepea/utubs/pkg/utubs/sync"
)

func utubPath(utubID sync.UTubID) string {
	return fmt.Sprintf("/utubs/%d", utubID)
}

func urlPath(utubID sync.UTubID, urlID sync.URLID) string {
	return fmt.Sprintf("/utubs/%d/urls/%d", utubID, urlID)
}

// FetchUTub loads the full snapshot of a UTub.
func (c *Client) FetchUTub(ctx context.Context, utubID sync.UTubID) (sync.Snapshot, error) {
	var out api.UTub
	if err := c.do(ctx, http.MethodGet, utubPath(utubID), nil, &out); err != nil {
		return sync.Snapshot{}, err
	}
	return out.ToSync(), nil
}

// FetchURL loads one URL.
func (c *Client) FetchURL(ctx context.Context, utubID sync.UTubID, urlID sync.URLID) (sync.URL, error) {
	var out api.URL
	if err := c.do(ctx, http.MethodGet, urlPath(utubID, urlID), nil, &out); err != nil {
		return sync.URL{}, err
	}
	return out.ToSync(), nil
}

func (c *Client) CreateURL(ctx context.Context, utubID sync.UTubID, href, title string) (sync.URL, error) {
	var out api.URL
	req := api.CreateURLRequest{URLString: href, URLTitle: title}
	if err := c.do(ctx, http.MethodPost, utubPath(utubID)+"/urls", req, &out); err != nil {
		return sync.URL{}, err
	}
	return out.ToSync(), nil
}

func (c *Client) UpdateURLTitle(ctx context.Context, utubID sync.UTubID, urlID sync.URLID, title string) (sync.URL, error) {
	var out api.URL
	req := api.UpdateURLTitleRequest{URLTitle: title}
	if err := c.do(ctx, http.MethodPatch, urlPath(utubID, urlID)+"/title", req, &out); err != nil {
		return sync.URL{}, err
	}
	return out.ToSync(), nil
}

func (c *Client) UpdateURLString(ctx context.Context, utubID sync.UTubID, urlID sync.URLID, href string) (sync.URL, error) {
	var out api.URL
	req := api.UpdateURLStringRequest{URLString: href}
	if err := c.do(ctx, http.MethodPatch, urlPath(utubID, urlID), req, &out); err != nil {
		return sync.URL{}, err
	}
	return out.ToSync(), nil
}

func (c *Client) DeleteURL(ctx context.Context, utubID sync.UTubID, urlID sync.URLID) error {
	return c.do(ctx, http.MethodDelete, urlPath(utubID, urlID), nil, nil)
}

func (c *Client) CreateURLTag(ctx context.Context, utubID sync.UTubID, urlID sync.URLID, label string) (sync.URLTagResult, error) {
	var out api.URLTag
	req := api.TagRequest{TagString: label}
	if err := c.do(ctx, http.MethodPost, urlPath(utubID, urlID)+"/tags", req, &out); err != nil {
		return sync.URLTagResult{}, err
	}
	return sync.URLTagResult{URL: out.URL.ToSync(), Tag: out.Tag.ToSync()}, nil
}

func (c *Client) DeleteURLTag(ctx context.Context, utubID sync.UTubID, urlID sync.URLID, tagID sync.TagID) (sync.URLTagResult, error) {
	var out api.URLTag
	path := fmt.Sprintf("%s/tags/%d", urlPath(utubID, urlID), tagID)
	if err := c.do(ctx, http.MethodDelete, path, nil, &out); err != nil {
		return sync.URLTagResult{}, err
	}
	return sync.URLTagResult{URL: out.URL.ToSync(), Tag: out.Tag.ToSync()}, nil
}

func (c *Client) CreateUTubTag(ctx context.Context, utubID sync.UTubID, label string) (sync.Tag, error) {
	var out api.Tag
	req := api.TagRequest{TagString: label}
	if err := c.do(ctx, http.MethodPost, utubPath(utubID)+"/tags", req, &out); err != nil {
		return sync.Tag{}, err
	}
	return out.ToSync(), nil
}

func (c *Client) DeleteUTubTag(ctx context.Context, utubID sync.UTubID, tagID sync.TagID) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("%s/tags/%d", utubPath(utubID), tagID), nil, nil)
}
