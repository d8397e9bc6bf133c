package sync

import "context"

// URLTagResult is the server echo for adding or removing a tag on a URL.
type URLTagResult struct {
	URL URL
	Tag Tag
}

// Remote is the server collaborator. Non-2xx responses come back as
// *StatusError; anything else is treated as a transport failure.
type Remote interface {
	FetchUTub(ctx context.Context, utubID UTubID) (Snapshot, error)
	FetchURL(ctx context.Context, utubID UTubID, urlID URLID) (URL, error)

	CreateURL(ctx context.Context, utubID UTubID, href, title string) (URL, error)
	UpdateURLTitle(ctx context.Context, utubID UTubID, urlID URLID, title string) (URL, error)
	UpdateURLString(ctx context.Context, utubID UTubID, urlID URLID, href string) (URL, error)
	DeleteURL(ctx context.Context, utubID UTubID, urlID URLID) error

	CreateURLTag(ctx context.Context, utubID UTubID, urlID URLID, label string) (URLTagResult, error)
	DeleteURLTag(ctx context.Context, utubID UTubID, urlID URLID, tagID TagID) (URLTagResult, error)

	CreateUTubTag(ctx context.Context, utubID UTubID, label string) (Tag, error)
	DeleteUTubTag(ctx context.Context, utubID UTubID, tagID TagID) error
}
