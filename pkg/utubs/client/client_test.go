package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mikepea/utubs/pkg/utubs/api"
	"github.com/mikepea/utubs/pkg/utubs/sync"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(Options{BaseURL: srv.URL + "/api/", Token: "tok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func TestFetchUTub(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/utubs/7", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		writeJSON(w, http.StatusOK, api.UTub{
			ID:   7,
			Name: "Reading",
			URLs: []api.URL{{ID: 1, Title: "Go", URLString: "https://go.dev", TagIDs: []uint{3}, CanMutate: true}},
			Tags: []api.Tag{{ID: 3, TagString: "lang"}},
			Members: []api.Member{{ID: 1, Username: "owner", IsOwner: true}},
		})
	})

	snap, err := c.FetchUTub(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, sync.UTubID(7), snap.UTub.ID)
	require.Len(t, snap.URLs, 1)
	assert.Equal(t, "https://go.dev", snap.URLs[0].Href)
	assert.True(t, snap.URLs[0].TagIDs.Has(3))
	assert.Equal(t, []sync.Tag{{ID: 3, Label: "lang"}}, snap.Tags)
	assert.True(t, snap.Members[0].IsOwner)
}

func TestCreateURLTagSendsLabel(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/utubs/7/urls/1/tags", r.URL.Path)
		var req api.TagRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "docs", req.TagString)
		writeJSON(w, http.StatusCreated, api.URLTag{
			URL: api.URL{ID: 1, TagIDs: []uint{3, 9}},
			Tag: api.Tag{ID: 9, TagString: "docs"},
		})
	})

	res, err := c.CreateURLTag(context.Background(), 7, 1, "docs")
	require.NoError(t, err)
	assert.Equal(t, sync.TagID(9), res.Tag.ID)
	assert.True(t, res.URL.TagIDs.Equal(sync.NewTagSet(3, 9)))
}

func TestJSONErrorBecomesStatusError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusConflict, api.NewError("URL already in UTub", nil).
			WithDetails(map[string]any{"urlString": "https://go.dev"}))
	})

	_, err := c.CreateURL(context.Background(), 7, "https://go.dev", "")
	var se *sync.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusConflict, se.StatusCode)
	assert.True(t, se.IsJSON())
	assert.Equal(t, "URL already in UTub", se.Message)
	assert.Equal(t, "https://go.dev", se.Details["urlString"])
}

func TestFieldErrorsAreDecoded(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, api.NewError("Unable to update URL title", map[string][]string{
			"urlTitle": {"Field required"},
		}))
	})

	_, err := c.UpdateURLTitle(context.Background(), 7, 1, "")
	var se *sync.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, []string{"Field required"}, se.FieldErrors["urlTitle"])
}

func TestHTMLErrorKeepsContentType(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte("<html>forbidden</html>"))
	})

	err := c.DeleteURL(context.Background(), 7, 1)
	var se *sync.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusForbidden, se.StatusCode)
	assert.False(t, se.IsJSON())
}

func TestNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, api.NewError("URL not found", nil))
	})

	_, err := c.FetchURL(context.Background(), 7, 1)
	assert.True(t, sync.IsNotFound(err))
}

func TestTransportErrorIsNotStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()
	c := New(Options{BaseURL: srv.URL})

	_, err := c.FetchUTub(context.Background(), 1)
	require.Error(t, err)
	var se *sync.StatusError
	assert.False(t, errors.As(err, &se))
}

func TestLoginAdoptsToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/login":
			writeJSON(w, http.StatusOK, api.AuthResponse{Token: "fresh", User: api.User{ID: 1, Username: "owner"}})
		case "/api/auth/me":
			assert.Equal(t, "Bearer fresh", r.Header.Get("Authorization"))
			writeJSON(w, http.StatusOK, api.User{ID: 1, Username: "owner"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	_, err := c.Login(context.Background(), "owner@example.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, "fresh", c.Token())

	me, err := c.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "owner", me.Username)
}

func TestUnauthorized(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, api.NewError("Invalid token", nil))
	})

	_, err := c.ListUTubs(context.Background())
	assert.True(t, IsUnauthorized(err))
}

func TestRateLimitHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, api.URL{ID: 1})
	}))
	t.Cleanup(srv.Close)
	c := New(Options{BaseURL: srv.URL, RequestsPerSecond: 0.001})

	_, err := c.FetchURL(context.Background(), 1, 1)
	require.NoError(t, err, "the first request uses the burst")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.FetchURL(ctx, 1, 1)
	assert.Error(t, err)
}
