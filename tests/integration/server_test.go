package integration

import (
	"context"
	"errors"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/utubs/pkg/utubs/client"
	"github.com/mikepea/utubs/pkg/utubs/models"
	"github.com/mikepea/utubs/pkg/utubs/server"
	"github.com/mikepea/utubs/pkg/utubs/sync"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupServer starts the full API on a file-backed SQLite database.
func setupServer(t *testing.T) string {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "utubs.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, models.AutoMigrate(db))

	srv := httptest.NewServer(server.NewRouter(db, nil))
	t.Cleanup(srv.Close)
	return srv.URL + "/api"
}

type faults struct{ errs []error }

func (f *faults) OnFatal(err error) { f.errs = append(f.errs, err) }

// member is one signed-in user with their own engine.
type member struct {
	client *client.Client
	engine *sync.Engine
	faults *faults
	id     uint
}

func signUp(t *testing.T, baseURL, username string) *member {
	t.Helper()
	c := client.New(client.Options{BaseURL: baseURL})
	res, err := c.Register(context.Background(), username, username+"@example.com", "password123")
	require.NoError(t, err)
	f := &faults{}
	return &member{
		client: c,
		engine: sync.NewEngine(c, sync.Options{Faults: f}),
		faults: f,
		id:     res.User.ID,
	}
}

func (m *member) sel(t *testing.T, utubID uint) {
	t.Helper()
	out, err := m.engine.SelectUTub(context.Background(), sync.UTubID(utubID))
	require.NoError(t, err)
	require.True(t, out.OK(), "select: %+v", out)
}

// sharedUTub creates a UTub owned by alice with bob as a member and both
// engines selecting it.
func sharedUTub(t *testing.T) (alice, bob *member, utubID uint) {
	t.Helper()
	baseURL := setupServer(t)
	alice = signUp(t, baseURL, "alice")
	bob = signUp(t, baseURL, "bob")

	utub, err := alice.client.CreateUTub(context.Background(), "Reading", "shared")
	require.NoError(t, err)
	_, err = alice.client.AddMember(context.Background(), utub.ID, "bob")
	require.NoError(t, err)

	alice.sel(t, utub.ID)
	bob.sel(t, utub.ID)
	return alice, bob, utub.ID
}

func TestHealth(t *testing.T) {
	baseURL := setupServer(t)
	c := client.New(client.Options{BaseURL: baseURL})
	_, err := c.Me(context.Background())
	assert.True(t, client.IsUnauthorized(err))
}

func TestFilterScenarioOverHTTP(t *testing.T) {
	alice, _, _ := sharedUTub(t)
	ctx := context.Background()

	a, err := alice.engine.CreateURL(ctx, "https://a.example", "A")
	require.NoError(t, err)
	require.True(t, a.OK())
	b, err := alice.engine.CreateURL(ctx, "https://b.example", "B")
	require.NoError(t, err)
	require.True(t, b.OK())

	x, err := alice.engine.AddURLTag(ctx, a.URL.ID, "x")
	require.NoError(t, err)
	require.True(t, x.OK())
	y, err := alice.engine.AddURLTag(ctx, a.URL.ID, "y")
	require.NoError(t, err)
	require.True(t, y.OK())
	out, err := alice.engine.AddURLTag(ctx, b.URL.ID, "x")
	require.NoError(t, err)
	require.True(t, out.OK())
	assert.Equal(t, x.Tag.ID, out.Tag.ID, "existing label is reused")

	res, err := alice.engine.ToggleTag(x.Tag.ID)
	require.NoError(t, err)
	assert.Equal(t, []sync.URLID{a.URL.ID, b.URL.ID}, res.VisibleURLIDs)

	res, err = alice.engine.ToggleTag(y.Tag.ID)
	require.NoError(t, err)
	assert.Equal(t, []sync.URLID{a.URL.ID}, res.VisibleURLIDs)
	assert.Equal(t, sync.TagCount{Applied: 2, Total: 1}, res.PerTagCounts[x.Tag.ID])
}

func TestStaleEditIsNotWritten(t *testing.T) {
	alice, bob, utubID := sharedUTub(t)
	ctx := context.Background()

	created, err := alice.engine.CreateURL(ctx, "https://go.dev", "Go")
	require.NoError(t, err)
	id := created.URL.ID

	out, err := bob.engine.Reload(ctx)
	require.NoError(t, err)
	require.True(t, out.OK())

	// alice renames while bob's view still has the old title
	out, err = alice.engine.UpdateURLTitle(ctx, id, "Go home")
	require.NoError(t, err)
	require.True(t, out.OK())

	// bob edits from a stale view; the precheck stops it before any write
	out, err = bob.engine.UpdateURLTitle(ctx, id, "Mine")
	require.NoError(t, err)
	assert.Equal(t, sync.StateStale, out.State)
	assert.ErrorIs(t, out.Err, sync.ErrStaleConflict)

	u, ok := bob.engine.Store.URL(id)
	require.True(t, ok)
	assert.Equal(t, "Go home", u.Title, "bob's view now shows alice's title")

	remote, err := alice.client.FetchURL(ctx, sync.UTubID(utubID), id)
	require.NoError(t, err)
	assert.Equal(t, "Go home", remote.Title, "the stale edit was never sent")
}

func TestDeletedURLIsVacuousForOtherMember(t *testing.T) {
	alice, bob, _ := sharedUTub(t)
	ctx := context.Background()

	created, err := alice.engine.CreateURL(ctx, "https://go.dev", "Go")
	require.NoError(t, err)
	tagged, err := alice.engine.AddURLTag(ctx, created.URL.ID, "lang")
	require.NoError(t, err)
	_, err = bob.engine.Reload(ctx)
	require.NoError(t, err)

	out, err := alice.engine.DeleteURL(ctx, created.URL.ID)
	require.NoError(t, err)
	require.True(t, out.OK())

	// bob (a plain member) removes the tag from a URL that no longer exists
	out, err = bob.engine.RemoveURLTag(ctx, created.URL.ID, tagged.Tag.ID)
	require.NoError(t, err)
	assert.True(t, out.OK())
	assert.True(t, out.Vacuous)
	_, ok := bob.engine.Store.URL(created.URL.ID)
	assert.False(t, ok)
}

func TestDuplicateURLConflict(t *testing.T) {
	alice, bob, _ := sharedUTub(t)
	ctx := context.Background()

	_, err := alice.engine.CreateURL(ctx, "https://go.dev", "Go")
	require.NoError(t, err)

	// bob has not seen alice's URL, so the conflict triggers a reload
	out, err := bob.engine.CreateURL(ctx, "go.dev", "Go again")
	require.NoError(t, err)
	assert.Equal(t, sync.StateConflictDetected, out.State)
	assert.ErrorIs(t, out.Err, sync.ErrDuplicate)
	assert.True(t, out.Reloaded)
	assert.Len(t, bob.engine.Store.URLs(), 1)
}

func TestValidationErrorsReachTheEngine(t *testing.T) {
	alice, _, _ := sharedUTub(t)
	ctx := context.Background()

	out, err := alice.engine.CreateURL(ctx, "ftp://example.com", "")
	require.NoError(t, err)
	assert.Equal(t, sync.StateValidationFailed, out.State)
	assert.Contains(t, out.FieldErrors, "urlString")

	var verr *sync.ValidationError
	assert.True(t, errors.As(out.Err, &verr))
}

func TestMemberCannotEditOthersURL(t *testing.T) {
	alice, bob, _ := sharedUTub(t)
	ctx := context.Background()

	created, err := alice.engine.CreateURL(ctx, "https://go.dev", "Go")
	require.NoError(t, err)
	_, err = bob.engine.Reload(ctx)
	require.NoError(t, err)

	u, _ := bob.engine.Store.URL(created.URL.ID)
	assert.False(t, u.CanMutate)

	out, err := bob.engine.DeleteURL(ctx, created.URL.ID)
	require.NoError(t, err)
	assert.Equal(t, sync.StateValidationFailed, out.State, "a JSON 403 is shown as a validation message")
	assert.Empty(t, bob.faults.errs)
}

func TestUTubTagDeletionPropagates(t *testing.T) {
	alice, bob, _ := sharedUTub(t)
	ctx := context.Background()

	created, err := alice.engine.CreateURL(ctx, "https://go.dev", "Go")
	require.NoError(t, err)
	tagged, err := alice.engine.AddURLTag(ctx, created.URL.ID, "lang")
	require.NoError(t, err)
	_, err = bob.engine.Reload(ctx)
	require.NoError(t, err)
	_, err = bob.engine.ToggleTag(tagged.Tag.ID)
	require.NoError(t, err)

	out, err := alice.engine.DeleteUTubTag(ctx, tagged.Tag.ID)
	require.NoError(t, err)
	require.True(t, out.OK())

	out, err = bob.engine.Reload(ctx)
	require.NoError(t, err)
	require.True(t, out.OK())
	assert.Equal(t, []sync.TagID{tagged.Tag.ID}, out.Diff.DeselectedTags)
	assert.Empty(t, bob.engine.Store.SelectedTagIDs())
	assert.Len(t, bob.engine.View().VisibleURLIDs, 1)
}

func TestRemovedMemberGetsUTubGone(t *testing.T) {
	alice, bob, utubID := sharedUTub(t)
	ctx := context.Background()

	require.NoError(t, alice.client.RemoveMember(ctx, utubID, bob.id))

	out, err := bob.engine.Reload(ctx)
	require.NoError(t, err)
	assert.False(t, out.OK())
	_, active := bob.engine.Store.Active()
	assert.False(t, active)
}

func TestExpiredSessionIsFatal(t *testing.T) {
	alice, _, _ := sharedUTub(t)
	alice.client.SetToken("garbage")

	out, err := alice.engine.CreateURL(context.Background(), "https://go.dev", "Go")
	require.NoError(t, err)
	assert.Equal(t, sync.StateFatal, out.State)
	assert.ErrorIs(t, out.Err, sync.ErrAuthFault)
	require.Len(t, alice.faults.errs, 1)
}
