package sync

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeCollectionSnapshotIsIdempotent(t *testing.T) {
	store, _, rec := loadStore(t, sampleSnapshot(), 5)

	remote := sampleSnapshot()
	remote.URLs[0].Title = "A, renamed"
	remote.URLs = append(remote.URLs, URL{ID: 3, Title: "D", Href: "https://d.example", TagIDs: NewTagSet(2)})
	remote.Members = remote.Members[:1]

	first, err := rec.MergeCollectionSnapshot(store.Epoch(), remote)
	require.NoError(t, err)
	assert.False(t, first.Empty())
	assert.Equal(t, []URLID{3}, first.URLs.Added)
	assert.Equal(t, []URLID{1}, first.URLs.Updated)
	assert.Equal(t, []UserID{2}, first.Members.Removed)

	second, err := rec.MergeCollectionSnapshot(store.Epoch(), remote)
	require.NoError(t, err)
	assert.True(t, second.Empty(), "second merge should change nothing: %+v", second)
}

func TestMergeCollectionSnapshotRemovesMissingURLAndItsTag(t *testing.T) {
	store, _, rec := loadStore(t, sampleSnapshot(), 5)

	// another member deletes C, the sole holder of tag 5
	server := newFakeRemote(sampleSnapshot())
	require.NoError(t, server.DeleteURL(context.Background(), 7, 99))
	remote, err := server.FetchUTub(context.Background(), 7)
	require.NoError(t, err)

	d, err := rec.MergeCollectionSnapshot(store.Epoch(), remote)
	require.NoError(t, err)
	assert.Equal(t, []URLID{99}, d.URLs.Removed)
	assert.Equal(t, []TagID{5}, d.Tags.Removed)

	again, err := rec.MergeCollectionSnapshot(store.Epoch(), remote)
	require.NoError(t, err)
	assert.True(t, again.Empty())

	_, ok := store.Tag(5)
	assert.False(t, ok)
	require.NoError(t, store.Validate())
}

func TestMergeCollectionSnapshotPatchesOnlyChangedFields(t *testing.T) {
	store, _, rec := loadStore(t, sampleSnapshot(), 5)
	require.NoError(t, store.FocusURL(1))

	remote := sampleSnapshot()
	remote.URLs[0].TagIDs = NewTagSet(1)

	d, err := rec.MergeCollectionSnapshot(store.Epoch(), remote)
	require.NoError(t, err)
	assert.Equal(t, FieldTags, d.URLFields[1])
	assert.False(t, d.URLFields[1].Has(FieldTitle))
	assert.False(t, d.FocusCleared)

	focused, ok := store.FocusedURL()
	assert.True(t, ok)
	assert.Equal(t, URLID(1), focused)
}

func TestMergeCollectionSnapshotDropsVanishedSelection(t *testing.T) {
	store, filter, rec := loadStore(t, sampleSnapshot(), 5)
	_, err := filter.ToggleTag(5)
	require.NoError(t, err)
	require.NoError(t, store.FocusURL(99))

	remote := sampleSnapshot()
	remote.URLs = remote.URLs[:2]
	remote.Tags = remote.Tags[:2]

	d, err := rec.MergeCollectionSnapshot(store.Epoch(), remote)
	require.NoError(t, err)
	assert.Equal(t, []TagID{5}, d.DeselectedTags)
	assert.True(t, d.FocusCleared)
	assert.Empty(t, store.SelectedTagIDs())
	assert.Len(t, filter.Recompute().VisibleURLIDs, 2)
}

func TestMergeCollectionSnapshotTagRemovalTouchesURLs(t *testing.T) {
	store, _, rec := loadStore(t, sampleSnapshot(), 5)

	remote := sampleSnapshot()
	remote.Tags = []Tag{{ID: 1, Label: "x"}, {ID: 5, Label: "z"}}
	remote.URLs[0].TagIDs = NewTagSet(1)

	d, err := rec.MergeCollectionSnapshot(store.Epoch(), remote)
	require.NoError(t, err)
	assert.Equal(t, []TagID{2}, d.Tags.Removed)
	assert.Equal(t, []URLID{1}, d.URLs.Updated)
	assert.True(t, d.URLFields[1].Has(FieldTags))

	u, _ := store.URL(1)
	assert.True(t, u.TagIDs.Equal(NewTagSet(1)))
}

func TestMergeCollectionSnapshotRejectsOrphanTags(t *testing.T) {
	store, _, rec := loadStore(t, sampleSnapshot(), 5)

	remote := sampleSnapshot()
	remote.URLs[0].TagIDs = NewTagSet(1, 42)

	_, err := rec.MergeCollectionSnapshot(store.Epoch(), remote)
	assert.ErrorIs(t, err, ErrOrphanTagReference)

	u, _ := store.URL(1)
	assert.True(t, u.TagIDs.Equal(NewTagSet(1, 2)), "store must be untouched")
}

func TestMergeCollectionSnapshotOtherUTub(t *testing.T) {
	store, _, rec := loadStore(t, sampleSnapshot(), 5)

	remote := sampleSnapshot()
	remote.UTub.ID = 8
	_, err := rec.MergeCollectionSnapshot(store.Epoch(), remote)
	assert.ErrorIs(t, err, ErrUTubMismatch)
}

func TestMergeSingleURLNotFoundCleansOrphanTags(t *testing.T) {
	snap := sampleSnapshot()
	snap.URLs[2].TagIDs = NewTagSet(5, 1)
	store, _, rec := loadStore(t, snap, 5)

	d, err := rec.MergeSingleURL(store.Epoch(), 99, nil)
	require.NoError(t, err)
	assert.Equal(t, []URLID{99}, d.URLs.Removed)
	// tag 1 is still on A and B, tag 5 had no other holder
	assert.Equal(t, []TagID{5}, d.Tags.Removed)

	_, ok := store.Tag(5)
	assert.False(t, ok)
	_, ok = store.Tag(1)
	assert.True(t, ok)
}

func TestMergeSingleURLPatchesAndAdds(t *testing.T) {
	store, _, rec := loadStore(t, sampleSnapshot(), 5)

	d, err := rec.MergeSingleURL(store.Epoch(), 2, &URL{ID: 2, Title: "B2", Href: "https://b.example", TagIDs: NewTagSet(1), CanMutate: true})
	require.NoError(t, err)
	assert.Equal(t, []URLID{2}, d.URLs.Updated)
	assert.Equal(t, FieldTitle, d.URLFields[2])

	d, err = rec.MergeSingleURL(store.Epoch(), 50, &URL{ID: 50, Href: "https://new.example", TagIDs: NewTagSet(2)})
	require.NoError(t, err)
	assert.Equal(t, []URLID{50}, d.URLs.Added)

	d, err = rec.MergeSingleURL(store.Epoch(), 2, &URL{ID: 2, Title: "B2", Href: "https://b.example", TagIDs: NewTagSet(1), CanMutate: true})
	require.NoError(t, err)
	assert.True(t, d.Empty())
}

func TestMergeSingleURLUnknownTag(t *testing.T) {
	store, _, rec := loadStore(t, sampleSnapshot(), 5)

	_, err := rec.MergeSingleURL(store.Epoch(), 2, &URL{ID: 2, TagIDs: NewTagSet(77)})
	assert.ErrorIs(t, err, ErrOrphanTagReference)
}

func TestStaleEpochIsDiscarded(t *testing.T) {
	store, _, rec := loadStore(t, sampleSnapshot(), 5)
	old := store.Epoch()

	next := sampleSnapshot()
	next.UTub = UTub{ID: 8, Name: "Other"}
	_, err := rec.Load(store.Epoch(), next)
	require.NoError(t, err)
	require.Greater(t, store.Epoch(), old)

	_, err = rec.MergeSingleURL(old, 1, nil)
	assert.ErrorIs(t, err, ErrStaleEpoch)
	_, ok := store.URL(1)
	assert.True(t, ok, "stale response must not remove anything")

	_, err = rec.MergeTag(old, Tag{ID: 500, Label: "late"})
	assert.ErrorIs(t, err, ErrStaleEpoch)
	_, ok = store.Tag(500)
	assert.False(t, ok)
}

func TestRemoveTagStripsURLs(t *testing.T) {
	store, filter, rec := loadStore(t, sampleSnapshot(), 5)
	_, err := filter.ToggleTag(1)
	require.NoError(t, err)

	d, err := rec.RemoveTag(store.Epoch(), 1)
	require.NoError(t, err)
	assert.Equal(t, []TagID{1}, d.Tags.Removed)
	assert.ElementsMatch(t, []URLID{1, 2}, d.URLs.Updated)
	assert.Equal(t, []TagID{1}, d.DeselectedTags)
	require.NoError(t, store.Validate())
}

func TestReconcilerPublishes(t *testing.T) {
	rec := &recorder{}
	store := NewStore()
	filter := NewFilter(store, 5)
	r := NewReconciler(store, filter, rec)

	_, err := r.Load(store.Epoch(), sampleSnapshot())
	require.NoError(t, err)
	require.Len(t, rec.diffs, 1)
	assert.True(t, rec.diffs[0].Reloaded)
	assert.Len(t, rec.lastFilter().VisibleURLIDs, 3)

	// an empty merge is not published
	_, err = r.MergeCollectionSnapshot(store.Epoch(), sampleSnapshot())
	require.NoError(t, err)
	assert.Len(t, rec.diffs, 1)

	r.Clear()
	assert.Len(t, rec.diffs, 2)
	assert.Empty(t, rec.lastFilter().VisibleURLIDs)
	_, ok := store.Active()
	assert.False(t, ok)
}
