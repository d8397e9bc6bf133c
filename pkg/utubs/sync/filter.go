package sync

import (
	"cmp"
	"fmt"
	"slices"
)

// DefaultMaxSelectedTags is the number of tags that may be selected at once
// when no limit is configured.
const DefaultMaxSelectedTags = 5

// TagCount holds the derived counters shown next to a tag.
// Applied counts every URL in the UTub carrying the tag; Total counts only
// the currently visible ones.
type TagCount struct {
	Applied int
	Total   int
}

// FilterResult is the full derived view for the current selection.
type FilterResult struct {
	Epoch               uint64
	VisibleURLIDs       []URLID
	PerTagCounts        map[TagID]TagCount
	TagOrder            []TagID
	SelectedTagIDs      []TagID
	SelectedCount       int
	TagsDisabledByLimit []TagID
}

// Visible reports whether the URL passed the filter.
func (r FilterResult) Visible(id URLID) bool {
	return slices.Contains(r.VisibleURLIDs, id)
}

// Disabled reports whether the tag cannot be toggled because the selection
// limit is reached.
func (r FilterResult) Disabled(id TagID) bool {
	return slices.Contains(r.TagsDisabledByLimit, id)
}

// Filter evaluates the AND tag filter over the Store.
type Filter struct {
	store       *Store
	maxSelected int
}

// NewFilter creates a filter bound to store. A non-positive maxSelected
// falls back to DefaultMaxSelectedTags.
func NewFilter(store *Store, maxSelected int) *Filter {
	if maxSelected <= 0 {
		maxSelected = DefaultMaxSelectedTags
	}
	return &Filter{store: store, maxSelected: maxSelected}
}

// MaxSelected returns the selection limit.
func (f *Filter) MaxSelected() int {
	return f.maxSelected
}

// ToggleTag selects or deselects a tag. Selecting an unselected tag while
// the limit is reached leaves the state untouched.
func (f *Filter) ToggleTag(id TagID) (FilterResult, error) {
	s := f.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tags[id]; !ok {
		return FilterResult{}, fmt.Errorf("toggle tag %d: %w", id, ErrInvalidTagReference)
	}

	if slices.Contains(s.selected, id) {
		s.selected = removeID(s.selected, id)
	} else if len(s.selected) < f.maxSelected {
		s.selected = append(s.selected, id)
	}
	return f.computeLocked(), nil
}

// ClearAllTags empties the selection.
func (f *Filter) ClearAllTags() FilterResult {
	s := f.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = nil
	return f.computeLocked()
}

// Recompute derives the view from the current Store contents.
func (f *Filter) Recompute() FilterResult {
	s := f.store
	s.mu.Lock()
	defer s.mu.Unlock()
	return f.computeLocked()
}

// computeLocked requires f.store.mu to be held.
func (f *Filter) computeLocked() FilterResult {
	s := f.store
	selected := NewTagSet(s.selected...)

	res := FilterResult{
		Epoch:          s.epoch,
		VisibleURLIDs:  []URLID{},
		PerTagCounts:   make(map[TagID]TagCount, len(s.tags)),
		SelectedTagIDs: append([]TagID{}, s.selected...),
		SelectedCount:  len(s.selected),
	}
	for _, tid := range s.tagOrder {
		res.PerTagCounts[tid] = TagCount{}
	}

	for _, uid := range s.urlOrder {
		u := s.urls[uid]
		visible := u.TagIDs.Contains(selected)
		if visible {
			res.VisibleURLIDs = append(res.VisibleURLIDs, uid)
		}
		for tid := range u.TagIDs {
			c, ok := res.PerTagCounts[tid]
			if !ok {
				// orphan reference, reported by Store.Validate
				continue
			}
			c.Applied++
			if visible {
				c.Total++
			}
			res.PerTagCounts[tid] = c
		}
	}

	res.TagOrder = append([]TagID{}, s.tagOrder...)
	slices.SortStableFunc(res.TagOrder, func(a, b TagID) int {
		return cmp.Compare(res.PerTagCounts[b].Applied, res.PerTagCounts[a].Applied)
	})

	res.TagsDisabledByLimit = []TagID{}
	if len(s.selected) >= f.maxSelected {
		for _, tid := range s.tagOrder {
			if !selected.Has(tid) {
				res.TagsDisabledByLimit = append(res.TagsDisabledByLimit, tid)
			}
		}
	}
	return res
}
