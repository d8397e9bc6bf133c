package sync

import (
	"fmt"
	stdsync "sync"
)

// Store is the normalized model of the active UTub plus the user's
// selection. It is owned by the application root and shared by the Filter,
// Reconciler and Coordinator; nothing else mutates it.
//
// Every switch of the active UTub bumps the epoch. Responses captured under
// an older epoch must not be applied.
type Store struct {
	mu    stdsync.Mutex
	epoch uint64

	utub *UTub

	urls     map[URLID]*URL
	urlOrder []URLID

	tags     map[TagID]*Tag
	tagOrder []TagID

	members     map[UserID]*Member
	memberOrder []UserID

	selected []TagID
	focused  URLID
	hasFocus bool
}

// NewStore returns an empty store with no active UTub.
func NewStore() *Store {
	s := &Store{}
	s.reset()
	return s
}

func (s *Store) reset() {
	s.utub = nil
	s.urls = make(map[URLID]*URL)
	s.urlOrder = nil
	s.tags = make(map[TagID]*Tag)
	s.tagOrder = nil
	s.members = make(map[UserID]*Member)
	s.memberOrder = nil
	s.selected = nil
	s.focused = 0
	s.hasFocus = false
}

// Epoch returns the current selection generation.
func (s *Store) Epoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

// Active returns the active UTub, if any.
func (s *Store) Active() (UTub, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.utub == nil {
		return UTub{}, false
	}
	return *s.utub, true
}

// URL returns a copy of the URL with the given id.
func (s *Store) URL(id URLID) (URL, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.urls[id]
	if !ok {
		return URL{}, false
	}
	return u.Clone(), true
}

// URLs returns copies of all URLs in display order.
func (s *Store) URLs() []URL {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]URL, 0, len(s.urlOrder))
	for _, id := range s.urlOrder {
		out = append(out, s.urls[id].Clone())
	}
	return out
}

// Tag returns the tag with the given id.
func (s *Store) Tag(id TagID) (Tag, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tags[id]
	if !ok {
		return Tag{}, false
	}
	return *t, true
}

// Tags returns all UTub tags in insertion order.
func (s *Store) Tags() []Tag {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Tag, 0, len(s.tagOrder))
	for _, id := range s.tagOrder {
		out = append(out, *s.tags[id])
	}
	return out
}

// Members returns all members in insertion order.
func (s *Store) Members() []Member {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Member, 0, len(s.memberOrder))
	for _, id := range s.memberOrder {
		out = append(out, *s.members[id])
	}
	return out
}

// SelectedTagIDs returns the selected tags in the order they were chosen.
func (s *Store) SelectedTagIDs() []TagID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]TagID(nil), s.selected...)
}

// FocusedURL returns the URL currently open for editing.
func (s *Store) FocusedURL() (URLID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.focused, s.hasFocus
}

// FocusURL marks a URL as open for editing, replacing any previous focus.
func (s *Store) FocusURL(id URLID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.urls[id]; !ok {
		return fmt.Errorf("focus url %d: %w", id, ErrInvalidURLReference)
	}
	s.focused, s.hasFocus = id, true
	return nil
}

// ClearFocus drops the editing focus.
func (s *Store) ClearFocus() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.focused, s.hasFocus = 0, false
}

// Snapshot returns a copy of the whole store contents.
func (s *Store) Snapshot() (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.utub == nil {
		return Snapshot{}, false
	}
	snap := Snapshot{UTub: *s.utub}
	for _, id := range s.urlOrder {
		snap.URLs = append(snap.URLs, s.urls[id].Clone())
	}
	for _, id := range s.tagOrder {
		snap.Tags = append(snap.Tags, *s.tags[id])
	}
	for _, id := range s.memberOrder {
		snap.Members = append(snap.Members, *s.members[id])
	}
	return snap, true
}

// Validate checks that no URL references a tag missing from the UTub.
func (s *Store) Validate() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.validateLocked()
}

// FindURLByHref returns the URL whose href equals href.
func (s *Store) FindURLByHref(href string) (URL, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.urlOrder {
		if s.urls[id].Href == href {
			return s.urls[id].Clone(), true
		}
	}
	return URL{}, false
}

// FindTagByLabel returns the tag with the given label.
func (s *Store) FindTagByLabel(label string) (Tag, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.tagOrder {
		if s.tags[id].Label == label {
			return *s.tags[id], true
		}
	}
	return Tag{}, false
}

func (s *Store) validateLocked() error {
	for _, id := range s.urlOrder {
		for tid := range s.urls[id].TagIDs {
			if _, ok := s.tags[tid]; !ok {
				return fmt.Errorf("url %d tag %d: %w", id, tid, ErrOrphanTagReference)
			}
		}
	}
	return nil
}

// The methods below assume s.mu is held.

func (s *Store) replaceLocked(snap Snapshot) {
	s.reset()
	s.epoch++
	u := snap.UTub
	s.utub = &u
	for _, url := range snap.URLs {
		s.putURLLocked(url)
	}
	for _, t := range snap.Tags {
		s.putTagLocked(t)
	}
	for _, m := range snap.Members {
		s.putMemberLocked(m)
	}
}

func (s *Store) clearLocked() {
	s.reset()
	s.epoch++
}

func (s *Store) putURLLocked(u URL) {
	c := u.Clone()
	if _, ok := s.urls[u.ID]; !ok {
		s.urlOrder = append(s.urlOrder, u.ID)
	}
	s.urls[u.ID] = &c
}

func (s *Store) removeURLLocked(id URLID) (URL, bool) {
	u, ok := s.urls[id]
	if !ok {
		return URL{}, false
	}
	delete(s.urls, id)
	s.urlOrder = removeID(s.urlOrder, id)
	if s.hasFocus && s.focused == id {
		s.focused, s.hasFocus = 0, false
	}
	return *u, true
}

func (s *Store) putTagLocked(t Tag) {
	if _, ok := s.tags[t.ID]; !ok {
		s.tagOrder = append(s.tagOrder, t.ID)
	}
	c := t
	s.tags[t.ID] = &c
}

// removeTagLocked drops the tag, strips it from every URL and from the
// selection. It returns the ids of URLs whose tag sets changed.
func (s *Store) removeTagLocked(id TagID) ([]URLID, bool) {
	if _, ok := s.tags[id]; !ok {
		return nil, false
	}
	delete(s.tags, id)
	s.tagOrder = removeID(s.tagOrder, id)
	s.selected = removeID(s.selected, id)

	var touched []URLID
	for _, uid := range s.urlOrder {
		u := s.urls[uid]
		if u.TagIDs.Has(id) {
			delete(u.TagIDs, id)
			touched = append(touched, uid)
		}
	}
	return touched, true
}

func (s *Store) putMemberLocked(m Member) {
	if _, ok := s.members[m.ID]; !ok {
		s.memberOrder = append(s.memberOrder, m.ID)
	}
	c := m
	s.members[m.ID] = &c
}

func (s *Store) removeMemberLocked(id UserID) bool {
	if _, ok := s.members[id]; !ok {
		return false
	}
	delete(s.members, id)
	s.memberOrder = removeID(s.memberOrder, id)
	return true
}

// tagReferencedLocked reports whether any URL still carries the tag.
func (s *Store) tagReferencedLocked(id TagID) bool {
	for _, u := range s.urls {
		if u.TagIDs.Has(id) {
			return true
		}
	}
	return false
}

func removeID[T comparable](ids []T, id T) []T {
	for i, v := range ids {
		if v == id {
			return append(ids[:i:i], ids[i+1:]...)
		}
	}
	return ids
}
