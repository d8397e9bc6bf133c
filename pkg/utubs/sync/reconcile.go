package sync

import (
	"fmt"
	"slices"
)

// Reconciler merges server state into the Store and keeps the filter view
// current after every merge.
type Reconciler struct {
	store     *Store
	filter    *Filter
	projector Projector
}

// NewReconciler wires a reconciler. A nil projector discards output.
func NewReconciler(store *Store, filter *Filter, projector Projector) *Reconciler {
	if projector == nil {
		projector = NopProjector{}
	}
	return &Reconciler{store: store, filter: filter, projector: projector}
}

// Load replaces the Store with snap and starts a new epoch. Responses
// captured under the previous epoch are dropped from here on. epoch must be
// the Store epoch at the time the snapshot was requested.
func (r *Reconciler) Load(epoch uint64, snap Snapshot) (Diff, error) {
	if err := validateSnapshot(snap); err != nil {
		return Diff{}, err
	}

	s := r.store
	s.mu.Lock()
	if epoch != s.epoch {
		s.mu.Unlock()
		return Diff{}, fmt.Errorf("load utub %d at epoch %d, store at %d: %w", snap.UTub.ID, epoch, s.epoch, ErrStaleEpoch)
	}
	s.replaceLocked(snap)
	d := Diff{Epoch: s.epoch, Reloaded: true, UTubChanged: true}
	for _, u := range snap.URLs {
		d.URLs.Added = append(d.URLs.Added, u.ID)
	}
	for _, t := range snap.Tags {
		d.Tags.Added = append(d.Tags.Added, t.ID)
	}
	for _, m := range snap.Members {
		d.Members.Added = append(d.Members.Added, m.ID)
	}
	res := r.filter.computeLocked()
	s.mu.Unlock()

	r.publish(d, res)
	return d, nil
}

// Clear deselects the active UTub and starts a new epoch.
func (r *Reconciler) Clear() Diff {
	s := r.store
	s.mu.Lock()
	s.clearLocked()
	d := Diff{Epoch: s.epoch, Reloaded: true, UTubChanged: true}
	res := r.filter.computeLocked()
	s.mu.Unlock()

	r.publish(d, res)
	return d
}

// MergeCollectionSnapshot converges the Store to snap with a three-way diff
// per entity kind. Removals are applied before additions before updates.
// URLs present on both sides are patched field by field so untouched fields
// keep whatever the user has open.
func (r *Reconciler) MergeCollectionSnapshot(epoch uint64, snap Snapshot) (Diff, error) {
	if err := validateSnapshot(snap); err != nil {
		return Diff{}, err
	}

	s := r.store
	s.mu.Lock()
	if err := r.checkLocked(epoch); err != nil {
		s.mu.Unlock()
		return Diff{}, err
	}
	if s.utub.ID != snap.UTub.ID {
		s.mu.Unlock()
		return Diff{}, fmt.Errorf("merge utub %d into %d: %w", snap.UTub.ID, s.utub.ID, ErrUTubMismatch)
	}

	d := Diff{Epoch: s.epoch}
	hadFocus := s.hasFocus
	selectedBefore := append([]TagID(nil), s.selected...)

	remoteURLs := make(map[URLID]URL, len(snap.URLs))
	for _, u := range snap.URLs {
		remoteURLs[u.ID] = u
	}
	remoteTags := make(map[TagID]Tag, len(snap.Tags))
	for _, t := range snap.Tags {
		remoteTags[t.ID] = t
	}
	remoteMembers := make(map[UserID]Member, len(snap.Members))
	for _, m := range snap.Members {
		remoteMembers[m.ID] = m
	}

	// removals
	for _, id := range slices.Clone(s.urlOrder) {
		if _, ok := remoteURLs[id]; !ok {
			s.removeURLLocked(id)
			d.URLs.Removed = append(d.URLs.Removed, id)
		}
	}
	for _, id := range slices.Clone(s.tagOrder) {
		if _, ok := remoteTags[id]; !ok {
			touched, _ := s.removeTagLocked(id)
			d.Tags.Removed = append(d.Tags.Removed, id)
			for _, uid := range touched {
				d.markURL(uid, FieldTags)
			}
		}
	}
	for _, id := range slices.Clone(s.memberOrder) {
		if _, ok := remoteMembers[id]; !ok {
			s.removeMemberLocked(id)
			d.Members.Removed = append(d.Members.Removed, id)
		}
	}

	// additions; tags first so new URLs never reference a missing tag
	for _, t := range snap.Tags {
		if _, ok := s.tags[t.ID]; !ok {
			s.putTagLocked(t)
			d.Tags.Added = append(d.Tags.Added, t.ID)
		}
	}
	for _, u := range snap.URLs {
		if _, ok := s.urls[u.ID]; !ok {
			s.putURLLocked(u)
			d.URLs.Added = append(d.URLs.Added, u.ID)
		}
	}
	for _, m := range snap.Members {
		if _, ok := s.members[m.ID]; !ok {
			s.putMemberLocked(m)
			d.Members.Added = append(d.Members.Added, m.ID)
		}
	}

	// updates
	if *s.utub != snap.UTub {
		u := snap.UTub
		s.utub = &u
		d.UTubChanged = true
	}
	for _, t := range snap.Tags {
		if slices.Contains(d.Tags.Added, t.ID) {
			continue
		}
		if local := s.tags[t.ID]; local.Label != t.Label {
			local.Label = t.Label
			d.Tags.Updated = append(d.Tags.Updated, t.ID)
		}
	}
	for _, u := range snap.URLs {
		if slices.Contains(d.URLs.Added, u.ID) {
			continue
		}
		d.markURL(u.ID, patchURL(s.urls[u.ID], u))
	}
	for _, id := range s.urlOrder {
		if _, ok := d.URLFields[id]; ok {
			d.URLs.Updated = append(d.URLs.Updated, id)
		}
	}
	for _, m := range snap.Members {
		if slices.Contains(d.Members.Added, m.ID) {
			continue
		}
		if local := s.members[m.ID]; *local != m {
			*local = m
			d.Members.Updated = append(d.Members.Updated, m.ID)
		}
	}

	d.DeselectedTags = missingFrom(selectedBefore, s.selected)
	d.FocusCleared = hadFocus && !s.hasFocus
	res := r.filter.computeLocked()
	s.mu.Unlock()

	if !d.Empty() {
		r.publish(d, res)
	}
	return d, nil
}

// MergeSingleURL applies the server's view of one URL. A nil remote means
// the server no longer has it: the URL is removed and so is every tag it
// carried that no remaining URL references.
func (r *Reconciler) MergeSingleURL(epoch uint64, id URLID, remote *URL) (Diff, error) {
	s := r.store
	s.mu.Lock()
	if err := r.checkLocked(epoch); err != nil {
		s.mu.Unlock()
		return Diff{}, err
	}

	d := Diff{Epoch: s.epoch}
	hadFocus := s.hasFocus
	selectedBefore := append([]TagID(nil), s.selected...)

	if remote == nil {
		if removed, ok := s.removeURLLocked(id); ok {
			d.URLs.Removed = append(d.URLs.Removed, id)
			for _, tid := range removed.TagIDs.Sorted() {
				if s.tagReferencedLocked(tid) {
					continue
				}
				if _, ok := s.removeTagLocked(tid); ok {
					d.Tags.Removed = append(d.Tags.Removed, tid)
				}
			}
		}
	} else {
		if remote.ID != id {
			s.mu.Unlock()
			return Diff{}, fmt.Errorf("merge url %d with payload for %d: %w", id, remote.ID, ErrInvalidURLReference)
		}
		for tid := range remote.TagIDs {
			if _, ok := s.tags[tid]; !ok {
				s.mu.Unlock()
				return Diff{}, fmt.Errorf("merge url %d tag %d: %w", id, tid, ErrOrphanTagReference)
			}
		}
		if local, ok := s.urls[id]; ok {
			if f := patchURL(local, *remote); f != 0 {
				d.markURL(id, f)
				d.URLs.Updated = append(d.URLs.Updated, id)
			}
		} else {
			s.putURLLocked(*remote)
			d.URLs.Added = append(d.URLs.Added, id)
		}
	}

	d.DeselectedTags = missingFrom(selectedBefore, s.selected)
	d.FocusCleared = hadFocus && !s.hasFocus
	res := r.filter.computeLocked()
	s.mu.Unlock()

	if !d.Empty() {
		r.publish(d, res)
	}
	return d, nil
}

// MergeTag inserts or relabels a UTub tag.
func (r *Reconciler) MergeTag(epoch uint64, t Tag) (Diff, error) {
	s := r.store
	s.mu.Lock()
	if err := r.checkLocked(epoch); err != nil {
		s.mu.Unlock()
		return Diff{}, err
	}

	d := Diff{Epoch: s.epoch}
	if local, ok := s.tags[t.ID]; !ok {
		s.putTagLocked(t)
		d.Tags.Added = append(d.Tags.Added, t.ID)
	} else if local.Label != t.Label {
		local.Label = t.Label
		d.Tags.Updated = append(d.Tags.Updated, t.ID)
	}
	res := r.filter.computeLocked()
	s.mu.Unlock()

	if !d.Empty() {
		r.publish(d, res)
	}
	return d, nil
}

// RemoveTag deletes a UTub tag and strips it from every URL.
func (r *Reconciler) RemoveTag(epoch uint64, id TagID) (Diff, error) {
	s := r.store
	s.mu.Lock()
	if err := r.checkLocked(epoch); err != nil {
		s.mu.Unlock()
		return Diff{}, err
	}

	d := Diff{Epoch: s.epoch}
	selectedBefore := append([]TagID(nil), s.selected...)
	if touched, ok := s.removeTagLocked(id); ok {
		d.Tags.Removed = append(d.Tags.Removed, id)
		for _, uid := range touched {
			d.markURL(uid, FieldTags)
			d.URLs.Updated = append(d.URLs.Updated, uid)
		}
	}
	d.DeselectedTags = missingFrom(selectedBefore, s.selected)
	res := r.filter.computeLocked()
	s.mu.Unlock()

	if !d.Empty() {
		r.publish(d, res)
	}
	return d, nil
}

func (r *Reconciler) checkLocked(epoch uint64) error {
	if epoch != r.store.epoch {
		return fmt.Errorf("epoch %d, store at %d: %w", epoch, r.store.epoch, ErrStaleEpoch)
	}
	if r.store.utub == nil {
		return ErrNoActiveUTub
	}
	return nil
}

func (r *Reconciler) publish(d Diff, res FilterResult) {
	r.projector.OnDiffApplied(d)
	r.projector.OnFilterChanged(res)
}

// patchURL copies changed fields from remote into local and reports which.
func patchURL(local *URL, remote URL) URLField {
	var f URLField
	if local.Title != remote.Title {
		local.Title = remote.Title
		f |= FieldTitle
	}
	if local.Href != remote.Href {
		local.Href = remote.Href
		f |= FieldHref
	}
	if !local.TagIDs.Equal(remote.TagIDs) {
		local.TagIDs = remote.TagIDs.Clone()
		f |= FieldTags
	}
	if local.CanMutate != remote.CanMutate {
		local.CanMutate = remote.CanMutate
		f |= FieldCanMutate
	}
	return f
}

// validateSnapshot rejects snapshots whose URLs reference unknown tags.
func validateSnapshot(snap Snapshot) error {
	tags := make(TagSet, len(snap.Tags))
	for _, t := range snap.Tags {
		tags[t.ID] = struct{}{}
	}
	for _, u := range snap.URLs {
		for tid := range u.TagIDs {
			if !tags.Has(tid) {
				return fmt.Errorf("snapshot url %d tag %d: %w", u.ID, tid, ErrOrphanTagReference)
			}
		}
	}
	return nil
}

func missingFrom[T comparable](before, after []T) []T {
	var out []T
	for _, id := range before {
		if !slices.Contains(after, id) {
			out = append(out, id)
		}
	}
	return out
}
