package sync

import "strings"

// URLField is a bit mask of URL fields touched by a merge.
type URLField uint8

const (
	FieldTitle URLField = 1 << iota
	FieldHref
	FieldTags
	FieldCanMutate
)

// Has reports whether f includes field.
func (f URLField) Has(field URLField) bool {
	return f&field != 0
}

func (f URLField) String() string {
	var parts []string
	if f.Has(FieldTitle) {
		parts = append(parts, "title")
	}
	if f.Has(FieldHref) {
		parts = append(parts, "href")
	}
	if f.Has(FieldTags) {
		parts = append(parts, "tags")
	}
	if f.Has(FieldCanMutate) {
		parts = append(parts, "canMutate")
	}
	return strings.Join(parts, "|")
}

// Changes lists ids that were added, updated and removed, each in the order
// they were applied.
type Changes[ID comparable] struct {
	Added   []ID
	Updated []ID
	Removed []ID
}

// Empty reports whether nothing changed.
func (c Changes[ID]) Empty() bool {
	return len(c.Added) == 0 && len(c.Updated) == 0 && len(c.Removed) == 0
}

// Diff describes what a merge changed in the Store, so the projector can
// animate only the affected rows.
type Diff struct {
	Epoch uint64

	// Reloaded is set when the Store was replaced wholesale.
	Reloaded    bool
	UTubChanged bool

	URLs      Changes[URLID]
	URLFields map[URLID]URLField
	Tags      Changes[TagID]
	Members   Changes[UserID]

	// DeselectedTags were dropped from the selection because the tag vanished.
	DeselectedTags []TagID
	FocusCleared   bool
}

// Empty reports whether the merge was a no-op.
func (d Diff) Empty() bool {
	return !d.Reloaded && !d.UTubChanged &&
		d.URLs.Empty() && d.Tags.Empty() && d.Members.Empty() &&
		len(d.DeselectedTags) == 0 && !d.FocusCleared
}

func (d *Diff) markURL(id URLID, f URLField) {
	if f == 0 {
		return
	}
	if d.URLFields == nil {
		d.URLFields = make(map[URLID]URLField)
	}
	d.URLFields[id] |= f
}
