// Package render draws engine output on a terminal.
package render

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	gosync "sync"

	"github.com/mikepea/utubs/pkg/utubs/sync"
)

// Terminal is a sync.Projector and sync.FaultHandler writing to w. It reads
// titles and labels from the bound Store and keeps no state of its own
// beyond the writer.
type Terminal struct {
	// Views renders every filter change. When false only RenderView draws
	// the URL list.
	Views bool
	// Diffs prints a one-line summary of every applied merge.
	Diffs bool

	mu    gosync.Mutex
	w     io.Writer
	p     *Palette
	store *sync.Store
}

var (
	_ sync.Projector    = (*Terminal)(nil)
	_ sync.FaultHandler = (*Terminal)(nil)
)

// NewTerminal creates a Terminal. A nil palette uses DefaultPalette.
func NewTerminal(w io.Writer, p *Palette) *Terminal {
	if p == nil {
		p = DefaultPalette()
	}
	return &Terminal{w: w, p: p}
}

// Bind attaches the store whose entities are drawn.
func (t *Terminal) Bind(store *sync.Store) {
	t.mu.Lock()
	t.store = store
	t.mu.Unlock()
}

func (t *Terminal) write(s string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	io.WriteString(t.w, s)
}

func (t *Terminal) OnFilterChanged(res sync.FilterResult) {
	if !t.Views {
		return
	}
	t.write(t.View(res))
}

func (t *Terminal) OnDiffApplied(d sync.Diff) {
	if !t.Diffs || d.Empty() {
		return
	}
	t.write(t.p.help.Render(DiffSummary(d)) + "\n")
}

func (t *Terminal) OnMutationOutcome(kind sync.MutationKind, o sync.Outcome) {
	t.write(t.Outcome(kind, o))
}

func (t *Terminal) OnFatal(err error) {
	t.write(t.p.err.Render("error: "+err.Error()) + "\n")
}

// RenderView writes the URL list and tag deck for res.
func (t *Terminal) RenderView(res sync.FilterResult) {
	t.write(t.View(res))
}

// View renders the active UTub as seen through res.
func (t *Terminal) View(res sync.FilterResult) string {
	t.mu.Lock()
	store := t.store
	t.mu.Unlock()
	if store == nil {
		return ""
	}
	utub, ok := store.Active()
	if !ok {
		return t.p.help.Render("no UTub selected") + "\n"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", t.p.title.Render(utub.Name), t.p.help.Render(fmt.Sprintf("#%d", utub.ID)))

	if len(res.TagOrder) > 0 {
		deck := make([]string, 0, len(res.TagOrder))
		for _, id := range res.TagOrder {
			tag, ok := store.Tag(id)
			if !ok {
				continue
			}
			c := res.PerTagCounts[id]
			label := fmt.Sprintf("%s (%d/%d)", tag.Label, c.Total, c.Applied)
			style := t.p.tag
			switch {
			case slices.Contains(res.SelectedTagIDs, id):
				style = t.p.selected
				label = "[x] " + label
			case res.Disabled(id):
				style = t.p.disabled
			}
			deck = append(deck, style.Render(fmt.Sprintf("%d:%s", id, label)))
		}
		fmt.Fprintf(&b, "tags: %s\n", strings.Join(deck, "  "))
	}

	if len(res.VisibleURLIDs) == 0 {
		b.WriteString(t.p.help.Render("no URLs match") + "\n")
		return b.String()
	}
	for _, id := range res.VisibleURLIDs {
		u, ok := store.URL(id)
		if !ok {
			continue
		}
		labels := make([]string, 0, len(u.TagIDs))
		for _, tid := range u.TagIDs.Sorted() {
			if tag, ok := store.Tag(tid); ok {
				labels = append(labels, tag.Label)
			}
		}
		fmt.Fprintf(&b, "%4d  %s  %s", u.ID, u.Title, t.p.href.Render(u.Href))
		if len(labels) > 0 {
			fmt.Fprintf(&b, "  %s", t.p.tag.Render("#"+strings.Join(labels, " #")))
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "%s\n", t.p.help.Render(fmt.Sprintf("%d shown, %d tags selected", len(res.VisibleURLIDs), res.SelectedCount)))
	return b.String()
}

// Outcome renders one mutation result.
func (t *Terminal) Outcome(kind sync.MutationKind, o sync.Outcome) string {
	var b strings.Builder
	name := strings.ReplaceAll(string(kind), "_", " ")
	switch o.State {
	case sync.StateCommitted:
		if kind == sync.KindLoadUTub {
			break
		}
		msg := "ok: " + name
		if o.Vacuous {
			msg += " (already done)"
		}
		b.WriteString(t.p.ok.Render(msg) + "\n")
	case sync.StateValidationFailed:
		b.WriteString(t.p.err.Render("invalid: "+name) + "\n")
		for _, field := range slices.Sorted(maps.Keys(o.FieldErrors)) {
			fmt.Fprintf(&b, "  %s: %s\n", field, strings.Join(o.FieldErrors[field], ", "))
		}
		if len(o.FieldErrors) == 0 && o.Err != nil {
			fmt.Fprintf(&b, "  %s\n", o.Err)
		}
	case sync.StateDiscarded:
		b.WriteString(t.p.help.Render("discarded: "+name) + "\n")
	case sync.StateFatal:
		// auth and server faults go to OnFatal; transport faults carry a banner
	default:
		if o.Err != nil {
			b.WriteString(t.p.warn.Render(name+": "+o.Err.Error()) + "\n")
		}
	}
	if o.Banner != "" {
		b.WriteString(t.p.warn.Render(o.Banner) + "\n")
	}
	return b.String()
}

// DiffSummary describes a Diff in one line.
func DiffSummary(d sync.Diff) string {
	if d.Reloaded {
		return "reloaded"
	}
	var parts []string
	add := func(n int, what string) {
		if n > 0 {
			parts = append(parts, fmt.Sprintf("%s %d", what, n))
		}
	}
	add(len(d.URLs.Added), "+url")
	add(len(d.URLs.Updated), "~url")
	add(len(d.URLs.Removed), "-url")
	add(len(d.Tags.Added), "+tag")
	add(len(d.Tags.Removed), "-tag")
	add(len(d.Members.Added), "+member")
	add(len(d.Members.Removed), "-member")
	add(len(d.DeselectedTags), "deselected")
	if d.UTubChanged {
		parts = append(parts, "utub updated")
	}
	if d.FocusCleared {
		parts = append(parts, "focus cleared")
	}
	return strings.Join(parts, ", ")
}
