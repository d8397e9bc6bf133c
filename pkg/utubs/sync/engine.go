package sync

import (
	"time"

	"github.com/charmbracelet/log"
)

// Engine bundles the Store, Filter, Reconciler and Coordinator for one
// client session.
type Engine struct {
	*Coordinator

	Store      *Store
	Filter     *Filter
	Reconciler *Reconciler

	projector Projector
}

// Options configure an Engine.
type Options struct {
	MaxSelectedTags int
	Timeout         time.Duration
	Projector       Projector
	Faults          FaultHandler
	Logger          *log.Logger
}

// NewEngine wires an Engine around remote.
func NewEngine(remote Remote, opts Options) *Engine {
	if opts.Projector == nil {
		opts.Projector = NopProjector{}
	}
	store := NewStore()
	filter := NewFilter(store, opts.MaxSelectedTags)
	reconciler := NewReconciler(store, filter, opts.Projector)
	coordinator := NewCoordinator(CoordinatorConfig{
		Store:      store,
		Filter:     filter,
		Reconciler: reconciler,
		Remote:     remote,
		Projector:  opts.Projector,
		Faults:     opts.Faults,
		Logger:     opts.Logger,
		Timeout:    opts.Timeout,
	})
	return &Engine{
		Coordinator: coordinator,
		Store:       store,
		Filter:      filter,
		Reconciler:  reconciler,
		projector:   opts.Projector,
	}
}

// ToggleTag toggles a tag in the filter and publishes the new view.
func (e *Engine) ToggleTag(id TagID) (FilterResult, error) {
	res, err := e.Filter.ToggleTag(id)
	if err != nil {
		return res, err
	}
	e.projector.OnFilterChanged(res)
	return res, nil
}

// ClearTags empties the tag selection and publishes the new view.
func (e *Engine) ClearTags() FilterResult {
	res := e.Filter.ClearAllTags()
	e.projector.OnFilterChanged(res)
	return res
}

// View returns the current filter result without changing anything.
func (e *Engine) View() FilterResult {
	return e.Filter.Recompute()
}

// FocusURL opens a URL for editing. Only one URL can be focused.
func (e *Engine) FocusURL(id URLID) error {
	return e.Store.FocusURL(id)
}
