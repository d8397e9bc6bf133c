package sync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	stdsync "sync"
	"time"

	"github.com/charmbracelet/log"
)

// DefaultTimeout bounds every Remote call.
const DefaultTimeout = 10 * time.Second

// MutationKind names a Coordinator operation.
type MutationKind string

const (
	KindLoadUTub        MutationKind = "load_utub"
	KindReloadUTub      MutationKind = "reload_utub"
	KindRefreshURL      MutationKind = "refresh_url"
	KindCreateURL       MutationKind = "create_url"
	KindUpdateURLTitle  MutationKind = "update_url_title"
	KindUpdateURLString MutationKind = "update_url_string"
	KindDeleteURL       MutationKind = "delete_url"
	KindCreateURLTag    MutationKind = "create_url_tag"
	KindDeleteURLTag    MutationKind = "delete_url_tag"
	KindCreateUTubTag   MutationKind = "create_utub_tag"
	KindDeleteUTubTag   MutationKind = "delete_utub_tag"
)

// State is a step of the mutation state machine:
//
//	Idle -> PreCheck -> (Stale | FreshWrite) -> (Committed | ValidationFailed | ConflictDetected | Fatal)
//
// Discarded marks a response that arrived after the active UTub changed.
type State int

const (
	StateIdle State = iota
	StatePreCheck
	StateStale
	StateFreshWrite
	StateCommitted
	StateValidationFailed
	StateConflictDetected
	StateFatal
	StateDiscarded
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePreCheck:
		return "precheck"
	case StateStale:
		return "stale"
	case StateFreshWrite:
		return "fresh_write"
	case StateCommitted:
		return "committed"
	case StateValidationFailed:
		return "validation_failed"
	case StateConflictDetected:
		return "conflict_detected"
	case StateFatal:
		return "fatal"
	case StateDiscarded:
		return "discarded"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Outcome is the terminal result of one Coordinator operation.
type Outcome struct {
	State State
	Err   error

	// Vacuous is set when the server already matched the requested deletion.
	Vacuous bool
	// Reloaded is set when the whole UTub was re-fetched to recover.
	Reloaded bool
	// Banner is a transient, non-blocking message for the user.
	Banner      string
	FieldErrors map[string][]string

	URL  *URL
	Tag  *Tag
	Diff Diff
}

// OK reports whether the operation committed.
func (o Outcome) OK() bool {
	return o.State == StateCommitted
}

// Banner texts.
const (
	bannerStale     = "This URL was changed by another member. Review the update and try again."
	bannerNotFound  = "This item was removed by another member."
	bannerTransport = "Could not reach the server. Please try again."
	bannerReloaded  = "This UTub was updated by another member and has been refreshed."
	bannerUTubGone  = "This UTub is no longer available."
)

// CoordinatorConfig holds the collaborators of a Coordinator.
type CoordinatorConfig struct {
	Store      *Store
	Filter     *Filter
	Reconciler *Reconciler
	Remote     Remote
	Projector  Projector
	Faults     FaultHandler  // optional; told about auth and server faults
	Logger     *log.Logger   // optional
	Timeout    time.Duration // per Remote call; DefaultTimeout when zero
}

// Coordinator runs mutations against the Remote and folds the results into
// the Store. At most one mutation per URL (and per UTub tag) is in flight;
// a second one is rejected with ErrAlreadyInFlight.
type Coordinator struct {
	store      *Store
	filter     *Filter
	reconciler *Reconciler
	remote     Remote
	projector  Projector
	faults     FaultHandler
	logger     *log.Logger
	timeout    time.Duration

	mu           stdsync.Mutex
	inflightURLs map[URLID]struct{}
	inflightTags map[TagID]struct{}
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(cfg CoordinatorConfig) *Coordinator {
	if cfg.Projector == nil {
		cfg.Projector = NopProjector{}
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Coordinator{
		store:        cfg.Store,
		filter:       cfg.Filter,
		reconciler:   cfg.Reconciler,
		remote:       cfg.Remote,
		projector:    cfg.Projector,
		faults:       cfg.Faults,
		logger:       cfg.Logger,
		timeout:      cfg.Timeout,
		inflightURLs: make(map[URLID]struct{}),
		inflightTags: make(map[TagID]struct{}),
	}
}

// op is the per-call context captured when an operation starts.
type op struct {
	kind  MutationKind
	epoch uint64
	utub  UTubID
	log   *log.Logger
}

func (c *Coordinator) begin(kind MutationKind) (*op, error) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	if c.store.utub == nil {
		return nil, fmt.Errorf("%s: %w", kind, ErrNoActiveUTub)
	}
	return &op{
		kind:  kind,
		epoch: c.store.epoch,
		utub:  c.store.utub.ID,
		log:   c.logger.With("op", string(kind), "utub", c.store.utub.ID, "epoch", c.store.epoch),
	}, nil
}

func (c *Coordinator) acquireURL(id URLID) (func(), error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.inflightURLs[id]; busy {
		return nil, fmt.Errorf("url %d: %w", id, ErrAlreadyInFlight)
	}
	c.inflightURLs[id] = struct{}{}
	return func() {
		c.mu.Lock()
		delete(c.inflightURLs, id)
		c.mu.Unlock()
	}, nil
}

func (c *Coordinator) acquireTag(id TagID) (func(), error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.inflightTags[id]; busy {
		return nil, fmt.Errorf("tag %d: %w", id, ErrAlreadyInFlight)
	}
	c.inflightTags[id] = struct{}{}
	return func() {
		c.mu.Lock()
		delete(c.inflightTags, id)
		c.mu.Unlock()
	}, nil
}

func (c *Coordinator) call(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.timeout)
}

// finish logs the outcome and hands it to the projector. Discarded outcomes
// belong to a UTub that is no longer shown, so nobody is told. That covers
// error replies too: they never pass through the Reconciler, so the epoch is
// checked here.
func (c *Coordinator) finish(o *op, out Outcome) Outcome {
	if errors.Is(out.Err, ErrStaleEpoch) || c.store.Epoch() != o.epoch {
		if !errors.Is(out.Err, ErrStaleEpoch) {
			out.Err = fmt.Errorf("%s at epoch %d: %w", o.kind, o.epoch, ErrStaleEpoch)
		}
		out.State = StateDiscarded
		o.log.Debug("response discarded", "err", out.Err)
		return out
	}

	switch out.State {
	case StateCommitted:
		o.log.Debug("committed", "vacuous", out.Vacuous, "reloaded", out.Reloaded)
	case StateStale, StateConflictDetected:
		o.log.Warn("view was stale", "state", out.State, "err", out.Err, "reloaded", out.Reloaded)
	case StateValidationFailed:
		o.log.Info("rejected by server", "err", out.Err)
	case StateFatal:
		o.log.Error("mutation failed", "err", out.Err)
		if c.faults != nil && (errors.Is(out.Err, ErrAuthFault) || errors.Is(out.Err, ErrServerFault)) {
			c.faults.OnFatal(out.Err)
		}
	}
	c.projector.OnMutationOutcome(o.kind, out)
	return out
}

// classify maps a Remote failure onto the error taxonomy. 404 and 409 are
// returned as StateStale and StateConflictDetected and left to the caller.
func classify(err error) Outcome {
	var se *StatusError
	if !errors.As(err, &se) {
		return Outcome{State: StateFatal, Err: fmt.Errorf("%w: %v", ErrTransportFault, err), Banner: bannerTransport}
	}

	switch {
	case se.StatusCode == http.StatusBadRequest:
		return Outcome{
			State:       StateValidationFailed,
			Err:         &ValidationError{Message: se.Message, FieldErrors: se.FieldErrors},
			FieldErrors: se.FieldErrors,
		}
	case se.StatusCode == http.StatusForbidden && se.IsJSON():
		return Outcome{
			State:       StateValidationFailed,
			Err:         &ValidationError{Message: se.Message, FieldErrors: se.FieldErrors},
			FieldErrors: se.FieldErrors,
		}
	case se.StatusCode == http.StatusUnauthorized, se.StatusCode == http.StatusForbidden:
		return Outcome{State: StateFatal, Err: fmt.Errorf("%w: %v", ErrAuthFault, se)}
	case se.StatusCode == http.StatusNotFound:
		return Outcome{State: StateStale, Err: fmt.Errorf("%w: %v", ErrNotFoundConflict, se), Banner: bannerNotFound}
	case se.StatusCode == http.StatusConflict:
		return Outcome{State: StateConflictDetected, Err: fmt.Errorf("%w: %v", ErrDuplicate, se)}
	default:
		return Outcome{State: StateFatal, Err: fmt.Errorf("%w: %v", ErrServerFault, se)}
	}
}

// SelectUTub makes utubID the active UTub. The Store is cleared first so
// anything still in flight for the previous UTub is discarded on arrival.
func (c *Coordinator) SelectUTub(ctx context.Context, utubID UTubID) (Outcome, error) {
	d := c.reconciler.Clear()
	o := &op{
		kind:  KindLoadUTub,
		epoch: d.Epoch,
		utub:  utubID,
		log:   c.logger.With("op", string(KindLoadUTub), "utub", utubID, "epoch", d.Epoch),
	}

	cctx, cancel := c.call(ctx)
	snap, err := c.remote.FetchUTub(cctx, utubID)
	cancel()
	if err != nil {
		out := classify(err)
		if out.State == StateStale {
			out.Banner = bannerUTubGone
		}
		return c.finish(o, out), nil
	}

	d, err = c.reconciler.Load(o.epoch, snap)
	if err != nil {
		if errors.Is(err, ErrStaleEpoch) {
			return c.finish(o, mergeFailure(err)), nil
		}
		return c.finish(o, Outcome{State: StateFatal, Err: fmt.Errorf("%w: %v", ErrServerFault, err)}), nil
	}
	// Load starts the epoch this selection owns.
	o.epoch = d.Epoch
	return c.finish(o, Outcome{State: StateCommitted, Diff: d, Reloaded: true}), nil
}

// DeselectUTub clears the Store.
func (c *Coordinator) DeselectUTub() Diff {
	return c.reconciler.Clear()
}

// Reload re-fetches the active UTub and merges it into the Store.
func (c *Coordinator) Reload(ctx context.Context) (Outcome, error) {
	o, err := c.begin(KindReloadUTub)
	if err != nil {
		return Outcome{}, err
	}
	d, out, ok := c.reload(ctx, o)
	if !ok {
		return c.finish(o, out), nil
	}
	return c.finish(o, Outcome{State: StateCommitted, Diff: d, Reloaded: true}), nil
}

// reload fetches and merges the active UTub. When the UTub itself is gone
// the Store is cleared.
func (c *Coordinator) reload(ctx context.Context, o *op) (Diff, Outcome, bool) {
	cctx, cancel := c.call(ctx)
	snap, err := c.remote.FetchUTub(cctx, o.utub)
	cancel()
	if err != nil {
		out := classify(err)
		if out.State == StateStale {
			if c.store.Epoch() == o.epoch {
				out.Diff = c.reconciler.Clear()
				o.epoch = out.Diff.Epoch
			}
			out.Banner = bannerUTubGone
		}
		return Diff{}, out, false
	}
	d, err := c.reconciler.MergeCollectionSnapshot(o.epoch, snap)
	if err != nil {
		if errors.Is(err, ErrStaleEpoch) {
			return Diff{}, mergeFailure(err), false
		}
		return Diff{}, Outcome{State: StateFatal, Err: fmt.Errorf("%w: %v", ErrServerFault, err)}, false
	}
	return d, Outcome{}, true
}

// RefreshURL re-reads one URL in the background and merges it.
func (c *Coordinator) RefreshURL(ctx context.Context, id URLID) (Outcome, error) {
	o, err := c.begin(KindRefreshURL)
	if err != nil {
		return Outcome{}, err
	}
	release, err := c.acquireURL(id)
	if err != nil {
		return Outcome{}, err
	}
	defer release()

	cctx, cancel := c.call(ctx)
	remote, err := c.remote.FetchURL(cctx, o.utub, id)
	cancel()
	switch {
	case IsNotFound(err):
		d, err := c.applyURL(ctx, o, id, nil)
		if err != nil {
			return c.finish(o, mergeFailure(err)), nil
		}
		return c.finish(o, Outcome{State: StateCommitted, Diff: d}), nil
	case err != nil:
		return c.finish(o, classify(err)), nil
	}

	d, err := c.applyURL(ctx, o, id, &remote)
	if err != nil {
		return c.finish(o, mergeFailure(err)), nil
	}
	return c.finish(o, Outcome{State: StateCommitted, Diff: d, URL: &remote}), nil
}

// applyURL merges a single URL. If the server's copy references a tag this
// client has never seen, the whole UTub is re-fetched instead.
func (c *Coordinator) applyURL(ctx context.Context, o *op, id URLID, remote *URL) (Diff, error) {
	d, err := c.reconciler.MergeSingleURL(o.epoch, id, remote)
	if errors.Is(err, ErrOrphanTagReference) {
		o.log.Warn("url references unknown tag, reloading utub", "url", id)
		rd, out, ok := c.reload(ctx, o)
		if !ok {
			if out.Err == nil {
				return Diff{}, fmt.Errorf("%w: %v", ErrServerFault, err)
			}
			return Diff{}, out.Err
		}
		rd.Reloaded = true
		return rd, nil
	}
	return d, err
}

// precheck reads the URL from the server before a mutation. It returns the
// server copy (nil when deleted) and whether it still matches the Store.
func (c *Coordinator) precheck(ctx context.Context, o *op, local URL) (*URL, bool, *Outcome) {
	o.log.Debug("precheck", "url", local.ID)
	cctx, cancel := c.call(ctx)
	remote, err := c.remote.FetchURL(cctx, o.utub, local.ID)
	cancel()
	if c.store.Epoch() != o.epoch {
		// The UTub changed while reading; the write must not be sent.
		out := Outcome{State: StateDiscarded, Err: fmt.Errorf("precheck url %d: %w", local.ID, ErrStaleEpoch)}
		return nil, false, &out
	}
	if IsNotFound(err) {
		return nil, false, nil
	}
	if err != nil {
		out := classify(err)
		return nil, false, &out
	}
	return &remote, sameURL(local, remote), nil
}

// stale merges the server's copy found during precheck and aborts.
func (c *Coordinator) stale(ctx context.Context, o *op, id URLID, remote *URL) Outcome {
	d, err := c.applyURL(ctx, o, id, remote)
	if err != nil {
		return Outcome{State: StateStale, Err: err}
	}
	if remote == nil {
		return Outcome{State: StateStale, Err: fmt.Errorf("url %d: %w", id, ErrNotFoundConflict), Banner: bannerNotFound, Diff: d}
	}
	return Outcome{State: StateStale, Err: fmt.Errorf("url %d: %w", id, ErrStaleConflict), Banner: bannerStale, Diff: d, URL: remote}
}

// conflict handles a 409. If the conflicting value is visible to the user
// the error is theirs to resolve; otherwise another member got there first
// and the local view is no longer trustworthy, so the UTub is reloaded.
func (c *Coordinator) conflict(ctx context.Context, o *op, out Outcome, visibleLocally bool) Outcome {
	if visibleLocally {
		return out
	}
	d, rout, ok := c.reload(ctx, o)
	if !ok {
		if rout.Err != nil {
			return rout
		}
		return out
	}
	out.Diff = d
	out.Reloaded = true
	out.Banner = bannerReloaded
	return out
}

// conflictingHref is the href the server says already exists. The server
// normalizes hrefs, so the user's input is only a fallback.
func conflictingHref(err error, input string) string {
	var se *StatusError
	if errors.As(err, &se) {
		if href, ok := se.DetailString("urlString"); ok {
			return href
		}
	}
	return input
}

func (c *Coordinator) hrefVisible(href string, exclude URLID) bool {
	u, ok := c.store.FindURLByHref(href)
	if !ok || u.ID == exclude {
		return false
	}
	return c.filter.Recompute().Visible(u.ID)
}

func (c *Coordinator) localURL(id URLID) (URL, error) {
	u, ok := c.store.URL(id)
	if !ok {
		return URL{}, fmt.Errorf("url %d: %w", id, ErrInvalidURLReference)
	}
	return u, nil
}

// CreateURL adds a URL to the active UTub.
func (c *Coordinator) CreateURL(ctx context.Context, href, title string) (Outcome, error) {
	o, err := c.begin(KindCreateURL)
	if err != nil {
		return Outcome{}, err
	}

	cctx, cancel := c.call(ctx)
	created, err := c.remote.CreateURL(cctx, o.utub, href, title)
	cancel()
	if err != nil {
		out := classify(err)
		if out.State == StateConflictDetected {
			out = c.conflict(ctx, o, out, c.hrefVisible(conflictingHref(err, href), 0))
		} else if out.State == StateStale {
			_, rout, _ := c.reload(ctx, o)
			if rout.Err != nil {
				out = rout
			}
		}
		return c.finish(o, out), nil
	}

	d, err := c.applyURL(ctx, o, created.ID, &created)
	if err != nil {
		return c.finish(o, mergeFailure(err)), nil
	}
	return c.finish(o, Outcome{State: StateCommitted, URL: &created, Diff: d, Reloaded: d.Reloaded}), nil
}

// UpdateURLTitle changes a URL's title after confirming the local copy is
// current.
func (c *Coordinator) UpdateURLTitle(ctx context.Context, id URLID, title string) (Outcome, error) {
	return c.updateURL(ctx, KindUpdateURLTitle, id, func(cctx context.Context, o *op) (URL, error) {
		return c.remote.UpdateURLTitle(cctx, o.utub, id, title)
	}, "")
}

// UpdateURLString changes a URL's href after confirming the local copy is
// current.
func (c *Coordinator) UpdateURLString(ctx context.Context, id URLID, href string) (Outcome, error) {
	return c.updateURL(ctx, KindUpdateURLString, id, func(cctx context.Context, o *op) (URL, error) {
		return c.remote.UpdateURLString(cctx, o.utub, id, href)
	}, href)
}

func (c *Coordinator) updateURL(ctx context.Context, kind MutationKind, id URLID, write func(context.Context, *op) (URL, error), href string) (Outcome, error) {
	o, err := c.begin(kind)
	if err != nil {
		return Outcome{}, err
	}
	local, err := c.localURL(id)
	if err != nil {
		return Outcome{}, err
	}
	release, err := c.acquireURL(id)
	if err != nil {
		return Outcome{}, err
	}
	defer release()

	remote, fresh, failed := c.precheck(ctx, o, local)
	if failed != nil {
		return c.finish(o, *failed), nil
	}
	if !fresh {
		return c.finish(o, c.stale(ctx, o, id, remote)), nil
	}

	cctx, cancel := c.call(ctx)
	updated, err := write(cctx, o)
	cancel()
	if err != nil {
		out := classify(err)
		switch out.State {
		case StateStale:
			out = c.stale(ctx, o, id, nil)
		case StateConflictDetected:
			out = c.conflict(ctx, o, out, href != "" && c.hrefVisible(conflictingHref(err, href), id))
		}
		return c.finish(o, out), nil
	}

	d, err := c.applyURL(ctx, o, id, &updated)
	if err != nil {
		return c.finish(o, mergeFailure(err)), nil
	}
	return c.finish(o, Outcome{State: StateCommitted, URL: &updated, Diff: d, Reloaded: d.Reloaded}), nil
}

// DeleteURL removes a URL. If the server no longer has it the deletion is
// vacuously successful.
func (c *Coordinator) DeleteURL(ctx context.Context, id URLID) (Outcome, error) {
	o, err := c.begin(KindDeleteURL)
	if err != nil {
		return Outcome{}, err
	}
	local, err := c.localURL(id)
	if err != nil {
		return Outcome{}, err
	}
	release, err := c.acquireURL(id)
	if err != nil {
		return Outcome{}, err
	}
	defer release()

	remote, fresh, failed := c.precheck(ctx, o, local)
	if failed != nil {
		return c.finish(o, *failed), nil
	}
	if remote == nil {
		return c.finish(o, c.vacuousURLDelete(ctx, o, id)), nil
	}
	if !fresh {
		return c.finish(o, c.stale(ctx, o, id, remote)), nil
	}

	cctx, cancel := c.call(ctx)
	err = c.remote.DeleteURL(cctx, o.utub, id)
	cancel()
	if err != nil {
		out := classify(err)
		if out.State == StateStale {
			out = c.vacuousURLDelete(ctx, o, id)
		}
		return c.finish(o, out), nil
	}

	d, err := c.applyURL(ctx, o, id, nil)
	if err != nil {
		return c.finish(o, mergeFailure(err)), nil
	}
	return c.finish(o, Outcome{State: StateCommitted, Diff: d}), nil
}

func (c *Coordinator) vacuousURLDelete(ctx context.Context, o *op, id URLID) Outcome {
	d, err := c.applyURL(ctx, o, id, nil)
	if err != nil {
		return mergeFailure(err)
	}
	return Outcome{State: StateCommitted, Vacuous: true, Diff: d}
}

// AddURLTag applies a tag, creating the UTub tag on the server if needed.
func (c *Coordinator) AddURLTag(ctx context.Context, id URLID, label string) (Outcome, error) {
	o, err := c.begin(KindCreateURLTag)
	if err != nil {
		return Outcome{}, err
	}
	local, err := c.localURL(id)
	if err != nil {
		return Outcome{}, err
	}
	release, err := c.acquireURL(id)
	if err != nil {
		return Outcome{}, err
	}
	defer release()

	remote, fresh, failed := c.precheck(ctx, o, local)
	if failed != nil {
		return c.finish(o, *failed), nil
	}
	if !fresh {
		return c.finish(o, c.stale(ctx, o, id, remote)), nil
	}

	cctx, cancel := c.call(ctx)
	res, err := c.remote.CreateURLTag(cctx, o.utub, id, label)
	cancel()
	if err != nil {
		out := classify(err)
		switch out.State {
		case StateStale:
			out = c.stale(ctx, o, id, nil)
		case StateConflictDetected:
			visible := false
			if t, ok := c.store.FindTagByLabel(label); ok {
				if u, ok := c.store.URL(id); ok && u.TagIDs.Has(t.ID) {
					visible = true
				}
			}
			out = c.conflict(ctx, o, out, visible)
		}
		return c.finish(o, out), nil
	}

	td, err := c.reconciler.MergeTag(o.epoch, res.Tag)
	if err != nil {
		return c.finish(o, mergeFailure(err)), nil
	}
	d, err := c.applyURL(ctx, o, id, &res.URL)
	if err != nil {
		return c.finish(o, mergeFailure(err)), nil
	}
	return c.finish(o, Outcome{State: StateCommitted, URL: &res.URL, Tag: &res.Tag, Diff: combine(td, d), Reloaded: d.Reloaded}), nil
}

// RemoveURLTag removes a tag from a URL. If the server's copy no longer
// carries the tag, or the URL is gone, the removal is vacuously successful.
func (c *Coordinator) RemoveURLTag(ctx context.Context, id URLID, tagID TagID) (Outcome, error) {
	o, err := c.begin(KindDeleteURLTag)
	if err != nil {
		return Outcome{}, err
	}
	local, err := c.localURL(id)
	if err != nil {
		return Outcome{}, err
	}
	if !local.TagIDs.Has(tagID) {
		return Outcome{}, fmt.Errorf("url %d tag %d: %w", id, tagID, ErrInvalidTagReference)
	}
	release, err := c.acquireURL(id)
	if err != nil {
		return Outcome{}, err
	}
	defer release()

	remote, fresh, failed := c.precheck(ctx, o, local)
	if failed != nil {
		return c.finish(o, *failed), nil
	}
	if remote == nil {
		return c.finish(o, c.vacuousURLDelete(ctx, o, id)), nil
	}
	if !fresh {
		if remote.TagIDs.Has(tagID) {
			return c.finish(o, c.stale(ctx, o, id, remote)), nil
		}
		d, err := c.applyURL(ctx, o, id, remote)
		if err != nil {
			return c.finish(o, mergeFailure(err)), nil
		}
		return c.finish(o, Outcome{State: StateCommitted, Vacuous: true, URL: remote, Diff: d}), nil
	}

	cctx, cancel := c.call(ctx)
	res, err := c.remote.DeleteURLTag(cctx, o.utub, id, tagID)
	cancel()
	if err != nil {
		out := classify(err)
		if out.State == StateStale {
			out = c.refreshAfterMissing(ctx, o, id)
		}
		return c.finish(o, out), nil
	}

	d, err := c.applyURL(ctx, o, id, &res.URL)
	if err != nil {
		return c.finish(o, mergeFailure(err)), nil
	}
	return c.finish(o, Outcome{State: StateCommitted, URL: &res.URL, Tag: &res.Tag, Diff: d, Reloaded: d.Reloaded}), nil
}

// refreshAfterMissing resolves a 404 on a URL-tag removal: either the URL
// or the tag vanished. Both mean the association is gone.
func (c *Coordinator) refreshAfterMissing(ctx context.Context, o *op, id URLID) Outcome {
	cctx, cancel := c.call(ctx)
	remote, err := c.remote.FetchURL(cctx, o.utub, id)
	cancel()
	if IsNotFound(err) {
		return c.vacuousURLDelete(ctx, o, id)
	}
	if err != nil {
		return classify(err)
	}
	d, err := c.applyURL(ctx, o, id, &remote)
	if err != nil {
		return mergeFailure(err)
	}
	return Outcome{State: StateCommitted, Vacuous: true, URL: &remote, Diff: d}
}

// CreateUTubTag adds a tag to the UTub without applying it to any URL.
func (c *Coordinator) CreateUTubTag(ctx context.Context, label string) (Outcome, error) {
	o, err := c.begin(KindCreateUTubTag)
	if err != nil {
		return Outcome{}, err
	}

	cctx, cancel := c.call(ctx)
	tag, err := c.remote.CreateUTubTag(cctx, o.utub, label)
	cancel()
	if err != nil {
		out := classify(err)
		if out.State == StateConflictDetected {
			_, known := c.store.FindTagByLabel(label)
			out = c.conflict(ctx, o, out, known)
		}
		return c.finish(o, out), nil
	}

	d, err := c.reconciler.MergeTag(o.epoch, tag)
	if err != nil {
		return c.finish(o, mergeFailure(err)), nil
	}
	return c.finish(o, Outcome{State: StateCommitted, Tag: &tag, Diff: d}), nil
}

// DeleteUTubTag removes a tag from the UTub and from every URL carrying it.
// A tag already gone on the server is a vacuous success.
func (c *Coordinator) DeleteUTubTag(ctx context.Context, tagID TagID) (Outcome, error) {
	o, err := c.begin(KindDeleteUTubTag)
	if err != nil {
		return Outcome{}, err
	}
	if _, ok := c.store.Tag(tagID); !ok {
		return Outcome{}, fmt.Errorf("tag %d: %w", tagID, ErrInvalidTagReference)
	}
	release, err := c.acquireTag(tagID)
	if err != nil {
		return Outcome{}, err
	}
	defer release()

	cctx, cancel := c.call(ctx)
	err = c.remote.DeleteUTubTag(cctx, o.utub, tagID)
	cancel()
	vacuous := false
	if err != nil {
		out := classify(err)
		if out.State != StateStale {
			return c.finish(o, out), nil
		}
		vacuous = true
	}

	d, err := c.reconciler.RemoveTag(o.epoch, tagID)
	if err != nil {
		return c.finish(o, mergeFailure(err)), nil
	}
	return c.finish(o, Outcome{State: StateCommitted, Vacuous: vacuous, Diff: d}), nil
}

// mergeFailure reports a merge that could not be applied. A stale epoch
// means the UTub changed underneath the operation.
func mergeFailure(err error) Outcome {
	if errors.Is(err, ErrStaleEpoch) {
		return Outcome{State: StateDiscarded, Err: err}
	}
	return Outcome{State: StateFatal, Err: err}
}

// sameURL compares the fields a member can change.
func sameURL(a, b URL) bool {
	return a.ID == b.ID && a.Title == b.Title && a.Href == b.Href &&
		a.CanMutate == b.CanMutate && a.TagIDs.Equal(b.TagIDs)
}

func combine(a, b Diff) Diff {
	out := b
	if a.Epoch > out.Epoch {
		out.Epoch = a.Epoch
	}
	out.Reloaded = a.Reloaded || b.Reloaded
	out.UTubChanged = a.UTubChanged || b.UTubChanged
	out.Tags.Added = append(append([]TagID{}, a.Tags.Added...), b.Tags.Added...)
	out.Tags.Updated = append(append([]TagID{}, a.Tags.Updated...), b.Tags.Updated...)
	out.Tags.Removed = append(append([]TagID{}, a.Tags.Removed...), b.Tags.Removed...)
	return out
}
