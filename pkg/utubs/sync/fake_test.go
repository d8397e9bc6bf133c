package sync

import (
	"context"
	"net/http"
	"slices"
	stdsync "sync"
)

// fakeRemote is an in-memory server. Failures and pauses can be injected
// per method name.
type fakeRemote struct {
	mu     stdsync.Mutex
	utubs  map[UTubID]*Snapshot
	nextID uint

	calls []string
	fail  map[string]error
	gate  map[string]chan struct{}
	// entered is signalled when a gated call is waiting.
	entered chan string
}

func newFakeRemote(snaps ...Snapshot) *fakeRemote {
	f := &fakeRemote{
		utubs:   make(map[UTubID]*Snapshot),
		nextID:  1000,
		fail:    make(map[string]error),
		gate:    make(map[string]chan struct{}),
		entered: make(chan string, 16),
	}
	for _, s := range snaps {
		c := cloneSnapshot(s)
		f.utubs[s.UTub.ID] = &c
	}
	return f
}

func cloneSnapshot(s Snapshot) Snapshot {
	c := Snapshot{UTub: s.UTub}
	for _, u := range s.URLs {
		c.URLs = append(c.URLs, u.Clone())
	}
	c.Tags = append(c.Tags, s.Tags...)
	c.Members = append(c.Members, s.Members...)
	return c
}

// failNext makes the next call of method return err.
func (f *fakeRemote) failNext(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[method] = err
}

// hold makes the next call of method wait until the returned func is called.
func (f *fakeRemote) hold(method string) func() {
	ch := make(chan struct{})
	f.mu.Lock()
	f.gate[method] = ch
	f.mu.Unlock()
	return func() { close(ch) }
}

// mutate edits the server-side UTub directly, as another member would.
func (f *fakeRemote) mutate(id UTubID, fn func(*Snapshot)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f.utubs[id])
}

func (f *fakeRemote) callsTo(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == method {
			n++
		}
	}
	return n
}

func (f *fakeRemote) enter(ctx context.Context, method string) error {
	f.mu.Lock()
	f.calls = append(f.calls, method)
	ch := f.gate[method]
	delete(f.gate, method)
	f.mu.Unlock()

	if ch != nil {
		f.entered <- method
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.fail[method]; ok {
		delete(f.fail, method)
		return err
	}
	return nil
}

func notFound() error {
	return &StatusError{StatusCode: http.StatusNotFound, ContentType: "application/json", Message: "not found"}
}

func (f *fakeRemote) findURL(utubID UTubID, id URLID) (*Snapshot, int, error) {
	s, ok := f.utubs[utubID]
	if !ok {
		return nil, -1, notFound()
	}
	i := slices.IndexFunc(s.URLs, func(u URL) bool { return u.ID == id })
	if i < 0 {
		return s, -1, notFound()
	}
	return s, i, nil
}

func (f *fakeRemote) FetchUTub(ctx context.Context, utubID UTubID) (Snapshot, error) {
	if err := f.enter(ctx, "FetchUTub"); err != nil {
		return Snapshot{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.utubs[utubID]
	if !ok {
		return Snapshot{}, notFound()
	}
	return cloneSnapshot(*s), nil
}

func (f *fakeRemote) FetchURL(ctx context.Context, utubID UTubID, urlID URLID) (URL, error) {
	if err := f.enter(ctx, "FetchURL"); err != nil {
		return URL{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	s, i, err := f.findURL(utubID, urlID)
	if err != nil {
		return URL{}, err
	}
	return s.URLs[i].Clone(), nil
}

func (f *fakeRemote) CreateURL(ctx context.Context, utubID UTubID, href, title string) (URL, error) {
	if err := f.enter(ctx, "CreateURL"); err != nil {
		return URL{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.utubs[utubID]
	if !ok {
		return URL{}, notFound()
	}
	f.nextID++
	u := URL{ID: URLID(f.nextID), Title: title, Href: href, TagIDs: NewTagSet(), CanMutate: true}
	s.URLs = append(s.URLs, u)
	return u.Clone(), nil
}

func (f *fakeRemote) UpdateURLTitle(ctx context.Context, utubID UTubID, urlID URLID, title string) (URL, error) {
	if err := f.enter(ctx, "UpdateURLTitle"); err != nil {
		return URL{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	s, i, err := f.findURL(utubID, urlID)
	if err != nil {
		return URL{}, err
	}
	s.URLs[i].Title = title
	return s.URLs[i].Clone(), nil
}

func (f *fakeRemote) UpdateURLString(ctx context.Context, utubID UTubID, urlID URLID, href string) (URL, error) {
	if err := f.enter(ctx, "UpdateURLString"); err != nil {
		return URL{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	s, i, err := f.findURL(utubID, urlID)
	if err != nil {
		return URL{}, err
	}
	s.URLs[i].Href = href
	return s.URLs[i].Clone(), nil
}

func (f *fakeRemote) DeleteURL(ctx context.Context, utubID UTubID, urlID URLID) error {
	if err := f.enter(ctx, "DeleteURL"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	s, i, err := f.findURL(utubID, urlID)
	if err != nil {
		return err
	}
	removed := s.URLs[i]
	s.URLs = slices.Delete(s.URLs, i, i+1)
	f.pruneLocked(s, removed.TagIDs)
	return nil
}

// pruneLocked drops the tags among ids that no URL carries, as the server
// does when the last association goes away.
func (f *fakeRemote) pruneLocked(s *Snapshot, ids TagSet) {
	s.Tags = slices.DeleteFunc(s.Tags, func(t Tag) bool {
		if !ids.Has(t.ID) {
			return false
		}
		return !slices.ContainsFunc(s.URLs, func(u URL) bool { return u.TagIDs.Has(t.ID) })
	})
}

func (f *fakeRemote) CreateURLTag(ctx context.Context, utubID UTubID, urlID URLID, label string) (URLTagResult, error) {
	if err := f.enter(ctx, "CreateURLTag"); err != nil {
		return URLTagResult{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	s, i, err := f.findURL(utubID, urlID)
	if err != nil {
		return URLTagResult{}, err
	}
	ti := slices.IndexFunc(s.Tags, func(t Tag) bool { return t.Label == label })
	if ti < 0 {
		f.nextID++
		s.Tags = append(s.Tags, Tag{ID: TagID(f.nextID), Label: label})
		ti = len(s.Tags) - 1
	}
	tag := s.Tags[ti]
	s.URLs[i].TagIDs[tag.ID] = struct{}{}
	return URLTagResult{URL: s.URLs[i].Clone(), Tag: tag}, nil
}

func (f *fakeRemote) DeleteURLTag(ctx context.Context, utubID UTubID, urlID URLID, tagID TagID) (URLTagResult, error) {
	if err := f.enter(ctx, "DeleteURLTag"); err != nil {
		return URLTagResult{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	s, i, err := f.findURL(utubID, urlID)
	if err != nil {
		return URLTagResult{}, err
	}
	ti := slices.IndexFunc(s.Tags, func(t Tag) bool { return t.ID == tagID })
	if ti < 0 || !s.URLs[i].TagIDs.Has(tagID) {
		return URLTagResult{}, notFound()
	}
	tag := s.Tags[ti]
	delete(s.URLs[i].TagIDs, tagID)
	out := URLTagResult{URL: s.URLs[i].Clone(), Tag: tag}
	f.pruneLocked(s, NewTagSet(tagID))
	return out, nil
}

func (f *fakeRemote) CreateUTubTag(ctx context.Context, utubID UTubID, label string) (Tag, error) {
	if err := f.enter(ctx, "CreateUTubTag"); err != nil {
		return Tag{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.utubs[utubID]
	if !ok {
		return Tag{}, notFound()
	}
	f.nextID++
	t := Tag{ID: TagID(f.nextID), Label: label}
	s.Tags = append(s.Tags, t)
	return t, nil
}

func (f *fakeRemote) DeleteUTubTag(ctx context.Context, utubID UTubID, tagID TagID) error {
	if err := f.enter(ctx, "DeleteUTubTag"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.utubs[utubID]
	if !ok {
		return notFound()
	}
	ti := slices.IndexFunc(s.Tags, func(t Tag) bool { return t.ID == tagID })
	if ti < 0 {
		return notFound()
	}
	s.Tags = slices.Delete(s.Tags, ti, ti+1)
	for i := range s.URLs {
		delete(s.URLs[i].TagIDs, tagID)
	}
	return nil
}

// recorder is a Projector and FaultHandler that keeps everything it is told.
type recorder struct {
	mu       stdsync.Mutex
	filters  []FilterResult
	diffs    []Diff
	outcomes []Outcome
	kinds    []MutationKind
	fatals   []error
}

func (r *recorder) OnFilterChanged(res FilterResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.filters = append(r.filters, res)
}

func (r *recorder) OnDiffApplied(d Diff) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.diffs = append(r.diffs, d)
}

func (r *recorder) OnMutationOutcome(k MutationKind, o Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kinds = append(r.kinds, k)
	r.outcomes = append(r.outcomes, o)
}

func (r *recorder) OnFatal(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fatals = append(r.fatals, err)
}

func (r *recorder) lastFilter() FilterResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.filters[len(r.filters)-1]
}

// sampleSnapshot is the UTub used across tests:
//
//	A(1): tags 1,2   B(2): tag 1   C(99): tag 5
func sampleSnapshot() Snapshot {
	return Snapshot{
		UTub: UTub{ID: 7, Name: "Reading", OwnerID: 1, CurrentUserRole: RoleOwner},
		URLs: []URL{
			{ID: 1, Title: "A", Href: "https://a.example", TagIDs: NewTagSet(1, 2), CanMutate: true},
			{ID: 2, Title: "B", Href: "https://b.example", TagIDs: NewTagSet(1), CanMutate: true},
			{ID: 99, Title: "C", Href: "https://c.example", TagIDs: NewTagSet(5), CanMutate: true},
		},
		Tags: []Tag{{ID: 1, Label: "x"}, {ID: 2, Label: "y"}, {ID: 5, Label: "z"}},
		Members: []Member{
			{ID: 1, Username: "owner", IsOwner: true},
			{ID: 2, Username: "friend"},
		},
	}
}
