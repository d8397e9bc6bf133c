package sync

// Projector renders engine output. It owns no authoritative state and must
// produce the same picture when handed the same inputs twice.
type Projector interface {
	OnFilterChanged(FilterResult)
	OnDiffApplied(Diff)
	OnMutationOutcome(MutationKind, Outcome)
}

// FaultHandler is told about failures that need the error page.
type FaultHandler interface {
	OnFatal(error)
}

// NopProjector discards everything.
type NopProjector struct{}

func (NopProjector) OnFilterChanged(FilterResult)            {}
func (NopProjector) OnDiffApplied(Diff)                      {}
func (NopProjector) OnMutationOutcome(MutationKind, Outcome) {}

// MultiProjector fans out to several projectors in order.
type MultiProjector []Projector

func (m MultiProjector) OnFilterChanged(r FilterResult) {
	for _, p := range m {
		p.OnFilterChanged(r)
	}
}

func (m MultiProjector) OnDiffApplied(d Diff) {
	for _, p := range m {
		p.OnDiffApplied(d)
	}
}

func (m MultiProjector) OnMutationOutcome(k MutationKind, o Outcome) {
	for _, p := range m {
		p.OnMutationOutcome(k, o)
	}
}
