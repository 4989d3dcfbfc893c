package poll

// State is the loop's position in its cycle.
type State int32

const (
	StateIdle State = iota
	StateFetching
	StateUnchanged
	StateChanged
	StateReconciling
	StateFetchFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetching:
		return "fetching"
	case StateUnchanged:
		return "unchanged"
	case StateChanged:
		return "changed"
	case StateReconciling:
		return "reconciling"
	case StateFetchFailed:
		return "fetch_failed"
	}
	return "unknown"
}

// Outcome is the result of one Poll call.
type Outcome int

const (
	// OutcomeSkipped: another cycle was in flight.
	OutcomeSkipped Outcome = iota
	OutcomeUnchanged
	OutcomeChanged
	OutcomeFailed
	// OutcomeDiscarded: the loop was closed or the context ended before
	// the result could be applied.
	OutcomeDiscarded
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeUnchanged:
		return "unchanged"
	case OutcomeChanged:
		return "changed"
	case OutcomeFailed:
		return "failed"
	case OutcomeDiscarded:
		return "discarded"
	}
	return "unknown"
}

// MarshalText encodes the outcome by name.
func (o Outcome) MarshalText() ([]byte, error) { return []byte(o.String()), nil }
