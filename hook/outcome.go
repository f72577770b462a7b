package hook

// Outcome is the result of EnsureVersion.
type Outcome int

const (
	// OutcomeUnknown is returned together with every error.
	OutcomeUnknown Outcome = iota
	// OutcomeNoChange means an equal or newer version is already bound.
	OutcomeNoChange
	// OutcomeInstalled means the requested version is now bound.
	OutcomeInstalled
	// OutcomeConflict means a concurrent installer won the race. Retry.
	OutcomeConflict
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNoChange:
		return "no_change"
	case OutcomeInstalled:
		return "installed"
	case OutcomeConflict:
		return "conflict"
	}
	return "unknown"
}
