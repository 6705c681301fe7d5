package driver

import "time"

// PhaseStatus reports whether a phase started or finished.
type PhaseStatus int

const (
	// PhaseStart indicates that a compilation phase has begun.
	PhaseStart PhaseStatus = iota
	PhaseEnd
)

// Phase names reported by Compile.
const (
	PhaseLoad     = "load"
	PhaseValidate = "validate"
	PhaseMono     = "mono"
	PhaseLayout   = "layout"
	PhaseEmit     = "emit"
	PhaseDispatch = "dispatch"
)

// PhaseEvent describes a timing phase boundary.
type PhaseEvent struct {
	Name    string
	Status  PhaseStatus
	Elapsed time.Duration
	Err     error
}

// PhaseObserver receives phase events emitted during Compile.
type PhaseObserver func(PhaseEvent)
