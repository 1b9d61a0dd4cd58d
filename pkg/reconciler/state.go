package reconciler

// State is a step of the reconciliation state machine.
//
//	NoChange                                   (terminal)
//	Evaluating -> ReuseExisting   -> Converged (terminal)
//	           -> RetireAndCreate -> Converged
type State int

// Reconciliation states.
const (
	// NoChange means the cycle had no transitions; the platform was not contacted.
	NoChange State = iota
	// Evaluating is entered once there is something to reconcile.
	Evaluating
	// ReuseExisting updates the newest open automator pull request in place.
	ReuseExisting
	// RetireAndCreate cuts a new branch and opens a new pull request.
	RetireAndCreate
	// Converged means the platform reflects the result of the cycle.
	Converged
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case NoChange:
		return "no-change"
	case Evaluating:
		return "evaluating"
	case ReuseExisting:
		return "reuse-existing"
	case RetireAndCreate:
		return "retire-and-create"
	case Converged:
		return "converged"
	default:
		return "unknown"
	}
}
