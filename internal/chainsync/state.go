package chainsync

// State is a sync attempt's position in the state machine spec.md §4.5
// names. Checking and Executing are the only states where work is
// discardable without having touched the cache transaction or storage;
// Committing is the single atomic transition out of that invariant.
type State int

const (
	Idle State = iota
	Checking
	Undoing
	Executing
	Committing
	Aborting
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Checking:
		return "checking"
	case Undoing:
		return "undoing"
	case Executing:
		return "executing"
	case Committing:
		return "committing"
	case Aborting:
		return "aborting"
	default:
		return "unknown"
	}
}
