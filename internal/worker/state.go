package worker

// State is the supervisor's lifecycle state. Transitions only move forward
// along Unstarted -> Starting -> {Ready|Failed} -> ShuttingDown -> Stopped;
// a supervisor never re-enters an earlier state.
type State string

const (
	StateUnstarted    State = "unstarted"
	StateStarting     State = "starting"
	StateReady        State = "ready"
	StateFailed       State = "failed"
	StateShuttingDown State = "shutting_down"
	StateStopped      State = "stopped"
)

func (s State) String() string { return string(s) }

// rank orders states along the lifecycle so that transitions can be checked
// for monotonicity. Ready and Failed share a rank: they are alternative
// outcomes of Starting.
func (s State) rank() int {
	switch s {
	case StateUnstarted:
		return 0
	case StateStarting:
		return 1
	case StateReady, StateFailed:
		return 2
	case StateShuttingDown:
		return 3
	case StateStopped:
		return 4
	}
	return -1
}

// canTransition reports whether moving from -> to is a legal forward step.
// Skipping ahead (e.g. Unstarted -> Stopped on a stop before start) is
// allowed; moving backwards or sideways at the same rank is not.
func canTransition(from, to State) bool {
	if from == to {
		return false
	}
	fr, tr := from.rank(), to.rank()
	if fr < 0 || tr < 0 {
		return false
	}
	return tr > fr
}
