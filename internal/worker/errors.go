package worker

import (
	"errors"
	"fmt"
)

// ErrNotStartable is returned by Start when the supervisor has already been
// started; a supervisor instance drives at most one worker run.
var ErrNotStartable = errors.New("supervisor already started")

// StartError reports a worker that failed to reach readiness. Stderr holds
// whatever the worker wrote to its standard error before it died, which is
// usually the only diagnostic a crashing worker leaves behind.
type StartError struct {
	Stderr string
	Err    error
}

func (e *StartError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("worker failed to start: %v; stderr: %s", e.Err, e.Stderr)
	}
	return fmt.Sprintf("worker failed to start: %v", e.Err)
}

func (e *StartError) Unwrap() error { return e.Err }
