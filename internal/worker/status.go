package worker

import "time"

// Status is a read-only snapshot of the supervised worker.
type Status struct {
	State     State     `json:"state"`
	PID       int       `json:"pid"`
	Target    string    `json:"target"`
	StartedAt time.Time `json:"started_at"`
	StoppedAt time.Time `json:"stopped_at"`
	ExitError string    `json:"exit_error,omitempty"`
}

// Snapshot returns a copy of the current status.
func (s *Supervisor) Snapshot() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		State:     s.state,
		Target:    s.spec.Target(),
		StartedAt: s.startedAt,
		StoppedAt: s.stoppedAt,
	}
	if s.cmd != nil && s.cmd.Process != nil {
		st.PID = s.cmd.Process.Pid
	}
	if s.waitErr != nil {
		st.ExitError = s.waitErr.Error()
	}
	return st
}
