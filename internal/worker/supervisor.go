package worker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/evanoh/chatrelay/internal/metrics"
)

// stderrCap bounds how much worker stderr is retained for startup
// diagnostics.
const stderrCap = 64 * 1024

// Supervisor owns the worker process: it is the only component that may
// spawn, signal, or terminate it. Other components observe the worker
// through State/Snapshot and never see the raw handle.
type Supervisor struct {
	spec Spec
	log  *slog.Logger

	mu        sync.Mutex
	state     State
	cmd       *exec.Cmd
	stderr    boundedBuffer
	outCloser io.WriteCloser
	errCloser io.WriteCloser
	waitDone  chan struct{}
	waitErr   error
	startedAt time.Time
	stoppedAt time.Time
}

// New returns an unstarted supervisor for the given worker spec.
func New(spec Spec) *Supervisor {
	spec.applyDefaults()
	return &Supervisor{spec: spec, state: StateUnstarted, log: slog.Default()}
}

// Spec returns a copy of the effective spec (defaults applied).
func (s *Supervisor) Spec() Spec {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.spec
}

// Target returns the loopback host:port the worker serves on.
func (s *Supervisor) Target() string { return s.spec.Target() }

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Ready reports whether forwards may be routed to the worker.
func (s *Supervisor) Ready() bool { return s.State() == StateReady }

// transition moves to the next state, enforcing forward-only moves.
// Callers must hold s.mu.
func (s *Supervisor) transition(to State) {
	from := s.state
	if !canTransition(from, to) {
		// Transition map violations indicate a supervisor bug; refuse to
		// move backwards rather than corrupt the lifecycle.
		s.log.Error("illegal state transition refused", "from", from.String(), "to", to.String())
		return
	}
	s.state = to
	metrics.RecordStateTransition(from.String(), to.String())
}

// Start spawns the worker and blocks until it is confirmed ready, it exits
// early, or the startup grace elapses. On any failure the worker is
// reaped, the state is Failed, and the returned StartError carries the
// captured stderr.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateUnstarted {
		s.mu.Unlock()
		return ErrNotStartable
	}
	s.transition(StateStarting)

	cmd := s.spec.BuildCommand()
	if s.spec.WorkDir != "" {
		cmd.Dir = s.spec.WorkDir
	}
	if len(s.spec.Env) > 0 {
		cmd.Env = append(os.Environ(), s.spec.Env...)
	}
	setProcAttrs(cmd)
	s.wireStdio(cmd)

	if err := cmd.Start(); err != nil {
		s.closeWritersLocked()
		s.transition(StateFailed)
		s.mu.Unlock()
		return &StartError{Err: err}
	}
	s.cmd = cmd
	s.startedAt = time.Now()
	done := make(chan struct{})
	s.waitDone = done
	s.mu.Unlock()

	go func() {
		err := cmd.Wait()
		s.mu.Lock()
		s.waitErr = err
		s.stoppedAt = time.Now()
		s.closeWritersLocked()
		s.mu.Unlock()
		close(done)
	}()

	s.log.Info("worker spawned, waiting for readiness",
		"pid", cmd.Process.Pid, "target", s.spec.Target(), "grace", s.spec.StartupGrace)

	if err := s.awaitReady(ctx, done); err != nil {
		return err
	}

	s.mu.Lock()
	s.transition(StateReady)
	s.mu.Unlock()
	metrics.IncStart()
	s.log.Info("worker ready", "target", s.spec.Target())
	return nil
}

// awaitReady polls the readiness probe while watching for an early exit.
// The one-shot "sleep then poll" of simpler shims is replaced by an active
// probe loop bounded by the startup grace.
func (s *Supervisor) awaitReady(ctx context.Context, done <-chan struct{}) error {
	probe := s.spec.probe()
	deadline := time.NewTimer(s.spec.StartupGrace)
	defer deadline.Stop()
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()

	for {
		select {
		case <-done:
			return s.failStart(fmt.Errorf("worker exited before becoming ready: %w", s.exitErr()))
		case <-ctx.Done():
			s.reap()
			return s.failStart(ctx.Err())
		case <-deadline.C:
			s.reap()
			return s.failStart(fmt.Errorf("worker not ready within %v", s.spec.StartupGrace))
		case <-tick.C:
			if err := probe(ctx); err == nil {
				// The probe can race a worker that binds its port and then
				// crashes; only report ready while the child is still up.
				select {
				case <-done:
					return s.failStart(fmt.Errorf("worker exited before becoming ready: %w", s.exitErr()))
				default:
					return nil
				}
			}
		}
	}
}

func (s *Supervisor) failStart(cause error) error {
	s.mu.Lock()
	stderr := s.stderr.String()
	s.transition(StateFailed)
	s.mu.Unlock()
	s.log.Error("worker startup failed", "error", cause, "stderr", stderr)
	return &StartError{Stderr: stderr, Err: cause}
}

func (s *Supervisor) exitErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.waitErr != nil {
		return s.waitErr
	}
	return fmt.Errorf("exit status unavailable")
}

// Stop terminates the worker in two phases: SIGTERM to the process group
// and up to grace for a voluntary exit, then SIGKILL and up to killTimeout
// for the forced exit. It is idempotent and always leaves the supervisor
// Stopped, whether or not the worker cooperates.
func (s *Supervisor) Stop(grace, killTimeout time.Duration) error {
	if grace <= 0 {
		grace = s.spec.StopGrace
	}
	if killTimeout <= 0 {
		killTimeout = s.spec.KillTimeout
	}

	s.mu.Lock()
	switch s.state {
	case StateStopped:
		s.mu.Unlock()
		return nil
	case StateUnstarted:
		s.transition(StateStopped)
		s.mu.Unlock()
		return nil
	case StateShuttingDown:
		// Another caller is already driving the shutdown; wait for it.
		done := s.waitDone
		s.mu.Unlock()
		if done != nil {
			<-done
		}
		s.mu.Lock()
		if s.state != StateStopped {
			s.transition(StateStopped)
		}
		s.mu.Unlock()
		return nil
	}
	s.transition(StateShuttingDown)
	cmd := s.cmd
	done := s.waitDone
	s.mu.Unlock()

	if cmd != nil && cmd.Process != nil && done != nil {
		pid := cmd.Process.Pid
		s.log.Info("stopping worker", "pid", pid, "grace", grace)
		signalGroup(cmd, sigTerminate)
		select {
		case <-done:
		case <-time.After(grace):
			s.log.Warn("worker ignored graceful termination, killing", "pid", pid)
			signalGroup(cmd, sigKill)
			select {
			case <-done:
			case <-time.After(killTimeout):
				// Kernel-level wedge; nothing further to escalate to.
				s.log.Error("worker did not exit after kill", "pid", pid)
			}
		}
	}

	s.mu.Lock()
	s.transition(StateStopped)
	s.closeWritersLocked()
	s.mu.Unlock()
	metrics.IncStop()
	s.log.Info("worker stopped")
	return nil
}

// reap force-kills a worker that failed startup so no child outlives a
// Failed supervisor.
func (s *Supervisor) reap() {
	s.mu.Lock()
	cmd := s.cmd
	done := s.waitDone
	s.mu.Unlock()
	if cmd == nil || cmd.Process == nil || done == nil {
		return
	}
	signalGroup(cmd, sigKill)
	select {
	case <-done:
	case <-time.After(s.spec.KillTimeout):
	}
}

func (s *Supervisor) wireStdio(cmd *exec.Cmd) {
	outW, errW, err := s.spec.Log.Writers("worker")
	if err != nil {
		outW, errW = nil, nil
	}
	s.outCloser, s.errCloser = outW, errW
	if outW != nil {
		cmd.Stdout = outW
	} else {
		cmd.Stdout, _ = os.OpenFile(os.DevNull, os.O_RDWR, 0)
	}
	// Stderr always feeds the capped startup buffer so a crashing worker's
	// diagnostics survive even without log files configured.
	if errW != nil {
		cmd.Stderr = io.MultiWriter(&s.stderr, errW)
	} else {
		cmd.Stderr = &s.stderr
	}
}

// closeWritersLocked closes log writers. Callers must hold s.mu.
func (s *Supervisor) closeWritersLocked() {
	if s.outCloser != nil {
		_ = s.outCloser.Close()
		s.outCloser = nil
	}
	if s.errCloser != nil {
		_ = s.errCloser.Close()
		s.errCloser = nil
	}
}

// boundedBuffer keeps at most stderrCap bytes and drops the rest.
type boundedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *boundedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if room := stderrCap - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *boundedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
