package worker

import (
	"context"
	"net"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/evanoh/chatrelay/internal/logger"
)

// Defaults mirror the worker contract: the worker listens on a fixed
// loopback port distinct from the gateway's own listen port.
const (
	DefaultPort         = 3039
	DefaultStartupGrace = 5 * time.Second
	DefaultStopGrace    = 5 * time.Second
	DefaultKillTimeout  = 2 * time.Second
)

// Probe reports whether the worker endpoint is ready to accept requests.
// It is called repeatedly during startup until it succeeds or the startup
// grace elapses.
type Probe func(ctx context.Context) error

// Spec describes the worker process the supervisor spawns.
// Credential and Port are appended to the command line as
// "--api-key <credential> --port <port>".
type Spec struct {
	Command      string        `json:"command" mapstructure:"command"` // program and base arguments
	Credential   string        `json:"-" mapstructure:"-"`             // never serialized
	Port         int           `json:"port" mapstructure:"port"`
	WorkDir      string        `json:"work_dir" mapstructure:"work_dir"`
	Env          []string      `json:"env" mapstructure:"env"`
	StartupGrace time.Duration `json:"startup_grace" mapstructure:"startup_grace"`
	StopGrace    time.Duration `json:"stop_grace" mapstructure:"stop_grace"`
	KillTimeout  time.Duration `json:"kill_timeout" mapstructure:"kill_timeout"`
	Log          logger.Config `json:"log" mapstructure:"log"`

	// ReadinessProbe overrides the default TCP-dial probe of Target().
	ReadinessProbe Probe `json:"-" mapstructure:"-"`
}

func (s *Spec) applyDefaults() {
	if s.Port == 0 {
		s.Port = DefaultPort
	}
	if s.StartupGrace <= 0 {
		s.StartupGrace = DefaultStartupGrace
	}
	if s.StopGrace <= 0 {
		s.StopGrace = DefaultStopGrace
	}
	if s.KillTimeout <= 0 {
		s.KillTimeout = DefaultKillTimeout
	}
}

// Target returns the loopback host:port the worker serves on.
func (s *Spec) Target() string {
	return net.JoinHostPort("127.0.0.1", strconv.Itoa(s.Port))
}

// BuildCommand constructs the *exec.Cmd for the worker, appending the
// credential and port arguments the worker expects.
func (s *Spec) BuildCommand() *exec.Cmd {
	parts := strings.Fields(strings.TrimSpace(s.Command))
	if len(parts) == 0 {
		// #nosec G204
		return exec.Command("/bin/false")
	}
	args := parts[1:]
	if s.Credential != "" {
		args = append(args, "--api-key", s.Credential)
	}
	args = append(args, "--port", strconv.Itoa(s.Port))
	// ok: command comes from operator config, not request input
	// #nosec G204
	return exec.Command(parts[0], args...)
}

// defaultProbe dials the worker's TCP port. A successful dial means the
// worker has bound its listener and can accept requests.
func (s *Spec) defaultProbe() Probe {
	target := s.Target()
	return func(ctx context.Context) error {
		d := net.Dialer{Timeout: 250 * time.Millisecond}
		conn, err := d.DialContext(ctx, "tcp", target)
		if err != nil {
			return err
		}
		return conn.Close()
	}
}

func (s *Spec) probe() Probe {
	if s.ReadinessProbe != nil {
		return s.ReadinessProbe
	}
	return s.defaultProbe()
}
