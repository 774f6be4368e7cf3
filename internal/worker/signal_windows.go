//go:build windows

package worker

import "os/exec"

type procSignal = int

const (
	sigTerminate procSignal = iota
	sigKill
)

func setProcAttrs(_ *exec.Cmd) {}

// Windows has no SIGTERM equivalent for process groups; both termination
// phases collapse into a hard kill.
func signalGroup(cmd *exec.Cmd, _ procSignal) {
	if cmd.Process == nil {
		return
	}
	_ = cmd.Process.Kill()
}
