//go:build !windows

package worker

import (
	"os/exec"
	"syscall"
)

type procSignal = syscall.Signal

const (
	sigTerminate = syscall.SIGTERM
	sigKill      = syscall.SIGKILL
)

func setProcAttrs(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// signalGroup signals the worker's whole process group so that children the
// worker spawned do not outlive it.
func signalGroup(cmd *exec.Cmd, sig procSignal) {
	if cmd.Process == nil {
		return
	}
	_ = syscall.Kill(-cmd.Process.Pid, sig)
}
