package worker

import (
	"testing"
	"time"
)

func TestBuildCommandAppendsCredentialAndPort(t *testing.T) {
	s := Spec{Command: "worker --verbose", Credential: "sk-test", Port: 4100}
	cmd := s.BuildCommand()
	want := []string{"worker", "--verbose", "--api-key", "sk-test", "--port", "4100"}
	if len(cmd.Args) != len(want) {
		t.Fatalf("args = %v, want %v", cmd.Args, want)
	}
	for i := range want {
		if cmd.Args[i] != want[i] {
			t.Fatalf("args[%d] = %q, want %q", i, cmd.Args[i], want[i])
		}
	}
}

func TestBuildCommandWithoutCredential(t *testing.T) {
	s := Spec{Command: "worker", Port: 4100}
	cmd := s.BuildCommand()
	for _, a := range cmd.Args {
		if a == "--api-key" {
			t.Fatalf("credential flag present without credential: %v", cmd.Args)
		}
	}
}

func TestSpecDefaults(t *testing.T) {
	s := Spec{Command: "worker"}
	s.applyDefaults()
	if s.Port != DefaultPort {
		t.Fatalf("port = %d, want %d", s.Port, DefaultPort)
	}
	if s.StartupGrace != DefaultStartupGrace || s.StopGrace != DefaultStopGrace || s.KillTimeout != DefaultKillTimeout {
		t.Fatalf("grace defaults not applied: %+v", s)
	}
	if got, want := s.Target(), "127.0.0.1:3039"; got != want {
		t.Fatalf("target = %q, want %q", got, want)
	}
}

func TestSpecDefaultsKeepExplicitValues(t *testing.T) {
	s := Spec{Command: "worker", Port: 5000, StartupGrace: time.Second}
	s.applyDefaults()
	if s.Port != 5000 || s.StartupGrace != time.Second {
		t.Fatalf("explicit values overwritten: %+v", s)
	}
}
