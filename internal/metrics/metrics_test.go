package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestRegisterAndRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("Register: %v", err)
	}
	// Second call is a no-op.
	if err := Register(reg); err != nil {
		t.Fatalf("second Register: %v", err)
	}

	IncStart()
	IncStop()
	RecordStateTransition("starting", "ready")
	ObserveForward(200, 0.05)
	IncForwardError("forward")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	want := map[string]bool{
		"chatrelay_worker_starts_total":            false,
		"chatrelay_worker_stops_total":             false,
		"chatrelay_worker_state_transitions_total": false,
		"chatrelay_proxy_forwards_total":           false,
		"chatrelay_proxy_forward_errors_total":     false,
		"chatrelay_proxy_forward_duration_seconds": false,
	}
	for _, mf := range mfs {
		if _, ok := want[mf.GetName()]; ok {
			want[mf.GetName()] = true
		}
	}
	for name, seen := range want {
		if !seen {
			t.Errorf("metric %s not gathered", name)
		}
	}
}

func TestHandlerNotNil(t *testing.T) {
	if Handler() == nil {
		t.Fatal("nil metrics handler")
	}
}
