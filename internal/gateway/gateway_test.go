package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/evanoh/chatrelay/internal/config"
	"github.com/evanoh/chatrelay/internal/worker"
)

func requireUnix(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("tests require sh/sleep on Unix-like systems")
	}
}

// stubWorkerListener serves the worker protocol on an ephemeral loopback
// port and returns that port. The supervisor's TCP probe and the forwarder
// both land here while the spawned child is just a placeholder process.
func stubWorkerListener(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model string `json:"model"`
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &req)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": "stub", "model": req.Model, "choices": []any{},
		})
	})
	srv := &http.Server{Handler: mux}
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = srv.Close() })
	return ln.Addr().(*net.TCPAddr).Port
}

func testConfig(t *testing.T) *config.Config {
	cfg := config.Default()
	cfg.Listen = "127.0.0.1:0"
	cfg.Worker.Command = "sleep 30"
	cfg.Worker.Port = stubWorkerListener(t)
	cfg.Worker.StartupGrace = 2 * time.Second
	cfg.Worker.StopGrace = 500 * time.Millisecond
	cfg.Worker.KillTimeout = time.Second
	return cfg
}

func TestGatewayServesAndShutsDownCleanly(t *testing.T) {
	requireUnix(t)
	cfg := testConfig(t)
	gw := New(cfg, "test-key")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- gw.Run(ctx) }()

	select {
	case <-gw.Serving():
	case err := <-done:
		t.Fatalf("Run returned before serving: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("gateway never started serving")
	}

	resp, err := http.Post("http://"+gw.Addr()+"/v1/chat/completions", "application/json",
		strings.NewReader(`{"messages":[{"role":"user","content":"hi"}],"model":"test-model"}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body = %s", resp.StatusCode, body)
	}
	var got map[string]any
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("response not JSON: %v", err)
	}
	if got["id"] != "stub" || got["model"] != "test-model" {
		t.Fatalf("body = %s", body)
	}

	pid := gw.Supervisor().Snapshot().PID
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
	if got := gw.Supervisor().State(); got != worker.StateStopped {
		t.Fatalf("state = %s, want %s", got, worker.StateStopped)
	}
	if pid > 0 && syscall.Kill(pid, 0) == nil {
		t.Fatalf("worker pid %d survived shutdown", pid)
	}
}

func TestGatewayStartupFailureNeverServes(t *testing.T) {
	requireUnix(t)
	script := filepath.Join(t.TempDir(), "worker.sh")
	if err := os.WriteFile(script, []byte("#!/bin/sh\necho broken 1>&2\nexit 1\n"), 0o700); err != nil {
		t.Fatalf("write script: %v", err)
	}

	cfg := config.Default()
	cfg.Listen = "127.0.0.1:0"
	cfg.Worker.Command = script
	cfg.Worker.StartupGrace = 2 * time.Second
	gw := New(cfg, "test-key")

	err := gw.Run(context.Background())
	if err == nil {
		t.Fatal("Run succeeded with a crashing worker")
	}
	var serr *worker.StartError
	if !errors.As(err, &serr) {
		t.Fatalf("error type = %T, want *worker.StartError", err)
	}
	if !strings.Contains(serr.Stderr, "broken") {
		t.Fatalf("stderr not surfaced: %q", serr.Stderr)
	}
	select {
	case <-gw.Serving():
		t.Fatal("gateway opened its listener despite startup failure")
	default:
	}
	if gw.Addr() != "" {
		t.Fatalf("listener address recorded: %q", gw.Addr())
	}
}

func TestGatewayHealthEndpoint(t *testing.T) {
	requireUnix(t)
	cfg := testConfig(t)
	gw := New(cfg, "test-key")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- gw.Run(ctx) }()
	select {
	case <-gw.Serving():
	case <-time.After(5 * time.Second):
		t.Fatal("gateway never started serving")
	}
	defer func() {
		cancel()
		<-done
	}()

	resp, err := http.Get("http://" + gw.Addr() + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), `"state":"ready"`) {
		t.Fatalf("body = %s", body)
	}
}
