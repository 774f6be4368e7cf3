package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestRootHasCommands(t *testing.T) {
	root := buildRoot()
	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "status"} {
		if !names[want] {
			t.Errorf("missing %q command", want)
		}
	}
}

func TestServeRequiresAPIKey(t *testing.T) {
	root := buildRoot()
	root.SetArgs([]string{"serve", "--worker-cmd", "worker"})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	err := root.Execute()
	if err == nil || !strings.Contains(err.Error(), "api-key") {
		t.Fatalf("expected missing api-key error, got %v", err)
	}
}

func TestServeRequiresWorkerCommand(t *testing.T) {
	err := runServe(&GlobalFlags{}, &ServeFlags{APIKey: "sk-test"})
	if err == nil || !strings.Contains(err.Error(), "worker command") {
		t.Fatalf("expected worker command error, got %v", err)
	}
}

func TestStatusAgainstHealthyGateway(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/healthz" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"state":"ready"}`))
	}))
	defer srv.Close()

	cmd := createStatusCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetArgs([]string{"--url", srv.URL, "--timeout", "2s"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out.String(), "ready") {
		t.Fatalf("output = %q", out.String())
	}
}

func TestStatusAgainstDegradedGateway(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"state":"failed"}`))
	}))
	defer srv.Close()

	err := runStatus(createStatusCommand(), &StatusFlags{URL: srv.URL, Timeout: 2 * time.Second})
	if err == nil {
		t.Fatal("expected error for degraded gateway")
	}
}
