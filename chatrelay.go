// Package chatrelay is an embeddable chat-completion gateway that spawns a
// worker process on loopback, supervises its lifecycle, and relays
// POST /v1/chat/completions to it.
package chatrelay

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/evanoh/chatrelay/internal/config"
	"github.com/evanoh/chatrelay/internal/gateway"
	"github.com/evanoh/chatrelay/internal/metrics"
	"github.com/evanoh/chatrelay/internal/proxy"
	"github.com/evanoh/chatrelay/internal/server"
	"github.com/evanoh/chatrelay/internal/worker"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Spec = worker.Spec

type Status = worker.Status

type State = worker.State

const (
	StateUnstarted    = worker.StateUnstarted
	StateStarting     = worker.StateStarting
	StateReady        = worker.StateReady
	StateFailed       = worker.StateFailed
	StateShuttingDown = worker.StateShuttingDown
	StateStopped      = worker.StateStopped
)

type Supervisor = worker.Supervisor

// NewSupervisor returns an unstarted supervisor for the given worker spec.
func NewSupervisor(s Spec) *Supervisor { return worker.New(s) }

type Forwarder = proxy.Forwarder

type ForwardResult = proxy.Result

// NewForwarder returns a forwarder for the worker at target (host:port).
func NewForwarder(target string, timeout time.Duration) *Forwarder {
	return proxy.New(target, timeout)
}

type Router = server.Router

// NewRouter returns the gateway's HTTP surface for mounting in any server.
func NewRouter(sup *Supervisor, fw *Forwarder, basePath string) *Router {
	return server.NewRouter(sup, fw, basePath)
}

type Config = config.Config

type WorkerConfig = config.WorkerConfig

type ProxyConfig = config.ProxyConfig

type MetricsConfig = config.MetricsConfig

func LoadConfig(path string) (*Config, error) { return config.Load(path) }

func DefaultConfig() *Config { return config.Default() }

type Gateway = gateway.Gateway

// NewGateway builds a gateway; credential is handed to the worker at spawn.
func NewGateway(cfg *Config, credential string) *Gateway {
	return gateway.New(cfg, credential)
}

// NotifyContext returns a context cancelled on interrupt/terminate signals.
func NotifyContext(parent context.Context) (context.Context, context.CancelFunc) {
	return gateway.NotifyContext(parent)
}

// Metrics facade

func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }
func RegisterMetricsDefault() error                 { return metrics.Register(prometheus.DefaultRegisterer) }

// ServeMetrics starts an HTTP server on addr exposing /metrics using the
// default registry. It runs in the caller goroutine.
func ServeMetrics(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv.ListenAndServe()
}
