package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/evanoh/chatrelay/internal/config"
	"github.com/evanoh/chatrelay/internal/metrics"
	"github.com/evanoh/chatrelay/internal/proxy"
	"github.com/evanoh/chatrelay/internal/server"
	"github.com/evanoh/chatrelay/internal/worker"
)

// shutdownTimeout bounds draining of in-flight HTTP requests before the
// worker teardown begins.
const shutdownTimeout = 5 * time.Second

// Gateway ties the supervisor, forwarder, and HTTP surface together: it
// runs the startup sequence before accepting traffic and the two-phase
// shutdown sequence on exit.
type Gateway struct {
	cfg *config.Config
	sup *worker.Supervisor
	log *slog.Logger

	serving chan struct{}
	addr    string
}

// New builds a gateway from config; credential is handed to the worker at
// spawn time and nowhere else.
func New(cfg *config.Config, credential string) *Gateway {
	return &Gateway{
		cfg:     cfg,
		sup:     worker.New(cfg.WorkerSpec(credential)),
		log:     slog.Default(),
		serving: make(chan struct{}),
	}
}

// Supervisor exposes read-only lifecycle queries for embedders.
func (g *Gateway) Supervisor() *worker.Supervisor { return g.sup }

// Serving is closed once the public listener is open.
func (g *Gateway) Serving() <-chan struct{} { return g.serving }

// Addr returns the bound listen address. Valid after Serving is closed.
func (g *Gateway) Addr() string { return g.addr }

// Run starts the worker, serves until ctx is cancelled or the server
// fails, then always completes the shutdown sequence. A worker that never
// reaches readiness aborts Run before the public socket is opened; the
// returned error makes the process exit non-zero.
func (g *Gateway) Run(ctx context.Context) error {
	if err := g.sup.Start(ctx); err != nil {
		return err
	}

	fw := proxy.New(g.sup.Target(), g.cfg.Proxy.Timeout)
	router := server.NewRouter(g.sup, fw, g.cfg.BasePath)

	var metricsSrv *http.Server
	if g.cfg.Metrics != nil && g.cfg.Metrics.Enabled {
		if g.cfg.Metrics.Listen == "" {
			router.EnableMetrics()
		} else {
			metricsSrv = &http.Server{
				Addr:              g.cfg.Metrics.Listen,
				Handler:           metrics.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}
			go func() {
				if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					g.log.Error("metrics server error", "error", err)
				}
			}()
		}
	}

	srv := server.NewServer(g.cfg.Listen, router)
	ln, err := net.Listen("tcp", g.cfg.Listen)
	if err != nil {
		_ = g.sup.Stop(g.cfg.Worker.StopGrace, g.cfg.Worker.KillTimeout)
		return err
	}
	g.addr = ln.Addr().String()
	close(g.serving)
	g.log.Info("gateway serving", "addr", g.addr, "worker", g.sup.Target())

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	var serveErr error
	select {
	case <-ctx.Done():
		g.log.Info("shutdown requested")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr = err
		}
	}

	// Release the public socket first, then take the worker down. The
	// two-phase worker stop always runs to completion.
	shCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	_ = srv.Shutdown(shCtx)
	if metricsSrv != nil {
		_ = metricsSrv.Close()
	}
	_ = g.sup.Stop(g.cfg.Worker.StopGrace, g.cfg.Worker.KillTimeout)
	return serveErr
}
