package gateway

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// NotifyContext returns a context that is cancelled on the first interrupt
// or terminate signal. The handler itself only logs and cancels; the full
// shutdown sequence then runs in Run, so the worker is never orphaned by
// an exit from inside a signal handler.
func NotifyContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	go func() {
		defer signal.Stop(ch)
		select {
		case sig := <-ch:
			slog.Info("received termination signal, shutting down", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
