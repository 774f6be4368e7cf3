package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register;
// the helpers below no-op until registration succeeds.
var (
	regOK atomic.Bool

	workerStarts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "chatrelay",
			Subsystem: "worker",
			Name:      "starts_total",
			Help:      "Number of workers that reached readiness.",
		},
	)
	workerStops = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "chatrelay",
			Subsystem: "worker",
			Name:      "stops_total",
			Help:      "Number of completed worker shutdowns (graceful or kill).",
		},
	)
	stateTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chatrelay",
			Subsystem: "worker",
			Name:      "state_transitions_total",
			Help:      "Supervisor state transitions.",
		}, []string{"from", "to"},
	)
	forwards = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chatrelay",
			Subsystem: "proxy",
			Name:      "forwards_total",
			Help:      "Forwarded requests by worker response code.",
		}, []string{"code"},
	)
	forwardErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chatrelay",
			Subsystem: "proxy",
			Name:      "forward_errors_total",
			Help:      "Failed forwards by error kind.",
		}, []string{"kind"},
	)
	forwardDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "chatrelay",
			Subsystem: "proxy",
			Name:      "forward_duration_seconds",
			Help:      "Round-trip latency to the worker.",
			Buckets:   prometheus.DefBuckets,
		},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{workerStarts, workerStops, stateTransitions, forwards, forwardErrors, forwardDuration}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler returns an http.Handler that serves Prometheus metrics for the
// default gatherer.
func Handler() http.Handler { return promhttp.Handler() }

func IncStart() {
	if regOK.Load() {
		workerStarts.Inc()
	}
}

func IncStop() {
	if regOK.Load() {
		workerStops.Inc()
	}
}

func RecordStateTransition(from, to string) {
	if regOK.Load() {
		stateTransitions.WithLabelValues(from, to).Inc()
	}
}

func ObserveForward(code int, seconds float64) {
	if regOK.Load() {
		forwards.WithLabelValues(strconv.Itoa(code)).Inc()
		forwardDuration.Observe(seconds)
	}
}

func IncForwardError(kind string) {
	if regOK.Load() {
		forwardErrors.WithLabelValues(kind).Inc()
	}
}
