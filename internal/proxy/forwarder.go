package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/evanoh/chatrelay/internal/metrics"
)

// CompletionsPath is the single endpoint relayed to the worker.
const CompletionsPath = "/v1/chat/completions"

// DefaultTimeout bounds a single forward round-trip.
const DefaultTimeout = 60 * time.Second

// Result is the worker's answer to one forwarded request. It is produced
// and consumed within a single request's handling.
type Result struct {
	StatusCode int
	Body       []byte
	Elapsed    time.Duration
}

// Forwarder re-issues inbound completion requests against the worker's
// loopback endpoint and returns the response verbatim.
type Forwarder struct {
	base   string
	client *http.Client
}

// New returns a Forwarder for the worker at target (host:port). A
// non-positive timeout selects DefaultTimeout.
func New(target string, timeout time.Duration) *Forwarder {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Forwarder{
		base:   "http://" + target,
		client: &http.Client{Timeout: timeout},
	}
}

// Forward POSTs body to the worker's completions endpoint. The status code
// and body come back untouched; the worker's answer is never reinterpreted.
// Failures are classified per errors.go and leave the worker alone: a
// timed-out forward is abandoned, not escalated.
func (f *Forwarder) Forward(ctx context.Context, body []byte) (Result, error) {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.base+CompletionsPath, bytes.NewReader(body))
	if err != nil {
		metrics.IncForwardError(string(KindUnexpected))
		return Result{}, newError(KindUnexpected, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		// client.Do failures are connection, timeout, or cancellation
		// problems reaching the worker.
		metrics.IncForwardError(string(KindForward))
		return Result{}, newError(KindForward, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.IncForwardError(string(KindForward))
		return Result{}, newError(KindForward, fmt.Errorf("reading worker response: %w", err))
	}
	if !json.Valid(respBody) {
		metrics.IncForwardError(string(KindDecode))
		return Result{}, newError(KindDecode, fmt.Errorf("worker returned a non-JSON body (%d bytes)", len(respBody)))
	}

	elapsed := time.Since(start)
	metrics.ObserveForward(resp.StatusCode, elapsed.Seconds())
	return Result{StatusCode: resp.StatusCode, Body: respBody, Elapsed: elapsed}, nil
}
