package proxy

import "fmt"

// Kind classifies a failed forward. A failed forward never changes
// supervisor state; the classification only shapes the response sent back
// to the caller.
type Kind string

const (
	// KindForward covers network-level failures reaching the worker,
	// including the per-request timeout.
	KindForward Kind = "forward"
	// KindDecode covers a worker response whose body is not valid JSON.
	KindDecode Kind = "decode"
	// KindUnexpected covers everything else.
	KindUnexpected Kind = "unexpected"
)

// Error wraps a forwarding failure with its classification.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s error communicating with worker: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}
