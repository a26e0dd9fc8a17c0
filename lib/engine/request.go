package engine

import (
	"context"
	"sync/atomic"
)

// --------------------------------------------------------------------------
// Request State Machine
// --------------------------------------------------------------------------

// State is the lifecycle state of a Request.
type State int32

const (
	StatePending State = iota
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Request is the completion notification for a single engine operation.
// The engine completes a request exactly once, transitioning it from
// pending to succeeded or failed; every later completion attempt is
// ignored. Callers wait on Done or Await and then read the result through
// the accessors.
//
// Thread-safety: completion methods and accessors may be called from
// different goroutines. Accessors must only be used after Done is closed.
type Request struct {
	state atomic.Int32
	done  chan struct{}

	value []byte
	found bool
	keys  []string
	err   error
}

// NewRequest creates a pending request. Only engine implementations
// should need this.
func NewRequest() *Request {
	return &Request{done: make(chan struct{})}
}

// Done is closed when the request has succeeded or failed.
func (r *Request) Done() <-chan struct{} {
	return r.done
}

// State returns the current lifecycle state.
func (r *Request) State() State {
	return State(r.state.Load())
}

// Await blocks until the request completes or the context is cancelled.
// It returns the request error on failure and the context error on
// cancellation. Cancellation abandons the wait only; the operation itself
// still runs to the engine's own completion.
func (r *Request) Await(ctx context.Context) error {
	select {
	case <-r.done:
		return r.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err returns the failure cause, or nil if the request succeeded.
func (r *Request) Err() error {
	return r.err
}

// Value returns the read result and whether a record was found.
func (r *Request) Value() ([]byte, bool) {
	return r.value, r.found
}

// Keys returns the key enumeration result.
func (r *Request) Keys() []string {
	return r.keys
}

// --------------------------------------------------------------------------
// Completion (engine side)
// --------------------------------------------------------------------------

// complete performs the single pending -> terminal transition.
// Returns false if the request was already completed.
func (r *Request) complete(s State) bool {
	return r.state.CompareAndSwap(int32(StatePending), int32(s))
}

// Succeed completes a request that carries no payload (Write, Delete,
// DeleteDatabase).
func (r *Request) Succeed() {
	if r.complete(StateSucceeded) {
		close(r.done)
	}
}

// SucceedValue completes a Read request.
func (r *Request) SucceedValue(value []byte, found bool) {
	if r.complete(StateSucceeded) {
		r.value = value
		r.found = found
		close(r.done)
	}
}

// SucceedKeys completes a ListKeys request.
func (r *Request) SucceedKeys(keys []string) {
	if r.complete(StateSucceeded) {
		r.keys = keys
		close(r.done)
	}
}

// Fail completes a request with an error.
func (r *Request) Fail(err error) {
	if r.complete(StateFailed) {
		r.err = err
		close(r.done)
	}
}

// FailedRequest returns a request that is already failed with err.
// Used by engines to reject a request without touching the dispatcher.
func FailedRequest(err error) *Request {
	r := NewRequest()
	r.Fail(err)
	return r
}
