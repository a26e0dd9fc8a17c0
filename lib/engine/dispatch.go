package engine

import "sync"

// --------------------------------------------------------------------------
// Request Dispatcher
// --------------------------------------------------------------------------

// Job executes one engine request against the underlying storage and
// completes its *Request.
type Job func()

// Dispatcher is the per-connection event loop shared by engine
// implementations. All requests of a connection are executed by a single
// goroutine in submission order, mirroring the cooperative scheduling of
// the request/notification model: a request is issued, runs on the loop,
// and its completion wakes whoever awaits it.
//
// Close stops the intake. Jobs already accepted are drained and executed
// before the loop exits, so in-flight operations complete rather than
// erroring; jobs submitted after Close are rejected. The lock makes
// acceptance and intake shutdown mutually exclusive: once Submit has
// returned true the job is in the queue and will run.
type Dispatcher struct {
	mu        sync.RWMutex
	closed    bool
	jobs      chan Job
	idle      chan struct{}
	closeOnce sync.Once
}

// NewDispatcher creates a dispatcher and starts its loop.
func NewDispatcher(queueSize int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 64
	}
	d := &Dispatcher{
		jobs: make(chan Job, queueSize),
		idle: make(chan struct{}),
	}
	go d.run()
	return d
}

// Submit hands a job to the loop. It returns false if the dispatcher is
// closed; the job is then not executed and the caller must fail the
// request itself.
//
// Thread-safety: Submit may be called concurrently from any goroutine.
func (d *Dispatcher) Submit(j Job) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return false
	}
	d.jobs <- j
	return true
}

// Close stops the intake, waits for all accepted jobs to finish and
// returns. Close is idempotent.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		// The write lock waits out every in-flight Submit, so the queue
		// is complete when the intake closes.
		d.mu.Lock()
		d.closed = true
		close(d.jobs)
		d.mu.Unlock()
	})
	<-d.idle
}

// run is the event loop. It executes jobs in submission order until Close
// closes the intake and the queue is drained.
func (d *Dispatcher) run() {
	defer close(d.idle)
	for j := range d.jobs {
		j()
	}
}
