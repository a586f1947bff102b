package retrieval

import "sync"

// Flight is one in-progress retrieval shared by every caller that asked for
// the same series while it ran.
type Flight struct {
	done chan struct{}
	err  error
}

// Done is closed when the retrieval has finished.
func (f *Flight) Done() <-chan struct{} { return f.done }

// Err returns the retrieval outcome. Valid only after Done is closed.
func (f *Flight) Err() error { return f.err }

// LockRegistry tracks in-flight retrievals keyed by series UID.
type LockRegistry struct {
	mu      sync.Mutex
	flights map[string]*Flight
}

// NewLockRegistry creates an empty registry.
func NewLockRegistry() *LockRegistry {
	return &LockRegistry{flights: make(map[string]*Flight)}
}

// Acquire returns the flight for series. leader is true when the caller
// created it and is responsible for calling Release.
func (r *LockRegistry) Acquire(series string) (f *Flight, leader bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if f, ok := r.flights[series]; ok {
		return f, false
	}
	f = &Flight{done: make(chan struct{})}
	r.flights[series] = f
	return f, true
}

// Release removes the entry for series and then wakes every waiter with err.
// The entry is gone before anyone observes completion, so a caller that
// retries after a failure starts a fresh flight.
func (r *LockRegistry) Release(series string, err error) {
	r.mu.Lock()
	f, ok := r.flights[series]
	delete(r.flights, series)
	r.mu.Unlock()

	if !ok {
		return
	}
	f.err = err
	close(f.done)
}

// Has reports whether a retrieval for series is in flight.
func (r *LockRegistry) Has(series string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.flights[series]
	return ok
}

// Len returns the number of in-flight retrievals.
func (r *LockRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.flights)
}
