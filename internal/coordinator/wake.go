package coordinator

// Wake is the single-shot, re-armable notification the producers use to
// rouse the coordinator: a buffered channel of capacity one. Raise is
// send-if-not-pending, so any number of raises between two waits collapse
// into a single wake. Receiving from Chan drains the pending wake, which
// re-arms the signal; a raise arriving while the coordinator is mid-cycle
// simply sits in the buffer and starts the next cycle immediately.
type Wake struct {
	ch chan struct{}
}

// NewWake creates an armed (closed-gate) wake signal
func NewWake() *Wake {
	return &Wake{ch: make(chan struct{}, 1)}
}

// Raise opens the gate. No-op if a wake is already pending.
func (w *Wake) Raise() {
	select {
	case w.ch <- struct{}{}:
	default:
	}
}

// Chan returns the receive side; one receive consumes one wake
func (w *Wake) Chan() <-chan struct{} {
	return w.ch
}

// Pending reports whether a wake is waiting to be consumed
func (w *Wake) Pending() bool {
	return len(w.ch) > 0
}
