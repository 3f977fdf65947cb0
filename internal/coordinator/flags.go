package coordinator

import "sync"

// Flags is the pair of dirty bits shared between the two change producers
// (watcher, poller) and the single consumer (coordinator). Producers only
// ever set a bit; the consumer reads and clears both atomically, so a bit
// set between two reads is never lost and a cleared bit can only come back
// through a new change event.
type Flags struct {
	mu     sync.Mutex
	local  bool
	remote bool
}

// NewFlags creates a clean flag pair
func NewFlags() *Flags {
	return &Flags{}
}

// MarkLocal records that the local subtree changed
func (f *Flags) MarkLocal() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.local = true
}

// MarkRemote records that the remote state changed
func (f *Flags) MarkRemote() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.remote = true
}

// TakeAndReset returns both flags and clears them in one critical section
func (f *Flags) TakeAndReset() (local, remote bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	local, remote = f.local, f.remote
	f.local, f.remote = false, false
	return local, remote
}

// Any reports whether either flag is currently set
func (f *Flags) Any() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.local || f.remote
}
