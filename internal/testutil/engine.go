package testutil

import (
	"context"
	"sync"

	"github.com/rkuchma96/rcoffee/internal/domain"
)

// Call records one invocation of the fake engine
type Call struct {
	Op     string // "list", "copy", "sync", "dedupe"
	Source string
	Dest   string
	Path   string
}

// FakeEngine is a scripted engine.Engine implementation for coordinator and
// poller tests. Every operation is recorded; listings and errors are
// programmable per call.
type FakeEngine struct {
	mu    sync.Mutex
	calls []Call

	// Listings are returned by successive List calls; the last one repeats
	Listings []domain.Snapshot

	// ListErr, CopyErr, SyncErr, DedupeErr fail the respective operations
	ListErr   error
	CopyErr   error
	SyncErr   error
	DedupeErr error

	// OnCall, if set, runs after each recorded invocation, outside the lock
	OnCall func(call Call)

	listCalls int
}

// record appends a call and fires the hook
func (f *FakeEngine) record(call Call) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	hook := f.OnCall
	f.mu.Unlock()

	if hook != nil {
		hook(call)
	}
}

// List returns the next scripted listing
func (f *FakeEngine) List(ctx context.Context) (domain.Snapshot, error) {
	f.record(Call{Op: "list"})

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.ListErr != nil {
		return nil, f.ListErr
	}

	if len(f.Listings) == 0 {
		return domain.Snapshot{}, nil
	}
	idx := f.listCalls
	if idx >= len(f.Listings) {
		idx = len(f.Listings) - 1
	}
	f.listCalls++
	return f.Listings[idx], nil
}

// CopyUpdate records a copy invocation
func (f *FakeEngine) CopyUpdate(ctx context.Context, source, dest string) error {
	f.record(Call{Op: "copy", Source: source, Dest: dest})
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.CopyErr
}

// MirrorSync records a sync invocation
func (f *FakeEngine) MirrorSync(ctx context.Context, source, dest string) error {
	f.record(Call{Op: "sync", Source: source, Dest: dest})
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.SyncErr
}

// Dedupe records a dedupe invocation
func (f *FakeEngine) Dedupe(ctx context.Context, path string) error {
	f.record(Call{Op: "dedupe", Path: path})
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.DedupeErr
}

// SetListErr swaps the scripted listing error while the engine is in use
func (f *FakeEngine) SetListErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ListErr = err
}

// SetSyncErr swaps the scripted sync error while the engine is in use
func (f *FakeEngine) SetSyncErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.SyncErr = err
}

// SetCopyErr swaps the scripted copy error while the engine is in use
func (f *FakeEngine) SetCopyErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CopyErr = err
}

// Calls returns a copy of all recorded invocations
func (f *FakeEngine) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	calls := make([]Call, len(f.calls))
	copy(calls, f.calls)
	return calls
}

// CallsOf returns recorded invocations of one operation
func (f *FakeEngine) CallsOf(op string) []Call {
	var out []Call
	for _, c := range f.Calls() {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// Reset forgets all recorded invocations
func (f *FakeEngine) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}
