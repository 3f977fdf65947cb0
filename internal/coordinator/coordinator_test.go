package coordinator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rkuchma96/rcoffee/internal/domain"
	"github.com/rkuchma96/rcoffee/internal/engine"
	"github.com/rkuchma96/rcoffee/internal/progress"
	"github.com/rkuchma96/rcoffee/internal/testutil"
)

const (
	testRemote   = "remote:Sync"
	testLocal    = "/home/bob/sync"
	testCooldown = 20 * time.Millisecond
)

// cycleTracker counts coordinator phase events
type cycleTracker struct {
	mu        sync.Mutex
	completes int
	failures  int
	dedupes   int
}

func (c *cycleTracker) reporter() progress.Reporter {
	return progress.NewCallbackReporter(func(event progress.Event) {
		c.mu.Lock()
		defer c.mu.Unlock()
		switch event.Type {
		case progress.EventCycleComplete:
			c.completes++
		case progress.EventCycleFailed:
			c.failures++
		case progress.EventDedupeStart:
			c.dedupes++
		}
	})
}

func (c *cycleTracker) counts() (completes, failures, dedupes int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.completes, c.failures, c.dedupes
}

// startCoordinator runs a coordinator in the background and returns its
// pieces plus a shutdown function
func startCoordinator(t *testing.T, eng *testutil.FakeEngine, tracker *cycleTracker) (*Flags, *Wake, func() error) {
	t.Helper()

	flags := NewFlags()
	wake := NewWake()

	c, err := New(eng, flags, wake, Config{
		BatchCooldown: testCooldown,
		Reporter:      tracker.reporter(),
	})
	if err != nil {
		t.Fatalf("failed to create coordinator: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- c.Run(ctx, testRemote, testLocal)
	}()

	return flags, wake, func() error {
		cancel()
		select {
		case err := <-done:
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		case <-time.After(5 * time.Second):
			t.Fatal("coordinator did not stop")
			return nil
		}
	}
}

func TestBurstOfLocalChangesCoalescesIntoOnePush(t *testing.T) {
	eng := &testutil.FakeEngine{}
	tracker := &cycleTracker{}
	flags, wake, stop := startCoordinator(t, eng, tracker)
	defer stop()

	// A burst of change events, each setting the flag and raising the wake
	for i := 0; i < 10; i++ {
		flags.MarkLocal()
		wake.Raise()
	}

	if !testutil.WaitForCondition(5*time.Second, func() bool {
		completes, _, _ := tracker.counts()
		return completes >= 1
	}) {
		t.Fatal("no cycle completed")
	}

	// Silence: no further cycles may start
	time.Sleep(4 * testCooldown)

	completes, failures, dedupes := tracker.counts()
	if completes != 1 {
		t.Errorf("got %d cycles, want exactly 1", completes)
	}
	if failures != 0 {
		t.Errorf("got %d failed cycles, want 0", failures)
	}
	if dedupes != 2 {
		t.Errorf("dedupe invoked %d times, want exactly 2 (before and after)", dedupes)
	}

	syncs := eng.CallsOf("sync")
	if len(syncs) != 1 {
		t.Fatalf("got %d mirrored syncs, want 1", len(syncs))
	}
	if syncs[0].Source != testLocal || syncs[0].Dest != testRemote {
		t.Errorf("push should run local->remote, got %s -> %s", syncs[0].Source, syncs[0].Dest)
	}
	if copies := eng.CallsOf("copy"); len(copies) != 0 {
		t.Errorf("push-only cycle must not cross-copy, got %d copies", len(copies))
	}
}

func TestMixedChangesDecideCrossCopy(t *testing.T) {
	eng := &testutil.FakeEngine{}
	tracker := &cycleTracker{}
	flags, wake, stop := startCoordinator(t, eng, tracker)
	defer stop()

	// Local and remote both dirty within the same batching window
	flags.MarkLocal()
	wake.Raise()
	flags.MarkRemote()
	wake.Raise()

	if !testutil.WaitForCondition(5*time.Second, func() bool {
		completes, _, _ := tracker.counts()
		return completes >= 1
	}) {
		t.Fatal("no cycle completed")
	}
	time.Sleep(4 * testCooldown)

	completes, _, _ := tracker.counts()
	if completes != 1 {
		t.Errorf("got %d cycles, want exactly 1", completes)
	}

	copies := eng.CallsOf("copy")
	if len(copies) != 2 {
		t.Fatalf("cross-copy should update-copy twice, got %d", len(copies))
	}
	// Push before pull
	if copies[0].Source != testLocal || copies[0].Dest != testRemote {
		t.Errorf("first leg should be local->remote, got %s -> %s", copies[0].Source, copies[0].Dest)
	}
	if copies[1].Source != testRemote || copies[1].Dest != testLocal {
		t.Errorf("second leg should be remote->local, got %s -> %s", copies[1].Source, copies[1].Dest)
	}
	if syncs := eng.CallsOf("sync"); len(syncs) != 0 {
		t.Errorf("cross-copy cycle must not mirror, got %d syncs", len(syncs))
	}
}

func TestRemoteOnlyChangeDecidesPull(t *testing.T) {
	eng := &testutil.FakeEngine{}
	tracker := &cycleTracker{}
	flags, wake, stop := startCoordinator(t, eng, tracker)
	defer stop()

	flags.MarkRemote()
	wake.Raise()

	if !testutil.WaitForCondition(5*time.Second, func() bool {
		completes, _, _ := tracker.counts()
		return completes >= 1
	}) {
		t.Fatal("no cycle completed")
	}

	syncs := eng.CallsOf("sync")
	if len(syncs) != 1 {
		t.Fatalf("got %d mirrored syncs, want 1", len(syncs))
	}
	if syncs[0].Source != testRemote || syncs[0].Dest != testLocal {
		t.Errorf("pull should run remote->local, got %s -> %s", syncs[0].Source, syncs[0].Dest)
	}
}

func TestChangeDuringSyncStartsNextCycleNotASecondOne(t *testing.T) {
	eng := &testutil.FakeEngine{}
	tracker := &cycleTracker{}

	flags := NewFlags()
	wake := NewWake()

	// Simulate a change arriving while the transfer is in flight
	var once sync.Once
	eng.OnCall = func(call testutil.Call) {
		if call.Op == "sync" {
			once.Do(func() {
				flags.MarkLocal()
				wake.Raise()
			})
		}
	}

	c, err := New(eng, flags, wake, Config{
		BatchCooldown: testCooldown,
		Reporter:      tracker.reporter(),
	})
	if err != nil {
		t.Fatalf("failed to create coordinator: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx, testRemote, testLocal) }()

	flags.MarkLocal()
	wake.Raise()

	if !testutil.WaitForCondition(5*time.Second, func() bool {
		completes, _, _ := tracker.counts()
		return completes >= 2
	}) {
		t.Fatal("change during sync did not trigger a follow-up cycle")
	}
	time.Sleep(4 * testCooldown)

	completes, failures, dedupes := tracker.counts()
	if completes != 2 {
		t.Errorf("got %d cycles, want exactly 2", completes)
	}
	if failures != 0 {
		t.Errorf("got %d failed cycles, want 0", failures)
	}
	if dedupes != 4 {
		t.Errorf("dedupe invoked %d times, want 4 (twice per cycle)", dedupes)
	}
	if syncs := eng.CallsOf("sync"); len(syncs) != 2 {
		t.Errorf("got %d mirrored syncs, want 2", len(syncs))
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("unexpected run error: %v", err)
	}
}

func TestTransientTransferFailureRetriesOnNextWake(t *testing.T) {
	eng := &testutil.FakeEngine{}
	eng.SyncErr = &engine.EngineError{Op: "sync", ExitCode: 1, Err: errors.New("remote hiccup")}
	tracker := &cycleTracker{}
	flags, wake, stop := startCoordinator(t, eng, tracker)
	defer stop()

	flags.MarkLocal()
	wake.Raise()

	if !testutil.WaitForCondition(5*time.Second, func() bool {
		_, failures, _ := tracker.counts()
		return failures >= 1
	}) {
		t.Fatal("failed cycle was not reported")
	}

	// The direction stays dirty for the next wake
	if !flags.Any() {
		t.Fatal("flags should be conservatively re-marked after a failed transfer")
	}

	eng.SetSyncErr(nil)
	wake.Raise()

	if !testutil.WaitForCondition(5*time.Second, func() bool {
		completes, _, _ := tracker.counts()
		return completes >= 1
	}) {
		t.Fatal("retry cycle did not complete")
	}

	syncs := eng.CallsOf("sync")
	if len(syncs) != 2 {
		t.Fatalf("got %d sync attempts, want 2 (failed + retried)", len(syncs))
	}
	for i, s := range syncs {
		if s.Source != testLocal || s.Dest != testRemote {
			t.Errorf("attempt %d should push local->remote, got %s -> %s", i, s.Source, s.Dest)
		}
	}
}

func TestFatalEngineErrorStopsTheRunLoop(t *testing.T) {
	eng := &testutil.FakeEngine{}
	eng.SyncErr = &engine.EngineError{Op: "sync", Fatal: true, Err: errors.New("rclone not found")}
	tracker := &cycleTracker{}

	flags := NewFlags()
	wake := NewWake()
	c, err := New(eng, flags, wake, Config{
		BatchCooldown: testCooldown,
		Reporter:      tracker.reporter(),
	})
	if err != nil {
		t.Fatalf("failed to create coordinator: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- c.Run(context.Background(), testRemote, testLocal) }()

	flags.MarkLocal()
	wake.Raise()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("fatal engine error should propagate out of Run")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return on fatal engine error")
	}
}

func TestSpuriousWakeIsDefensivelySkipped(t *testing.T) {
	eng := &testutil.FakeEngine{}
	tracker := &cycleTracker{}
	_, wake, stop := startCoordinator(t, eng, tracker)
	defer stop()

	// A wake with no flag set cannot happen through a producer; the
	// coordinator must not transfer anything for it.
	wake.Raise()

	if !testutil.WaitForCondition(5*time.Second, func() bool {
		_, failures, _ := tracker.counts()
		return failures >= 1
	}) {
		t.Fatal("spurious wake was not reported")
	}

	if syncs := eng.CallsOf("sync"); len(syncs) != 0 {
		t.Errorf("spurious wake must not transfer, got %d syncs", len(syncs))
	}
	if copies := eng.CallsOf("copy"); len(copies) != 0 {
		t.Errorf("spurious wake must not cross-copy, got %d copies", len(copies))
	}
}

func TestCrossCopyOrdersPushBeforePull(t *testing.T) {
	eng := &testutil.FakeEngine{}
	c, err := New(eng, NewFlags(), NewWake(), Config{BatchCooldown: testCooldown})
	if err != nil {
		t.Fatalf("failed to create coordinator: %v", err)
	}

	if err := c.CrossCopy(context.Background(), testRemote, testLocal); err != nil {
		t.Fatalf("cross-copy failed: %v", err)
	}

	copies := eng.CallsOf("copy")
	if len(copies) != 2 {
		t.Fatalf("got %d copies, want 2", len(copies))
	}
	if copies[0].Source != testLocal || copies[1].Source != testRemote {
		t.Errorf("cross-copy must push before pulling, got %v", copies)
	}
}

func TestCrossCopyPropagatesFailure(t *testing.T) {
	eng := &testutil.FakeEngine{
		CopyErr: &engine.EngineError{Op: "copy", ExitCode: 3, Err: errors.New("denied")},
	}
	c, err := New(eng, NewFlags(), NewWake(), Config{BatchCooldown: testCooldown})
	if err != nil {
		t.Fatalf("failed to create coordinator: %v", err)
	}

	if err := c.CrossCopy(context.Background(), testRemote, testLocal); err == nil {
		t.Fatal("expected cross-copy to fail")
	}
}

func TestNewValidation(t *testing.T) {
	eng := &testutil.FakeEngine{}
	flags := NewFlags()
	wake := NewWake()

	if _, err := New(nil, flags, wake, Config{BatchCooldown: time.Second}); err == nil {
		t.Error("expected error for nil engine")
	}
	if _, err := New(eng, nil, wake, Config{BatchCooldown: time.Second}); err == nil {
		t.Error("expected error for nil flags")
	}
	if _, err := New(eng, flags, wake, Config{BatchCooldown: 0}); err == nil {
		t.Error("expected error for zero cooldown")
	}
}

func TestStatusCounters(t *testing.T) {
	eng := &testutil.FakeEngine{}
	tracker := &cycleTracker{}

	flags := NewFlags()
	wake := NewWake()
	c, err := New(eng, flags, wake, Config{
		BatchCooldown: testCooldown,
		Reporter:      tracker.reporter(),
	})
	if err != nil {
		t.Fatalf("failed to create coordinator: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx, testRemote, testLocal) }()

	flags.MarkRemote()
	wake.Raise()

	if !testutil.WaitForCondition(5*time.Second, func() bool {
		return c.Status().Cycles >= 1
	}) {
		t.Fatal("status never recorded a cycle")
	}

	status := c.Status()
	if status.Pulls != 1 {
		t.Errorf("got %d pulls, want 1", status.Pulls)
	}
	if status.LastDirection != domain.DirectionPull {
		t.Errorf("got last direction %v, want pull", status.LastDirection)
	}
	if status.LastError != "" {
		t.Errorf("unexpected last error: %s", status.LastError)
	}

	cancel()
	<-done
}
