package poller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rkuchma96/rcoffee/internal/domain"
	"github.com/rkuchma96/rcoffee/internal/engine"
	"github.com/rkuchma96/rcoffee/internal/logger"
)

// Notify is called whenever a poll observes a remote state different from
// the previous one
type Notify func()

// Status is a snapshot of poller statistics
type Status struct {
	TotalPolls      int
	FailedPolls     int
	ChangesDetected int
	LastPollTime    time.Time
	LastError       string
	HasBaseline     bool
}

// Poller periodically snapshots the remote tree through the engine's
// listing operation and raises a change notification when two consecutive
// snapshots differ. It holds at most one snapshot: the previous one is
// discarded after every comparison.
type Poller struct {
	eng      engine.Engine
	interval time.Duration
	notify   Notify

	lastSnapshot domain.Snapshot
	hasBaseline  bool

	mu    sync.RWMutex
	stats Status
}

// New creates a poller. The first successful poll only sets the baseline
// and never signals.
func New(eng engine.Engine, interval time.Duration, notify Notify) (*Poller, error) {
	if eng == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	if interval <= 0 {
		return nil, fmt.Errorf("poll interval must be positive, got %v", interval)
	}
	if notify == nil {
		return nil, fmt.Errorf("notify callback cannot be nil")
	}

	return &Poller{
		eng:      eng,
		interval: interval,
		notify:   notify,
	}, nil
}

// Run polls the remote until the context is cancelled. Listing failures are
// transient: they are logged and the next tick proceeds with the previous
// baseline intact, so a flaky remote degrades change detection without
// taking the process down.
func (p *Poller) Run(ctx context.Context) error {
	// Poll once immediately so the baseline exists before the first
	// interval elapses.
	p.poll(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

// poll performs a single listing and comparison
func (p *Poller) poll(ctx context.Context) {
	snapshot, err := p.eng.List(ctx)

	p.mu.Lock()
	p.stats.TotalPolls++
	p.stats.LastPollTime = time.Now()
	p.mu.Unlock()

	if err != nil {
		if ctx.Err() != nil {
			return
		}
		p.mu.Lock()
		p.stats.FailedPolls++
		p.stats.LastError = err.Error()
		p.mu.Unlock()
		logger.Get().Warn("remote poll failed", "error", err)
		return
	}

	changed := p.hasBaseline && !snapshot.Equal(p.lastSnapshot)

	// The new snapshot always becomes the baseline, changed or not.
	p.lastSnapshot = snapshot
	if !p.hasBaseline {
		p.hasBaseline = true
		logger.Get().Debug("remote baseline established", "entries", len(snapshot))
	}

	p.mu.Lock()
	p.stats.HasBaseline = true
	p.stats.LastError = ""
	if changed {
		p.stats.ChangesDetected++
	}
	p.mu.Unlock()

	if changed {
		logger.Get().Info("remote changes detected", "entries", len(snapshot))
		p.notify()
	}
}

// Status returns a snapshot of poller statistics
func (p *Poller) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.stats
}
