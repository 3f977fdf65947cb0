package coordinator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rkuchma96/rcoffee/internal/domain"
	"github.com/rkuchma96/rcoffee/internal/engine"
	"github.com/rkuchma96/rcoffee/internal/logger"
	"github.com/rkuchma96/rcoffee/internal/progress"
)

// Recorder persists the outcome of completed sync cycles
type Recorder interface {
	RecordCycle(direction domain.Direction, start, end time.Time, cycleErr error)
}

// Status is a snapshot of coordinator statistics
type Status struct {
	Cycles        int
	Pushes        int
	Pulls         int
	CrossCopies   int
	Failures      int
	LastDirection domain.Direction
	LastCycleTime time.Time
	LastError     string
}

// Config contains coordinator configuration
type Config struct {
	// BatchCooldown is the minimum quiet period with no new change signal
	// required before a batched sync executes
	BatchCooldown time.Duration

	// Reporter receives phase transitions; nil means no reporting
	Reporter progress.Reporter

	// Recorder persists cycle outcomes; nil disables history
	Recorder Recorder
}

// Coordinator is the sole consumer of the wake signal and the only caller
// of the transfer engine. It batches change signals, decides a direction
// and runs one sync cycle at a time.
type Coordinator struct {
	eng      engine.Engine
	flags    *Flags
	wake     *Wake
	cooldown time.Duration
	reporter progress.Reporter
	recorder Recorder

	mu    sync.RWMutex
	stats Status
}

// New creates a coordinator around the shared flags and wake signal
func New(eng engine.Engine, flags *Flags, wake *Wake, config Config) (*Coordinator, error) {
	if eng == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	if flags == nil || wake == nil {
		return nil, fmt.Errorf("flags and wake signal cannot be nil")
	}
	if config.BatchCooldown <= 0 {
		return nil, fmt.Errorf("batch cooldown must be positive, got %v", config.BatchCooldown)
	}

	reporter := config.Reporter
	if reporter == nil {
		reporter = progress.NullReporter{}
	}

	return &Coordinator{
		eng:      eng,
		flags:    flags,
		wake:     wake,
		cooldown: config.BatchCooldown,
		reporter: reporter,
		recorder: config.Recorder,
	}, nil
}

// CrossCopy establishes consistency by update-copying local to remote, then
// remote to local. Neither direction deletes, so nothing is lost on either
// side; newer versions win within the modify-window.
func (c *Coordinator) CrossCopy(ctx context.Context, remotePath, localPath string) error {
	logger.Get().Info("starting cross-copy", "remote", remotePath, "local", localPath)
	c.reporter.Phase(progress.Event{Type: progress.EventCrossCopyStart, Direction: domain.DirectionCross})

	if err := c.eng.CopyUpdate(ctx, localPath, remotePath); err != nil {
		return fmt.Errorf("cross-copy push: %w", err)
	}
	if err := c.eng.CopyUpdate(ctx, remotePath, localPath); err != nil {
		return fmt.Errorf("cross-copy pull: %w", err)
	}

	c.reporter.Phase(progress.Event{Type: progress.EventCrossCopyEnd, Direction: domain.DirectionCross})
	logger.Get().Info("cross-copy complete")
	return nil
}

// Run consumes wake signals until the context is cancelled. Exactly one
// cycle is in flight at a time: the loop is the only receiver of the wake
// channel and does not return to waiting until the previous cycle finished.
func (c *Coordinator) Run(ctx context.Context, remotePath, localPath string) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.wake.Chan():
		}

		if err := c.runCycle(ctx, remotePath, localPath); err != nil {
			return err
		}
	}
}

// runCycle executes one full Batching -> Deciding -> Syncing -> PostDedupe
// pass. Transient engine failures are absorbed (logged, flags re-marked for
// retry on the next wake); only fatal engine errors and context
// cancellation propagate.
func (c *Coordinator) runCycle(ctx context.Context, remotePath, localPath string) error {
	start := time.Now()

	// Pre-sync dedupe collapses accidental duplicate-named remote files
	// before the direction is decided.
	c.dedupe(ctx, remotePath)
	if ctx.Err() != nil {
		return ctx.Err()
	}

	needPush, needPull, err := c.batch(ctx)
	if err != nil {
		return err
	}

	direction, err := domain.Decide(needPush, needPull)
	if err != nil {
		// Only possible if a wake was raised with no flag ever set,
		// which no producer does.
		logger.Get().Error("wake with no dirty flags, skipping cycle", "error", err)
		c.recordFailure(direction, start, err)
		return nil
	}

	if err := c.transfer(ctx, direction, remotePath, localPath); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if ee, ok := engine.AsEngineError(err); ok && ee.Transient() {
			// Leave the attempted directions dirty so the next wake
			// retries them instead of forgetting the batch.
			logger.Get().Error("sync failed, will retry on next wake", "direction", direction, "error", err)
			c.remark(needPush, needPull)
			c.reporter.Phase(progress.Event{Type: progress.EventCycleFailed, Direction: direction, Err: err})
			c.recordFailure(direction, start, err)
			return nil
		}
		return err
	}

	c.dedupe(ctx, remotePath)
	if ctx.Err() != nil {
		return ctx.Err()
	}

	c.reporter.Phase(progress.Event{Type: progress.EventCycleComplete, Direction: direction})
	c.recordSuccess(direction, start)
	logger.Get().Info("sync complete", "direction", direction, "elapsed", time.Since(start))
	return nil
}

// batch accumulates dirty flags until a full cooldown passes with no new
// change signal, then re-arms the wake before the transfer starts so that
// changes arriving during the transfer wake the next cycle.
func (c *Coordinator) batch(ctx context.Context) (needPush, needPull bool, err error) {
	logger.Get().Info("batching changes")
	c.reporter.Phase(progress.Event{Type: progress.EventBatchingStart})

	for {
		local, remote := c.flags.TakeAndReset()
		if !local && !remote {
			break
		}
		needPush = needPush || local
		needPull = needPull || remote

		logger.Get().Info("changes detected, sleeping", "cooldown", c.cooldown)
		select {
		case <-ctx.Done():
			return false, false, ctx.Err()
		case <-time.After(c.cooldown):
		}
	}

	// Re-arm: a wake raised for changes already folded into this batch is
	// stale, drop it. If a change slipped in after the final flag check,
	// its flag is still set, so restore its wake for the next cycle.
	select {
	case <-c.wake.Chan():
	default:
	}
	if c.flags.Any() {
		c.wake.Raise()
	}

	c.reporter.Phase(progress.Event{Type: progress.EventBatchingEnd})
	logger.Get().Info("batching complete, processing batched changes",
		"need_push", needPush,
		"need_pull", needPull,
	)
	return needPush, needPull, nil
}

// transfer runs the directional transfer sequence for a decided cycle
func (c *Coordinator) transfer(ctx context.Context, direction domain.Direction, remotePath, localPath string) error {
	c.reporter.Phase(progress.Event{Type: progress.EventSyncStart, Direction: direction})

	var err error
	switch direction {
	case domain.DirectionCross:
		logger.Get().Info("both local and remote have changed")
		err = c.CrossCopy(ctx, remotePath, localPath)
	case domain.DirectionPush:
		logger.Get().Info("pushing local changes")
		err = c.eng.MirrorSync(ctx, localPath, remotePath)
	case domain.DirectionPull:
		logger.Get().Info("pulling remote changes")
		err = c.eng.MirrorSync(ctx, remotePath, localPath)
	}
	if err != nil {
		return err
	}

	c.reporter.Phase(progress.Event{Type: progress.EventSyncEnd, Direction: direction})
	return nil
}

// dedupe runs a newest-wins deduplication pass against the remote. A failed
// pass degrades the cycle but does not abort it: the directional sync still
// reduces divergence, and the next cycle dedupes again.
func (c *Coordinator) dedupe(ctx context.Context, remotePath string) {
	logger.Get().Info("starting dedupe", "remote", remotePath)
	c.reporter.Phase(progress.Event{Type: progress.EventDedupeStart})

	if err := c.eng.Dedupe(ctx, remotePath); err != nil {
		if ctx.Err() == nil {
			logger.Get().Warn("dedupe failed", "error", err)
		}
	} else {
		logger.Get().Info("dedupe complete")
	}

	c.reporter.Phase(progress.Event{Type: progress.EventDedupeEnd})
}

// remark conservatively restores the dirty flags of a failed cycle
func (c *Coordinator) remark(needPush, needPull bool) {
	if needPush {
		c.flags.MarkLocal()
	}
	if needPull {
		c.flags.MarkRemote()
	}
}

func (c *Coordinator) recordSuccess(direction domain.Direction, start time.Time) {
	end := time.Now()

	c.mu.Lock()
	c.stats.Cycles++
	switch direction {
	case domain.DirectionPush:
		c.stats.Pushes++
	case domain.DirectionPull:
		c.stats.Pulls++
	case domain.DirectionCross:
		c.stats.CrossCopies++
	}
	c.stats.LastDirection = direction
	c.stats.LastCycleTime = end
	c.stats.LastError = ""
	c.mu.Unlock()

	if c.recorder != nil {
		c.recorder.RecordCycle(direction, start, end, nil)
	}
}

func (c *Coordinator) recordFailure(direction domain.Direction, start time.Time, err error) {
	end := time.Now()

	c.mu.Lock()
	c.stats.Cycles++
	c.stats.Failures++
	c.stats.LastDirection = direction
	c.stats.LastCycleTime = end
	c.stats.LastError = err.Error()
	c.mu.Unlock()

	if c.recorder != nil {
		c.recorder.RecordCycle(direction, start, end, err)
	}
}

// Status returns a snapshot of coordinator statistics
func (c *Coordinator) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}
