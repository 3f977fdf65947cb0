package service

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/rkuchma96/rcoffee/internal/config"
	"github.com/rkuchma96/rcoffee/internal/coordinator"
	"github.com/rkuchma96/rcoffee/internal/daemon"
	"github.com/rkuchma96/rcoffee/internal/engine"
	"github.com/rkuchma96/rcoffee/internal/lock"
	"github.com/rkuchma96/rcoffee/internal/logger"
	"github.com/rkuchma96/rcoffee/internal/poller"
	"github.com/rkuchma96/rcoffee/internal/progress"
	"github.com/rkuchma96/rcoffee/internal/state"
	"github.com/rkuchma96/rcoffee/internal/watcher"
)

// Daemon wires the watcher, poller and coordinator around one endpoint pair
// and runs them as a single concurrent group. The pair of dirty flags and
// the wake signal are the only state shared between the activities.
type Daemon struct {
	cfg   *config.Config
	eng   *engine.Rclone
	flags *coordinator.Flags
	wake  *coordinator.Wake
	coord *coordinator.Coordinator
	watch *watcher.Watcher
	poll  *poller.Poller

	stateMgr *state.Manager
	instLock *lock.FileLock
	pidFile  *daemon.PIDFile
}

// Status aggregates the live state of all activities
type Status struct {
	Coordinator coordinator.Status
	Poller      poller.Status
	LastCycles  []state.CycleRecord
}

// NewDaemon builds a daemon from validated configuration. Watch
// initialization failures (missing local path) surface here and are fatal.
func NewDaemon(cfg *config.Config) (*Daemon, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	eng, err := engine.NewRclone(engine.Options{
		Binary:       cfg.RcloneBinary,
		RemotePath:   cfg.RemotePath,
		LocalPath:    cfg.LocalPath,
		ModifyWindow: cfg.ModifyWindow,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}

	flags := coordinator.NewFlags()
	wake := coordinator.NewWake()

	// Producers only ever set a flag and raise the wake; the order matters:
	// the flag must be visible before the coordinator can consume the wake.
	watch, err := watcher.New(cfg.LocalPath, func() {
		flags.MarkLocal()
		wake.Raise()
	})
	if err != nil {
		return nil, err
	}

	poll, err := poller.New(eng, cfg.PollInterval, func() {
		flags.MarkRemote()
		wake.Raise()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create poller: %w", err)
	}

	stateMgr, err := state.NewManager(cfg.GetDataDir())
	if err != nil {
		return nil, fmt.Errorf("failed to create state manager: %w", err)
	}

	coord, err := coordinator.New(eng, flags, wake, coordinator.Config{
		BatchCooldown: cfg.BatchCooldown,
		Reporter:      progress.NullReporter{},
		Recorder:      stateMgr,
	})
	if err != nil {
		stateMgr.Close()
		return nil, fmt.Errorf("failed to create coordinator: %w", err)
	}

	instLock, err := lock.NewFileLock(cfg.GetDataDir())
	if err != nil {
		stateMgr.Close()
		return nil, fmt.Errorf("failed to create instance lock: %w", err)
	}

	return &Daemon{
		cfg:      cfg,
		eng:      eng,
		flags:    flags,
		wake:     wake,
		coord:    coord,
		watch:    watch,
		poll:     poll,
		stateMgr: stateMgr,
		instLock: instLock,
	}, nil
}

// Run performs the startup cross-copy and then runs the three activities
// until the context is cancelled or one of them fails fatally.
func (d *Daemon) Run(ctx context.Context) error {
	target := fmt.Sprintf("%s <-> %s", d.cfg.RemotePath, d.cfg.LocalPath)
	if err := d.instLock.Acquire(target); err != nil {
		var lockErr *lock.LockError
		if errors.As(err, &lockErr) {
			return fmt.Errorf("another instance is syncing this pair: %w", err)
		}
		return err
	}
	defer d.instLock.Release()

	pidPath, err := daemon.DefaultPIDPath()
	if err == nil {
		d.pidFile = daemon.NewPIDFile(pidPath)
		if err := d.pidFile.Write(); err != nil {
			logger.Get().Warn("failed to write PID file", "error", err)
			d.pidFile = nil
		} else {
			defer d.pidFile.Remove()
		}
	}

	logger.Get().Info("starting",
		"remote", d.cfg.RemotePath,
		"local", d.cfg.LocalPath,
		"poll_interval", d.cfg.PollInterval,
		"batch_cooldown", d.cfg.BatchCooldown,
		"modify_window", d.cfg.ModifyWindow,
	)

	// Initial consistency before any change signal is processed
	if err := d.coord.CrossCopy(ctx, d.cfg.RemotePath, d.cfg.LocalPath); err != nil {
		return fmt.Errorf("startup cross-copy: %w", err)
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error { return d.watch.Run(ctx) })
	group.Go(func() error { return d.poll.Run(ctx) })
	group.Go(func() error { return d.coord.Run(ctx, d.cfg.RemotePath, d.cfg.LocalPath) })

	err = group.Wait()
	if errors.Is(err, context.Canceled) {
		logger.Get().Info("shutting down")
		return nil
	}
	return err
}

// Status returns a snapshot of all activity statistics
func (d *Daemon) Status() (*Status, error) {
	history, err := d.stateMgr.GetHistory(5)
	if err != nil {
		return nil, err
	}

	return &Status{
		Coordinator: d.coord.Status(),
		Poller:      d.poll.Status(),
		LastCycles:  history,
	}, nil
}

// Close releases the daemon's resources
func (d *Daemon) Close() error {
	return d.stateMgr.Close()
}
