package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"assetflow/internal/config"
	"assetflow/internal/logging"
)

// Daemon serves the API, runs the session sweep, and enforces single-instance execution.
type Daemon struct {
	cfg    *config.Config
	comps  *Components
	logger *slog.Logger
	api    *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	Address      string
	DatabasePath string
	LockFilePath string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, comps *Components, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || comps == nil {
		return nil, errors.New("daemon requires config and components")
	}
	logger = logging.NewComponentLogger(logger, "daemon")
	lockPath := filepath.Join(cfg.Paths.DataDir, "assetflow.lock")
	d := &Daemon{
		cfg:      cfg,
		comps:    comps,
		logger:   logger,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the instance lock, starts the HTTP listener, and launches the sweep loop.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another assetflow daemon is already using this data directory")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.api.start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return err
	}
	d.cancel = cancel

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.sweepLoop(runCtx)
	}()

	d.running.Store(true)
	d.logger.Info("assetflow daemon started",
		logging.String("lock", d.lockPath),
		logging.String("address", d.api.addr()),
	)
	return nil
}

// Stop stops the listener and sweep loop and releases the instance lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()
	d.wg.Wait()
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "lock_release_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove "+d.lockPath+" if no daemon is running"),
			logging.String(logging.FieldImpact, "the next start may report another instance"),
		)
	}
	d.running.Store(false)
	d.logger.Info("assetflow daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.comps.Store != nil {
		return d.comps.Store.Close()
	}
	return nil
}

// Handler returns the full HTTP handler, including middleware.
func (d *Daemon) Handler() http.Handler {
	return d.api.handler
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	return Status{
		Running:      d.running.Load(),
		Address:      d.api.addr(),
		DatabasePath: d.comps.Store.Path(),
		LockFilePath: d.lockPath,
	}
}

func (d *Daemon) sweepLoop(ctx context.Context) {
	interval := d.cfg.SweepInterval()
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	d.sweepOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.sweepOnce(ctx)
		}
	}
}

func (d *Daemon) sweepOnce(ctx context.Context) {
	n, err := d.comps.Uploads.SweepExpired(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		logging.WarnWithContext(d.logger, "session sweep failed", "sweep_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check database access"),
			logging.String(logging.FieldImpact, "expired sessions stay open until the next sweep"),
		)
		return
	}
	if n > 0 {
		d.logger.Debug("session sweep finished", logging.Int("aborted", n))
	}
}
