package jobs

// monitor.go reports the size of the job registry in the background.
//
// The registry keeps every job for the life of the process, so the monitor
// logs per-status counts and pool load on a fixed interval and warns once the
// registry passes a configured size. It never evicts anything.

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
)

// MonitorConfig holds configuration for the registry monitor.
type MonitorConfig struct {
	Interval time.Duration // How often to report (default: 1h)
	WarnSize int           // Registry size that triggers a warning (0 disables)
	Logger   *slog.Logger  // Defaults to slog.Default()
}

// StartMonitor reports immediately, then every cfg.Interval, until ctx is
// cancelled. It blocks; run it in its own goroutine.
func StartMonitor(ctx context.Context, clock clockwork.Clock, store *Store, pool *Pool, cfg MonitorConfig) {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("job monitor started", "interval", cfg.Interval.String(), "warn_size", cfg.WarnSize)

	report(logger, store, pool, cfg.WarnSize)

	ticker := clock.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("job monitor stopped")
			return
		case <-ticker.Chan():
			report(logger, store, pool, cfg.WarnSize)
		}
	}
}

func report(logger *slog.Logger, store *Store, pool *Pool, warnSize int) {
	counts := store.Counts()
	size := store.Len()
	ps := pool.Status()

	logger.Info("job registry",
		"size", size,
		"in_progress", counts[StatusInProgress],
		"completed", counts[StatusCompleted],
		"failed", counts[StatusFailed],
		"pool_workers", ps.Workers,
		"pool_active", ps.Active,
		"pool_queued", ps.Queued,
	)

	if warnSize > 0 && size > warnSize {
		logger.Warn("job registry exceeds warning size; entries are never evicted",
			"size", size,
			"warn_size", warnSize,
		)
	}
}
