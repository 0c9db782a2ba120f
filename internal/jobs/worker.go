package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmgilman/go/errors"
	"github.com/jonboulle/clockwork"
)

// DefaultStartDelay is the pause a worker takes before touching the log
// directory, giving the log writer time to finish its current rotation.
const DefaultStartDelay = 15 * time.Second

// Worker builds one merged artifact per job and records the outcome.
type Worker struct {
	dir   *LogDir
	store *Store
	clock clockwork.Clock
	delay time.Duration
}

// NewWorker creates a worker writing into dir and reporting to store.
// A zero delay skips the start pause.
func NewWorker(dir *LogDir, store *Store, clock clockwork.Clock, delay time.Duration) *Worker {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Worker{dir: dir, store: store, clock: clock, delay: delay}
}

// Run executes job id for date. It always leaves the job terminal: panics,
// cancellation during the start pause, and every I/O failure end in FAILED.
func (w *Worker) Run(ctx context.Context, logger *slog.Logger, id uuid.UUID, date string) {
	start := w.clock.Now()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic in artifact job", "panic", r)
			w.store.Fail(id, fmt.Sprintf("internal error: %v", r))
		}
	}()

	if w.delay > 0 {
		select {
		case <-w.clock.After(w.delay):
		case <-ctx.Done():
			logger.Warn("artifact job interrupted before start")
			w.store.Fail(id, "interrupted")
			return
		}
	}

	if ctx.Err() != nil {
		logger.Warn("artifact job interrupted before start")
		w.store.Fail(id, "interrupted")
		return
	}

	artifact, err := w.build(id, date)
	if err != nil {
		msg := failureMessage(err)
		logger.Error("artifact job failed", "error", err, "code", errors.GetCode(err))
		w.store.Fail(id, msg)
		return
	}

	w.store.Complete(id, artifact)
	logger.Info("artifact job completed",
		"artifact", artifact,
		"duration_ms", w.clock.Since(start).Milliseconds(),
	)
}

func (w *Worker) build(id uuid.UUID, date string) (string, error) {
	sources, err := w.dir.Sources(date)
	if err != nil {
		return "", err
	}

	artifact := w.dir.ArtifactPath(date, id)
	if err := w.dir.WriteArtifact(artifact, sources); err != nil {
		return "", err
	}
	return artifact, nil
}

// failureMessage renders err for a job record: the coded message without
// the "[CODE]" prefix, followed by the underlying cause if there is one.
func failureMessage(err error) string {
	var perr errors.PlatformError
	if !errors.As(err, &perr) {
		return err.Error()
	}
	if cause := perr.Unwrap(); cause != nil {
		return perr.Message() + ": " + cause.Error()
	}
	return perr.Message()
}
