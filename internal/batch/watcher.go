package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofrs/flock"

	"genstudio/internal/api"
	"genstudio/internal/apiclient"
	"genstudio/internal/logging"
)

// ErrWatchBusy is returned when another process already owns batch polling.
var ErrWatchBusy = errors.New("another genstudio process is already watching batch jobs")

const (
	defaultPollInterval    = 3 * time.Second
	maxConsecutiveFailures = 5
)

// WatchConfig tunes a Watcher.
type WatchConfig struct {
	Interval time.Duration
	// Timeout bounds a single Watch call; zero waits until the job finishes.
	Timeout time.Duration
	// LockPath, when set, is held for the duration of Watch.
	LockPath string
}

// ProgressFunc receives the job after every successful poll.
type ProgressFunc func(job api.BatchJob)

// Watcher polls a tracked job on a timer until it reaches a terminal status.
type Watcher struct {
	tracker *Tracker
	cfg     WatchConfig
	logger  *slog.Logger
}

// NewWatcher constructs a watcher driving tracker.
func NewWatcher(tracker *Tracker, cfg WatchConfig, logger *slog.Logger) *Watcher {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultPollInterval
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Watcher{
		tracker: tracker,
		cfg:     cfg,
		logger:  logging.NewComponentLogger(logger, "batch-watch"),
	}
}

// Watch polls id until it is terminal, ctx ends, or the timeout elapses.
// Retryable transport failures are tolerated up to a small consecutive limit;
// any other failure stops the watch. A job cancelled through the tracker is
// observed locally and ends the watch without another request.
func (w *Watcher) Watch(ctx context.Context, id string, onProgress ProgressFunc) (api.BatchJob, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if w.cfg.LockPath != "" {
		lock := flock.New(w.cfg.LockPath)
		ok, err := lock.TryLock()
		if err != nil {
			return api.BatchJob{}, fmt.Errorf("acquire watch lock: %w", err)
		}
		if !ok {
			return api.BatchJob{}, ErrWatchBusy
		}
		defer func() {
			if err := lock.Unlock(); err != nil {
				w.logger.Warn("failed to release watch lock",
					logging.String("lock", w.cfg.LockPath),
					logging.Error(err),
				)
			}
		}()
	}
	if w.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.cfg.Timeout)
		defer cancel()
	}

	logger := w.logger.With(logging.String(logging.FieldJobID, id))
	logger.Info("watching batch job", logging.Duration("interval", w.cfg.Interval))

	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	var (
		last     api.BatchJob
		failures int
	)
	for {
		if job, ok := w.tracker.Job(id); ok && job.Status.IsTerminal() {
			return job, nil
		}

		job, err := w.tracker.Poll(ctx, id)
		switch {
		case err == nil:
			failures = 0
			last = job
			if onProgress != nil {
				onProgress(job)
			}
			if job.Status.IsTerminal() {
				logger.Info("batch job finished",
					logging.String("status", string(job.Status)),
					logging.Int("completed_images", job.CompletedImages),
					logging.Int("failed_images", job.FailedImages),
				)
				return job, nil
			}
		case ctx.Err() != nil:
			return last, ctx.Err()
		case apiclient.IsRetryable(err) && failures+1 < maxConsecutiveFailures:
			failures++
			logging.WarnWithContext(logger, "batch poll failed; will retry", "batch_poll_retry",
				logging.Error(err),
				logging.Int("attempt", failures),
				logging.String(logging.FieldImpact, "progress display may lag"),
			)
		default:
			return last, err
		}

		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-ticker.C:
		}
	}
}
