package batch

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"genstudio/internal/api"
	"genstudio/internal/jobstore"
	"genstudio/internal/logging"
	"genstudio/internal/orchestrator"
	"genstudio/internal/state"
)

// User-facing messages.
const (
	MsgPromptsRequired   = "提示词列表不能为空"
	MsgPromptTextMissing = "提示词不能为空"
	MsgStatusFailed      = "获取任务状态失败"
)

// localIDPrefix marks placeholder jobs that the service has not confirmed yet.
const localIDPrefix = "local-"

// Service is the slice of the transport client the tracker drives.
type Service interface {
	CreateBatch(ctx context.Context, req api.CreateBatchRequest) (api.BatchJob, error)
	GetBatch(ctx context.Context, id string) (api.BatchJob, error)
	BatchStatus(ctx context.Context, id string) (api.BatchJobStatus, error)
	CancelBatch(ctx context.Context, id string) error
	DeleteBatch(ctx context.Context, id string) error
}

// Journal records authoritative job states outside the process.
type Journal interface {
	Record(ctx context.Context, entry jobstore.Entry) error
	Remove(ctx context.Context, id string) error
}

// Tracker owns batch job lifecycle transitions in the state store.
type Tracker struct {
	service Service
	store   *state.Store
	journal Journal
	logger  *slog.Logger
	now     func() time.Time
}

// Option customizes the tracker.
type Option func(*Tracker)

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) {
		if logger != nil {
			t.logger = logging.NewComponentLogger(logger, "batch")
		}
	}
}

// WithJournal persists every authoritative job state to j.
func WithJournal(j Journal) Option {
	return func(t *Tracker) {
		t.journal = j
	}
}

// WithClock overrides the time source used for local timestamps.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

// NewTracker constructs a tracker over service and store.
func NewTracker(service Service, store *state.Store, opts ...Option) *Tracker {
	t := &Tracker{
		service: service,
		store:   store,
		logger:  logging.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// IsLocalID reports whether id names an unconfirmed placeholder job.
func IsLocalID(id string) bool {
	return strings.HasPrefix(id, localIDPrefix)
}

// Create submits a batch job. A queued placeholder with zeroed progress is
// inserted before the request and replaced by the service's job on success,
// or removed on failure.
func (t *Tracker) Create(ctx context.Context, name string, items []api.BatchPromptItem) (api.BatchJob, error) {
	prompts, total, field, msg := normalizeItems(items)
	if msg != "" {
		return api.BatchJob{}, orchestrator.Reject(ctx, t.store, t.logger, "create_batch", field, msg)
	}
	name = strings.TrimSpace(name)

	placeholder := api.BatchJob{
		ID:          localIDPrefix + uuid.NewString(),
		Name:        name,
		Prompts:     prompts,
		TotalImages: total,
		Status:      api.BatchQueued,
		CreatedAt:   t.now().UTC(),
	}

	var created api.BatchJob
	err := orchestrator.Bracket(ctx, t.store, t.logger, "create_batch", orchestrator.MsgOperationFailed, func(ctx context.Context) error {
		t.store.AddBatchJob(placeholder)
		job, err := t.service.CreateBatch(ctx, api.CreateBatchRequest{Name: name, Prompts: prompts})
		if err != nil {
			t.store.RemoveBatchJob(placeholder.ID)
			return err
		}
		if job.Status == "" {
			job.Status = api.BatchQueued
		}
		job.ClampProgress()
		if !t.store.ReplaceBatchJob(placeholder.ID, job) {
			t.store.AddBatchJob(job)
		}
		created, _ = t.store.BatchJob(job.ID)
		t.record(ctx, created, "")
		logging.WithContext(ctx, t.logger).Info("batch job created",
			logging.String(logging.FieldJobID, created.ID),
			logging.Int("prompts", len(prompts)),
			logging.Int("total_images", created.TotalImages),
		)
		return nil
	})
	if err != nil {
		return api.BatchJob{}, err
	}
	return created, nil
}

// Poll fetches the job's status summary and overwrites its status and
// counts. Counts are clamped so settled images never exceed the total, and a
// job that reached a terminal status never moves back to queued or running.
// Polls are background reads: they do not raise the global loading flag,
// but failures still surface in the global error.
func (t *Tracker) Poll(ctx context.Context, id string) (api.BatchJob, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if IsLocalID(id) {
		job, _ := t.store.BatchJob(id)
		return job, nil
	}
	ctx, _ = logging.EnsureRequestID(logging.WithOperation(ctx, "poll_batch"))

	summary, err := t.service.BatchStatus(ctx, id)
	if err != nil {
		return api.BatchJob{}, t.fail(ctx, id, err, MsgStatusFailed)
	}

	now := t.now().UTC()
	job, ok := t.store.MutateBatchJob(id, func(j *api.BatchJob) {
		applySummary(j, summary, now)
	})
	if !ok {
		full, err := t.service.GetBatch(ctx, id)
		if err != nil {
			return api.BatchJob{}, t.fail(ctx, id, err, MsgStatusFailed)
		}
		applySummary(&full, summary, now)
		full.ClampProgress()
		t.store.AddBatchJob(full)
		job = full
	}

	t.record(ctx, job, summary.Message)
	logging.WithContext(ctx, t.logger).Debug("batch job polled",
		logging.String(logging.FieldJobID, id),
		logging.String("status", string(job.Status)),
		logging.Int("completed_images", job.CompletedImages),
		logging.Int("failed_images", job.FailedImages),
		logging.Int("total_images", job.TotalImages),
	)
	return job, nil
}

// Refresh replaces the tracked job with the service's full record, keeping
// the terminal-status rule applied by Poll.
func (t *Tracker) Refresh(ctx context.Context, id string) (api.BatchJob, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, _ = logging.EnsureRequestID(logging.WithOperation(ctx, "refresh_batch"))

	full, err := t.service.GetBatch(ctx, id)
	if err != nil {
		return api.BatchJob{}, t.fail(ctx, id, err, MsgStatusFailed)
	}
	if current, ok := t.store.BatchJob(id); ok && current.Status.IsTerminal() && !full.Status.IsTerminal() {
		full.Status = current.Status
		full.CompletedAt = current.CompletedAt
	}
	full.ClampProgress()
	if !t.store.UpdateBatchJob(full) {
		t.store.AddBatchJob(full)
	}
	job, _ := t.store.BatchJob(id)
	t.record(ctx, job, "")
	return job, nil
}

// Cancel asks the service to cancel the job and marks it cancelled only once
// the service confirms. A poll already in flight may still apply an older
// status afterwards; poll again to settle.
func (t *Tracker) Cancel(ctx context.Context, id string) error {
	return orchestrator.Bracket(ctx, t.store, t.logger, "cancel_batch", orchestrator.MsgOperationFailed, func(ctx context.Context) error {
		if err := t.service.CancelBatch(ctx, id); err != nil {
			return err
		}
		now := t.now().UTC()
		job, ok := t.store.MutateBatchJob(id, func(j *api.BatchJob) {
			if j.Status.IsTerminal() {
				return
			}
			j.Status = api.BatchCancelled
			if j.CompletedAt == nil {
				j.CompletedAt = &now
			}
		})
		if !ok {
			job = api.BatchJob{ID: id, Status: api.BatchCancelled, CompletedAt: &now}
		}
		t.record(ctx, job, "")
		logging.WithContext(ctx, t.logger).Info("batch job cancelled",
			logging.String(logging.FieldJobID, id),
			logging.String("status", string(job.Status)),
		)
		return nil
	})
}

// Remove deletes the job remotely and then locally.
func (t *Tracker) Remove(ctx context.Context, id string) error {
	return orchestrator.Bracket(ctx, t.store, t.logger, "delete_batch", orchestrator.MsgOperationFailed, func(ctx context.Context) error {
		if err := t.service.DeleteBatch(ctx, id); err != nil {
			return err
		}
		t.store.RemoveBatchJob(id)
		if t.journal != nil {
			if err := t.journal.Remove(ctx, id); err != nil {
				logging.WarnWithContext(logging.WithContext(ctx, t.logger), "journal remove failed", "journal_write_failed",
					logging.String(logging.FieldJobID, id),
					logging.Error(err),
					logging.String(logging.FieldImpact, "batch history keeps a stale entry"),
				)
			}
		}
		return nil
	})
}

// Job returns the tracked job, if any.
func (t *Tracker) Job(id string) (api.BatchJob, bool) {
	return t.store.BatchJob(id)
}

func (t *Tracker) fail(ctx context.Context, id string, err error, fallback string) error {
	message := orchestrator.UserMessage(err, fallback)
	t.store.SetError(message)
	logging.WarnWithContext(logging.WithContext(ctx, t.logger), "batch status request failed", "batch_status_failed",
		logging.String(logging.FieldJobID, id),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, message),
	)
	return err
}

func (t *Tracker) record(ctx context.Context, job api.BatchJob, message string) {
	if t.journal == nil || job.ID == "" || IsLocalID(job.ID) {
		return
	}
	if err := t.journal.Record(ctx, jobstore.EntryFromJob(job, message)); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, t.logger), "journal write failed", "journal_write_failed",
			logging.String(logging.FieldJobID, job.ID),
			logging.Error(err),
			logging.String(logging.FieldImpact, "batch history may be stale"),
		)
	}
}

// applySummary overwrites status and counts from an authoritative summary.
func applySummary(j *api.BatchJob, s api.BatchJobStatus, now time.Time) {
	if s.TotalImages > 0 {
		j.TotalImages = s.TotalImages
	}
	j.CompletedImages = s.CompletedImages
	j.FailedImages = s.FailedImages

	next := s.Status
	if next != "" && !(j.Status.IsTerminal() && !next.IsTerminal()) {
		j.Status = next
	}

	stamp := now
	if !s.UpdatedAt.IsZero() {
		stamp = s.UpdatedAt.UTC()
	}
	if j.Status == api.BatchRunning && j.StartedAt == nil {
		j.StartedAt = &stamp
	}
	if j.Status.IsTerminal() && j.CompletedAt == nil {
		j.CompletedAt = &stamp
	}
}

// normalizeItems trims prompt text, defaults non-positive counts to one and
// zeroes per-item progress. It reports the first validation failure.
func normalizeItems(items []api.BatchPromptItem) ([]api.BatchPromptItem, int, string, string) {
	if len(items) == 0 {
		return nil, 0, "prompts", MsgPromptsRequired
	}
	out := make([]api.BatchPromptItem, 0, len(items))
	total := 0
	for _, item := range items {
		item.PromptText = strings.TrimSpace(item.PromptText)
		item.PromptID = strings.TrimSpace(item.PromptID)
		if item.PromptText == "" && item.PromptID == "" {
			return nil, 0, "prompts", MsgPromptTextMissing
		}
		if item.Count <= 0 {
			item.Count = 1
		}
		item.Completed = 0
		item.Failed = 0
		total += item.Count
		out = append(out, item)
	}
	return out, total, "", ""
}
