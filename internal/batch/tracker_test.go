package batch_test

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"genstudio/internal/api"
	"genstudio/internal/apiclient"
	"genstudio/internal/batch"
	"genstudio/internal/orchestrator"
	"genstudio/internal/state"
	"genstudio/internal/testsupport"
)

type harness struct {
	srv     *testsupport.APIServer
	store   *state.Store
	tracker *batch.Tracker
}

func newHarness(t *testing.T, opts ...batch.Option) harness {
	t.Helper()
	srv := testsupport.NewAPIServer(t)
	client, err := apiclient.New(apiclient.Config{BaseURL: srv.URL(), Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("apiclient.New: %v", err)
	}
	store := state.New(state.Settings{}, state.UI{}, 20)
	return harness{srv: srv, store: store, tracker: batch.NewTracker(client, store, opts...)}
}

func threeItems() []api.BatchPromptItem {
	return []api.BatchPromptItem{
		{PromptText: "fox", Count: 4},
		{PromptText: "owl", Count: 3},
		{PromptText: "bear", Count: 3},
	}
}

func statusReply(status string, total, completed, failed int) testsupport.Reply {
	return testsupport.OK(map[string]any{
		"job_id":           "b1",
		"status":           status,
		"total_images":     total,
		"completed_images": completed,
		"failed_images":    failed,
	})
}

func TestCreateAndPollThroughCompletion(t *testing.T) {
	h := newHarness(t)
	h.srv.Handle(http.MethodPost, "/batch", func(req testsupport.RecordedRequest) testsupport.Reply {
		var body api.CreateBatchRequest
		req.Decode(t, &body)
		return testsupport.OK(map[string]any{
			"id":           "b1",
			"name":         body.Name,
			"prompts":      body.Prompts,
			"total_images": 10,
			"status":       "pending",
		})
	})
	h.srv.Sequence(http.MethodGet, "/batch/b1/status",
		statusReply("processing", 10, 6, 1),
		statusReply("completed", 10, 9, 1),
	)

	job, err := h.tracker.Create(context.Background(), "animals", threeItems())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if job.ID != "b1" || job.Status != api.BatchQueued || job.TotalImages != 10 {
		t.Fatalf("unexpected created job %+v", job)
	}
	snap := h.store.Snapshot()
	if snap.BatchJobs.Total != 1 || len(snap.BatchJobs.List) != 1 || snap.BatchJobs.List[0].ID != "b1" {
		t.Fatalf("placeholder not replaced: %+v", snap.BatchJobs)
	}

	job, err = h.tracker.Poll(context.Background(), "b1")
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if job.Status != api.BatchRunning || job.CompletedImages != 6 || job.FailedImages != 1 {
		t.Fatalf("expected running 6/1, got %+v", job)
	}
	if job.StartedAt == nil {
		t.Fatal("expected started_at stamped")
	}

	job, err = h.tracker.Poll(context.Background(), "b1")
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if job.Status != api.BatchCompleted || job.Settled() != 10 {
		t.Fatalf("expected completed 9/1, got %+v", job)
	}
	if job.CompletedAt == nil {
		t.Fatal("expected completed_at stamped")
	}
}

func TestCreateValidation(t *testing.T) {
	h := newHarness(t)

	_, err := h.tracker.Create(context.Background(), "empty", nil)
	var verr *orchestrator.ValidationError
	if !errors.As(err, &verr) || verr.Message != batch.MsgPromptsRequired {
		t.Fatalf("expected empty list error, got %v", err)
	}
	_, err = h.tracker.Create(context.Background(), "blank", []api.BatchPromptItem{{PromptText: "  "}})
	if !errors.As(err, &verr) || verr.Message != batch.MsgPromptTextMissing {
		t.Fatalf("expected blank prompt error, got %v", err)
	}
	if len(h.srv.Requests()) != 0 {
		t.Fatal("validation must not reach the service")
	}
}

func TestCreateDefaultsCountAndZeroesProgress(t *testing.T) {
	h := newHarness(t)
	h.srv.Handle(http.MethodPost, "/batch", func(req testsupport.RecordedRequest) testsupport.Reply {
		var body api.CreateBatchRequest
		req.Decode(t, &body)
		if body.Prompts[0].Count != 1 || body.Prompts[0].Completed != 0 {
			t.Errorf("unexpected item %+v", body.Prompts[0])
		}
		return testsupport.OK(map[string]any{"id": "b2", "total_images": 1})
	})

	job, err := h.tracker.Create(context.Background(), "", []api.BatchPromptItem{{PromptText: "fox", Completed: 5}})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if job.Status != api.BatchQueued {
		t.Fatalf("expected queued default, got %q", job.Status)
	}
}

func TestCreateFailureRemovesPlaceholder(t *testing.T) {
	h := newHarness(t)
	h.store.SetBatchJobs([]api.BatchJob{{ID: "old", TotalImages: 1}}, 4, 1)
	h.srv.Fail(http.MethodPost, "/batch", http.StatusInternalServerError, "添加到队列失败", "queue down")

	if _, err := h.tracker.Create(context.Background(), "animals", threeItems()); err == nil {
		t.Fatal("expected error")
	}
	snap := h.store.Snapshot()
	if snap.BatchJobs.Total != 4 || len(snap.BatchJobs.List) != 1 {
		t.Fatalf("placeholder leaked: %+v", snap.BatchJobs)
	}
	if snap.Error != "添加到队列失败" || snap.Loading {
		t.Fatalf("unexpected status error=%q loading=%v", snap.Error, snap.Loading)
	}
}

func TestPollClampsOverreportedCounts(t *testing.T) {
	h := newHarness(t)
	h.store.SetBatchJobs([]api.BatchJob{{ID: "b1", TotalImages: 10, Status: api.BatchRunning}}, 1, 1)
	h.srv.Sequence(http.MethodGet, "/batch/b1/status", statusReply("running", 10, 9, 4))

	job, err := h.tracker.Poll(context.Background(), "b1")
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if job.Settled() > job.TotalImages {
		t.Fatalf("counts exceed total: %+v", job)
	}
	if job.CompletedImages != 9 || job.FailedImages != 1 {
		t.Fatalf("expected 9/1 after clamp, got %+v", job)
	}
}

func TestCancelIsOneWay(t *testing.T) {
	h := newHarness(t)
	h.store.SetBatchJobs([]api.BatchJob{{ID: "b1", TotalImages: 10, Status: api.BatchRunning}}, 1, 1)
	h.srv.Succeed(http.MethodDelete, "/batch/b1/cancel", nil)
	h.srv.Sequence(http.MethodGet, "/batch/b1/status", statusReply("processing", 10, 7, 0))

	if err := h.tracker.Cancel(context.Background(), "b1"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	job, _ := h.tracker.Job("b1")
	if job.Status != api.BatchCancelled {
		t.Fatalf("expected cancelled, got %q", job.Status)
	}

	job, err := h.tracker.Poll(context.Background(), "b1")
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if job.Status != api.BatchCancelled {
		t.Fatalf("stale poll moved job back to %q", job.Status)
	}
	if job.CompletedImages != 7 {
		t.Fatalf("counts should still update, got %+v", job)
	}
}

func TestCancelFailureKeepsStatus(t *testing.T) {
	h := newHarness(t)
	h.store.SetBatchJobs([]api.BatchJob{{ID: "b1", TotalImages: 10, Status: api.BatchRunning}}, 1, 1)
	h.srv.Fail(http.MethodDelete, "/batch/b1/cancel", http.StatusConflict, "任务已完成", "")

	if err := h.tracker.Cancel(context.Background(), "b1"); err == nil {
		t.Fatal("expected error")
	}
	job, _ := h.tracker.Job("b1")
	if job.Status != api.BatchRunning {
		t.Fatalf("status changed without confirmation: %q", job.Status)
	}
	if got := h.store.Snapshot().Error; got != "任务已完成" {
		t.Fatalf("unexpected error %q", got)
	}
}

func TestPollUntrackedJobFetchesFullRecord(t *testing.T) {
	h := newHarness(t)
	h.srv.Succeed(http.MethodGet, "/batch/b1", map[string]any{"id": "b1", "name": "animals", "total_images": 10, "status": "pending"})
	h.srv.Sequence(http.MethodGet, "/batch/b1/status", statusReply("processing", 10, 2, 0))

	job, err := h.tracker.Poll(context.Background(), "b1")
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if job.Name != "animals" || job.Status != api.BatchRunning {
		t.Fatalf("unexpected job %+v", job)
	}
	if _, ok := h.tracker.Job("b1"); !ok {
		t.Fatal("job should now be tracked")
	}
}

func TestRemoveDeletesLocallyAndFromJournal(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	journal := testsupport.MustOpenJournal(t, cfg)
	testsupport.RecordJob(t, journal, "b1", api.BatchCompleted, 1, 1, 0)

	h := newHarness(t, batch.WithJournal(journal))
	h.store.SetBatchJobs([]api.BatchJob{{ID: "b1", TotalImages: 1, CompletedImages: 1, Status: api.BatchCompleted}}, 1, 1)
	h.srv.Succeed(http.MethodDelete, "/batch/b1", nil)

	if err := h.tracker.Remove(context.Background(), "b1"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, ok := h.tracker.Job("b1"); ok {
		t.Fatal("job still tracked")
	}
	entry, err := journal.Get(context.Background(), "b1")
	if err != nil || entry != nil {
		t.Fatalf("journal entry should be gone, got %+v err=%v", entry, err)
	}
}

func TestPollWritesJournal(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	journal := testsupport.MustOpenJournal(t, cfg)
	h := newHarness(t, batch.WithJournal(journal))
	h.store.SetBatchJobs([]api.BatchJob{{ID: "b1", Name: "animals", TotalImages: 10}}, 1, 1)
	h.srv.Sequence(http.MethodGet, "/batch/b1/status", statusReply("processing", 10, 3, 1))

	if _, err := h.tracker.Poll(context.Background(), "b1"); err != nil {
		t.Fatalf("Poll: %v", err)
	}
	entry, err := journal.Get(context.Background(), "b1")
	if err != nil || entry == nil {
		t.Fatalf("expected journal entry, got %+v err=%v", entry, err)
	}
	if entry.Status != api.BatchRunning || entry.CompletedImages != 3 || entry.Name != "animals" {
		t.Fatalf("unexpected entry %+v", entry)
	}
}

func TestWatchStopsAtTerminalStatus(t *testing.T) {
	h := newHarness(t)
	h.store.SetBatchJobs([]api.BatchJob{{ID: "b1", TotalImages: 10, Status: api.BatchQueued}}, 1, 1)
	h.srv.Sequence(http.MethodGet, "/batch/b1/status",
		statusReply("pending", 10, 0, 0),
		statusReply("processing", 10, 6, 1),
		statusReply("completed", 10, 9, 1),
		statusReply("completed", 10, 9, 1),
	)

	var updates atomic.Int32
	watcher := batch.NewWatcher(h.tracker, batch.WatchConfig{
		Interval: time.Millisecond,
		LockPath: filepath.Join(t.TempDir(), "watch.lock"),
	}, nil)
	job, err := watcher.Watch(context.Background(), "b1", func(api.BatchJob) { updates.Add(1) })
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	if job.Status != api.BatchCompleted {
		t.Fatalf("expected completed, got %q", job.Status)
	}
	if got := h.srv.Count(http.MethodGet, "/batch/b1/status"); got != 3 {
		t.Fatalf("expected polling to stop after 3 requests, got %d", got)
	}
	if updates.Load() != 3 {
		t.Fatalf("expected 3 progress callbacks, got %d", updates.Load())
	}
}

func TestWatchRetriesTransientFailures(t *testing.T) {
	h := newHarness(t)
	h.store.SetBatchJobs([]api.BatchJob{{ID: "b1", TotalImages: 2, Status: api.BatchRunning}}, 1, 1)
	h.srv.Sequence(http.MethodGet, "/batch/b1/status",
		testsupport.Failure(http.StatusServiceUnavailable, "busy", ""),
		statusReply("completed", 2, 2, 0),
	)

	watcher := batch.NewWatcher(h.tracker, batch.WatchConfig{Interval: time.Millisecond}, nil)
	job, err := watcher.Watch(context.Background(), "b1", nil)
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	if job.Status != api.BatchCompleted {
		t.Fatalf("expected completed, got %q", job.Status)
	}
}

func TestWatchStopsOnPermanentFailure(t *testing.T) {
	h := newHarness(t)
	h.store.SetBatchJobs([]api.BatchJob{{ID: "b1", TotalImages: 2, Status: api.BatchRunning}}, 1, 1)
	h.srv.Fail(http.MethodGet, "/batch/b1/status", http.StatusNotFound, "任务不存在", "")

	watcher := batch.NewWatcher(h.tracker, batch.WatchConfig{Interval: time.Millisecond}, nil)
	if _, err := watcher.Watch(context.Background(), "b1", nil); err == nil {
		t.Fatal("expected error")
	}
	if got := h.srv.Count(http.MethodGet, "/batch/b1/status"); got != 1 {
		t.Fatalf("expected a single attempt, got %d", got)
	}
}

func TestWatchRefusesWhenLockHeld(t *testing.T) {
	h := newHarness(t)
	lockPath := filepath.Join(t.TempDir(), "watch.lock")
	other := flock.New(lockPath)
	ok, err := other.TryLock()
	if err != nil || !ok {
		t.Fatalf("TryLock: ok=%v err=%v", ok, err)
	}
	defer other.Unlock()

	watcher := batch.NewWatcher(h.tracker, batch.WatchConfig{Interval: time.Millisecond, LockPath: lockPath}, nil)
	if _, err := watcher.Watch(context.Background(), "b1", nil); !errors.Is(err, batch.ErrWatchBusy) {
		t.Fatalf("expected ErrWatchBusy, got %v", err)
	}
}

func TestWatchEndsOnTimeout(t *testing.T) {
	h := newHarness(t)
	h.store.SetBatchJobs([]api.BatchJob{{ID: "b1", TotalImages: 2, Status: api.BatchRunning}}, 1, 1)
	h.srv.Sequence(http.MethodGet, "/batch/b1/status", statusReply("processing", 2, 1, 0))

	watcher := batch.NewWatcher(h.tracker, batch.WatchConfig{Interval: 5 * time.Millisecond, Timeout: 30 * time.Millisecond}, nil)
	job, err := watcher.Watch(context.Background(), "b1", nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if job.Status != api.BatchRunning {
		t.Fatalf("expected last observed job, got %+v", job)
	}
}
