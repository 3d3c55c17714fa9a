package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"genstudio/internal/api"
	"genstudio/internal/config"
)

const (
	userAgent      = "genstudio"
	defaultTimeout = 10 * time.Second
)

// Service defines the notifications the CLI emits.
type Service interface {
	NotifyBatchFinished(ctx context.Context, job api.BatchJob) error
	TestNotification(ctx context.Context) error
}

// NewService builds an ntfy-backed notifier, or a no-op when no topic is set.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	timeout := cfg.NotifyTimeout()
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

// Enabled reports whether svc actually delivers messages.
func Enabled(svc Service) bool {
	_, noop := svc.(noopService)
	return svc != nil && !noop
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) NotifyBatchFinished(ctx context.Context, job api.BatchJob) error {
	return n.send(ctx, batchPayload(job))
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "genstudio - Test",
		message:  "🧪 Notification test",
		tags:     []string{"genstudio", "test"},
		priority: "low",
	})
}

func batchPayload(job api.BatchJob) payload {
	name := strings.TrimSpace(job.Name)
	if name == "" {
		name = job.ID
	}
	data := payload{tags: []string{"genstudio", "batch", string(job.Status)}}
	switch job.Status {
	case api.BatchCompleted:
		if job.FailedImages == 0 {
			data.title = "genstudio - Batch Complete"
			data.message = fmt.Sprintf("🖼️ %s: %d images generated", name, job.CompletedImages)
		} else {
			data.title = "genstudio - Batch Complete (with errors)"
			data.message = fmt.Sprintf("🖼️ %s: %d generated, %d failed", name, job.CompletedImages, job.FailedImages)
		}
	case api.BatchFailed:
		data.title = "genstudio - Batch Failed"
		data.message = fmt.Sprintf("❌ %s failed after %d of %d images", name, job.Settled(), job.TotalImages)
		data.priority = "high"
	case api.BatchCancelled:
		data.title = "genstudio - Batch Cancelled"
		data.message = fmt.Sprintf("⏹️ %s cancelled at %d of %d images", name, job.Settled(), job.TotalImages)
		data.priority = "low"
	default:
		data.title = "genstudio - Batch Update"
		data.message = fmt.Sprintf("%s is %s: %d of %d images", name, job.Status, job.Settled(), job.TotalImages)
	}
	return data
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyBatchFinished(context.Context, api.BatchJob) error { return nil }
func (noopService) TestNotification(context.Context) error                  { return nil }
