package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"genstudio/internal/api"
	"genstudio/internal/testsupport"
)

func TestHealthReportsService(t *testing.T) {
	env := setupCLITestEnv(t)
	env.server.Succeed(http.MethodGet, "/health", api.HealthStatus{Status: "ok", Service: "genstudio-api", Version: "1.4.0"})

	out, _, err := runCLI(t, []string{"health"}, env.configPath)
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	requireContains(t, out, "[OK] ok")
	requireContains(t, out, "genstudio-api")
	requireContains(t, out, env.server.URL())
}

func TestHealthFailsWhenServiceDown(t *testing.T) {
	env := setupCLITestEnv(t)
	env.server.Fail(http.MethodGet, "/health", http.StatusServiceUnavailable, "维护中", "")

	out, _, err := runCLI(t, []string{"health"}, env.configPath)
	if err == nil {
		t.Fatal("expected error")
	}
	requireContains(t, out, "[ERROR] 维护中")
	requireContains(t, out, "503")
}

func TestHealthHintsWhenServiceUnreachable(t *testing.T) {
	env := setupCLITestEnv(t)
	env.server.Close()

	out, _, err := runCLI(t, []string{"health"}, env.configPath)
	if err == nil {
		t.Fatal("expected error")
	}
	requireContains(t, out, "[ERROR]")
	requireContains(t, out, "service unreachable")
}

func TestGenerateTextSubmitsDefaults(t *testing.T) {
	env := setupCLITestEnv(t)
	env.server.Succeed(http.MethodPost, "/generate/text2img", []api.Generation{
		{ID: "g1", PromptText: "a red fox", Status: api.GenerationSucceeded, ImageURL: "/img/g1.png"},
		{ID: "g2", PromptText: "a red fox", Status: api.GenerationSucceeded, ImageURL: "/img/g2.png"},
	})

	out, _, err := runCLI(t, []string{"generate", "text", "-n", "2", "a", "red", "fox"}, env.configPath)
	if err != nil {
		t.Fatalf("generate text: %v", err)
	}
	requireContains(t, out, "g1")
	requireContains(t, out, "g2")
	requireContains(t, out, "Succeeded")

	var body api.Text2ImgRequest
	env.server.RequestsFor(http.MethodPost, "/generate/text2img")[0].Decode(t, &body)
	if body.Prompt != "a red fox" || body.Count != 2 {
		t.Fatalf("unexpected request %+v", body)
	}
	if body.Params.Size != env.cfg.Generation.Size || body.Params.Quality != env.cfg.Generation.Quality {
		t.Fatalf("expected config defaults, got %+v", body.Params)
	}
	if body.Params.Strength != 0 {
		t.Fatalf("text generation must not send strength, got %v", body.Params.Strength)
	}
}

func TestGenerateTextRequiresPrompt(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"generate", "text", "  "}, env.configPath)
	if err == nil || err.Error() != "请输入提示词" {
		t.Fatalf("expected prompt validation error, got %v", err)
	}
	if n := len(env.server.Requests()); n != 0 {
		t.Fatalf("expected no requests, got %d", n)
	}
}

func TestGenerateTextShowsServerMessage(t *testing.T) {
	env := setupCLITestEnv(t)
	env.server.Fail(http.MethodPost, "/generate/text2img", http.StatusInternalServerError, "生成服务不可用", "upstream timeout")

	_, _, err := runCLI(t, []string{"generate", "text", "a red fox"}, env.configPath)
	if err == nil || err.Error() != "生成服务不可用" {
		t.Fatalf("expected server message, got %v", err)
	}
	if got := env.server.Count(http.MethodPost, "/generate/text2img"); got != 1 {
		t.Fatalf("writes must not be retried, got %d requests", got)
	}
}

func TestGenerateImageSendsDataURL(t *testing.T) {
	env := setupCLITestEnv(t)
	env.server.Succeed(http.MethodPost, "/generate/img2img", []api.Generation{{ID: "g9", IsImg2Img: true}})
	source := testsupport.WriteSourceImage(t, t.TempDir(), "source.png")

	out, _, err := runCLI(t, []string{"generate", "image", "--source", source, "--strength", "0.5", "watercolor"}, env.configPath)
	if err != nil {
		t.Fatalf("generate image: %v", err)
	}
	requireContains(t, out, "g9")

	var body api.Img2ImgRequest
	env.server.RequestsFor(http.MethodPost, "/generate/img2img")[0].Decode(t, &body)
	if !strings.HasPrefix(body.SourceImage, "data:image/png;base64,") {
		t.Fatalf("expected png data url, got %.40q", body.SourceImage)
	}
	if body.Params.Strength != 0.5 {
		t.Fatalf("expected strength 0.5, got %v", body.Params.Strength)
	}
}

func TestGenerateImageRequiresSource(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"generate", "image", "watercolor"}, env.configPath)
	if err == nil || err.Error() != "请上传源图片" {
		t.Fatalf("expected source validation error, got %v", err)
	}
}

func TestPromptsListJSON(t *testing.T) {
	env := setupCLITestEnv(t)
	env.server.Succeed(http.MethodGet, "/prompts", testsupport.PageOf("prompts", []api.Prompt{
		{ID: "p1", Title: "Red fox", Content: "a red fox in snow", Category: "animals"},
	}, 1, 20, 1))

	out, _, err := runCLI(t, []string{"prompts", "list", "--keyword", "fox", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("prompts list: %v", err)
	}
	var block struct {
		List  []api.Prompt `json:"list"`
		Total int64        `json:"total"`
	}
	if err := json.Unmarshal([]byte(out), &block); err != nil {
		t.Fatalf("decode output %q: %v", out, err)
	}
	if block.Total != 1 || len(block.List) != 1 || block.List[0].ID != "p1" {
		t.Fatalf("unexpected block %+v", block)
	}
	if got := env.server.RequestsFor(http.MethodGet, "/prompts")[0].Query.Get("keyword"); got != "fox" {
		t.Fatalf("expected keyword filter, got %q", got)
	}
}

func TestPromptsListTable(t *testing.T) {
	env := setupCLITestEnv(t)
	env.server.Succeed(http.MethodGet, "/prompts", testsupport.PageOf("prompts", []api.Prompt{
		{ID: "p1", Title: "Red fox", Category: "animals", Tags: []string{"fox", "snow"}, IsFavorite: true},
	}, 2, 5, 6))

	out, _, err := runCLI(t, []string{"prompts", "list", "--page", "2", "--page-size", "5"}, env.configPath)
	if err != nil {
		t.Fatalf("prompts list: %v", err)
	}
	requireContains(t, out, "Red fox")
	requireContains(t, out, "Animals")
	requireContains(t, out, "fox, snow")
	requireContains(t, out, "Page 2 of 2 (1 shown, 6 total)")
}

func TestPromptsFavoriteToggles(t *testing.T) {
	env := setupCLITestEnv(t)
	env.server.Succeed(http.MethodGet, "/prompts/p1", api.Prompt{ID: "p1", Title: "Red fox", Content: "a red fox"})
	env.server.Handle(http.MethodPut, "/prompts/p1", func(req testsupport.RecordedRequest) testsupport.Reply {
		var in api.PromptInput
		if err := json.Unmarshal(req.Body, &in); err != nil {
			return testsupport.Failure(http.StatusBadRequest, "bad body", err.Error())
		}
		return testsupport.OK(api.Prompt{ID: "p1", Title: in.Title, Content: in.Content, IsFavorite: in.IsFavorite})
	})

	out, _, err := runCLI(t, []string{"prompts", "favorite", "p1"}, env.configPath)
	if err != nil {
		t.Fatalf("prompts favorite: %v", err)
	}
	requireContains(t, out, "favourite: yes")
}

func TestPromptsCreateRequiresContent(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"prompts", "create", "--title", "empty"}, env.configPath)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if n := len(env.server.Requests()); n != 0 {
		t.Fatalf("expected no requests, got %d", n)
	}
}

func TestPromptsDeleteFailureKeepsMessage(t *testing.T) {
	env := setupCLITestEnv(t)
	env.server.Fail(http.MethodDelete, "/prompts/p1", http.StatusForbidden, "", "")

	_, _, err := runCLI(t, []string{"prompts", "delete", "p1"}, env.configPath)
	if err == nil || err.Error() != "操作失败" {
		t.Fatalf("expected fallback message, got %v", err)
	}
}

func TestGenerationsListRejectsBadFilter(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"generations", "list", "--img2img", "maybe"}, env.configPath)
	if err == nil {
		t.Fatal("expected filter error")
	}
	requireContains(t, err.Error(), "is_img2img")
	if n := len(env.server.Requests()); n != 0 {
		t.Fatalf("expected no requests, got %d", n)
	}
}

func TestImagesListRetriesTransientFailure(t *testing.T) {
	env := setupCLITestEnv(t)
	env.server.Sequence(http.MethodGet, "/images",
		testsupport.Failure(http.StatusServiceUnavailable, "busy", ""),
		testsupport.OK(testsupport.PageOf("images", []api.Image{{ID: "i1", Filename: "fox.png", FileSize: 2048}}, 1, 20, 1)),
	)

	out, _, err := runCLI(t, []string{"images", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("images list: %v", err)
	}
	requireContains(t, out, "fox.png")
	requireContains(t, out, "2.0 kB")
	if got := env.server.Count(http.MethodGet, "/images"); got != 2 {
		t.Fatalf("expected 2 attempts, got %d", got)
	}
}

func TestImagesDownloadWritesFile(t *testing.T) {
	env := setupCLITestEnv(t)
	env.server.Succeed(http.MethodGet, "/images/i1", api.Image{ID: "i1", Filename: "fox.png"})
	env.server.Handle(http.MethodGet, "/images/i1/download", func(testsupport.RecordedRequest) testsupport.Reply {
		return testsupport.Reply{Status: http.StatusOK, Raw: testsupport.PNGBytes(), ContentType: "image/png"}
	})

	out, _, err := runCLI(t, []string{"images", "download", "i1"}, env.configPath)
	if err != nil {
		t.Fatalf("images download: %v", err)
	}
	target := filepath.Join(env.cfg.Paths.DownloadDir, "fox.png")
	requireContains(t, out, target)
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read download: %v", err)
	}
	if !bytes.Equal(data, testsupport.PNGBytes()) {
		t.Fatalf("downloaded bytes differ")
	}
	leftovers, _ := filepath.Glob(filepath.Join(env.cfg.Paths.DownloadDir, ".download-*"))
	if len(leftovers) != 0 {
		t.Fatalf("temporary files left behind: %v", leftovers)
	}
}

func TestImagesDownloadKeepsServerNameInsideDownloadDir(t *testing.T) {
	env := setupCLITestEnv(t)
	env.server.Succeed(http.MethodGet, "/images/i2", api.Image{ID: "i2", Filename: "../../escape"})
	env.server.Handle(http.MethodGet, "/images/i2/download", func(testsupport.RecordedRequest) testsupport.Reply {
		return testsupport.Reply{Status: http.StatusOK, Raw: testsupport.PNGBytes(), ContentType: "image/png"}
	})

	if _, _, err := runCLI(t, []string{"images", "download", "i2"}, env.configPath); err != nil {
		t.Fatalf("images download: %v", err)
	}
	if _, err := os.Stat(filepath.Join(env.cfg.Paths.DownloadDir, "escape.png")); err != nil {
		t.Fatalf("expected sanitized file in download dir: %v", err)
	}
}

func TestBatchCreateRecordsHistory(t *testing.T) {
	env := setupCLITestEnv(t)
	env.server.Succeed(http.MethodPost, "/batch", api.BatchJob{ID: "b1", Name: "foxes", Status: "pending", TotalImages: 4})

	out, _, err := runCLI(t, []string{"batch", "create", "--name", "foxes", "-p", "red fox", "-p", "arctic fox", "-n", "2"}, env.configPath)
	if err != nil {
		t.Fatalf("batch create: %v", err)
	}
	requireContains(t, out, "Created batch job b1 (4 images)")

	var body api.CreateBatchRequest
	env.server.RequestsFor(http.MethodPost, "/batch")[0].Decode(t, &body)
	if body.Name != "foxes" || len(body.Prompts) != 2 || body.Prompts[1].PromptText != "arctic fox" || body.Prompts[1].Count != 2 {
		t.Fatalf("unexpected request %+v", body)
	}

	out, _, err = runCLI(t, []string{"batch", "history"}, env.configPath)
	if err != nil {
		t.Fatalf("batch history: %v", err)
	}
	requireContains(t, out, "b1")
	requireContains(t, out, "Queued")
}

func TestBatchCreateRejectsEmptyPrompts(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"batch", "create", "--name", "nothing"}, env.configPath)
	if err == nil || err.Error() != "提示词列表不能为空" {
		t.Fatalf("expected prompts validation error, got %v", err)
	}
}

func TestBatchWatchFollowsUntilDone(t *testing.T) {
	env := setupCLITestEnv(t)
	env.server.Succeed(http.MethodGet, "/batch/b1", api.BatchJob{ID: "b1", Name: "foxes", Status: api.BatchQueued, TotalImages: 2})
	env.server.Sequence(http.MethodGet, "/batch/b1/status",
		testsupport.OK(api.BatchJobStatus{JobID: "b1", Status: "processing", TotalImages: 2, CompletedImages: 1}),
		testsupport.OK(api.BatchJobStatus{JobID: "b1", Status: "completed", TotalImages: 2, CompletedImages: 2}),
	)

	out, _, err := runCLI(t, []string{"batch", "watch", "b1"}, env.configPath)
	if err != nil {
		t.Fatalf("batch watch: %v", err)
	}
	requireContains(t, out, "Running 1/2")
	requireContains(t, out, "finished: Completed")
	if got := env.server.Count(http.MethodGet, "/batch/b1/status"); got != 2 {
		t.Fatalf("expected 2 polls, got %d", got)
	}
}

func TestBatchWatchSendsNotification(t *testing.T) {
	var mu sync.Mutex
	var titles []string
	ntfy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		mu.Lock()
		titles = append(titles, r.Header.Get("Title"))
		mu.Unlock()
	}))
	t.Cleanup(ntfy.Close)

	env := setupCLITestEnv(t, testsupport.WithNtfyTopic(ntfy.URL+"/genstudio"))
	env.server.Succeed(http.MethodGet, "/batch/b1", api.BatchJob{ID: "b1", Name: "foxes", TotalImages: 2})
	env.server.Succeed(http.MethodGet, "/batch/b1/status", api.BatchJobStatus{JobID: "b1", Status: "failed", TotalImages: 2, FailedImages: 2})

	if _, _, err := runCLI(t, []string{"batch", "watch", "b1"}, env.configPath); err != nil {
		t.Fatalf("batch watch: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(titles) != 1 || titles[0] != "genstudio - Batch Failed" {
		t.Fatalf("unexpected notifications %v", titles)
	}
}

func TestTestNotifyWithoutTopic(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"test-notify"}, env.configPath)
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	requireContains(t, out, "Notifications disabled")
}

func TestBatchCancelFailureKeepsMessage(t *testing.T) {
	env := setupCLITestEnv(t)
	env.server.Fail(http.MethodDelete, "/batch/b1/cancel", http.StatusConflict, "任务已完成", "")

	_, _, err := runCLI(t, []string{"batch", "cancel", "b1"}, env.configPath)
	if err == nil || err.Error() != "任务已完成" {
		t.Fatalf("expected server message, got %v", err)
	}
}
