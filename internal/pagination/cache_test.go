package pagination_test

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"sync"
	"testing"
	"time"

	"genstudio/internal/api"
	"genstudio/internal/apiclient"
	"genstudio/internal/pagination"
	"genstudio/internal/state"
	"genstudio/internal/testsupport"
)

func newCache(t *testing.T, srv *testsupport.APIServer) (*pagination.Cache, *state.Store) {
	t.Helper()
	client, err := apiclient.New(apiclient.Config{BaseURL: srv.URL(), Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("apiclient.New: %v", err)
	}
	store := state.New(state.Settings{}, state.UI{}, 20)
	cache := pagination.New(client, store, pagination.WithRetry(3, 0, time.Millisecond))
	return cache, store
}

func generationsPage(ids ...string) map[string]any {
	items := make([]api.Generation, len(ids))
	for i, id := range ids {
		items[i] = api.Generation{ID: id, PromptText: "p-" + id}
	}
	return testsupport.PageOf("generations", items, 2, 5, 12)
}

func TestRefreshReplacesBlockAndIsIdempotent(t *testing.T) {
	srv := testsupport.NewAPIServer(t)
	srv.Succeed(http.MethodGet, "/generations", generationsPage("g1", "g2"))
	cache, store := newCache(t, srv)
	store.AddGeneration(api.Generation{ID: "local"})

	if err := cache.Refresh(context.Background(), state.KindGenerations, nil, 2, 5); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	first := store.Snapshot().Generations
	if first.Total != 12 || first.CurrentPage != 2 || first.PageSize != 5 {
		t.Fatalf("unexpected block %+v", first)
	}
	if len(first.List) != 2 || first.List[0].ID != "g1" {
		t.Fatalf("local entry should be replaced, got %+v", first.List)
	}

	if err := cache.Refresh(context.Background(), state.KindGenerations, nil, 2, 5); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	second := store.Snapshot().Generations
	if !reflect.DeepEqual(first.List, second.List) || first.Total != second.Total {
		t.Fatalf("refresh not idempotent: %+v vs %+v", first, second)
	}

	req := srv.RequestsFor(http.MethodGet, "/generations")[0]
	if req.Query.Get("page") != "2" || req.Query.Get("page_size") != "5" {
		t.Fatalf("unexpected query %v", req.Query)
	}
}

func TestRefreshReconcilesLocalDrift(t *testing.T) {
	srv := testsupport.NewAPIServer(t)
	srv.Succeed(http.MethodGet, "/generations", generationsPage("g1"))
	cache, store := newCache(t, srv)
	store.SetGenerations([]api.Generation{{ID: "g1"}}, 12, 2)
	store.RemoveGeneration("g1")
	store.RemoveGeneration("g1")
	if got := store.Snapshot().Generations.Total; got != 11 {
		t.Fatalf("expected local total 11, got %d", got)
	}

	if err := cache.Refresh(context.Background(), state.KindGenerations, nil, 0, 0); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if got := store.Snapshot().Generations.Total; got != 12 {
		t.Fatalf("expected server total 12, got %d", got)
	}
}

func TestRefreshRetriesTransientFailures(t *testing.T) {
	srv := testsupport.NewAPIServer(t)
	srv.Sequence(http.MethodGet, "/generations",
		testsupport.Failure(http.StatusServiceUnavailable, "busy", ""),
		testsupport.Reply{Status: http.StatusBadGateway, Raw: []byte("<html/>"), ContentType: "text/html"},
		testsupport.OK(generationsPage("g1")),
	)
	cache, store := newCache(t, srv)

	if err := cache.Refresh(context.Background(), state.KindGenerations, nil, 1, 5); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if got := srv.Count(http.MethodGet, "/generations"); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
	if snap := store.Snapshot(); snap.Error != "" || len(snap.Generations.List) != 1 {
		t.Fatalf("unexpected state error=%q list=%+v", snap.Error, snap.Generations.List)
	}
}

func TestRefreshGivesUpAfterBudget(t *testing.T) {
	srv := testsupport.NewAPIServer(t)
	srv.Fail(http.MethodGet, "/images", http.StatusInternalServerError, "", "")
	cache, store := newCache(t, srv)

	if err := cache.Refresh(context.Background(), state.KindImages, nil, 1, 5); err == nil {
		t.Fatal("expected error")
	}
	if got := srv.Count(http.MethodGet, "/images"); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
	if got := store.Snapshot().Error; got != pagination.MsgLoadFailed {
		t.Fatalf("unexpected error %q", got)
	}
}

func TestRefreshDoesNotRetryClientErrors(t *testing.T) {
	srv := testsupport.NewAPIServer(t)
	srv.Fail(http.MethodGet, "/prompts", http.StatusBadRequest, "参数错误", "bad page")
	cache, store := newCache(t, srv)

	if err := cache.Refresh(context.Background(), state.KindPrompts, nil, 1, 5); err == nil {
		t.Fatal("expected error")
	}
	if got := srv.Count(http.MethodGet, "/prompts"); got != 1 {
		t.Fatalf("expected a single attempt, got %d", got)
	}
	if got := store.Snapshot().Error; got != "参数错误" {
		t.Fatalf("unexpected error %q", got)
	}
}

func TestRefreshTranslatesFilters(t *testing.T) {
	srv := testsupport.NewAPIServer(t)
	srv.Succeed(http.MethodGet, "/batch", testsupport.PageOf("jobs", []api.BatchJob{}, 1, 20, 0))
	srv.Succeed(http.MethodGet, "/generations", generationsPage())
	cache, _ := newCache(t, srv)

	err := cache.Refresh(context.Background(), state.KindBatchJobs, api.Filters{api.FilterStatus: "running"}, 1, 20)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if got := srv.RequestsFor(http.MethodGet, "/batch")[0].Query.Get("status"); got != "processing" {
		t.Fatalf("expected service spelling, got %q", got)
	}

	err = cache.Refresh(context.Background(), state.KindGenerations, api.Filters{
		api.FilterStatus:    "succeeded",
		api.FilterIsImg2Img: "yes",
		api.FilterDateFrom:  "2026-01-02",
	}, 1, 20)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	q := srv.RequestsFor(http.MethodGet, "/generations")[0].Query
	if q.Get("status") != "completed" || q.Get("is_img2img") != "true" || q.Get("date_from") != "2026-01-02" {
		t.Fatalf("unexpected query %v", q)
	}
	if got := cache.Filters(state.KindGenerations)[api.FilterStatus]; got != "completed" {
		t.Fatalf("filters not remembered: %q", got)
	}
}

func TestRefreshRejectsUnsupportedFilters(t *testing.T) {
	srv := testsupport.NewAPIServer(t)
	cache, _ := newCache(t, srv)

	tests := []struct {
		name    string
		kind    state.Kind
		filters api.Filters
	}{
		{"keyword on images", state.KindImages, api.Filters{api.FilterKeyword: "fox"}},
		{"bad date", state.KindGenerations, api.Filters{api.FilterDateTo: "yesterday"}},
		{"bad bool", state.KindGenerations, api.Filters{api.FilterIsImg2Img: "maybe"}},
		{"unknown kind", state.KindUI, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := cache.Refresh(context.Background(), tt.kind, tt.filters, 1, 5); err == nil {
				t.Fatal("expected error")
			}
		})
	}
	if n := len(srv.Requests()); n != 0 {
		t.Fatalf("expected no requests, got %d", n)
	}
}

func TestRefreshAllLoadsEveryKindAndTaxonomy(t *testing.T) {
	srv := testsupport.NewAPIServer(t)
	srv.Succeed(http.MethodGet, "/prompts", testsupport.PageOf("prompts", []api.Prompt{{ID: "p1"}}, 1, 20, 1))
	srv.Succeed(http.MethodGet, "/generations", testsupport.PageOf("generations", []api.Generation{{ID: "g1"}}, 1, 20, 1))
	srv.Succeed(http.MethodGet, "/batch", testsupport.PageOf("jobs", []api.BatchJob{{ID: "b1"}}, 1, 20, 1))
	srv.Succeed(http.MethodGet, "/images", testsupport.PageOf("images", []api.Image{{ID: "i1"}}, 1, 20, 1))
	srv.Succeed(http.MethodGet, "/prompts/categories", []string{"art", "photo"})
	srv.Succeed(http.MethodGet, "/prompts/tags", []string{"fox"})
	cache, store := newCache(t, srv)

	if err := cache.RefreshAll(context.Background()); err != nil {
		t.Fatalf("RefreshAll: %v", err)
	}
	snap := store.Snapshot()
	if len(snap.Prompts.List) != 1 || len(snap.Generations.List) != 1 || len(snap.BatchJobs.List) != 1 || len(snap.Images.List) != 1 {
		t.Fatalf("not every kind loaded: %+v", snap)
	}
	if !reflect.DeepEqual(snap.PromptCategories, []string{"art", "photo"}) || !reflect.DeepEqual(snap.PromptTags, []string{"fox"}) {
		t.Fatalf("unexpected taxonomy %v %v", snap.PromptCategories, snap.PromptTags)
	}
}

func TestSearchPromptsRanksCachedList(t *testing.T) {
	srv := testsupport.NewAPIServer(t)
	cache, store := newCache(t, srv)
	store.SetPrompts([]api.Prompt{
		{ID: "p1", Title: "Ocean sunset", Content: "waves at dusk"},
		{ID: "p2", Title: "Red fox", Content: "a red fox in snow", Tags: []string{"animal"}},
		{ID: "p3", Title: "City", Content: "neon streets"},
	}, 3, 1)

	got := cache.SearchPrompts("fox")
	if len(got) != 1 || got[0].ID != "p2" {
		t.Fatalf("unexpected matches %+v", got)
	}
	if got := cache.SearchPrompts("ANIMAL"); len(got) != 1 || got[0].ID != "p2" {
		t.Fatalf("tag match should be case-insensitive, got %+v", got)
	}
	if got := cache.SearchPrompts(" "); len(got) != 3 {
		t.Fatalf("empty query should return the list, got %d", len(got))
	}
	if len(srv.Requests()) != 0 {
		t.Fatal("search must stay local")
	}
}

// blockUntil installs a handler that signals started and then waits for
// release before answering with reply.
func blockUntil(srv *testsupport.APIServer, method, path string, started chan<- struct{}, release <-chan struct{}, reply testsupport.Reply) {
	var once sync.Once
	srv.Handle(method, path, func(testsupport.RecordedRequest) testsupport.Reply {
		if started != nil {
			once.Do(func() { close(started) })
		}
		<-release
		return reply
	})
}

func TestRefreshAllKeepsFailingKindMessage(t *testing.T) {
	srv := testsupport.NewAPIServer(t)
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	srv.Fail(http.MethodGet, "/prompts", http.StatusBadRequest, "关键字无效", "bad keyword")
	blockUntil(srv, http.MethodGet, "/generations", nil, release, testsupport.OK(generationsPage("g1")))
	blockUntil(srv, http.MethodGet, "/batch", nil, release, testsupport.OK(testsupport.PageOf("jobs", []api.BatchJob{}, 1, 20, 0)))
	blockUntil(srv, http.MethodGet, "/images", nil, release, testsupport.OK(testsupport.PageOf("images", []api.Image{}, 1, 20, 0)))
	blockUntil(srv, http.MethodGet, "/prompts/categories", nil, release, testsupport.OK([]string{}))
	cache, store := newCache(t, srv)

	err := cache.RefreshAll(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, context.Canceled) {
		t.Fatalf("expected the prompts failure, got %v", err)
	}
	if got := store.Snapshot().Error; got != "关键字无效" {
		t.Fatalf("global error overwritten: %q", got)
	}
}

func TestRefreshSharedLoadSurvivesCancelledCaller(t *testing.T) {
	srv := testsupport.NewAPIServer(t)
	started := make(chan struct{})
	release := make(chan struct{})
	blockUntil(srv, http.MethodGet, "/generations", started, release, testsupport.OK(generationsPage("g1", "g2")))
	cache, store := newCache(t, srv)

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		firstErr <- cache.Refresh(firstCtx, state.KindGenerations, nil, 1, 5)
	}()
	<-started

	secondErr := make(chan error, 1)
	go func() {
		secondErr <- cache.Refresh(context.Background(), state.KindGenerations, nil, 1, 5)
	}()

	cancelFirst()
	if err := <-firstErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("first caller: expected context.Canceled, got %v", err)
	}
	if got := store.Snapshot().Error; got != "" {
		t.Fatalf("cancelled caller set global error %q", got)
	}

	close(release)
	select {
	case err := <-secondErr:
		if err != nil {
			t.Fatalf("second caller: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("second caller did not finish")
	}

	snap := store.Snapshot()
	if snap.Error != "" || snap.Generations.Total != 12 || len(snap.Generations.List) != 2 {
		t.Fatalf("unexpected state error=%q block=%+v", snap.Error, snap.Generations)
	}
}

func TestRefreshPublishesOneChange(t *testing.T) {
	srv := testsupport.NewAPIServer(t)
	srv.Succeed(http.MethodGet, "/generations", generationsPage("g1"))
	cache, store := newCache(t, srv)

	var changes []state.Change
	cancel := store.Subscribe(func(c state.Change) { changes = append(changes, c) })
	defer cancel()

	if err := cache.Refresh(context.Background(), state.KindGenerations, nil, 2, 5); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if len(changes) != 1 || changes[0].Kind != state.KindGenerations {
		t.Fatalf("expected a single generations change, got %+v", changes)
	}
	if got := store.Snapshot().Generations.PageSize; got != 5 {
		t.Fatalf("page size not applied: %d", got)
	}
}
