package pagination

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"genstudio/internal/api"
	"genstudio/internal/logging"
	"genstudio/internal/orchestrator"
	"genstudio/internal/state"
)

// MsgLoadFailed is the global error set when a list cannot be loaded.
const MsgLoadFailed = "加载失败"

// Service is the read side of the transport client.
type Service interface {
	ListPrompts(ctx context.Context, page, pageSize int, filters api.Filters) (api.Page[api.Prompt], error)
	ListGenerations(ctx context.Context, page, pageSize int, filters api.Filters) (api.Page[api.Generation], error)
	ListBatches(ctx context.Context, page, pageSize int, filters api.Filters) (api.Page[api.BatchJob], error)
	ListImages(ctx context.Context, page, pageSize int, filters api.Filters) (api.Page[api.Image], error)
	PromptCategories(ctx context.Context) ([]string, error)
	PromptTags(ctx context.Context) ([]string, error)
}

// Kinds lists the paginated entity kinds in refresh order.
var Kinds = []state.Kind{state.KindPrompts, state.KindGenerations, state.KindBatchJobs, state.KindImages}

// Cache loads list pages into the store. Each refresh is one authoritative
// fetch that replaces the block's list, total and current page; pages are
// never merged. Reads are retried with backoff on transient failures.
type Cache struct {
	service Service
	store   *state.Store
	logger  *slog.Logger

	attempts    int
	baseDelay   time.Duration
	maxDelay    time.Duration
	loadTimeout time.Duration

	group singleflight.Group

	mu      sync.Mutex
	filters map[state.Kind]api.Filters
}

// Option customizes the cache.
type Option func(*Cache)

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logging.NewComponentLogger(logger, "pagination")
		}
	}
}

// WithRetry sets the attempt budget and backoff bounds for list reads.
func WithRetry(attempts int, baseDelay, maxDelay time.Duration) Option {
	return func(c *Cache) {
		if attempts > 0 {
			c.attempts = attempts
		}
		if baseDelay >= 0 {
			c.baseDelay = baseDelay
		}
		if maxDelay > 0 {
			c.maxDelay = maxDelay
		}
	}
}

// WithLoadTimeout bounds a shared list load, retries included. Loads are
// detached from the callers that started them.
func WithLoadTimeout(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.loadTimeout = d
		}
	}
}

// New constructs a cache over service and store.
func New(service Service, store *state.Store, opts ...Option) *Cache {
	c := &Cache{
		service:   service,
		store:     store,
		logger:    logging.NewNop(),
		attempts:    defaultRetryAttempts,
		baseDelay:   defaultRetryBaseDelay,
		maxDelay:    defaultRetryMaxDelay,
		loadTimeout: defaultLoadTimeout,
		filters:     map[state.Kind]api.Filters{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Filters returns the filters last applied to kind.
func (c *Cache) Filters(kind state.Kind) api.Filters {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filters[kind].Clone()
}

// Refresh fetches one page of kind and replaces the block with it. Zero page
// or pageSize reuse the block's current values. Identical concurrent calls
// share a single request.
func (c *Cache) Refresh(ctx context.Context, kind state.Kind, filters api.Filters, page, pageSize int) error {
	if ctx == nil {
		ctx = context.Background()
	}
	normalized, err := normalizeFilters(kind, filters)
	if err != nil {
		return err
	}
	curPage, curSize := c.store.Paging(kind)
	if page <= 0 {
		page = curPage
	}
	if pageSize <= 0 {
		pageSize = curSize
	}

	ctx, _ = logging.EnsureRequestID(logging.WithOperation(ctx, "refresh_"+string(kind)))
	key := string(kind) + "|" + strconv.Itoa(page) + "|" + strconv.Itoa(pageSize) + "|" + normalized.Key()
	// The shared load outlives any single caller; each caller only waits on
	// its own context.
	results := c.group.DoChan(key, func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.loadTimeout)
		defer cancel()
		return nil, c.load(loadCtx, kind, normalized, page, pageSize)
	})
	var res singleflight.Result
	select {
	case <-ctx.Done():
		res.Err = ctx.Err()
	case res = <-results:
	}
	if res.Shared {
		logging.WithContext(ctx, c.logger).Debug("refresh shared with in-flight request",
			logging.String(logging.FieldResource, string(kind)))
	}
	if err := res.Err; err != nil {
		c.reportFailure(ctx, "list refresh failed", string(kind), err)
		return err
	}

	c.mu.Lock()
	c.filters[kind] = normalized
	c.mu.Unlock()
	return nil
}

// RefreshAll reloads every kind with its current page, page size and last
// filters, plus the prompt categories and tags. It returns the first error.
func (c *Cache) RefreshAll(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, kind := range Kinds {
		g.Go(func() error {
			return c.Refresh(gctx, kind, c.Filters(kind), 0, 0)
		})
	}
	g.Go(func() error {
		return c.RefreshTaxonomy(gctx)
	})
	return g.Wait()
}

// RefreshTaxonomy reloads prompt categories and tags.
func (c *Cache) RefreshTaxonomy(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	categories, err := withRetry(ctx, c, c.service.PromptCategories)
	if err != nil {
		c.reportFailure(ctx, "taxonomy refresh failed", "categories", err)
		return err
	}
	tags, err := withRetry(ctx, c, c.service.PromptTags)
	if err != nil {
		c.reportFailure(ctx, "taxonomy refresh failed", "tags", err)
		return err
	}
	c.store.SetCategories(categories)
	c.store.SetTags(tags)
	return nil
}

// reportFailure places the normalized message in the global error. A caller
// that was cancelled is not a failure of the read and leaves the error alone,
// so a sibling's real message is not overwritten.
func (c *Cache) reportFailure(ctx context.Context, msg, resource string, err error) {
	logger := logging.WithContext(ctx, c.logger)
	if ctx.Err() != nil && errors.Is(err, context.Canceled) {
		logger.Debug("refresh abandoned by caller", logging.String(logging.FieldResource, resource))
		return
	}
	message := orchestrator.UserMessage(err, MsgLoadFailed)
	c.store.SetError(message)
	logging.WarnWithContext(logger, msg, "list_refresh_failed",
		logging.String(logging.FieldResource, resource),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, message),
	)
}

func (c *Cache) load(ctx context.Context, kind state.Kind, filters api.Filters, page, pageSize int) error {
	switch kind {
	case state.KindPrompts:
		p, err := fetchPage(ctx, c, c.service.ListPrompts, page, pageSize, filters)
		if err != nil {
			return err
		}
		c.store.SetPromptsPage(p.List(), p.Total, pageOf(p.Pagination, page), pageSize)
	case state.KindGenerations:
		p, err := fetchPage(ctx, c, c.service.ListGenerations, page, pageSize, filters)
		if err != nil {
			return err
		}
		c.store.SetGenerationsPage(p.List(), p.Total, pageOf(p.Pagination, page), pageSize)
	case state.KindBatchJobs:
		p, err := fetchPage(ctx, c, c.service.ListBatches, page, pageSize, filters)
		if err != nil {
			return err
		}
		c.store.SetBatchJobsPage(p.List(), p.Total, pageOf(p.Pagination, page), pageSize)
	case state.KindImages:
		p, err := fetchPage(ctx, c, c.service.ListImages, page, pageSize, filters)
		if err != nil {
			return err
		}
		c.store.SetImagesPage(p.List(), p.Total, pageOf(p.Pagination, page), pageSize)
	default:
		return fmt.Errorf("unknown list kind %q", kind)
	}
	logging.WithContext(ctx, c.logger).Debug("list refreshed",
		logging.String(logging.FieldResource, string(kind)),
		logging.Int("page", page),
		logging.Int("page_size", pageSize),
	)
	return nil
}

func pageOf(p api.Pagination, requested int) int {
	if p.Page > 0 {
		return p.Page
	}
	return requested
}

func fetchPage[T any](ctx context.Context, c *Cache, list func(context.Context, int, int, api.Filters) (api.Page[T], error), page, pageSize int, filters api.Filters) (api.Page[T], error) {
	return withRetry(ctx, c, func(ctx context.Context) (api.Page[T], error) {
		return list(ctx, page, pageSize, filters)
	})
}

// withRetry runs fn up to the cache's attempt budget, sleeping between
// attempts while the failure is transient.
func withRetry[T any](ctx context.Context, c *Cache, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	for attempt := 1; ; attempt++ {
		out, err := fn(ctx)
		if err == nil {
			return out, nil
		}
		delay, retry := c.retryDelay(ctx, err, attempt)
		if !retry {
			return zero, err
		}
		logging.WithContext(ctx, c.logger).Debug("retrying list read",
			logging.Int("attempt", attempt),
			logging.Duration("backoff", delay),
			logging.Error(err),
		)
		if err := sleepWithContext(ctx, delay); err != nil {
			return zero, err
		}
	}
}
