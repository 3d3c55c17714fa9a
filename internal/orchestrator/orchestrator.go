package orchestrator

import (
	"context"
	"fmt"
	"log/slog"

	"genstudio/internal/api"
	"genstudio/internal/apiclient"
	"genstudio/internal/logging"
	"genstudio/internal/state"
)

// Service is the slice of the transport client the orchestrator drives.
type Service interface {
	Text2Img(ctx context.Context, req api.Text2ImgRequest) ([]api.Generation, error)
	Img2Img(ctx context.Context, req api.Img2ImgRequest) ([]api.Generation, error)
	GetPrompt(ctx context.Context, id string) (api.Prompt, error)
	CreatePrompt(ctx context.Context, in api.PromptInput) (api.Prompt, error)
	UpdatePrompt(ctx context.Context, id string, in api.PromptInput) (api.Prompt, error)
	DeletePrompt(ctx context.Context, id string) error
	DeleteGeneration(ctx context.Context, id string) error
	DeleteImage(ctx context.Context, id string) error
}

const (
	defaultCount = 1
	maxCount     = 4
)

// Orchestrator issues write requests and applies their results to the store.
// It is the only writer of generation results and library deletions.
type Orchestrator struct {
	service      Service
	store        *state.Store
	logger       *slog.Logger
	defaultCount int
	maxCount     int
}

// Option customizes the orchestrator.
type Option func(*Orchestrator)

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logging.NewComponentLogger(logger, "orchestrator")
		}
	}
}

// WithCountLimits sets the count used when a request omits one and the upper bound.
func WithCountLimits(def, max int) Option {
	return func(o *Orchestrator) {
		if max > 0 {
			o.maxCount = max
		}
		if def > 0 {
			o.defaultCount = def
		}
	}
}

// New constructs an orchestrator over service and store.
func New(service Service, store *state.Store, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		service:      service,
		store:        store,
		logger:       logging.NewNop(),
		defaultCount: defaultCount,
		maxCount:     maxCount,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.defaultCount > o.maxCount {
		o.defaultCount = o.maxCount
	}
	return o
}

func (o *Orchestrator) reject(ctx context.Context, op, field, message string) error {
	return Reject(ctx, o.store, o.logger, op, field, message)
}

func (o *Orchestrator) run(ctx context.Context, op, fallback string, fn func(ctx context.Context) error) error {
	return Bracket(ctx, o.store, o.logger, op, fallback, fn)
}

// Reject surfaces a validation failure in the global error without touching
// loading or the network.
func Reject(ctx context.Context, store *state.Store, logger *slog.Logger, op, field, message string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	store.SetError(message)
	logging.WithContext(logging.WithOperation(ctx, op), logger).Info("request rejected",
		logging.String("field", field),
		logging.String("reason", message),
	)
	return &ValidationError{Field: field, Message: message}
}

// Bracket runs fn under the global loading/error protocol: loading is raised
// before fn and the outcome of fn settles it. Panics inside fn are recovered
// and reported as an ApplicationError carrying fallback.
func Bracket(ctx context.Context, store *state.Store, logger *slog.Logger, op, fallback string, fn func(ctx context.Context) error) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	ctx, _ = logging.EnsureRequestID(logging.WithOperation(ctx, op))
	logger = logging.WithContext(ctx, logger)

	store.Begin()
	defer func() {
		if r := recover(); r != nil {
			logging.ErrorWithContext(logger, "operation panicked", "orchestrator_panic",
				logging.String("panic", fmt.Sprint(r)),
				logging.String(logging.FieldErrorHint, "report this as a bug with the log excerpt"),
			)
			err = &apiclient.ApplicationError{Message: fallback, Detail: fmt.Sprint(r)}
		}
		message := UserMessage(err, fallback)
		if err != nil {
			logging.WarnWithContext(logger, "operation failed", "orchestrator_failure",
				logging.Error(err),
				logging.String(logging.FieldImpact, "state left unchanged"),
				logging.String(logging.FieldErrorHint, message),
			)
		}
		store.Settle(message)
	}()

	return fn(ctx)
}

func (o *Orchestrator) clampCount(count int) int {
	if count <= 0 {
		count = o.defaultCount
	}
	if count < 1 {
		count = 1
	}
	if count > o.maxCount {
		count = o.maxCount
	}
	return count
}
