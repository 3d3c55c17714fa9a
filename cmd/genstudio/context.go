package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"genstudio/internal/apiclient"
	"genstudio/internal/batch"
	"genstudio/internal/config"
	"genstudio/internal/jobstore"
	"genstudio/internal/logging"
	"genstudio/internal/notifications"
	"genstudio/internal/orchestrator"
	"genstudio/internal/pagination"
	"genstudio/internal/state"
)

type commandContext struct {
	configFlag  *string
	verboseFlag *bool

	configOnce   sync.Once
	config       *config.Config
	configPath   string
	configExists bool
	configErr    error
}

func newCommandContext(configFlag *string, verboseFlag *bool) *commandContext {
	return &commandContext{
		configFlag:  configFlag,
		verboseFlag: verboseFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, exists, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
		c.configExists = exists
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

func (c *commandContext) verbose() bool {
	return c.verboseFlag != nil && *c.verboseFlag
}

// session wires one command invocation: the store every component shares,
// the transport client and the components that mutate the store.
type session struct {
	cfg     *config.Config
	logger  *slog.Logger
	client  *apiclient.Client
	store   *state.Store
	orch    *orchestrator.Orchestrator
	tracker *batch.Tracker
	lists   *pagination.Cache
	notify  notifications.Service
}

func (s *session) watcher() *batch.Watcher {
	return batch.NewWatcher(s.tracker, batch.WatchConfig{
		Interval: s.cfg.PollInterval(),
		Timeout:  s.cfg.WatchTimeout(),
		LockPath: s.cfg.WatchLockPath(),
	}, s.logger)
}

// fail turns an operation error into the message the store settled on, so
// the terminal shows the same text a user interface would.
func (s *session) fail(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if message := s.store.Snapshot().Error; message != "" {
		return errors.New(message)
	}
	return err
}

// readFailed records a failed direct read the way list refreshes do.
func (s *session) readFailed(err error) error {
	if err != nil && !errors.Is(err, context.Canceled) {
		s.store.SetError(orchestrator.UserMessage(err, pagination.MsgLoadFailed))
	}
	return s.fail(err)
}

func (c *commandContext) newLogger(cmd *cobra.Command, cfg *config.Config) (*slog.Logger, error) {
	level := cfg.Logging.Level
	if c.verbose() {
		level = "debug"
	}
	logger, err := logging.New(logging.Options{
		Level:  level,
		Format: cfg.Logging.Format,
		Output: cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}

func (c *commandContext) withSession(cmd *cobra.Command, fn func(*session) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := c.newLogger(cmd, cfg)
	if err != nil {
		return err
	}

	client, err := apiclient.New(apiclient.ConfigFrom(cfg), apiclient.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("create api client: %w", err)
	}

	store := state.New(state.Settings{
		Model:    cfg.Generation.Model,
		Size:     cfg.Generation.Size,
		Quality:  cfg.Generation.Quality,
		Strength: cfg.Generation.Strength,
	}, state.UI{
		SidebarOpen: cfg.UI.SidebarOpen,
		Theme:       cfg.UI.Theme,
	}, cfg.Pagination.PageSize)
	unsubscribe := store.Subscribe(logChanges(logger))
	defer unsubscribe()

	trackerOpts := []batch.Option{batch.WithLogger(logger)}
	journal, err := jobstore.Open(cfg)
	if err != nil {
		logging.WarnWithContext(logger, "batch journal unavailable", "journal_open_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "batch history will not be updated"),
		)
	} else {
		defer journal.Close()
		trackerOpts = append(trackerOpts, batch.WithJournal(journal))
	}

	base, maxDelay := cfg.RetryBackoff()
	s := &session{
		cfg:    cfg,
		logger: logger,
		client: client,
		store:  store,
		orch: orchestrator.New(client, store,
			orchestrator.WithLogger(logger),
			orchestrator.WithCountLimits(cfg.Generation.DefaultCount, cfg.Generation.MaxCount),
		),
		tracker: batch.NewTracker(client, store, trackerOpts...),
		lists: pagination.New(client, store,
			pagination.WithLogger(logger),
			pagination.WithRetry(cfg.API.ReadRetryAttempts, base, maxDelay),
		),
		notify: notifications.NewService(cfg),
	}
	return fn(s)
}

// withJournal opens only the local batch journal.
func (c *commandContext) withJournal(fn func(*jobstore.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	journal, err := jobstore.Open(cfg)
	if err != nil {
		return fmt.Errorf("open batch journal: %w", err)
	}
	defer journal.Close()
	return fn(journal)
}

func logChanges(logger *slog.Logger) func(state.Change) {
	stateLogger := logging.NewComponentLogger(logger, "state")
	return func(change state.Change) {
		attrs := []any{
			logging.Int64("seq", int64(change.Seq)),
			logging.String("op", string(change.Op)),
			logging.String(logging.FieldResource, string(change.Kind)),
		}
		if change.ID != "" {
			attrs = append(attrs, logging.String("id", change.ID))
		}
		stateLogger.Debug("state changed", attrs...)
	}
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
