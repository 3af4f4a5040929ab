// Package app initializes and holds the long-lived services one command run
// shares: configuration, the logger, the run id, and the optional status
// server.
package app

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/archive-ingest/internal/api"
	"github.com/JakeFAU/archive-ingest/internal/archive"
	"github.com/JakeFAU/archive-ingest/internal/config"
	"github.com/JakeFAU/archive-ingest/internal/id/uuid"
	"github.com/JakeFAU/archive-ingest/internal/logging"
	"github.com/JakeFAU/archive-ingest/internal/metrics"
)

// App holds the shared services of one command run.
type App struct {
	cfg    config.Config
	logger *zap.Logger
	runID  string

	mu         sync.Mutex
	stopServer context.CancelFunc
	serverDone chan error
}

// Options feed NewApp.
type Options struct {
	ConfigPath string
	Command    string
	// IDs generates the run id; nil uses UUIDv7.
	IDs archive.IDGenerator
}

// NewApp loads configuration, builds the logger, and stamps a run id. It
// fails fast on configuration errors before any work begins.
func NewApp(opts Options) (*App, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	ids := opts.IDs
	if ids == nil {
		ids = uuid.New()
	}
	runID, err := ids.NewID()
	if err != nil {
		return nil, fmt.Errorf("generate run id: %w", err)
	}
	metrics.Init()
	return New(cfg, logging.WithRun(logger, opts.Command, runID), runID), nil
}

// New wraps already-built services. Tests use it to skip config loading.
func New(cfg config.Config, logger *zap.Logger, runID string) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &App{cfg: cfg, logger: logger, runID: runID}
}

// GetConfig returns the loaded configuration.
func (a *App) GetConfig() config.Config {
	return a.cfg
}

// GetLogger returns the run-scoped logger.
func (a *App) GetLogger() *zap.Logger {
	return a.logger
}

// GetRunID returns the id stamped on every log line of this run.
func (a *App) GetRunID() string {
	return a.runID
}

// StartStatusServer serves health, metrics, status, and catalog routes on
// metrics.addr until Close. It does nothing when no address is configured.
func (a *App) StartStatusServer(ctx context.Context, status api.StatusSource, catalog api.Catalog) {
	addr := a.cfg.Metrics.Addr
	if addr == "" {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopServer != nil {
		return
	}
	srvCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	srv := api.NewServer(status, catalog, a.logger.Named("api"))
	go func() { done <- srv.Run(srvCtx, addr) }()
	a.stopServer, a.serverDone = cancel, done
}

// Close stops the status server and flushes the logger.
func (a *App) Close() {
	a.mu.Lock()
	stop, done := a.stopServer, a.serverDone
	a.stopServer, a.serverDone = nil, nil
	a.mu.Unlock()
	if stop != nil {
		stop()
		if err := <-done; err != nil {
			a.logger.Warn("status server stopped with error", zap.Error(err))
		}
	}
	// Syncing stderr reports EINVAL on some platforms; nothing to act on.
	_ = a.logger.Sync()
}
