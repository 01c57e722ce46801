// Package app provides application initialization and lifecycle management.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/bissquit/incident-dispatch/internal/config"
	"github.com/bissquit/incident-dispatch/internal/dispatch"
	"github.com/bissquit/incident-dispatch/internal/escalation"
	"github.com/bissquit/incident-dispatch/internal/logging"
	"github.com/bissquit/incident-dispatch/internal/pkg/postgres"
	"github.com/bissquit/incident-dispatch/internal/storage"
	"github.com/bissquit/incident-dispatch/internal/storage/bolt"
	"github.com/bissquit/incident-dispatch/internal/storage/jsonfile"
	pgstore "github.com/bissquit/incident-dispatch/internal/storage/postgres"
	"github.com/bissquit/incident-dispatch/internal/version"
)

// App represents the application instance.
type App struct {
	config     *config.Config
	logger     *slog.Logger
	logCloser  io.Closer
	store      storage.Store
	dispatcher *dispatch.Dispatcher
}

// New builds the logger, opens the configured store and restores the dispatcher state.
// Log output goes to console in addition to the configured log file.
func New(ctx context.Context, cfg *config.Config, console io.Writer, opts ...dispatch.Option) (*App, error) {
	logger, logCloser, err := logging.New(cfg.Log, console)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	logger.Info("starting incident dispatcher",
		"version", version.Version,
		"commit", version.GitCommit,
		"storage", cfg.Storage.Driver,
	)

	store, err := openStore(ctx, cfg.Storage, logger)
	if err != nil {
		_ = logCloser.Close()
		return nil, fmt.Errorf("open store: %w", err)
	}

	if cfg.Operators.SeedFile != "" {
		operators, err := dispatch.LoadSeedFile(cfg.Operators.SeedFile)
		if err != nil {
			_ = store.Close()
			_ = logCloser.Close()
			return nil, err
		}
		opts = append([]dispatch.Option{dispatch.WithOperators(operators)}, opts...)
	}

	d := dispatch.New(dispatcherConfig(cfg), store, logger, opts...)
	d.Restore(ctx)

	return &App{
		config:     cfg,
		logger:     logger,
		logCloser:  logCloser,
		store:      store,
		dispatcher: d,
	}, nil
}

// Dispatcher returns the restored dispatcher.
func (a *App) Dispatcher() *dispatch.Dispatcher {
	return a.dispatcher
}

// Logger returns the application logger.
func (a *App) Logger() *slog.Logger {
	return a.logger
}

// Config returns the loaded configuration.
func (a *App) Config() *config.Config {
	return a.config
}

// Close releases the store and the log file.
func (a *App) Close() error {
	a.logger.Info("shutting down")
	return errors.Join(a.store.Close(), a.logCloser.Close())
}

func dispatcherConfig(cfg *config.Config) dispatch.Config {
	return dispatch.Config{
		Escalation: escalation.Config{
			TimeThreshold:         cfg.Escalation.TimeThreshold,
			HighPriorityEnabled:   cfg.Escalation.HighPriorityEnabled,
			HighPriorityThreshold: cfg.Escalation.HighPriorityThreshold,
		},
		HistoryLimit:    cfg.History.Limit,
		MetricsTextfile: cfg.Metrics.TextfilePath,
	}
}

func openStore(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (storage.Store, error) {
	switch cfg.Driver {
	case storage.DriverJSON, "":
		return jsonfile.New(cfg.DataDir,
			jsonfile.WithBackupKeep(cfg.BackupKeep),
			jsonfile.WithLogger(logger),
		)
	case storage.DriverBolt:
		return bolt.Open(cfg.BoltPath, logger)
	case storage.DriverPostgres:
		if err := pgstore.Migrate(cfg.Database.URL); err != nil {
			return nil, err
		}

		connectCtx, cancel := context.WithTimeout(ctx, cfg.Database.ConnectTimeout)
		defer cancel()

		pool, err := postgres.Connect(connectCtx, postgres.Config{
			URL:             cfg.Database.URL,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
			ConnectAttempts: cfg.Database.ConnectAttempts,
			Logger:          logger,
		})
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		return pgstore.NewStore(pool, logger), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
