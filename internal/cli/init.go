// Package cli wires configuration, logging, the store and the services
// together for the youspent command.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"youspent/internal/amqp"
	"youspent/internal/bootstrap"
	"youspent/internal/config"
	"youspent/internal/log"
	"youspent/internal/services"
	"youspent/internal/storage"
)

// amqpDialAttempts bounds the connection retries when AMQP_URL is set.
const amqpDialAttempts = 3

// SetupLogger initializes structured logging at the given level and sets it
// as the default logger.
func SetupLogger(level string) (*log.Logger, error) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	cfg := log.DefaultConfig()
	cfg.Level = lvl
	cfg.Output = os.Stderr
	logger := log.New(cfg).WithComponent(log.ComponentCLI)
	log.SetDefault(logger)
	return logger, nil
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

// App holds everything a command needs. Build it with Open and release it
// with Close.
type App struct {
	Config       *config.Config
	Logger       *log.Logger
	Store        *storage.Store
	Coordinator  *bootstrap.Coordinator
	Expenses     *services.ExpenseService
	ExpenseTypes *services.ExpenseTypeService
	Summaries    *services.SummaryService

	publisher *amqp.Client
}

// Open builds the store handle, the bring-up coordinator and the services.
// It does not touch the store file; call Ready before using the services.
func Open(ctx context.Context, cfg *config.Config, logger *log.Logger, reg prometheus.Registerer) (*App, error) {
	mode, err := cfg.FailureMode()
	if err != nil {
		return nil, err
	}

	store := storage.New(cfg.SQLiteDBPath)
	coordinator := bootstrap.NewCoordinator(store, storage.NewExpenseTypeRepository(store), bootstrap.NewState(),
		bootstrap.WithFailureMode(mode),
		bootstrap.WithTimeout(cfg.InitTimeout),
		bootstrap.WithLogger(logger.WithComponent(log.ComponentBootstrap)),
		bootstrap.WithRegisterer(reg),
	)

	app := &App{
		Config:      cfg,
		Logger:      logger,
		Store:       store,
		Coordinator: coordinator,
	}

	var publisher services.EventPublisher
	if cfg.AMQPURL != "" {
		client, err := amqp.DialWithRetry(ctx, cfg.AMQPURL, cfg.AMQPExchange, amqpDialAttempts)
		if err != nil {
			logger.Warn("AMQP unavailable, expense events disabled", log.FieldError, err)
		} else {
			app.publisher = client
			publisher = client
		}
	}

	app.Expenses = services.NewExpenseService(store, publisher)
	app.ExpenseTypes = services.NewExpenseTypeService(store)
	app.Summaries = services.NewSummaryService(store, cfg.SummaryCacheSize, cfg.SummaryCacheTTL)
	app.Expenses.OnChange(app.Summaries.Invalidate)

	return app, nil
}

// Ready runs the bring-up sequence. It is idempotent.
func (a *App) Ready(ctx context.Context) error {
	if err := a.Coordinator.Initialize(ctx); err != nil {
		return fmt.Errorf("prepare store: %w", err)
	}
	return nil
}

// ClearAllData wipes every row, restores the default expense types and drops
// cached summaries.
func (a *App) ClearAllData(ctx context.Context) bool {
	if !a.Coordinator.ClearAllData(ctx) {
		return false
	}
	a.Summaries.Invalidate()
	return true
}

// Close releases the store and the AMQP connection.
func (a *App) Close() error {
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.Logger.Warn("Failed to close AMQP client", log.FieldError, err)
		}
	}
	return a.Store.Close()
}
