package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/fleetbench/internal/bus"
	"github.com/ternarybob/fleetbench/internal/common"
	"github.com/ternarybob/fleetbench/internal/engine"
	"github.com/ternarybob/fleetbench/internal/handlers"
	"github.com/ternarybob/fleetbench/internal/ingest"
	"github.com/ternarybob/fleetbench/internal/interfaces"
	"github.com/ternarybob/fleetbench/internal/orchestrator"
	"github.com/ternarybob/fleetbench/internal/scaler"
	"github.com/ternarybob/fleetbench/internal/storage"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	ctx       context.Context
	cancelCtx context.CancelFunc

	StorageManager interfaces.StorageManager

	// Bus
	BusConnection    *bus.Connection
	JobPublisher     interfaces.Publisher
	StatusSubscriber interfaces.Subscriber
	ResultSubscriber interfaces.Subscriber

	// Domain services
	ScalerRegistry *scaler.Registry
	Orchestrator   *orchestrator.Service
	Engine         *engine.Engine
	Reapers        *engine.Reapers
	StatusConsumer *ingest.StatusConsumer
	ResultConsumer *ingest.ResultConsumer

	// HTTP handlers
	APIHandler     *handlers.APIHandler
	JobHandler     *handlers.JobHandler
	ServiceHandler *handlers.ServiceHandler
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}
	app.ctx, app.cancelCtx = context.WithCancel(context.Background())

	storageManager, err := storage.NewStorageManager(logger, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	app.StorageManager = storageManager

	app.BusConnection = bus.NewConnection(&cfg.Bus, logger)
	app.JobPublisher = bus.NewPublisher(app.BusConnection, &cfg.Bus, cfg.Bus.JobExchange, logger)
	app.StatusSubscriber = bus.NewSubscriber(app.BusConnection, &cfg.Bus, cfg.Bus.StatusExchange, cfg.Bus.StatusQueue, logger)
	app.ResultSubscriber = bus.NewSubscriber(app.BusConnection, &cfg.Bus, cfg.Bus.ResultExchange, cfg.Bus.ResultQueue, logger)

	app.ScalerRegistry = scaler.NewRegistry(cfg, logger)
	app.Orchestrator = orchestrator.NewService(storageManager, logger)
	app.Engine = engine.New(storageManager, app.JobPublisher, app.ScalerRegistry, cfg, logger)

	descaler := engine.NewDescaler(storageManager, app.ScalerRegistry, logger)
	liveness := engine.NewLivenessReaper(storageManager, cfg.WorkerGraceDuration(), logger)
	app.Reapers = engine.NewReapers(descaler, liveness, cfg, logger)

	app.StatusConsumer = ingest.NewStatusConsumer(storageManager, logger)
	app.ResultConsumer = ingest.NewResultConsumer(storageManager, logger)

	app.APIHandler = handlers.NewAPIHandler()
	app.JobHandler = handlers.NewJobHandler(app.Orchestrator)
	app.ServiceHandler = handlers.NewServiceHandler(storageManager, app.ScalerRegistry)

	logger.Info().
		Str("environment", cfg.Environment).
		Bool("local_mode", cfg.IsLocalMode()).
		Msg("Application initialized")

	return app, nil
}

// Start launches the background loops: the consumers, the sub-job engine and
// the reapers.
func (a *App) Start() error {
	if err := a.StatusSubscriber.Subscribe(a.ctx, a.StatusConsumer.Handle); err != nil {
		return fmt.Errorf("failed to start status consumer: %w", err)
	}
	if err := a.ResultSubscriber.Subscribe(a.ctx, a.ResultConsumer.Handle); err != nil {
		return fmt.Errorf("failed to start result consumer: %w", err)
	}

	a.Engine.Start(a.ctx)

	if err := a.Reapers.Start(a.ctx); err != nil {
		return fmt.Errorf("failed to start reapers: %w", err)
	}

	return nil
}

// Shutdown stops the loops before the transports: the engine and reapers
// first so nothing publishes mid-teardown, then the consumers, then the bus
// and storage.
func (a *App) Shutdown(ctx context.Context) error {
	a.Logger.Info().Msg("Shutting down application...")

	a.Reapers.Stop()
	a.Engine.Stop()
	a.cancelCtx()

	if err := a.StatusSubscriber.Close(); err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to close status subscriber")
	}
	if err := a.ResultSubscriber.Close(); err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to close result subscriber")
	}
	if err := a.JobPublisher.Close(); err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to close job publisher")
	}
	if err := a.BusConnection.Close(); err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to close bus connection")
	}

	done := make(chan error, 1)
	go func() {
		done <- a.StorageManager.Close()
	}()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
	case <-time.After(10 * time.Second):
		return fmt.Errorf("timed out closing storage")
	case <-ctx.Done():
		return ctx.Err()
	}

	a.Logger.Info().Msg("Application stopped")
	return nil
}
