package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/ticket-watchdog/internal/api/http"
	"github.com/spec-kit/ticket-watchdog/internal/api/http/handlers"
	"github.com/spec-kit/ticket-watchdog/internal/config"
	"github.com/spec-kit/ticket-watchdog/internal/events"
	"github.com/spec-kit/ticket-watchdog/internal/observability"
	"github.com/spec-kit/ticket-watchdog/internal/persistence"
	"github.com/spec-kit/ticket-watchdog/internal/repository"
	"github.com/spec-kit/ticket-watchdog/internal/service"
	"github.com/spec-kit/ticket-watchdog/internal/slaconfig"
	"github.com/spec-kit/ticket-watchdog/internal/worker"
	"github.com/spec-kit/ticket-watchdog/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher(logger)

	slaStore := slaconfig.NewStore(cfg.SLA.ConfigPath, logger)
	if err := slaStore.Reload(); err != nil {
		logger.Warn("starting without sla targets; waiting for a valid config", zap.Error(err))
	}
	go func() {
		if err := slaconfig.Watch(ctx, slaStore, logger); err != nil {
			logger.Error("sla config watcher stopped", zap.Error(err))
		}
	}()

	pool := pg.PoolHandle()
	ticketRepo := repository.NewTicketRepository(pool)
	alertRepo := repository.NewAlertRepository(pool)

	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo: ticketRepo,
		AlertRepo:  alertRepo,
		Dispatcher: dispatcher,
		Logger:     logger,
	})

	ledger := service.NewAlertLedger(pool, logger)
	suppressor := service.NewSuppressor(redis.ClientHandle(), cfg.SLA.DedupWindow())

	slaService := service.NewSLAService(service.SLADependencies{
		TicketRepo: ticketRepo,
		Ledger:     ledger,
		Config:     slaStore,
		Suppressor: suppressor,
		Dispatcher: dispatcher,
		Thresholds: service.Thresholds{
			Alert:  cfg.SLA.AlertThreshold,
			Breach: cfg.SLA.BreachThreshold,
		},
		Logger:  logger,
		Metrics: metrics,
	})
	slaService.RegisterHandlers(dispatcher)

	notifier := service.NewNotifier(cfg.Notification, logger, metrics)
	notifier.RegisterHandlers(dispatcher)
	go notifier.Start(ctx)

	hub := ws.NewHub(logger, metrics)
	hub.RegisterHandlers(dispatcher)
	go hub.Run(ctx)

	sweeper := worker.NewSweeper(cfg.SLA.SweepInterval(), slaService.EvaluateAll, logger)
	go sweeper.Run(ctx)

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:  handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Tickets: handlers.NewTicketsHandler(ticketService),
		Hub:     hub,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	cancel()
	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
