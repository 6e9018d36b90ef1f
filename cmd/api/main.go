package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/helpdesk-sla/internal/api/http"
	"github.com/spec-kit/helpdesk-sla/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-sla/internal/config"
	"github.com/spec-kit/helpdesk-sla/internal/events"
	"github.com/spec-kit/helpdesk-sla/internal/notify"
	"github.com/spec-kit/helpdesk-sla/internal/observability"
	"github.com/spec-kit/helpdesk-sla/internal/persistence"
	"github.com/spec-kit/helpdesk-sla/internal/repository"
	"github.com/spec-kit/helpdesk-sla/internal/repository/memory"
	"github.com/spec-kit/helpdesk-sla/internal/service"
	"github.com/spec-kit/helpdesk-sla/internal/worker"
)

type repositories struct {
	tickets       repository.TicketRepository
	history       repository.SLAHistoryRepository
	users         repository.UserRepository
	notifications repository.NotificationRepository
	tx            repository.Transactor
}

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

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(registry)

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if pg.Enabled() && cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	repos := buildRepositories(pg)

	dispatcher := events.NewInMemoryDispatcher(logger)
	if cfg.NATS.URL != "" {
		forwarder, err := events.NewNATSForwarder(cfg.NATS.URL, cfg.NATS.SubjectPrefix, logger)
		if err != nil {
			logger.Warn("nats unavailable; sla events stay in-process", zap.Error(err))
		} else {
			forwarder.Register(dispatcher)
			defer forwarder.Close()
		}
	}

	notifications := service.NewNotificationService(service.NotificationDependencies{
		Repo: repos.notifications,
		Channels: []notify.Channel{
			notify.NewLogChannel(logger),
			notify.NewEmailChannel(cfg.Notification),
			notify.NewWebhookChannel(cfg.Notification.WebhookURL, cfg.Notification.DeliveryTimeout, logger),
		},
		Metrics: metrics,
		Logger:  logger,
		Config:  cfg.Notification,
	})
	stopNotifications := worker.StartNotificationWorker(ctx, notifications)

	slaDeps := service.SLADependencies{
		TicketRepo:  repos.tickets,
		HistoryRepo: repos.history,
		Tx:          repos.tx,
		Notifier:    notifications,
		Dispatcher:  dispatcher,
		Metrics:     metrics,
		Logger:      logger,
		Config:      cfg.SLA,
	}
	if redis.Enabled() {
		slaDeps.Warnings = persistence.NewRedisOnce(redis.Client, "helpdesk:sla:warned:")
		if cfg.SLA.DistributedLock {
			slaDeps.Lock = persistence.NewRedisLock(redis.Client, cfg.SLA.LockName, cfg.SLA.LockTTL, logger)
		}
	} else if cfg.SLA.DistributedLock {
		logger.Warn("SLA_DISTRIBUTED_LOCK set without REDIS_ADDR; scans are guarded per process only")
	}
	slaService := service.NewSLAService(slaDeps)

	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo: repos.tickets,
		UserRepo:   repos.users,
		Tx:         repos.tx,
		SLA:        slaService,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	userService := service.NewUserService(repos.users)

	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		if err := worker.NewSLAWorker(slaService, cfg.SLA.ScanInterval, logger).Start(ctx); err != nil {
			logger.Error("sla worker exited", zap.Error(err))
		}
	}()

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: cfg.App.Env == "production",
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:        handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Tickets:       handlers.NewTicketsHandler(ticketService, slaService.Policy()),
		SLA:           handlers.NewSLAHandler(slaService),
		Users:         handlers.NewUsersHandler(userService),
		Notifications: handlers.NewNotificationsHandler(notifications),
		Gatherer:      registry,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		logger.Warn("http shutdown", zap.Error(err))
	}
	cancel()
	<-workerDone
	stopNotifications()
}

func buildRepositories(pg *persistence.Postgres) repositories {
	if !pg.Enabled() {
		store := memory.NewStore()
		return repositories{
			tickets:       memory.NewTicketRepository(store),
			history:       memory.NewSLAHistoryRepository(store),
			users:         memory.NewUserRepository(store),
			notifications: memory.NewNotificationRepository(store),
			tx:            memory.NewTransactor(store),
		}
	}
	pool := pg.PoolHandle()
	return repositories{
		tickets:       repository.NewTicketRepository(pool),
		history:       repository.NewSLAHistoryRepository(pool),
		users:         repository.NewUserRepository(pool),
		notifications: repository.NewNotificationRepository(pool),
		tx:            persistence.NewTxManager(pool),
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
