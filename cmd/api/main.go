package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/nftix/ticket-lifecycle/internal/api/http"
	"github.com/nftix/ticket-lifecycle/internal/api/http/handlers"
	"github.com/nftix/ticket-lifecycle/internal/auth"
	"github.com/nftix/ticket-lifecycle/internal/config"
	"github.com/nftix/ticket-lifecycle/internal/events"
	"github.com/nftix/ticket-lifecycle/internal/keylock"
	"github.com/nftix/ticket-lifecycle/internal/observability"
	"github.com/nftix/ticket-lifecycle/internal/persistence"
	"github.com/nftix/ticket-lifecycle/internal/repository"
	"github.com/nftix/ticket-lifecycle/internal/repository/memory"
	"github.com/nftix/ticket-lifecycle/internal/service"
	"github.com/nftix/ticket-lifecycle/internal/worker"
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

	store := openStore(ctx, cfg, pg, logger)
	defer store.Close()

	var redis *persistence.Redis
	locker := keylock.Locker(keylock.NewLocalLocker())
	if cfg.Lock.Driver == config.LockRedis {
		redis = persistence.NewRedis(ctx, cfg.Redis, logger)
		defer redis.Close()
		locker = keylock.NewRedisLocker(redis.Client, cfg.Lock, logger)
	}

	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics()
	}

	dispatcher := events.NewInMemoryDispatcher()
	notifications := service.NewNotificationService(dispatcher, service.NewPubNubPublisher(cfg.Notification), logger, cfg.Notification)
	worker.StartNotificationWorker(notifications)

	lifecycle := service.NewLifecycleService(service.LifecycleDependencies{
		Store:        store,
		Locker:       locker,
		Dispatcher:   dispatcher,
		Metrics:      metrics,
		Logger:       logger,
		QRSecretCost: cfg.Auth.QRSecretCost,
	})

	var relayTokens *auth.TokenManager
	if cfg.Auth.WebhookJWTSecret != "" {
		relayTokens = auth.NewTokenManager(cfg.Auth.WebhookJWTSecret, cfg.Auth.WebhookTokenTTLMinutes)
	} else {
		logger.Warn("WEBHOOK_JWT_SECRET not set; blockchain webhook is unauthenticated")
	}

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:          handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, store, redis),
		Lifecycle:       handlers.NewLifecycleHandler(lifecycle),
		Webhook:         handlers.NewWebhookHandler(lifecycle, logger),
		RelayMiddleware: auth.NewRelayMiddleware(relayTokens),
		Metrics:         metrics,
		MetricsPath:     cfg.Metrics.Path,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()
	logger.Info("server started",
		zap.String("addr", cfg.App.Addr()),
		zap.String("storage", cfg.Storage.Driver),
		zap.String("lock", cfg.Lock.Driver))

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
}

func openStore(ctx context.Context, cfg *config.Config, pg *persistence.Postgres, logger *zap.Logger) repository.Store {
	if cfg.Storage.Driver != config.StoragePostgres {
		logger.Info("using in-memory storage")
		return memory.NewStore()
	}
	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}
	return repository.NewPostgresStore(pg.PoolHandle())
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
