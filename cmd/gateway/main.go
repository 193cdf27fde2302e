package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/flexicms/tenant-gateway/internal/api/http"
	"github.com/flexicms/tenant-gateway/internal/api/http/handlers"
	"github.com/flexicms/tenant-gateway/internal/apiclient"
	"github.com/flexicms/tenant-gateway/internal/auth"
	"github.com/flexicms/tenant-gateway/internal/config"
	"github.com/flexicms/tenant-gateway/internal/events"
	"github.com/flexicms/tenant-gateway/internal/observability"
	"github.com/flexicms/tenant-gateway/internal/persistence"
	"github.com/flexicms/tenant-gateway/internal/repository"
	"github.com/flexicms/tenant-gateway/internal/routing"
	"github.com/flexicms/tenant-gateway/internal/service"
	"github.com/flexicms/tenant-gateway/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.App, cfg.Logger)
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
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	backend := apiclient.New(cfg.Backend, logger.Named("backend"))

	var tenantRepo repository.TenantRepository
	if pool := pg.PoolHandle(); pool != nil {
		tenantRepo = repository.NewTenantRepository(pool)
	}
	directory := service.NewTenantDirectory(tenantRepo,
		repository.NewRedisTenantCache(redis.Handle()),
		cfg.Tenancy.TenantCacheTTL(),
		logger.Named("tenants"))

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	revocations := auth.NewRedisRevocations(redis.Handle())
	loader := auth.NewSessionLoader(auth.NewResolver(tokens, revocations),
		cfg.Session.CookieName,
		cfg.Session.LookupTimeout(),
		logger.Named("session"))

	sessionService := service.NewSessionService(service.SessionDependencies{
		Backend:     backend,
		Tokens:      tokens,
		Revocations: revocations,
		Dispatcher:  dispatcher,
		Logger:      logger,
	})
	signupService := service.NewSignupService(cfg.Tenancy, service.SignupDependencies{
		TenantRepo: tenantRepo,
		Owners:     backend,
		Directory:  directory,
		Dispatcher: dispatcher,
		Logger:     logger,
	})

	var webhooks *worker.WebhookWorker
	if cfg.Notification.WebhookURL != "" {
		webhooks = worker.NewWebhookWorker(cfg.Notification, worker.FiberSender{}, logger.Named("webhook"))
	}
	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notification, webhooks)
	stopNotifications := worker.StartNotificationWorker(ctx, notificationService, webhooks)

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: !cfg.App.IsDevelopment(),
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	healthHandler := handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{
		"postgres": pg,
		"redis":    redis,
	}, persistence.ErrNotConfigured, metrics)

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:      healthHandler,
		Sessions:    handlers.NewSessionHandler(sessionService, loader, cfg.Session),
		Signup:      handlers.NewSignupHandler(signupService),
		TenantAdmin: handlers.NewTenantAdminHandler(directory),
		Pages:       handlers.NewPagesHandler(cfg.Renderer, directory, logger.Named("pages")),
		Tenancy:     routing.NewMiddleware(cfg.Tenancy, loader, logger.Named("routing"), metrics),
		Loader:      loader,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
	stopNotifications()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
