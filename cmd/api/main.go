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

	httptransport "github.com/spec-kit/isp-support/internal/api/http"
	"github.com/spec-kit/isp-support/internal/api/http/handlers"
	"github.com/spec-kit/isp-support/internal/auth"
	"github.com/spec-kit/isp-support/internal/bootstrap"
	"github.com/spec-kit/isp-support/internal/config"
	"github.com/spec-kit/isp-support/internal/observability"
	"github.com/spec-kit/isp-support/internal/persistence"
	"github.com/spec-kit/isp-support/internal/realtime"
	"github.com/spec-kit/isp-support/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt, err := bootstrap.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to open stores", zap.Error(err))
	}
	defer rt.Close()

	services := bootstrap.NewServices(rt)
	worker.StartNotificationWorker(services.Notifications)

	hub := realtime.NewHub(cfg.Realtime, services.Metrics, logger.Named("realtime"))
	hub.Attach(services.Dispatcher)

	deps := map[string]handlers.Pinger{"blobs": rt.Blobs}
	if rt.Postgres != nil {
		deps["postgres"] = rt.Postgres
	}

	var relayDone <-chan struct{}
	if cfg.Realtime.RedisRelay {
		redis := persistence.NewRedis(ctx, cfg.Redis, logger)
		defer redis.Close()
		deps["redis"] = redis

		relay := realtime.NewRedisRelay(redis.Client, cfg.Realtime, hub, logger.Named("relay"))
		relay.Attach(services.Dispatcher)
		relayDone = worker.StartRunner(ctx, "event-relay", relay, logger)
	}

	authMiddleware := auth.NewAuthMiddleware(services.Auth.TokenManager(), services.Directory)

	app := fiber.New(fiber.Config{
		AppName:   cfg.App.Name,
		BodyLimit: int(cfg.Storage.MaxUploadBytes) + 1<<20,
	})
	httptransport.RegisterMiddlewares(app, logger, services.Metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, services.Metrics, deps),
		Auth:           handlers.NewAuthHandler(services.Auth, cfg.Auth.DevTokens),
		Tickets:        handlers.NewTicketsHandler(services.Tickets),
		Comments:       handlers.NewCommentsHandler(services.Comments),
		Attachments:    handlers.NewAttachmentsHandler(services.Attachments),
		Realtime:       realtime.NewHandler(hub, services.Tickets, cfg.Realtime, logger.Named("ws")),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	cancel()
	if relayDone != nil {
		<-relayDone
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
