// Package bootstrap opens the stores and builds the services shared by the
// API server and the operator CLI.
package bootstrap

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/isp-support/internal/config"
	"github.com/spec-kit/isp-support/internal/events"
	"github.com/spec-kit/isp-support/internal/observability"
	"github.com/spec-kit/isp-support/internal/persistence"
	"github.com/spec-kit/isp-support/internal/repository"
	"github.com/spec-kit/isp-support/internal/repository/memory"
	"github.com/spec-kit/isp-support/internal/seed"
	"github.com/spec-kit/isp-support/internal/service"
	"github.com/spec-kit/isp-support/internal/storage"
)

// Runtime holds the opened stores.
type Runtime struct {
	Config   *config.Config
	Logger   *zap.Logger
	Repos    repository.Set
	Postgres *persistence.Postgres
	Blobs    *storage.FileStore
}

// Open connects the configured ticket store and the blob store. With
// cfg.Store.SeedFile set, directory fixtures are applied before returning.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Runtime, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	rt := &Runtime{Config: cfg, Logger: logger}

	switch cfg.Store.Driver {
	case config.DriverPostgres:
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		rt.Postgres = pg
		if cfg.Postgres.RunMigrations {
			applied, err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger)
			if err != nil {
				rt.Close()
				return nil, fmt.Errorf("run migrations: %w", err)
			}
			logger.Info("migrations applied", zap.Int("count", applied))
		}
		rt.Repos = repository.NewPostgresSet(pg.PoolHandle())
	case config.DriverMemory:
		logger.Warn("using in-memory ticket store; data is lost on exit")
		rt.Repos = memory.New().Set()
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	if cfg.Store.SeedFile != "" {
		fixtures, err := seed.LoadFile(cfg.Store.SeedFile)
		if err != nil {
			rt.Close()
			return nil, err
		}
		if _, err := seed.Apply(ctx, rt.Repos.Directory, fixtures, logger); err != nil {
			rt.Close()
			return nil, fmt.Errorf("apply fixtures: %w", err)
		}
	}

	blobs, err := storage.NewFileStore(ctx, cfg.Storage, logger)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("open blob store: %w", err)
	}
	rt.Blobs = blobs
	return rt, nil
}

// Close releases the stores.
func (r *Runtime) Close() {
	if r.Blobs != nil {
		if err := r.Blobs.Close(); err != nil {
			r.Logger.Warn("closing blob store", zap.Error(err))
		}
	}
	r.Postgres.Close()
}

// Services is the full service graph over one Runtime.
type Services struct {
	Dispatcher    events.Dispatcher
	Metrics       *observability.Metrics
	Directory     *service.ActorDirectory
	Tickets       *service.TicketService
	Comments      *service.CommentService
	Attachments   *service.AttachmentService
	Maintenance   *service.MaintenanceService
	Auth          *service.AuthService
	Notifications *service.NotificationService
}

// NewServices wires every service to the runtime's repositories.
func NewServices(rt *Runtime) *Services {
	logger := rt.Logger
	repos := rt.Repos
	dispatcher := events.NewInMemoryDispatcher(logger.Named("events"))
	metrics := observability.NewMetrics()

	return &Services{
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Directory:  service.NewActorDirectory(repos.Actors),
		Tickets: service.NewTicketService(service.TicketDependencies{
			TicketRepo:     repos.Tickets,
			ConnectionRepo: repos.Connections,
			ActorRepo:      repos.Actors,
			AttachmentRepo: repos.Attachments,
			Dispatcher:     dispatcher,
			Metrics:        metrics,
			Logger:         logger.Named("tickets"),
			Config:         rt.Config.Tickets,
		}),
		Comments: service.NewCommentService(service.CommentDependencies{
			TicketRepo:     repos.Tickets,
			CommentRepo:    repos.Comments,
			AttachmentRepo: repos.Attachments,
			ConnectionRepo: repos.Connections,
			ActorRepo:      repos.Actors,
			Blobs:          rt.Blobs,
			Dispatcher:     dispatcher,
			Metrics:        metrics,
			Logger:         logger.Named("comments"),
		}),
		Attachments: service.NewAttachmentService(service.AttachmentDependencies{
			TicketRepo:     repos.Tickets,
			CommentRepo:    repos.Comments,
			AttachmentRepo: repos.Attachments,
			ConnectionRepo: repos.Connections,
			ActorRepo:      repos.Actors,
			Blobs:          rt.Blobs,
			Dispatcher:     dispatcher,
			Metrics:        metrics,
			Logger:         logger.Named("attachments"),
		}),
		Maintenance: service.NewMaintenanceService(service.MaintenanceDependencies{
			ConnectionRepo: repos.Connections,
			CommentRepo:    repos.Comments,
			AttachmentRepo: repos.Attachments,
			Blobs:          rt.Blobs,
			Logger:         logger.Named("maintenance"),
		}),
		Auth:          service.NewAuthService(*rt.Config, service.AuthDependencies{ActorRepo: repos.Actors}),
		Notifications: service.NewNotificationService(dispatcher, logger.Named("notifications"), rt.Config.Notification),
	}
}
