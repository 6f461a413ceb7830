// Package bootstrap assembles the object graph with samber/do. Every
// provider is lazy: nothing is opened until something invokes it.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/do"

	"github.com/sakif/sanctuary/internal/auth"
	"github.com/sakif/sanctuary/internal/config"
	"github.com/sakif/sanctuary/internal/handler"
	"github.com/sakif/sanctuary/internal/mailer"
	"github.com/sakif/sanctuary/internal/ratelimit"
	"github.com/sakif/sanctuary/internal/reminder"
	"github.com/sakif/sanctuary/internal/repository"
	"github.com/sakif/sanctuary/internal/repository/firestore"
	"github.com/sakif/sanctuary/internal/repository/sqlite"
	"github.com/sakif/sanctuary/internal/server"
	"github.com/sakif/sanctuary/internal/service"
)

const dialTimeout = 10 * time.Second

// Database is a storage adapter that can also answer health probes.
type Database interface {
	repository.Adapter
	Ping(ctx context.Context) error
}

// BuildContainer registers every component. cfg and logger are provided
// as values since main needs them before the container exists.
func BuildContainer(cfg *config.Config, logger *slog.Logger) *do.Injector {
	inj := do.New()

	do.ProvideValue(inj, cfg)
	do.ProvideValue(inj, logger)
	do.ProvideValue(inj, &closers{})

	// storage
	do.Provide(inj, func(i *do.Injector) (Database, error) {
		cfg := do.MustInvoke[*config.Config](i)
		log := do.MustInvoke[*slog.Logger](i)
		db, err := openDatabase(cfg, log)
		if err != nil {
			return nil, err
		}
		do.MustInvoke[*closers](i).add(db.Close)
		return db, nil
	})

	// redis is optional; nil when no address is configured
	do.Provide(inj, func(i *do.Injector) (*redis.Client, error) {
		cfg := do.MustInvoke[*config.Config](i)
		if cfg.Redis.Addr == "" {
			return nil, nil
		}
		ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
		defer cancel()
		client, err := ratelimit.DialRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, err
		}
		do.MustInvoke[*closers](i).add(client.Close)
		return client, nil
	})

	do.Provide(inj, func(i *do.Injector) (ratelimit.Limiter, error) {
		if client := do.MustInvoke[*redis.Client](i); client != nil {
			return ratelimit.NewRedis(client), nil
		}
		do.MustInvoke[*slog.Logger](i).Info("redis not configured, using in-process rate limiter")
		return ratelimit.NewMemory(), nil
	})

	do.Provide(inj, func(i *do.Injector) (*auth.TokenService, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	})

	do.Provide(inj, func(i *do.Injector) (mailer.Mailer, error) {
		return mailer.NewLog(do.MustInvoke[*slog.Logger](i)), nil
	})

	provideServices(inj)
	provideHandlers(inj)

	// sweeper
	do.Provide(inj, func(i *do.Injector) (*reminder.Sweeper, error) {
		return reminder.New(
			do.MustInvoke[Database](i),
			do.MustInvoke[*service.NotificationService](i),
			do.MustInvoke[*service.SpaceService](i),
			do.MustInvoke[*service.AuthService](i),
			do.MustInvoke[*slog.Logger](i),
		), nil
	})

	// http server
	do.Provide(inj, func(i *do.Injector) (*server.Server, error) {
		cfg := do.MustInvoke[*config.Config](i)
		log := do.MustInvoke[*slog.Logger](i)
		requireAuth := auth.RequireAuth(
			do.MustInvoke[*auth.TokenService](i),
			do.MustInvoke[Database](i),
			log,
		)
		return server.New(
			server.Config{Port: cfg.HTTP.Port, AllowedOrigins: cfg.HTTP.AllowedOrigins},
			server.Handlers{
				Health:        do.MustInvoke[*handler.HealthHandler](i),
				Auth:          do.MustInvoke[*handler.AuthHandler](i),
				Spaces:        do.MustInvoke[*handler.SpaceHandler](i),
				Memories:      do.MustInvoke[*handler.MemoryHandler](i),
				Milestones:    do.MustInvoke[*handler.MilestoneHandler](i),
				Notifications: do.MustInvoke[*handler.NotificationHandler](i),
				Reactions:     do.MustInvoke[*handler.ReactionHandler](i),
				Comments:      do.MustInvoke[*handler.CommentHandler](i),
			},
			requireAuth,
			log,
		), nil
	})

	return inj
}

func provideServices(inj *do.Injector) {
	do.Provide(inj, func(i *do.Injector) (*service.NotificationService, error) {
		return service.NewNotificationService(do.MustInvoke[Database](i), do.MustInvoke[*slog.Logger](i)), nil
	})

	do.Provide(inj, func(i *do.Injector) (*service.AuthService, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return service.NewAuthService(
			do.MustInvoke[Database](i),
			do.MustInvoke[*auth.TokenService](i),
			do.MustInvoke[ratelimit.Limiter](i),
			do.MustInvoke[mailer.Mailer](i),
			service.AuthConfig{CodeTTL: cfg.Auth.CodeTTL, CodeCooldown: cfg.Auth.CodeCooldown},
			do.MustInvoke[*slog.Logger](i),
		), nil
	})

	do.Provide(inj, func(i *do.Injector) (*service.SpaceService, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return service.NewSpaceService(
			do.MustInvoke[Database](i),
			do.MustInvoke[*service.NotificationService](i),
			service.SpaceConfig{UnbindCoolingOff: cfg.Space.UnbindCoolingOff},
			do.MustInvoke[*slog.Logger](i),
		), nil
	})

	do.Provide(inj, func(i *do.Injector) (*service.MemoryService, error) {
		return service.NewMemoryService(
			do.MustInvoke[Database](i),
			do.MustInvoke[*service.NotificationService](i),
			do.MustInvoke[*slog.Logger](i),
		), nil
	})

	do.Provide(inj, func(i *do.Injector) (*service.MilestoneService, error) {
		return service.NewMilestoneService(
			do.MustInvoke[Database](i),
			do.MustInvoke[*service.NotificationService](i),
			do.MustInvoke[*slog.Logger](i),
		), nil
	})

	do.Provide(inj, func(i *do.Injector) (*service.ReactionService, error) {
		return service.NewReactionService(
			do.MustInvoke[Database](i),
			do.MustInvoke[*service.NotificationService](i),
			do.MustInvoke[*slog.Logger](i),
		), nil
	})

	do.Provide(inj, func(i *do.Injector) (*service.CommentService, error) {
		return service.NewCommentService(
			do.MustInvoke[Database](i),
			do.MustInvoke[*service.NotificationService](i),
			do.MustInvoke[*slog.Logger](i),
		), nil
	})
}

func provideHandlers(inj *do.Injector) {
	do.Provide(inj, func(i *do.Injector) (*handler.HealthHandler, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return handler.NewHealthHandler(do.MustInvoke[Database](i), cfg.Database.Driver, do.MustInvoke[*slog.Logger](i)), nil
	})
	do.Provide(inj, func(i *do.Injector) (*handler.AuthHandler, error) {
		return handler.NewAuthHandler(do.MustInvoke[*service.AuthService](i), do.MustInvoke[*slog.Logger](i)), nil
	})
	do.Provide(inj, func(i *do.Injector) (*handler.SpaceHandler, error) {
		return handler.NewSpaceHandler(do.MustInvoke[*service.SpaceService](i), do.MustInvoke[*slog.Logger](i)), nil
	})
	do.Provide(inj, func(i *do.Injector) (*handler.MemoryHandler, error) {
		return handler.NewMemoryHandler(do.MustInvoke[*service.MemoryService](i), do.MustInvoke[*slog.Logger](i)), nil
	})
	do.Provide(inj, func(i *do.Injector) (*handler.MilestoneHandler, error) {
		return handler.NewMilestoneHandler(do.MustInvoke[*service.MilestoneService](i), do.MustInvoke[*slog.Logger](i)), nil
	})
	do.Provide(inj, func(i *do.Injector) (*handler.NotificationHandler, error) {
		return handler.NewNotificationHandler(do.MustInvoke[*service.NotificationService](i), do.MustInvoke[*slog.Logger](i)), nil
	})
	do.Provide(inj, func(i *do.Injector) (*handler.ReactionHandler, error) {
		return handler.NewReactionHandler(do.MustInvoke[*service.ReactionService](i), do.MustInvoke[*slog.Logger](i)), nil
	})
	do.Provide(inj, func(i *do.Injector) (*handler.CommentHandler, error) {
		return handler.NewCommentHandler(do.MustInvoke[*service.CommentService](i), do.MustInvoke[*slog.Logger](i)), nil
	})
}

func openDatabase(cfg *config.Config, logger *slog.Logger) (Database, error) {
	switch cfg.Database.Driver {
	case config.DriverSQLite:
		db, err := sqlite.New(cfg.Database.SQLitePath)
		if err != nil {
			return nil, err
		}
		logger.Info("database opened", slog.String("driver", config.DriverSQLite), slog.String("path", cfg.Database.SQLitePath))
		return db, nil
	case config.DriverFirestore:
		ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
		defer cancel()
		st, err := firestore.New(ctx, firestore.Config{
			ProjectID:       cfg.Firestore.ProjectID,
			CredentialsFile: cfg.Firestore.CredentialsFile,
		})
		if err != nil {
			return nil, err
		}
		logger.Info("database opened", slog.String("driver", config.DriverFirestore), slog.String("project", cfg.Firestore.ProjectID))
		return st, nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown database driver %q", cfg.Database.Driver)
	}
}

// closers collects the Close funcs of connections opened by providers.
type closers struct {
	mu  sync.Mutex
	fns []func() error
}

func (c *closers) add(fn func() error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fns = append(c.fns, fn)
}

// Close releases the connections the container opened, newest first.
// Components that were never invoked hold nothing to release.
func Close(inj *do.Injector) error {
	c := do.MustInvoke[*closers](inj)
	c.mu.Lock()
	fns := slices.Clone(c.fns)
	c.fns = nil
	c.mu.Unlock()

	var errs []error
	for _, fn := range slices.Backward(fns) {
		errs = append(errs, fn())
	}
	return errors.Join(errs...)
}
