package http

import (
	"context"
	"errors"
	"fmt"

	"identityapp/internal/adapter/database/memory"
	"identityapp/internal/adapter/database/postgres"
	pgrepository "identityapp/internal/adapter/database/postgres/repository"
	"identityapp/internal/adapter/database/redis"
	"identityapp/internal/adapter/database/sqlite"
	sqliterepository "identityapp/internal/adapter/database/sqlite/repository"
	"identityapp/internal/adapter/http/handler"
	"identityapp/internal/adapter/storage"
	"identityapp/internal/core/port"
	"identityapp/internal/core/service"
	"identityapp/internal/core/telemetry"
	"identityapp/internal/core/util"
	"identityapp/pkg/config"
)

type Container struct {
	UserRepo port.UserRepository
	Blobs    port.BlobStore
	Cache    port.CacheRepository

	Identity port.IdentityService

	UserHandler *handler.UserHandler
	AuthHandler *handler.AuthHandler

	closers []func() error
}

// NewContainer builds every collaborator from cfg. Close releases them in
// reverse order.
func NewContainer(ctx context.Context, cfg *config.AppConfig, metrics *telemetry.AppMetrics, probe port.Telemetry) (*Container, error) {
	c := &Container{}

	userRepo, err := c.userRepository(ctx, cfg, probe)
	if err != nil {
		c.Close()
		return nil, err
	}

	cache, err := c.cacheRepository(ctx, cfg, metrics)
	if err != nil {
		c.Close()
		return nil, err
	}

	blobs, err := storage.NewS3Store(ctx, cfg.Storage)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("blob store: %w", err)
	}

	tokens, err := util.NewJWTIssuer(cfg.SigningSecret)
	if err != nil {
		c.Close()
		return nil, err
	}

	c.UserRepo = userRepo
	c.Cache = cache
	c.Blobs = blobs
	c.Identity = service.NewIdentityService(userRepo, util.NewBcryptHasher(), tokens, blobs, cache, probe)
	c.AuthHandler = handler.NewAuthHandler(c.Identity)
	c.UserHandler = handler.NewUserHandler(c.Identity)

	return c, nil
}

func (c *Container) userRepository(ctx context.Context, cfg *config.AppConfig, probe port.Telemetry) (port.UserRepository, error) {
	switch cfg.DatabaseDriver {
	case "postgres":
		db, err := postgres.NewDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}

		c.closers = append(c.closers, func() error { db.Close(); return nil })

		return pgrepository.NewUserRepository(db, probe), nil
	default:
		db, err := sqlite.New(sqlite.Options{Path: cfg.DatabasePath, LogQuery: !cfg.IsProduction()})
		if err != nil {
			return nil, fmt.Errorf("sqlite: %w", err)
		}

		c.closers = append(c.closers, db.Close)

		return sqliterepository.NewUserRepository(db, probe), nil
	}
}

func (c *Container) cacheRepository(ctx context.Context, cfg *config.AppConfig, metrics *telemetry.AppMetrics) (port.CacheRepository, error) {
	var (
		cache port.CacheRepository
		err   error
	)

	switch cfg.CacheDriver {
	case "redis":
		cache, err = redis.NewRedisRepository(ctx, cfg.RedisAddr, metrics)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
	default:
		cache = memory.NewMemoryRepository(metrics)
	}

	c.closers = append(c.closers, cache.Close)

	return cache, nil
}

func (c *Container) Close() error {
	var errs []error

	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}

	c.closers = nil

	return errors.Join(errs...)
}
