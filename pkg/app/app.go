// Package app composes a controller and its collaborators from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/rmax-ai/bookgraph/pkg/blob"
	"github.com/rmax-ai/bookgraph/pkg/cache"
	"github.com/rmax-ai/bookgraph/pkg/config"
	"github.com/rmax-ai/bookgraph/pkg/engine"
	"github.com/rmax-ai/bookgraph/pkg/gateway"
	"github.com/rmax-ai/bookgraph/pkg/store"
	redisstore "github.com/rmax-ai/bookgraph/pkg/store/redis"
)

const redisPingTimeout = 3 * time.Second

// App owns the controller, gateway and persistent cache backend of one
// process.
type App struct {
	Config     *config.Config
	Logger     *zap.Logger
	Gateway    *gateway.Client
	Controller *engine.Controller

	closers []func() error
}

// New wires the gateway, caches and controller. The controller is not
// initialized; callers run Init themselves.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{Config: cfg, Logger: logger}

	backend, err := a.openBackend()
	if err != nil {
		return nil, err
	}

	pipeline, err := cfg.Pipeline()
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("invalid recommendation pipeline: %w", err)
	}

	a.Gateway = gateway.New(cfg.API.URL,
		gateway.WithTimeout(cfg.API.Timeout),
		gateway.WithBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.OpenTimeout),
		gateway.WithLogger(logger.Named("gateway")),
	)

	a.Controller = engine.NewController(a.Gateway, engine.Options{
		Persistent: cache.NewPersistentCache(backend, logger.Named("cache")),
		Memory:     cache.NewRecommendationCache(cfg.Recommendations.CacheSize),
		Pipeline:   pipeline,
		Recommendations: engine.RecommendationConfig{
			UserID:        cfg.User.ID,
			Limit:         cfg.Recommendations.Limit,
			CacheTTL:      cfg.Recommendations.CacheTTL,
			PersistentTTL: cfg.Recommendations.PersistentTTL,
		},
		GraphTTL:        cfg.Cache.GraphTTL,
		RefreshInterval: cfg.Refresh.Interval,
		HealthInterval:  cfg.Health.Interval,
		Retention: engine.RetentionConfig{
			Retention:     cfg.Cache.Retention,
			CheckInterval: cfg.Cache.PruneInterval,
		},
		Logger: logger.Named("engine"),
	})
	return a, nil
}

func (a *App) openBackend() (cache.Backend, error) {
	cfg := a.Config
	switch cfg.Cache.Backend {
	case config.BackendSQLite:
		path, err := a.cachePath()
		if err != nil {
			return nil, err
		}
		st, err := store.NewStore(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite cache: %w", err)
		}
		a.closers = append(a.closers, st.Close)
		a.Logger.Info("cache_backend_opened", zap.String("backend", cfg.Cache.Backend), zap.String("path", path))
		return st, nil

	case config.BackendFile:
		path, err := a.cachePath()
		if err != nil {
			return nil, err
		}
		fs, err := blob.NewFileStore(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open file cache: %w", err)
		}
		a.Logger.Info("cache_backend_opened", zap.String("backend", cfg.Cache.Backend), zap.String("path", path))
		return fs, nil

	case config.BackendRedis:
		client := goredis.NewClient(&goredis.Options{Addr: cfg.Cache.RedisAddr})
		ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to reach redis at %s: %w", cfg.Cache.RedisAddr, err)
		}
		a.closers = append(a.closers, client.Close)
		a.Logger.Info("cache_backend_opened", zap.String("backend", cfg.Cache.Backend), zap.String("addr", cfg.Cache.RedisAddr))
		return redisstore.NewStore(client, ""), nil

	case config.BackendMemory:
		return cache.NewMemoryBackend(), nil
	}
	return nil, fmt.Errorf("unsupported cache backend: %s", cfg.Cache.Backend)
}

func (a *App) cachePath() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get cwd: %w", err)
	}
	return a.Config.CachePath(cwd), nil
}

// Close disposes the controller and releases the cache backend.
func (a *App) Close() error {
	if a.Controller != nil {
		a.Controller.Dispose()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
