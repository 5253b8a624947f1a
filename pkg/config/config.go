package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/rmax-ai/bookgraph/pkg/recommend"
)

// Cache backends selectable with cache.backend.
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendFile   = "file"
	BackendMemory = "memory"
)

const (
	defaultAPIURL     = "http://localhost:8000"
	defaultAddr       = "127.0.0.1:8091"
	defaultUserID     = "default_user"
	defaultSQLiteFile = "bookgraph.db"
	defaultCacheDir   = "bookgraph-cache"
	defaultRedisAddr  = "127.0.0.1:6379"
)

type Config struct {
	API             APIConfig             `koanf:"api"`
	Listen          ListenConfig          `koanf:"listen"`
	User            UserConfig            `koanf:"user"`
	Recommendations RecommendationsConfig `koanf:"recommendations"`
	Cache           CacheConfig           `koanf:"cache"`
	Refresh         RefreshConfig         `koanf:"refresh"`
	Health          HealthConfig          `koanf:"health"`
	Breaker         BreakerConfig         `koanf:"breaker"`
	Log             LogConfig             `koanf:"log"`
}

type APIConfig struct {
	URL     string        `koanf:"url" validate:"required,url"`
	Timeout time.Duration `koanf:"timeout" validate:"gte=0"`
}

type ListenConfig struct {
	Addr string `koanf:"addr" validate:"required"`
}

type UserConfig struct {
	ID string `koanf:"id" validate:"required"`
}

type RecommendationsConfig struct {
	Limit     int      `koanf:"limit" validate:"gt=0"`
	Sort      bool     `koanf:"sort"`
	Filters   []string `koanf:"filters"`
	CacheSize int      `koanf:"cache_size" validate:"gt=0"`
	// CacheTTL of zero disables the in-memory recommendation cache.
	CacheTTL      time.Duration `koanf:"cache_ttl" validate:"gte=0"`
	PersistentTTL time.Duration `koanf:"persistent_ttl" validate:"gte=0"`
}

type CacheConfig struct {
	Backend string `koanf:"backend" validate:"oneof=sqlite redis file memory"`
	// Path is the SQLite database file or the file backend's directory.
	Path          string        `koanf:"path"`
	RedisAddr     string        `koanf:"redis_addr"`
	GraphTTL      time.Duration `koanf:"graph_ttl" validate:"gte=0"`
	Retention     time.Duration `koanf:"retention" validate:"gte=0"`
	PruneInterval time.Duration `koanf:"prune_interval" validate:"gte=0"`
}

type RefreshConfig struct {
	Interval time.Duration `koanf:"interval" validate:"gte=0"`
}

type HealthConfig struct {
	Interval time.Duration `koanf:"interval" validate:"gte=0"`
}

type BreakerConfig struct {
	MaxFailures uint32        `koanf:"max_failures" validate:"gt=0"`
	OpenTimeout time.Duration `koanf:"open_timeout" validate:"gt=0"`
}

type LogConfig struct {
	Level       string `koanf:"level" validate:"oneof=debug info warn error"`
	Development bool   `koanf:"development"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		API:    APIConfig{URL: defaultAPIURL, Timeout: 10 * time.Second},
		Listen: ListenConfig{Addr: defaultAddr},
		User:   UserConfig{ID: defaultUserID},
		Recommendations: RecommendationsConfig{
			Limit:     10,
			Sort:      true,
			Filters:   []string{},
			CacheSize: 20,
			CacheTTL:  5 * time.Minute,
		},
		Cache: CacheConfig{
			Backend:       BackendSQLite,
			RedisAddr:     defaultRedisAddr,
			PruneInterval: time.Hour,
		},
		Health:  HealthConfig{Interval: 30 * time.Second},
		Breaker: BreakerConfig{MaxFailures: 5, OpenTimeout: 30 * time.Second},
		Log:     LogConfig{Level: "info"},
	}
}

var validate = validator.New()

// Validate checks field constraints and that every configured filter is
// known to the recommendation registry.
func (c *Config) Validate() error {
	c.API.URL = strings.TrimSpace(c.API.URL)
	c.Listen.Addr = strings.TrimSpace(c.Listen.Addr)
	c.Cache.Backend = strings.ToLower(strings.TrimSpace(c.Cache.Backend))
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid %s: failed %q (got %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return err
	}
	if _, err := recommend.ParseFilters(c.Recommendations.Filters); err != nil {
		return fmt.Errorf("invalid recommendations.filters: %w (known: %s)",
			err, strings.Join(recommend.FilterNames(), ", "))
	}
	if c.Cache.Backend == BackendRedis && strings.TrimSpace(c.Cache.RedisAddr) == "" {
		return errors.New("cache.backend=redis requires cache.redis_addr")
	}
	return nil
}

// Pipeline builds the recommendation pipeline described by the config.
func (c *Config) Pipeline() (*recommend.Pipeline, error) {
	filters, err := recommend.ParseFilters(c.Recommendations.Filters)
	if err != nil {
		return nil, err
	}
	var sorter recommend.Sorter
	if c.Recommendations.Sort {
		sorter = recommend.ScoreSorter{}
	}
	return recommend.NewPipeline(nil, filters, sorter), nil
}

// CachePath returns the backend location, resolved against cwd. An empty
// path picks a per-backend default.
func (c *Config) CachePath(cwd string) string {
	path := strings.TrimSpace(c.Cache.Path)
	if path == "" {
		switch c.Cache.Backend {
		case BackendSQLite:
			path = defaultSQLiteFile
		case BackendFile:
			path = defaultCacheDir
		}
	}
	return resolvePath(path, cwd)
}

func resolvePath(path string, cwd string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return trimmed
	}
	if strings.HasPrefix(trimmed, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, trimmed[2:])
		}
	}
	if filepath.IsAbs(trimmed) {
		return trimmed
	}
	return filepath.Join(cwd, trimmed)
}
