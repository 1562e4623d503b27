package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/dmitrymomot/ihsan/pkg/db"
	"github.com/dmitrymomot/ihsan/pkg/logger"
	"github.com/dmitrymomot/ihsan/pkg/redis"
)

// Backend names the Store the service runs on.
type Backend string

const (
	BackendMemory   Backend = "memory"
	BackendSQLite   Backend = "sqlite"
	BackendRedis    Backend = "redis"
	BackendPostgres Backend = "postgres"
)

// Sentinel errors returned by Load and LoadFrom.
var (
	// ErrParse wraps failures of the env parser.
	ErrParse = errors.New("config: failed to parse environment")

	// ErrUnknownBackend is returned when CACHE_BACKEND names no known store.
	ErrUnknownBackend = errors.New("config: unknown cache backend")

	// ErrMissingSetting is returned when the chosen backend or warming lacks
	// a setting it depends on.
	ErrMissingSetting = errors.New("config: required setting is empty")

	// ErrInvalidSchedule is returned when a warm schedule is set without warm paths.
	ErrInvalidSchedule = errors.New("config: warm schedule requires warm paths")
)

// Config is the process configuration of the cache service.
type Config struct {
	Log    logger.Config
	Sentry logger.SentryConfig
	DB     db.Config
	Redis  redis.Config

	Backend    Backend `env:"CACHE_BACKEND" envDefault:"memory"`
	SQLitePath string  `env:"SQLITE_PATH" envDefault:"ihsan-cache.db"`

	MaxSize         int           `env:"CACHE_MAX_SIZE" envDefault:"1000"`
	MaxMemory       int64         `env:"CACHE_MAX_MEMORY" envDefault:"52428800"`
	DefaultTTL      time.Duration `env:"CACHE_DEFAULT_TTL" envDefault:"0s"`
	CleanupInterval time.Duration `env:"CACHE_CLEANUP_INTERVAL" envDefault:"1m"`
	SingleFlight    bool          `env:"CACHE_SINGLE_FLIGHT" envDefault:"false"`

	HTTPAddr        string        `env:"HTTP_ADDR" envDefault:":8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
	MetricsNS       string        `env:"METRICS_NAMESPACE" envDefault:"ihsan"`

	UpstreamURL  string        `env:"UPSTREAM_URL"`
	UpstreamTTL  time.Duration `env:"UPSTREAM_TTL" envDefault:"5m"`
	WarmPaths    []string      `env:"WARM_PATHS" envSeparator:","`
	WarmSchedule string        `env:"WARM_SCHEDULE"`

	// Zero failures disables the upstream circuit breaker.
	BreakerFailures uint32        `env:"UPSTREAM_BREAKER_FAILURES" envDefault:"5"`
	BreakerCooldown time.Duration `env:"UPSTREAM_BREAKER_COOLDOWN" envDefault:"30s"`
}

// Load reads Config from the environment and validates it.
func Load() (Config, error) {
	return parse(env.Options{})
}

// LoadFrom is Load over an explicit variable set instead of the process
// environment.
func LoadFrom(vars map[string]string) (Config, error) {
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, errors.Join(ErrParse, err)
	}
	cfg.Backend = Backend(strings.ToLower(strings.TrimSpace(string(cfg.Backend))))
	cfg.WarmPaths = trimAll(cfg.WarmPaths)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that the settings required by the selected backend and
// features are present.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendMemory:
	case BackendSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("%w: SQLITE_PATH", ErrMissingSetting)
		}
	case BackendRedis:
		if c.Redis.URL == "" {
			return fmt.Errorf("%w: REDIS_URL", ErrMissingSetting)
		}
	case BackendPostgres:
		if c.DB.ConnectionString == "" {
			return fmt.Errorf("%w: DATABASE_CONN_URL", ErrMissingSetting)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, c.Backend)
	}

	if len(c.WarmPaths) > 0 && c.UpstreamURL == "" {
		return fmt.Errorf("%w: UPSTREAM_URL", ErrMissingSetting)
	}
	if c.WarmSchedule != "" && len(c.WarmPaths) == 0 {
		return ErrInvalidSchedule
	}
	return nil
}

func trimAll(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
