package main

import (
	"flag"
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"

	efficio "github.com/ghost-in-the-sushi/efficio-webapp"
)

// Config holds server configuration. Environment variables seed it and
// flags override them.
type Config struct {
	Addr            string        `env:"EFFICIO_ADDR" envDefault:"127.0.0.1:3030"`
	RedisAddr       string        `env:"EFFICIO_REDIS_ADDR" envDefault:"127.0.0.1:6379"`
	RedisPassword   string        `env:"EFFICIO_REDIS_PASSWORD"`
	RedisDB         int           `env:"EFFICIO_REDIS_DB" envDefault:"0"`
	Memory          bool          `env:"EFFICIO_MEMORY_STORE"`
	IDStrategy      string        `env:"EFFICIO_ID_STRATEGY" envDefault:"obfuscated"`
	SessionTTL      time.Duration `env:"EFFICIO_SESSION_TTL" envDefault:"0s"`
	EnableFlush     bool          `env:"EFFICIO_ENABLE_FLUSH"`
	LoginThrottle   bool          `env:"EFFICIO_LOGIN_THROTTLE" envDefault:"true"`
	IPThrottle      bool          `env:"EFFICIO_IP_THROTTLE"`
	Audit           bool          `env:"EFFICIO_AUDIT"`
	Metrics         bool          `env:"EFFICIO_METRICS" envDefault:"true"`
	LogLevel        string        `env:"EFFICIO_LOG_LEVEL" envDefault:"info"`
	LogFormat       string        `env:"EFFICIO_LOG_FORMAT" envDefault:"json"`
	ShutdownTimeout time.Duration `env:"EFFICIO_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// ParseConfig reads the environment, then parses args into fs.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "listen address (EFFICIO_ADDR)")
	fs.StringVar(&cfg.RedisAddr, "redis-addr", cfg.RedisAddr, "redis address (EFFICIO_REDIS_ADDR)")
	fs.IntVar(&cfg.RedisDB, "redis-db", cfg.RedisDB, "redis database number (EFFICIO_REDIS_DB)")
	fs.BoolVar(&cfg.Memory, "memory", cfg.Memory, "serve from an in-process miniredis instead of redis (EFFICIO_MEMORY_STORE)")
	fs.StringVar(&cfg.IDStrategy, "ids", cfg.IDStrategy, "account id strategy: sequential or obfuscated (EFFICIO_ID_STRATEGY)")
	fs.DurationVar(&cfg.SessionTTL, "session-ttl", cfg.SessionTTL, "session lifetime, 0 keeps sessions until logout (EFFICIO_SESSION_TTL)")
	fs.BoolVar(&cfg.EnableFlush, "enable-flush", cfg.EnableFlush, "expose GET /nuke (EFFICIO_ENABLE_FLUSH)")
	fs.BoolVar(&cfg.Audit, "audit", cfg.Audit, "write audit events as JSON lines to stderr (EFFICIO_AUDIT)")
	fs.BoolVar(&cfg.Metrics, "metrics", cfg.Metrics, "serve prometheus metrics on /metrics (EFFICIO_METRICS)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error (EFFICIO_LOG_LEVEL)")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "json or text (EFFICIO_LOG_FORMAT)")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return Config{}, fmt.Errorf("unknown log format %q", cfg.LogFormat)
	}
	if _, err := cfg.level(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log level: %w", err)
	}
	return level, nil
}

// EngineConfig maps the server settings onto the engine defaults.
func (c Config) EngineConfig() efficio.Config {
	cfg := efficio.DefaultConfig()
	cfg.Identifiers.Strategy = c.IDStrategy
	cfg.Session.TTL = c.SessionTTL
	cfg.Security.EnableLoginThrottle = c.LoginThrottle
	cfg.Security.EnableIPThrottle = c.IPThrottle
	cfg.Audit.Enabled = c.Audit
	cfg.Metrics.Enabled = c.Metrics
	cfg.Maintenance.EnableFlush = c.EnableFlush
	return cfg
}
