package efficio

import (
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ghost-in-the-sushi/efficio-webapp/ids"
	"github.com/ghost-in-the-sushi/efficio-webapp/internal/audit"
	"github.com/ghost-in-the-sushi/efficio-webapp/internal/rate"
	"github.com/ghost-in-the-sushi/efficio-webapp/internal/stores"
	"github.com/ghost-in-the-sushi/efficio-webapp/password"
	"github.com/ghost-in-the-sushi/efficio-webapp/session"
)

// Builder assembles an [Engine]. Configure it during initialization and
// call Build once.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	resources ResourceDeleter
	auditSink AuditSink
	logger    *slog.Logger

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRedis sets the backend: a single node or a sentinel-managed failover
// client. Redis Cluster and Ring are not supported because the session and
// account scripts touch keys that hash to different slots.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithResourceDeleter sets the component that removes resources owned by
// an account during DeleteAccount. It defaults to the built-in owned-store
// registry on the same Redis.
func (b *Builder) WithResourceDeleter(d ResourceDeleter) *Builder {
	b.resources = d
	return b
}

// WithAuditSink sets where audit events go when Config.Audit.Enabled.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the structured logger. The default discards.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithMetricsEnabled toggles in-process metrics.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration and wires the engine.
//
// Build may return an error when the configuration is invalid or a
// dependency is missing. A Builder can be used only once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	switch b.redis.(type) {
	case *redis.ClusterClient, *redis.Ring:
		return nil, errors.New("redis cluster and ring clients are not supported")
	}

	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	hasher, err := password.NewHasher(password.Config{
		Memory:         cfg.Password.Memory,
		Time:           cfg.Password.Time,
		Parallelism:    cfg.Password.Parallelism,
		KeyLength:      cfg.Password.KeyLength,
		MaxSecretBytes: cfg.Password.MaxSecretBytes,
	})
	if err != nil {
		return nil, err
	}
	pool := password.NewPool(hasher, cfg.Password.MaxConcurrentHashes)

	metrics := NewMetrics(cfg.Metrics)
	if metrics.LatencyEnabled() {
		pool.OnHash(func(d time.Duration) {
			metrics.Observe(MetricHashLatency, d)
		})
	}

	gen := ids.NewGenerator(b.redis, pool.Hash, password.NewSalt)
	strategy, err := ids.NewStrategy(cfg.Identifiers.Strategy, gen, cfg.Identifiers.CounterKey, cfg.Identifiers.SaltKey)
	if err != nil {
		return nil, err
	}

	resources := b.resources
	if resources == nil {
		resources = stores.NewResources(b.redis)
	}

	engine := &Engine{
		config:    cfg,
		logger:    logger,
		redis:     b.redis,
		sessions:  session.NewStore(b.redis, cfg.Session.TTL),
		resources: resources,
		metrics:   metrics,
	}
	engine.accounts = stores.NewAccounts(b.redis, stores.AccountsConfig{
		Usernames: stores.NewUsernames(b.redis, stores.DefaultUsernameIndexKey),
		IDs:       strategy,
		Hasher:    pool,
		NewSalt:   password.NewSalt,
		NewToken:  session.NewToken,
	})
	engine.limiter = rate.New(b.redis, rate.Config{
		Enabled:          cfg.Security.EnableLoginThrottle,
		EnableIPThrottle: cfg.Security.EnableIPThrottle,
		MaxAttempts:      cfg.Security.MaxLoginAttempts,
		Cooldown:         cfg.Security.LoginCooldownDuration,
	})
	engine.audit = audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)

	b.built = true
	return engine, nil
}
