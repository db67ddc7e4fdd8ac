package efficio

import (
	"errors"
	"fmt"
	"time"

	"github.com/ghost-in-the-sushi/efficio-webapp/ids"
)

// Config is the complete Engine configuration. Start from [DefaultConfig]
// and override fields; [Builder.Build] calls [Config.Validate].
type Config struct {
	Password    PasswordConfig
	Session     SessionConfig
	Identifiers IdentifierConfig
	Security    SecurityConfig
	Audit       AuditConfig
	Metrics     MetricsConfig
	Maintenance MaintenanceConfig
}

// PasswordConfig tunes Argon2id. The same parameters hash passwords, emails
// and obfuscated identifiers, so changing them invalidates stored digests
// and changes the identifier sequence.
type PasswordConfig struct {
	Memory              uint32
	Time                uint32
	Parallelism         uint8
	KeyLength           uint32
	MaxSecretBytes      int
	MaxConcurrentHashes int
}

// SessionConfig controls session storage. TTL 0 keeps sessions until they
// are revoked.
type SessionConfig struct {
	TTL time.Duration
}

// IdentifierConfig selects how account ids are rendered.
type IdentifierConfig struct {
	Strategy   string
	CounterKey string
	SaltKey    string
}

// SecurityConfig holds login throttling and input limits.
type SecurityConfig struct {
	EnableLoginThrottle   bool
	EnableIPThrottle      bool
	MaxLoginAttempts      int
	LoginCooldownDuration time.Duration
	MaxUsernameLength     int
	MaxEmailLength        int
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig toggles in-process counters and the hash latency histogram.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// MaintenanceConfig gates destructive operator actions.
type MaintenanceConfig struct {
	EnableFlush bool
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		Password: PasswordConfig{
			Memory:              64 * 1024,
			Time:                3,
			Parallelism:         2,
			KeyLength:           32,
			MaxSecretBytes:      1024,
			MaxConcurrentHashes: 0,
		},
		Session: SessionConfig{
			TTL: 0,
		},
		Identifiers: IdentifierConfig{
			Strategy:   ids.StrategyObfuscated,
			CounterKey: "next_user_id",
			SaltKey:    "user_id_salt",
		},
		Security: SecurityConfig{
			EnableLoginThrottle:   true,
			EnableIPThrottle:      false,
			MaxLoginAttempts:      5,
			LoginCooldownDuration: 15 * time.Minute,
			MaxUsernameLength:     128,
			MaxEmailLength:        320,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
		Maintenance: MaintenanceConfig{
			EnableFlush: false,
		},
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}
	if c.Password.MaxSecretBytes < 0 {
		return errors.New("Password MaxSecretBytes must be >= 0")
	}
	if c.Password.MaxConcurrentHashes < 0 {
		return errors.New("Password MaxConcurrentHashes must be >= 0")
	}

	// Session
	if c.Session.TTL < 0 {
		return errors.New("Session TTL must be >= 0")
	}

	// Identifiers
	switch c.Identifiers.Strategy {
	case ids.StrategySequential:
	case ids.StrategyObfuscated:
		if c.Password.KeyLength != 32 {
			return errors.New("obfuscated identifiers require Password KeyLength == 32")
		}
		if c.Identifiers.SaltKey == "" {
			return errors.New("Identifiers SaltKey must be set")
		}
	default:
		return fmt.Errorf("unknown identifier strategy %q", c.Identifiers.Strategy)
	}
	if c.Identifiers.CounterKey == "" {
		return errors.New("Identifiers CounterKey must be set")
	}

	// Security
	if c.Security.EnableLoginThrottle {
		if c.Security.MaxLoginAttempts <= 0 {
			return errors.New("Security MaxLoginAttempts must be > 0")
		}
		if c.Security.LoginCooldownDuration <= 0 {
			return errors.New("Security LoginCooldownDuration must be > 0")
		}
	}
	if c.Security.MaxUsernameLength <= 0 {
		return errors.New("Security MaxUsernameLength must be > 0")
	}
	if c.Security.MaxEmailLength <= 0 {
		return errors.New("Security MaxEmailLength must be > 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0")
	}

	return nil
}

// LintWarning is a setting that is valid but probably unintended.
type LintWarning struct {
	Code    string
	Message string
}

// LintResult is the list of warnings produced by [Config.Lint].
type LintResult []LintWarning

// Codes returns the warning codes in order.
func (r LintResult) Codes() []string {
	codes := make([]string, 0, len(r))
	for _, w := range r {
		codes = append(codes, w.Code)
	}
	return codes
}

// Lint reports risky but valid settings. It never fails.
func (c *Config) Lint() LintResult {
	var out LintResult

	if !c.Security.EnableLoginThrottle {
		out = append(out, LintWarning{Code: "login_throttle_disabled", Message: "failed logins are not rate limited"})
	}
	if c.Identifiers.Strategy == ids.StrategySequential {
		out = append(out, LintWarning{Code: "sequential_ids", Message: "account ids reveal creation order and account count"})
	}
	if c.Maintenance.EnableFlush {
		out = append(out, LintWarning{Code: "flush_enabled", Message: "the whole database can be erased by an operator request"})
	}
	if c.Password.Memory < 19*1024 {
		out = append(out, LintWarning{Code: "argon2_memory_low", Message: "Argon2 memory is below 19 MiB"})
	}
	if c.Audit.Enabled && !c.Audit.DropIfFull && c.Audit.BufferSize < 64 {
		out = append(out, LintWarning{Code: "audit_blocking_small_buffer", Message: "a slow audit sink will block requests"})
	}

	return out
}
