package authgate

import (
	"errors"
	"time"
)

// Config defines all tuning parameters for a [Service]. Zero values are
// filled from defaults at Build time; [Config.Validate] rejects settings
// that would weaken the security invariants.
type Config struct {
	Token     TokenConfig
	Session   SessionConfig
	RateLimit RateLimitConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig controls the credential encoder. AccessSecret and
// RefreshSecret must differ so that compromise of one verification key
// cannot forge the other kind.
type TokenConfig struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	Leeway        time.Duration
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls the session registry.
type SessionConfig struct {
	MaxSessionsPerUser int
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateLimitConfig holds default gate parameters used by the middleware
// helpers. Service.Gate accepts explicit window/max per call.
type RateLimitConfig struct {
	Window time.Duration
	Max    int
}

/*
====================================
AUDIT CONFIG
====================================
*/

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	// DropIfFull drops events instead of blocking the request path when
	// the buffer is saturated. Drops are counted and exported.
	DropIfFull bool
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig controls the lock-free counter recorder.
type MetricsConfig struct {
	Enabled bool
}

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour
	defaultMaxSession = 3
	defaultRateWindow = time.Minute
	defaultRateMax    = 60
	minSecretLength   = 32
)

func defaultConfig() Config {
	return Config{
		Token: TokenConfig{
			AccessTTL:  defaultAccessTTL,
			RefreshTTL: defaultRefreshTTL,
		},
		Session: SessionConfig{
			MaxSessionsPerUser: defaultMaxSession,
		},
		RateLimit: RateLimitConfig{
			Window: defaultRateWindow,
			Max:    defaultRateMax,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.AccessSecret = append([]byte(nil), cfg.Token.AccessSecret...)
	out.Token.RefreshSecret = append([]byte(nil), cfg.Token.RefreshSecret...)
	return out
}

func (c *Config) applyDefaults() {
	def := defaultConfig()
	if c.Token.AccessTTL <= 0 {
		c.Token.AccessTTL = def.Token.AccessTTL
	}
	if c.Token.RefreshTTL <= 0 {
		c.Token.RefreshTTL = def.Token.RefreshTTL
	}
	if c.Session.MaxSessionsPerUser <= 0 {
		c.Session.MaxSessionsPerUser = def.Session.MaxSessionsPerUser
	}
	if c.RateLimit.Window <= 0 {
		c.RateLimit.Window = def.RateLimit.Window
	}
	if c.RateLimit.Max <= 0 {
		c.RateLimit.Max = def.RateLimit.Max
	}
	if c.Audit.BufferSize <= 0 {
		c.Audit.BufferSize = def.Audit.BufferSize
	}
}

// Validate checks the config for settings that violate the security
// invariants. It does not mutate the receiver.
func (c *Config) Validate() error {
	if len(c.Token.AccessSecret) == 0 || len(c.Token.RefreshSecret) == 0 {
		return errors.New("token secrets are required")
	}
	if len(c.Token.AccessSecret) < minSecretLength || len(c.Token.RefreshSecret) < minSecretLength {
		return errors.New("token secrets must be at least 32 bytes")
	}
	if string(c.Token.AccessSecret) == string(c.Token.RefreshSecret) {
		return errors.New("access and refresh secrets must differ")
	}
	if c.Token.AccessTTL <= 0 || c.Token.RefreshTTL <= 0 {
		return errors.New("token TTLs must be positive")
	}
	if c.Token.AccessTTL > c.Token.RefreshTTL {
		return errors.New("access TTL must not exceed refresh TTL")
	}
	if c.Token.Leeway < 0 || c.Token.Leeway > 2*time.Minute {
		return errors.New("leeway out of range")
	}
	if c.Session.MaxSessionsPerUser <= 0 {
		return errors.New("max sessions per user must be positive")
	}
	if c.RateLimit.Window <= 0 || c.RateLimit.Max <= 0 {
		return errors.New("rate limit window and max must be positive")
	}
	return nil
}
