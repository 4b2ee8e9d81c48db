package authgate

import (
	"errors"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/authgate/authgate/rate"
	"github.com/authgate/authgate/revocation"
	"github.com/authgate/authgate/session"
	"github.com/authgate/authgate/token"
)

// Builder assembles a [Service]. Components are constructed exactly once
// at Build time and injected by reference; there are no package-level
// singletons.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	logger *zap.Logger

	auditSink AuditSink

	built bool
}

// New returns a [Builder] preloaded with defaults.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the full configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the shared key-value store client. Required.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithLogger sets the structured logger. Defaults to a no-op logger.
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithAuditSink sets the audit event sink and enables auditing.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	b.config.Audit.Enabled = sink != nil
	return b
}

// WithMetricsEnabled toggles the counter recorder.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration and wires the service. A builder can
// be used at most once.
func (b *Builder) Build() (*Service, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.redis == nil {
		return nil, errors.New("redis client is required")
	}

	b.config.applyDefaults()
	if err := b.config.Validate(); err != nil {
		return nil, err
	}

	encoder, err := token.NewEncoder(token.Config{
		AccessSecret:  b.config.Token.AccessSecret,
		RefreshSecret: b.config.Token.RefreshSecret,
		AccessTTL:     b.config.Token.AccessTTL,
		RefreshTTL:    b.config.Token.RefreshTTL,
		Issuer:        b.config.Token.Issuer,
		Leeway:        b.config.Token.Leeway,
	})
	if err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	ledger := revocation.NewLedger(b.redis)
	registry := session.NewRegistry(b.redis, ledger, session.Config{
		MaxSessionsPerUser: b.config.Session.MaxSessionsPerUser,
		RefreshTTL:         b.config.Token.RefreshTTL,
	})

	svc := &Service{
		config:   b.config,
		encoder:  encoder,
		registry: registry,
		ledger:   ledger,
		governor: rate.NewGovernor(b.redis),
		metrics:  NewMetrics(b.config.Metrics),
		audit:    newAuditDispatcher(b.config.Audit, b.auditSink),
		logger:   logger,
	}

	logger.Info("authgate service initialized",
		zap.Duration("access_ttl", b.config.Token.AccessTTL),
		zap.Duration("refresh_ttl", b.config.Token.RefreshTTL),
		zap.Int("max_sessions_per_user", b.config.Session.MaxSessionsPerUser),
		zap.Bool("audit_enabled", b.config.Audit.Enabled),
		zap.Bool("metrics_enabled", b.config.Metrics.Enabled),
	)

	b.built = true
	return svc, nil
}
