package authgate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/authgate/authgate/rate"
	"github.com/authgate/authgate/revocation"
	"github.com/authgate/authgate/session"
	"github.com/authgate/authgate/token"
)

// Service is the façade over the four lifecycle components. It is built
// once at startup through [Builder.Build] and injected where needed; it
// holds no global state and is safe for concurrent use.
type Service struct {
	config   Config
	encoder  *token.Encoder
	registry *session.Registry
	ledger   *revocation.Ledger
	governor *rate.Governor
	metrics  *Metrics
	audit    *auditDispatcher
	logger   *zap.Logger
}

// Close stops background workers (the audit dispatcher). The service must
// not be used after Close.
func (s *Service) Close() {
	s.audit.Close()
	if dropped := s.audit.Dropped(); dropped > 0 {
		s.logger.Warn("audit events dropped under backpressure",
			zap.Uint64("dropped", dropped))
	}
}

// MetricsSnapshot exposes the counter snapshot for the exporters under
// metrics/export.
func (s *Service) MetricsSnapshot() MetricsSnapshot {
	return s.metrics.Snapshot()
}

// AuditDropped reports audit events discarded under backpressure.
func (s *Service) AuditDropped() uint64 {
	return s.audit.Dropped()
}

func (s *Service) emitAudit(ctx context.Context, event AuditEvent) {
	if s.audit == nil {
		return
	}
	event.Timestamp = time.Now()
	s.audit.Emit(ctx, event)
}

// backendErr folds any store-level unavailability sentinel into the root
// taxonomy. Everything else passes through unchanged.
func (s *Service) backendErr(err error) error {
	switch {
	case errors.Is(err, session.ErrRedisUnavailable),
		errors.Is(err, revocation.ErrRedisUnavailable),
		errors.Is(err, rate.ErrRedisUnavailable):
		s.metrics.Inc(MetricBackendError)
		s.logger.Error("store unavailable, failing closed", zap.Error(err))
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	default:
		return err
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
