package authgate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/authgate/authgate/rate"
)

// Gate runs the rate governor for routeKey+clientKey. The returned
// [rate.Result] carries Limit and Remaining even on rejection so callers
// can always emit observability headers.
//
// Store unavailability is fatal for the gated path: the request is
// rejected with [ErrBackendUnavailable], never silently allowed.
func (s *Service) Gate(ctx context.Context, routeKey, clientKey string, window time.Duration, max int) (rate.Result, error) {
	if routeKey == "" || clientKey == "" {
		return rate.Result{}, fmt.Errorf("%w: route and client keys required", ErrValidation)
	}

	res, err := s.governor.Gate(ctx, routeKey, clientKey, window, max)
	if err != nil {
		if errors.Is(err, rate.ErrRateLimited) {
			s.metrics.Inc(MetricRateLimitHit)
			s.emitAudit(ctx, AuditEvent{
				EventType: AuditRateLimitExceeded,
				Success:   false,
				Metadata: map[string]string{
					"route":  routeKey,
					"client": clientKey,
				},
			})
			return res, fmt.Errorf("%w: retry after %s", ErrRateLimited, res.RetryAfter)
		}
		return rate.Result{}, s.backendErr(err)
	}

	return res, nil
}

// GateDefault applies the config-level window and max.
func (s *Service) GateDefault(ctx context.Context, routeKey, clientKey string) (rate.Result, error) {
	return s.Gate(ctx, routeKey, clientKey, s.config.RateLimit.Window, s.config.RateLimit.Max)
}
