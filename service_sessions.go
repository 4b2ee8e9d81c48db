package authgate

import (
	"context"
	"errors"
	"fmt"

	"github.com/authgate/authgate/session"
)

// ListSessions returns the user's active sessions in no particular order.
func (s *Service) ListSessions(ctx context.Context, userID string) ([]SessionInfo, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id required", ErrValidation)
	}

	sessions, err := s.registry.List(ctx, userID)
	if err != nil {
		return nil, s.backendErr(err)
	}

	out := make([]SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, sessionInfoFrom(sess))
	}
	return out, nil
}

// SessionCount returns the number of active sessions for the user.
func (s *Service) SessionCount(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, fmt.Errorf("%w: user id required", ErrValidation)
	}

	count, err := s.registry.Count(ctx, userID)
	if err != nil {
		return 0, s.backendErr(err)
	}
	return count, nil
}

// RevokeSession removes one session and blacklists its token ID.
// Idempotent: revoking an absent token ID returns [ErrSessionNotFound]
// with no state change beyond the no-op blacklist rewrite.
func (s *Service) RevokeSession(ctx context.Context, userID, tokenID string) error {
	if userID == "" || tokenID == "" {
		return fmt.Errorf("%w: user id and token id required", ErrValidation)
	}

	if err := s.registry.Revoke(ctx, userID, tokenID); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return ErrSessionNotFound
		}
		return s.backendErr(err)
	}

	s.metrics.Inc(MetricSessionRevoked)
	s.emitAudit(ctx, AuditEvent{
		EventType: AuditSessionRevoked,
		UserID:    userID,
		TokenID:   tokenID,
		Success:   true,
	})

	return nil
}

// RevokeAllSessions blacklists every token ID registered for the user and
// deletes the whole per-user collection.
func (s *Service) RevokeAllSessions(ctx context.Context, userID string) error {
	if userID == "" {
		return fmt.Errorf("%w: user id required", ErrValidation)
	}

	if err := s.registry.RevokeAll(ctx, userID); err != nil {
		return s.backendErr(err)
	}

	s.metrics.Inc(MetricSessionRevokedAll)
	s.emitAudit(ctx, AuditEvent{
		EventType: AuditSessionRevokedAll,
		UserID:    userID,
		Success:   true,
	})

	return nil
}
