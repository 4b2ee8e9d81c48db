package authgate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/authgate/authgate/session"
	"github.com/authgate/authgate/token"
)

// IssueSessionTokens mints a new access/refresh pair for userID and
// registers the backing session. Returns [ErrCapacityExceeded] when the
// user already holds the maximum number of active sessions.
func (s *Service) IssueSessionTokens(ctx context.Context, userID, role, deviceInfo, ip string) (*TokenPair, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id required", ErrValidation)
	}

	pair, err := s.issueAndRegister(ctx, userID, role, deviceInfo, ip)
	if err != nil {
		return nil, err
	}

	s.metrics.Inc(MetricTokensIssued)
	s.emitAudit(ctx, AuditEvent{
		EventType: AuditTokensIssued,
		UserID:    userID,
		TokenID:   pair.TokenID,
		IP:        ip,
		Success:   true,
	})

	return pair, nil
}

// Rotate revokes the superseded token lineage and issues a fresh pair.
//
// Two concurrent rotations on the same oldTokenID may both succeed: the
// revoke of an already-removed session is treated as a no-op rather than
// a failure, so each caller independently applies "blacklist old, issue
// new". The in-flight old token ID ends up blacklisted by at least one of
// them. Strict single-use rotation would require a CAS over the token
// metadata; the at-least-once semantic keeps rotation a single revoke
// plus register.
func (s *Service) Rotate(ctx context.Context, oldTokenID, userID, role, deviceInfo, ip string) (*TokenPair, error) {
	if userID == "" || oldTokenID == "" {
		return nil, fmt.Errorf("%w: user id and token id required", ErrValidation)
	}

	if err := s.registry.Revoke(ctx, userID, oldTokenID); err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			return nil, s.backendErr(err)
		}
		// Lost the rotation race or the session already expired. The
		// blacklist write has still happened; proceed with issuance.
	}

	pair, err := s.issueAndRegister(ctx, userID, role, deviceInfo, ip)
	if err != nil {
		return nil, err
	}

	s.metrics.Inc(MetricTokensRotated)
	s.emitAudit(ctx, AuditEvent{
		EventType: AuditTokensRotated,
		UserID:    userID,
		TokenID:   pair.TokenID,
		IP:        ip,
		Success:   true,
		Metadata:  map[string]string{"superseded": oldTokenID},
	})

	return pair, nil
}

// Authorize validates an access token: signature and expiry are
// recomputed from the credential itself, then the revocation ledger is
// consulted. Any ledger failure rejects the token (fail closed).
//
// The returned error joins [ErrUnauthorized] with the specific subkind;
// boundary layers must surface only the generic unauthorized outcome.
func (s *Service) Authorize(ctx context.Context, accessToken string) (*AuthContext, error) {
	if accessToken == "" {
		return nil, s.denyAuthorize(ctx, "", errors.Join(ErrUnauthorized, ErrTokenMissing))
	}

	claims, err := s.encoder.Verify(accessToken, token.KindAccess)
	if err != nil {
		switch {
		case errors.Is(err, token.ErrExpired):
			s.metrics.Inc(MetricAuthorizeExpired)
			return nil, s.denyAuthorize(ctx, "", errors.Join(ErrUnauthorized, ErrTokenExpired))
		default:
			s.metrics.Inc(MetricAuthorizeInvalid)
			return nil, s.denyAuthorize(ctx, "", errors.Join(ErrUnauthorized, ErrTokenInvalid))
		}
	}

	revoked, err := s.ledger.IsBlacklisted(ctx, claims.TokenID())
	if err != nil {
		return nil, s.backendErr(err)
	}
	if revoked {
		s.metrics.Inc(MetricAuthorizeRevoked)
		return nil, s.denyAuthorize(ctx, claims.TokenID(), errors.Join(ErrUnauthorized, ErrTokenRevoked))
	}

	s.metrics.Inc(MetricAuthorizeSuccess)
	return &AuthContext{
		UserID:  claims.UserID,
		Role:    claims.Role,
		TokenID: claims.TokenID(),
	}, nil
}

// VerifyRefresh checks a raw refresh token (signature, expiry, kind,
// revocation) and returns its claims. Boundary layers use it to resolve
// the token ID and subject before calling [Service.Rotate].
func (s *Service) VerifyRefresh(ctx context.Context, refreshToken string) (*token.Claims, error) {
	if refreshToken == "" {
		return nil, errors.Join(ErrUnauthorized, ErrTokenMissing)
	}

	claims, err := s.encoder.Verify(refreshToken, token.KindRefresh)
	if err != nil {
		switch {
		case errors.Is(err, token.ErrExpired):
			return nil, errors.Join(ErrUnauthorized, ErrTokenExpired)
		default:
			return nil, errors.Join(ErrUnauthorized, ErrTokenInvalid)
		}
	}

	revoked, err := s.ledger.IsBlacklisted(ctx, claims.TokenID())
	if err != nil {
		return nil, s.backendErr(err)
	}
	if revoked {
		return nil, errors.Join(ErrUnauthorized, ErrTokenRevoked)
	}

	return claims, nil
}

func (s *Service) issueAndRegister(ctx context.Context, userID, role, deviceInfo, ip string) (*TokenPair, error) {
	refreshToken, tokenID, err := s.encoder.IssueRefresh(userID, role)
	if err != nil {
		return nil, err
	}
	accessToken, err := s.encoder.IssueAccess(userID, role, tokenID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	sess := &session.Session{
		TokenID:    tokenID,
		UserID:     userID,
		DeviceInfo: deviceInfo,
		IPAddress:  ip,
		LastUsed:   now,
		ExpiryTime: now.Add(s.encoder.RefreshTTL()),
	}
	meta := &session.TokenMetadata{
		TokenID:   tokenID,
		SubjectID: userID,
		Role:      role,
		Kind:      string(token.KindRefresh),
		IssuedAt:  now,
		ExpiresAt: now.Add(s.encoder.RefreshTTL()),
	}

	if err := s.registry.Register(ctx, sess, meta); err != nil {
		if errors.Is(err, session.ErrCapacityExceeded) {
			s.metrics.Inc(MetricCapacityRejected)
			return nil, fmt.Errorf("%w: user %s", ErrCapacityExceeded, userID)
		}
		return nil, s.backendErr(err)
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenID:      tokenID,
		ExpiresAt:    now.Add(s.encoder.AccessTTL()),
	}, nil
}

func (s *Service) denyAuthorize(ctx context.Context, tokenID string, err error) error {
	s.logger.Debug("authorization denied", zap.Error(err))
	s.emitAudit(ctx, AuditEvent{
		EventType: AuditAuthorizeDenied,
		TokenID:   tokenID,
		Success:   false,
		Error:     errString(err),
	})
	return err
}
