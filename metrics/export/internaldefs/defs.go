package internaldefs

import (
	authgate "github.com/authgate/authgate"
)

// CounterDef binds one core metric ID to its exported name and help text.
type CounterDef struct {
	ID   authgate.MetricID
	Name string
	Help string
}

// CounterDefs enumerates every exported counter. Both exporters iterate
// this list so the two surfaces can never drift apart.
var CounterDefs = []CounterDef{
	{ID: authgate.MetricTokensIssued, Name: "authgate_tokens_issued_total", Help: "Issued access/refresh token pairs."},
	{ID: authgate.MetricTokensRotated, Name: "authgate_tokens_rotated_total", Help: "Successful token rotations."},
	{ID: authgate.MetricAuthorizeSuccess, Name: "authgate_authorize_success_total", Help: "Access tokens that authorized."},
	{ID: authgate.MetricAuthorizeExpired, Name: "authgate_authorize_expired_total", Help: "Authorizations rejected on expiry."},
	{ID: authgate.MetricAuthorizeInvalid, Name: "authgate_authorize_invalid_total", Help: "Authorizations rejected on signature or structure."},
	{ID: authgate.MetricAuthorizeRevoked, Name: "authgate_authorize_revoked_total", Help: "Authorizations rejected by the revocation ledger."},
	{ID: authgate.MetricSessionRevoked, Name: "authgate_session_revoked_total", Help: "Single-session revocations."},
	{ID: authgate.MetricSessionRevokedAll, Name: "authgate_session_revoked_all_total", Help: "Bulk session revocations."},
	{ID: authgate.MetricCapacityRejected, Name: "authgate_capacity_rejected_total", Help: "Registrations rejected at the session cap."},
	{ID: authgate.MetricRateLimitHit, Name: "authgate_rate_limit_hit_total", Help: "Gate decisions that exceeded the budget."},
	{ID: authgate.MetricBackendError, Name: "authgate_backend_error_total", Help: "Store failures on verified or gated paths."},
}
