package authgate

import "time"

// SecurityReport summarizes the security-relevant posture of a built
// [Service] for operator dashboards and startup logging. It never
// includes secret material.
type SecurityReport struct {
	SigningAlgorithm   string
	DistinctSecrets    bool
	AccessTTL          time.Duration
	RefreshTTL         time.Duration
	SessionCapActive   bool
	MaxSessionsPerUser int
	RateLimitingActive bool
	AuditingActive     bool
	Findings           []string
}

const longAccessTTL = time.Hour

// SecurityReport inspects the active configuration and flags settings
// that weaken the lifecycle guarantees.
func (s *Service) SecurityReport() SecurityReport {
	if s == nil {
		return SecurityReport{}
	}

	report := SecurityReport{
		SigningAlgorithm:   "HS256",
		DistinctSecrets:    string(s.config.Token.AccessSecret) != string(s.config.Token.RefreshSecret),
		AccessTTL:          s.config.Token.AccessTTL,
		RefreshTTL:         s.config.Token.RefreshTTL,
		SessionCapActive:   s.config.Session.MaxSessionsPerUser > 0,
		MaxSessionsPerUser: s.config.Session.MaxSessionsPerUser,
		RateLimitingActive: s.config.RateLimit.Max > 0 && s.config.RateLimit.Window > 0,
		AuditingActive:     s.config.Audit.Enabled,
	}

	if report.AccessTTL > longAccessTTL {
		report.Findings = append(report.Findings, "access token TTL exceeds one hour; revocation lag grows with it")
	}
	if report.RefreshTTL > 30*24*time.Hour {
		report.Findings = append(report.Findings, "refresh token TTL exceeds 30 days")
	}
	if !report.AuditingActive {
		report.Findings = append(report.Findings, "audit sink not configured; revocations leave no trail")
	}

	return report
}
