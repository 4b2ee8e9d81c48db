package authgate

import (
	"time"

	"github.com/authgate/authgate/session"
)

// TokenPair is returned by [Service.IssueSessionTokens] and
// [Service.Rotate]. Both tokens share one token ID, so a single
// revocation entry covers the whole lineage.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	TokenID      string
	ExpiresAt    time.Time
}

// AuthContext is returned by [Service.Authorize] for a valid access token.
type AuthContext struct {
	UserID  string
	Role    string
	TokenID string
}

// SessionInfo is the caller-facing view of one active session.
type SessionInfo struct {
	TokenID    string
	UserID     string
	DeviceInfo string
	IPAddress  string
	LastUsed   time.Time
	ExpiryTime time.Time
}

func sessionInfoFrom(sess *session.Session) SessionInfo {
	return SessionInfo{
		TokenID:    sess.TokenID,
		UserID:     sess.UserID,
		DeviceInfo: sess.DeviceInfo,
		IPAddress:  sess.IPAddress,
		LastUsed:   sess.LastUsed,
		ExpiryTime: sess.ExpiryTime,
	}
}
