package session

import (
	"encoding/json"
	"time"
)

// Session is one logical login instance (device + IP) tied to a token-ID
// lineage. It is stored as a JSON field of the user's session hash.
type Session struct {
	TokenID    string    `json:"tokenId"`
	UserID     string    `json:"userId"`
	DeviceInfo string    `json:"deviceInfo"`
	IPAddress  string    `json:"ipAddress"`
	LastUsed   time.Time `json:"lastUsed"`
	ExpiryTime time.Time `json:"expiryTime"`
}

// TokenMetadata mirrors the signed claims of the refresh token backing a
// session. It lives under refresh_token:{userId}:{tokenId} with the same
// TTL as the session record.
type TokenMetadata struct {
	TokenID   string    `json:"tokenId"`
	SubjectID string    `json:"subjectId"`
	Role      string    `json:"role"`
	Kind      string    `json:"kind"`
	IssuedAt  time.Time `json:"issuedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func encodeSession(sess *Session) ([]byte, error) {
	return json.Marshal(sess)
}

func decodeSession(data []byte) (*Session, error) {
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}
