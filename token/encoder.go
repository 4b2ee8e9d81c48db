package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Kind discriminates the two credential classes issued by the encoder.
type Kind string

const (
	// KindAccess marks short-lived bearer credentials that authorize
	// individual requests.
	KindAccess Kind = "access"
	// KindRefresh marks long-lived credentials used only to mint new
	// access/refresh pairs.
	KindRefresh Kind = "refresh"
)

var (
	// ErrExpired is returned when the token's exp claim is in the past.
	ErrExpired = errors.New("token expired")
	// ErrInvalid is returned when the signature or structure fails verification.
	ErrInvalid = errors.New("token invalid")
	// ErrKindMismatch is returned when a token of the wrong kind is presented.
	ErrKindMismatch = errors.New("token kind mismatch")
)

// Config holds the signing parameters for both token kinds. Access and
// refresh tokens are signed with distinct secrets so that compromise of
// one verification key cannot forge the other kind.
type Config struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	Leeway        time.Duration
}

// Claims is the JWT claim set carried by both token kinds. TokenID is the
// jti linking the token to its session record and revocation entry.
type Claims struct {
	UserID string `json:"uid"`
	Role   string `json:"role"`
	Kind   Kind   `json:"kind"`
	jwt.RegisteredClaims
}

// TokenID returns the jti claim.
func (c *Claims) TokenID() string {
	return c.ID
}

// Encoder signs and verifies bearer tokens. It is a pure function of the
// configured secrets and the clock; it holds no store state.
type Encoder struct {
	config Config
}

// NewEncoder validates the config and returns an [Encoder].
func NewEncoder(cfg Config) (*Encoder, error) {
	if len(cfg.AccessSecret) == 0 || len(cfg.RefreshSecret) == 0 {
		return nil, errors.New("both access and refresh secrets are required")
	}
	if string(cfg.AccessSecret) == string(cfg.RefreshSecret) {
		return nil, errors.New("access and refresh secrets must differ")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	return &Encoder{config: cfg}, nil
}

// AccessTTL reports the configured access-token lifetime.
func (e *Encoder) AccessTTL() time.Duration { return e.config.AccessTTL }

// RefreshTTL reports the configured refresh-token lifetime.
func (e *Encoder) RefreshTTL() time.Duration { return e.config.RefreshTTL }

// IssueAccess signs a short-lived access token carrying the given token ID.
// The token ID is shared with the refresh token of the same session lineage
// so that one revocation entry covers both kinds.
func (e *Encoder) IssueAccess(userID, role, tokenID string) (string, error) {
	return e.sign(userID, role, tokenID, KindAccess, e.config.AccessTTL, e.config.AccessSecret)
}

// IssueRefresh signs a long-lived refresh token under a freshly generated
// token ID and returns both.
func (e *Encoder) IssueRefresh(userID, role string) (string, string, error) {
	tokenID := uuid.NewString()
	signed, err := e.sign(userID, role, tokenID, KindRefresh, e.config.RefreshTTL, e.config.RefreshSecret)
	if err != nil {
		return "", "", err
	}
	return signed, tokenID, nil
}

func (e *Encoder) sign(userID, role, tokenID string, kind Kind, ttl time.Duration, secret []byte) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		Role:   role,
		Kind:   kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        tokenID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    e.config.Issuer,
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// Verify recomputes the signature and validates expiry independently of any
// stored state. Failures map to [ErrExpired], [ErrInvalid], or
// [ErrKindMismatch].
func (e *Encoder) Verify(tokenStr string, expected Kind) (*Claims, error) {
	secret := e.config.AccessSecret
	if expected == KindRefresh {
		secret = e.config.RefreshSecret
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	}
	if e.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(e.config.Leeway))
	}
	if e.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(e.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	parsed, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, ErrInvalid
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalid
	}
	if claims.ID == "" || claims.UserID == "" {
		return nil, ErrInvalid
	}
	if claims.Kind != expected {
		return nil, ErrKindMismatch
	}

	return claims, nil
}
