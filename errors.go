package authgate

import "errors"

var (
	// ErrValidation is returned when caller-supplied input is malformed.
	ErrValidation = errors.New("validation failed")
	// ErrUnauthorized is the base sentinel for every authorization failure.
	// The specific subkind (expired, invalid, revoked, missing) is joined
	// onto it for internal logging; boundary layers must collapse all
	// subkinds into one generic response so the API cannot be used as an
	// oracle for token state.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrTokenExpired is an unauthorized subkind: the token is past expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid is an unauthorized subkind: signature or structure failed.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrTokenRevoked is an unauthorized subkind: the token id is blacklisted.
	ErrTokenRevoked = errors.New("token revoked")
	// ErrTokenMissing is an unauthorized subkind: no credential was presented.
	ErrTokenMissing = errors.New("token missing")
	// ErrForbidden is returned when an authenticated caller lacks the role
	// required by the operation.
	ErrForbidden = errors.New("forbidden")
	// ErrSessionNotFound is returned when the target session does not exist.
	ErrSessionNotFound = errors.New("session not found")
	// ErrCapacityExceeded is returned when a user is at the session cap.
	ErrCapacityExceeded = errors.New("session capacity exceeded")
	// ErrRateLimited is returned by Gate when the window budget is spent.
	ErrRateLimited = errors.New("rate limit exceeded")
	// ErrBackendUnavailable is returned for any key-value store failure.
	// Every gated or verified path fails closed on it.
	ErrBackendUnavailable = errors.New("backend unavailable")
	// ErrServiceNotReady is returned when the builder has not been run.
	ErrServiceNotReady = errors.New("service not initialized")
)
