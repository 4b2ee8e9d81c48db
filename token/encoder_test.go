package token

import (
	"errors"
	"testing"
	"time"
)

func newEncoderTest(t *testing.T) *Encoder {
	t.Helper()
	enc, err := NewEncoder(Config{
		AccessSecret:  []byte("access-secret-0123456789abcdef01"),
		RefreshSecret: []byte("refresh-secret-0123456789abcdef0"),
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
		Issuer:        "test",
	})
	if err != nil {
		t.Fatalf("new encoder: %v", err)
	}
	return enc
}

func TestNewEncoderRejectsSharedSecret(t *testing.T) {
	_, err := NewEncoder(Config{
		AccessSecret:  []byte("same-secret"),
		RefreshSecret: []byte("same-secret"),
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
	})
	if err == nil {
		t.Fatal("expected error for identical secrets")
	}
}

func TestNewEncoderRejectsZeroTTL(t *testing.T) {
	_, err := NewEncoder(Config{
		AccessSecret:  []byte("a-secret"),
		RefreshSecret: []byte("b-secret"),
		AccessTTL:     0,
		RefreshTTL:    time.Hour,
	})
	if err == nil {
		t.Fatal("expected error for zero access TTL")
	}
}

func TestAccessRoundTrip(t *testing.T) {
	enc := newEncoderTest(t)

	signed, err := enc.IssueAccess("u-1", "admin", "tok-1")
	if err != nil {
		t.Fatalf("issue access: %v", err)
	}

	claims, err := enc.Verify(signed, KindAccess)
	if err != nil {
		t.Fatalf("verify access: %v", err)
	}
	if claims.UserID != "u-1" || claims.Role != "admin" || claims.TokenID() != "tok-1" {
		t.Fatalf("claims mismatch: %+v", claims)
	}
	if claims.Kind != KindAccess {
		t.Fatalf("kind = %q, want access", claims.Kind)
	}
}

func TestRefreshRoundTrip(t *testing.T) {
	enc := newEncoderTest(t)

	signed, tokenID, err := enc.IssueRefresh("u-1", "member")
	if err != nil {
		t.Fatalf("issue refresh: %v", err)
	}
	if tokenID == "" {
		t.Fatal("empty token ID")
	}

	claims, err := enc.Verify(signed, KindRefresh)
	if err != nil {
		t.Fatalf("verify refresh: %v", err)
	}
	if claims.TokenID() != tokenID {
		t.Fatalf("token ID = %q, want %q", claims.TokenID(), tokenID)
	}
}

func TestVerifyRejectsKindMismatch(t *testing.T) {
	enc := newEncoderTest(t)

	signed, _, err := enc.IssueRefresh("u-1", "member")
	if err != nil {
		t.Fatalf("issue refresh: %v", err)
	}

	// A refresh token presented where an access token is expected must
	// fail even before the kind claim is inspected: the secrets differ,
	// so the signature check rejects it.
	if _, err := enc.Verify(signed, KindAccess); !errors.Is(err, ErrInvalid) {
		t.Fatalf("err = %v, want ErrInvalid", err)
	}
}

func TestVerifyKindClaimChecked(t *testing.T) {
	// Same secret pair, but sign an access-kind claim set with the
	// refresh secret to isolate the kind check from the signature check.
	enc := newEncoderTest(t)

	signed, err := enc.sign("u-1", "member", "tok-1", KindAccess, time.Hour, enc.config.RefreshSecret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := enc.Verify(signed, KindRefresh); !errors.Is(err, ErrKindMismatch) {
		t.Fatalf("err = %v, want ErrKindMismatch", err)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	enc := newEncoderTest(t)

	other, err := NewEncoder(Config{
		AccessSecret:  []byte("other-access-secret-0123456789ab"),
		RefreshSecret: []byte("other-refresh-secret-0123456789a"),
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
		Issuer:        "test",
	})
	if err != nil {
		t.Fatalf("new encoder: %v", err)
	}

	signed, err := other.IssueAccess("u-1", "member", "tok-1")
	if err != nil {
		t.Fatalf("issue access: %v", err)
	}

	if _, err := enc.Verify(signed, KindAccess); !errors.Is(err, ErrInvalid) {
		t.Fatalf("err = %v, want ErrInvalid", err)
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	enc, err := NewEncoder(Config{
		AccessSecret:  []byte("access-secret-0123456789abcdef01"),
		RefreshSecret: []byte("refresh-secret-0123456789abcdef0"),
		AccessTTL:     time.Nanosecond,
		RefreshTTL:    time.Hour,
		Issuer:        "test",
	})
	if err != nil {
		t.Fatalf("new encoder: %v", err)
	}

	signed, err := enc.IssueAccess("u-1", "member", "tok-1")
	if err != nil {
		t.Fatalf("issue access: %v", err)
	}

	time.Sleep(5 * time.Millisecond)

	if _, err := enc.Verify(signed, KindAccess); !errors.Is(err, ErrExpired) {
		t.Fatalf("err = %v, want ErrExpired", err)
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	enc := newEncoderTest(t)
	if _, err := enc.Verify("not-a-jwt", KindAccess); !errors.Is(err, ErrInvalid) {
		t.Fatalf("err = %v, want ErrInvalid", err)
	}
}
