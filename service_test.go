package authgate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func testConfig() Config {
	return Config{
		Token: TokenConfig{
			AccessSecret:  []byte("test-access-secret-0123456789abcdef"),
			RefreshSecret: []byte("test-refresh-secret-0123456789abcdef"),
			Issuer:        "test",
		},
	}
}

func newServiceTest(t *testing.T, mutate func(*Config)) (*Service, *miniredis.Miniredis, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	svc, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		Build()
	if err != nil {
		t.Fatalf("build service: %v", err)
	}

	return svc, mr, func() {
		svc.Close()
		_ = rdb.Close()
		mr.Close()
	}
}

func TestIssueThenAuthorize(t *testing.T) {
	svc, _, done := newServiceTest(t, nil)
	defer done()
	ctx := context.Background()

	pair, err := svc.IssueSessionTokens(ctx, "u-1", "admin", "ua", "1.2.3.4")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" || pair.TokenID == "" {
		t.Fatalf("incomplete pair: %+v", pair)
	}

	auth, err := svc.Authorize(ctx, pair.AccessToken)
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if auth.UserID != "u-1" || auth.Role != "admin" || auth.TokenID != pair.TokenID {
		t.Fatalf("auth context mismatch: %+v", auth)
	}
}

func TestIssueRegistersSession(t *testing.T) {
	svc, _, done := newServiceTest(t, nil)
	defer done()
	ctx := context.Background()

	pair, err := svc.IssueSessionTokens(ctx, "u-1", "member", "ua", "1.2.3.4")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	sessions, err := svc.ListSessions(ctx, "u-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(sessions) != 1 || sessions[0].TokenID != pair.TokenID {
		t.Fatalf("sessions = %+v", sessions)
	}
	if sessions[0].DeviceInfo != "ua" || sessions[0].IPAddress != "1.2.3.4" {
		t.Fatalf("session fields = %+v", sessions[0])
	}
}

func TestIssueRequiresUserID(t *testing.T) {
	svc, _, done := newServiceTest(t, nil)
	defer done()

	if _, err := svc.IssueSessionTokens(context.Background(), "", "member", "ua", "ip"); !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestIssueEnforcesSessionCap(t *testing.T) {
	svc, _, done := newServiceTest(t, func(c *Config) {
		c.Session.MaxSessionsPerUser = 2
	})
	defer done()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := svc.IssueSessionTokens(ctx, "u-1", "member", "ua", "ip"); err != nil {
			t.Fatalf("issue %d: %v", i, err)
		}
	}

	if _, err := svc.IssueSessionTokens(ctx, "u-1", "member", "ua", "ip"); !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("err = %v, want ErrCapacityExceeded", err)
	}

	count, err := svc.SessionCount(ctx, "u-1")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}
}

func TestAuthorizeRejectsMissingToken(t *testing.T) {
	svc, _, done := newServiceTest(t, nil)
	defer done()

	_, err := svc.Authorize(context.Background(), "")
	if !errors.Is(err, ErrUnauthorized) || !errors.Is(err, ErrTokenMissing) {
		t.Fatalf("err = %v, want ErrUnauthorized+ErrTokenMissing", err)
	}
}

func TestAuthorizeRejectsGarbageToken(t *testing.T) {
	svc, _, done := newServiceTest(t, nil)
	defer done()

	_, err := svc.Authorize(context.Background(), "not-a-token")
	if !errors.Is(err, ErrUnauthorized) || !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("err = %v, want ErrUnauthorized+ErrTokenInvalid", err)
	}
}

func TestAuthorizeRejectsRefreshToken(t *testing.T) {
	svc, _, done := newServiceTest(t, nil)
	defer done()
	ctx := context.Background()

	pair, err := svc.IssueSessionTokens(ctx, "u-1", "member", "ua", "ip")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, err := svc.Authorize(ctx, pair.RefreshToken); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
}

func TestAuthorizeRejectsExpiredToken(t *testing.T) {
	svc, _, done := newServiceTest(t, func(c *Config) {
		c.Token.AccessTTL = time.Millisecond
	})
	defer done()
	ctx := context.Background()

	pair, err := svc.IssueSessionTokens(ctx, "u-1", "member", "ua", "ip")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	time.Sleep(10 * time.Millisecond)

	_, err = svc.Authorize(ctx, pair.AccessToken)
	if !errors.Is(err, ErrUnauthorized) || !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("err = %v, want ErrUnauthorized+ErrTokenExpired", err)
	}
}

func TestRotateInvalidatesOldLineage(t *testing.T) {
	svc, _, done := newServiceTest(t, nil)
	defer done()
	ctx := context.Background()

	old, err := svc.IssueSessionTokens(ctx, "u-1", "member", "ua", "ip")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	next, err := svc.Rotate(ctx, old.TokenID, "u-1", "member", "ua", "ip")
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if next.TokenID == old.TokenID {
		t.Fatal("rotation must mint a fresh token ID")
	}

	// The superseded access token shares the old token ID, so one
	// blacklist entry covers it.
	_, err = svc.Authorize(ctx, old.AccessToken)
	if !errors.Is(err, ErrUnauthorized) || !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("old access err = %v, want ErrUnauthorized+ErrTokenRevoked", err)
	}
	if _, err := svc.VerifyRefresh(ctx, old.RefreshToken); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("old refresh err = %v, want ErrTokenRevoked", err)
	}

	if _, err := svc.Authorize(ctx, next.AccessToken); err != nil {
		t.Fatalf("new access: %v", err)
	}
}

func TestRotateKeepsSessionCountStable(t *testing.T) {
	svc, _, done := newServiceTest(t, func(c *Config) {
		c.Session.MaxSessionsPerUser = 1
	})
	defer done()
	ctx := context.Background()

	pair, err := svc.IssueSessionTokens(ctx, "u-1", "member", "ua", "ip")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	for i := 0; i < 5; i++ {
		pair, err = svc.Rotate(ctx, pair.TokenID, "u-1", "member", "ua", "ip")
		if err != nil {
			t.Fatalf("rotate %d: %v", i, err)
		}
	}

	count, err := svc.SessionCount(ctx, "u-1")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}
}

func TestRotateSameTokenIDTwiceBothSucceed(t *testing.T) {
	svc, _, done := newServiceTest(t, nil)
	defer done()
	ctx := context.Background()

	old, err := svc.IssueSessionTokens(ctx, "u-1", "member", "ua", "ip")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	first, err := svc.Rotate(ctx, old.TokenID, "u-1", "member", "ua", "ip")
	if err != nil {
		t.Fatalf("first rotate: %v", err)
	}
	second, err := svc.Rotate(ctx, old.TokenID, "u-1", "member", "ua", "ip")
	if err != nil {
		t.Fatalf("second rotate: %v", err)
	}

	// At-least-once: both rotations succeed, the old lineage is dead,
	// both new lineages are live.
	if _, err := svc.Authorize(ctx, old.AccessToken); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("old lineage err = %v, want ErrTokenRevoked", err)
	}
	if _, err := svc.Authorize(ctx, first.AccessToken); err != nil {
		t.Fatalf("first lineage: %v", err)
	}
	if _, err := svc.Authorize(ctx, second.AccessToken); err != nil {
		t.Fatalf("second lineage: %v", err)
	}
}

func TestConcurrentRotateAlwaysKillsOldLineage(t *testing.T) {
	svc, _, done := newServiceTest(t, func(c *Config) {
		c.Session.MaxSessionsPerUser = 64
	})
	defer done()
	ctx := context.Background()

	old, err := svc.IssueSessionTokens(ctx, "u-1", "member", "ua", "ip")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	const rotators = 8
	var wg sync.WaitGroup
	errs := make([]error, rotators)
	for i := 0; i < rotators; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Rotate(ctx, old.TokenID, "u-1", "member", "ua", "ip")
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("rotator %d: %v", i, err)
		}
	}

	if _, err := svc.Authorize(ctx, old.AccessToken); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("old lineage err = %v, want ErrTokenRevoked", err)
	}
}

func TestRevokeSession(t *testing.T) {
	svc, _, done := newServiceTest(t, nil)
	defer done()
	ctx := context.Background()

	pair, err := svc.IssueSessionTokens(ctx, "u-1", "member", "ua", "ip")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if err := svc.RevokeSession(ctx, "u-1", pair.TokenID); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	if _, err := svc.Authorize(ctx, pair.AccessToken); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("err = %v, want ErrTokenRevoked", err)
	}
	if err := svc.RevokeSession(ctx, "u-1", pair.TokenID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("second revoke err = %v, want ErrSessionNotFound", err)
	}
}

func TestRevokeAllSessions(t *testing.T) {
	svc, _, done := newServiceTest(t, func(c *Config) {
		c.Session.MaxSessionsPerUser = 5
	})
	defer done()
	ctx := context.Background()

	pairs := make([]*TokenPair, 0, 3)
	for i := 0; i < 3; i++ {
		pair, err := svc.IssueSessionTokens(ctx, "u-1", "member", fmt.Sprintf("device-%d", i), "ip")
		if err != nil {
			t.Fatalf("issue %d: %v", i, err)
		}
		pairs = append(pairs, pair)
	}

	if err := svc.RevokeAllSessions(ctx, "u-1"); err != nil {
		t.Fatalf("revoke all: %v", err)
	}

	for i, pair := range pairs {
		if _, err := svc.Authorize(ctx, pair.AccessToken); !errors.Is(err, ErrTokenRevoked) {
			t.Fatalf("pair %d err = %v, want ErrTokenRevoked", i, err)
		}
	}

	count, err := svc.SessionCount(ctx, "u-1")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("count = %d, want 0", count)
	}
}

func TestVerifyRefreshRoundTrip(t *testing.T) {
	svc, _, done := newServiceTest(t, nil)
	defer done()
	ctx := context.Background()

	pair, err := svc.IssueSessionTokens(ctx, "u-1", "member", "ua", "ip")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	claims, err := svc.VerifyRefresh(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("verify refresh: %v", err)
	}
	if claims.UserID != "u-1" || claims.TokenID() != pair.TokenID {
		t.Fatalf("claims mismatch: %+v", claims)
	}

	// An access token is never acceptable on the refresh path.
	if _, err := svc.VerifyRefresh(ctx, pair.AccessToken); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
}

func TestAuthorizeFailsClosedOnBackendOutage(t *testing.T) {
	svc, mr, done := newServiceTest(t, nil)
	defer done()
	ctx := context.Background()

	pair, err := svc.IssueSessionTokens(ctx, "u-1", "member", "ua", "ip")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	mr.Close()

	// Signature and expiry are fine; the revocation check cannot be
	// answered, so the token is rejected.
	if _, err := svc.Authorize(ctx, pair.AccessToken); !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("err = %v, want ErrBackendUnavailable", err)
	}
}

func TestGateEnforcesBudget(t *testing.T) {
	svc, _, done := newServiceTest(t, nil)
	defer done()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := svc.Gate(ctx, "login", "1.2.3.4", time.Minute, 3)
		if err != nil {
			t.Fatalf("gate %d: %v", i, err)
		}
		if !res.Allowed {
			t.Fatalf("call %d should be allowed", i)
		}
	}

	res, err := svc.Gate(ctx, "login", "1.2.3.4", time.Minute, 3)
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("err = %v, want ErrRateLimited", err)
	}
	if res.Allowed || res.Limit != 3 || res.Remaining != 0 {
		t.Fatalf("result = %+v", res)
	}
	if res.RetryAfter != time.Minute {
		t.Fatalf("retry after = %s, want 1m", res.RetryAfter)
	}
}

func TestGateFailsClosedOnBackendOutage(t *testing.T) {
	svc, mr, done := newServiceTest(t, nil)
	defer done()

	mr.Close()

	if _, err := svc.Gate(context.Background(), "login", "k", time.Minute, 5); !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("err = %v, want ErrBackendUnavailable", err)
	}
}

func TestServiceMetricsCount(t *testing.T) {
	svc, _, done := newServiceTest(t, nil)
	defer done()
	ctx := context.Background()

	pair, err := svc.IssueSessionTokens(ctx, "u-1", "member", "ua", "ip")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := svc.Authorize(ctx, pair.AccessToken); err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if _, err := svc.Authorize(ctx, "garbage"); err == nil {
		t.Fatal("expected authorize failure")
	}

	snap := svc.MetricsSnapshot()
	if snap.Counters[MetricTokensIssued] != 1 {
		t.Fatalf("issued = %d, want 1", snap.Counters[MetricTokensIssued])
	}
	if snap.Counters[MetricAuthorizeSuccess] != 1 {
		t.Fatalf("success = %d, want 1", snap.Counters[MetricAuthorizeSuccess])
	}
	if snap.Counters[MetricAuthorizeInvalid] != 1 {
		t.Fatalf("invalid = %d, want 1", snap.Counters[MetricAuthorizeInvalid])
	}
}

func TestServiceEmitsAuditEvents(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	sink := NewChannelSink(16)
	cfg := testConfig()
	cfg.Audit.Enabled = true

	svc, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithAuditSink(sink).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	pair, err := svc.IssueSessionTokens(context.Background(), "u-1", "member", "ua", "1.2.3.4")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	// Close drains the dispatcher before returning.
	svc.Close()

	select {
	case event := <-sink.Events():
		if event.EventType != AuditTokensIssued {
			t.Fatalf("event type = %q, want %q", event.EventType, AuditTokensIssued)
		}
		if event.UserID != "u-1" || event.TokenID != pair.TokenID || !event.Success {
			t.Fatalf("event = %+v", event)
		}
	default:
		t.Fatal("no audit event emitted")
	}
}

func TestBuildRequiresRedis(t *testing.T) {
	if _, err := New().WithConfig(testConfig()).Build(); err == nil {
		t.Fatal("expected error without redis client")
	}
}

func TestBuildRejectsSharedSecrets(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	cfg := testConfig()
	cfg.Token.RefreshSecret = cfg.Token.AccessSecret

	if _, err := New().WithConfig(cfg).WithRedis(rdb).Build(); err == nil {
		t.Fatal("expected error for shared secrets")
	}
}
