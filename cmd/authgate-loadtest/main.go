// Command authgate-loadtest measures authorize and rotate throughput
// against a Redis backend. With no -redis-addr it starts an embedded
// miniredis, which is useful for quick comparative runs but does not
// reflect real network latency.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	authgate "github.com/authgate/authgate"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	xrate "golang.org/x/time/rate"
)

type lineage struct {
	mu   sync.Mutex
	pair *authgate.TokenPair
}

func main() {
	var (
		sessions    = flag.Int("sessions", 1000, "number of sessions to seed")
		concurrency = flag.Int("concurrency", 64, "number of concurrent workers")
		ops         = flag.Int("ops", 50000, "operations per phase (authorize + rotate)")
		pace        = flag.Float64("rate", 0, "target ops/sec across all workers; 0 disables pacing")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
	)
	flag.Parse()

	if *sessions <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "sessions, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	cfg := authgate.Config{
		Token: authgate.TokenConfig{
			AccessSecret:  []byte("loadtest-access-secret-0123456789abcdef"),
			RefreshSecret: []byte("loadtest-refresh-secret-0123456789abcdef"),
			Issuer:        "authgate-loadtest",
		},
		// Every seeded session gets its own user so the per-user cap
		// never interferes with seeding.
		Session: authgate.SessionConfig{MaxSessionsPerUser: 1},
	}

	service, err := authgate.New().
		WithConfig(cfg).
		WithRedis(client).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "service build: %v\n", err)
		os.Exit(1)
	}
	defer service.Close()

	var limiter *xrate.Limiter
	if *pace > 0 {
		limiter = xrate.NewLimiter(xrate.Limit(*pace), *concurrency)
	}

	lineages := make([]*lineage, *sessions)
	fmt.Printf("seeding %d sessions...\n", *sessions)
	startSeed := time.Now()
	for i := 0; i < *sessions; i++ {
		userID := fmt.Sprintf("user-%d", i)
		pair, err := service.IssueSessionTokens(ctx, userID, "member", "loadtest", "127.0.0.1")
		if err != nil {
			fmt.Fprintf(os.Stderr, "seed failed: %v\n", err)
			os.Exit(1)
		}
		lineages[i] = &lineage{pair: pair}
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	authorizeStats := runAuthorizePhase(ctx, service, lineages, *ops, *concurrency, limiter)
	rotateStats := runRotatePhase(ctx, service, lineages, *ops, *concurrency, limiter)

	fmt.Println("---- results ----")
	printStats("authorize", authorizeStats)
	printStats("rotate", rotateStats)
}

func runAuthorizePhase(ctx context.Context, service *authgate.Service, lineages []*lineage, ops, concurrency int, limiter *xrate.Limiter) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				if limiter != nil {
					_ = limiter.Wait(ctx)
				}
				l := lineages[r.Intn(len(lineages))]

				l.mu.Lock()
				access := l.pair.AccessToken
				l.mu.Unlock()

				t0 := time.Now()
				_, err := service.Authorize(ctx, access)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

func runRotatePhase(ctx context.Context, service *authgate.Service, lineages []*lineage, ops, concurrency int, limiter *xrate.Limiter) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*6151))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				if limiter != nil {
					_ = limiter.Wait(ctx)
				}
				idx := r.Intn(len(lineages))
				l := lineages[idx]
				userID := fmt.Sprintf("user-%d", idx)

				l.mu.Lock()
				t0 := time.Now()
				next, err := service.Rotate(ctx, l.pair.TokenID, userID, "member", "loadtest", "127.0.0.1")
				d := time.Since(t0)
				if err == nil {
					l.pair = next
				} else {
					atomic.AddInt64(&failures, 1)
				}
				l.mu.Unlock()

				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
