package main

import (
	"context"
	"crypto/rand"
	"flag"
	"fmt"
	mathrand "math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/goCred/jwt"
	"github.com/MrEthical07/goCred/revocation"
	"github.com/MrEthical07/goCred/token"
)

func main() {
	var (
		tokens      = flag.Int("tokens", 100000, "number of access tokens to issue")
		concurrency = flag.Int("concurrency", 256, "number of concurrent workers")
		ops         = flag.Int("ops", 200000, "operations per validate phase")
		revokeShare = flag.Int("revoke-percent", 10, "percentage of tokens revoked before the second validate phase")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "gocred-load", "revocation key prefix")
	)
	flag.Parse()

	if *tokens <= 0 || *concurrency <= 0 || *ops <= 0 || *revokeShare < 0 || *revokeShare > 100 {
		fmt.Fprintln(os.Stderr, "tokens, concurrency, and ops must be > 0; revoke-percent must be 0..100")
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

	manager, err := newManager(client, *prefix)
	if err != nil {
		fmt.Fprintf(os.Stderr, "manager init failed: %v\n", err)
		os.Exit(1)
	}

	issued := make([]string, *tokens)
	fmt.Printf("issuing %d tokens...\n", *tokens)
	startIssue := time.Now()
	for i := range issued {
		tok, err := manager.Issue(token.UserClaims{
			UserID: fmt.Sprintf("user-%d", i),
			Handle: fmt.Sprintf("user-%d@example.com", i),
			Role:   "user",
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "issue failed: %v\n", err)
			os.Exit(1)
		}
		issued[i] = tok.Token
	}
	fmt.Printf("issued in %s\n", time.Since(startIssue).Round(time.Millisecond))

	validateStats := runValidatePhase(ctx, manager, issued, *ops, *concurrency)

	revokeCount := len(issued) * *revokeShare / 100
	revokeStats := runRevokePhase(ctx, manager, issued[:revokeCount], *concurrency)
	afterRevokeStats := runValidatePhase(ctx, manager, issued, *ops, *concurrency)

	fmt.Println("---- results ----")
	printStats("validate", validateStats)
	printStats("revoke", revokeStats)
	printStats("validate-after-revoke", afterRevokeStats)
}

func newManager(client redis.UniversalClient, prefix string) (*token.AccessManager, error) {
	secret := make([]byte, jwt.MinSecretBytes)
	if _, err := rand.Read(secret); err != nil {
		return nil, err
	}
	codec, err := jwt.NewCodec(jwt.Config{Secret: secret, Issuer: "gocred-loadtest"})
	if err != nil {
		return nil, err
	}
	return token.NewAccessManager(codec, revocation.NewRedisStore(client, prefix), token.AccessConfig{TTL: time.Hour})
}

// runValidatePhase counts refused tokens as failures, so after the revoke
// phase roughly revoke-percent of operations fail.
func runValidatePhase(ctx context.Context, manager *token.AccessManager, issued []string, ops, concurrency int) phaseStats {
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
			r := mathrand.New(mathrand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				tok := issued[r.Intn(len(issued))]
				t0 := time.Now()
				_, err := manager.Verify(ctx, tok)
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

func runRevokePhase(ctx context.Context, manager *token.AccessManager, victims []string, concurrency int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, len(victims))
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= len(victims) {
					return
				}
				t0 := time.Now()
				err := manager.Revoke(ctx, victims[i])
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}()
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
