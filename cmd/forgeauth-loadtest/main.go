// Command forgeauth-loadtest drives the engine on the in-memory store and
// checks that concurrent refreshes of one token produce exactly one winner.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/forgeauth"
	"github.com/MrEthical07/forgeauth/store/memory"
)

type accountState struct {
	access  string
	refresh string
	mu      sync.Mutex
}

func main() {
	var (
		accounts    = flag.Int("accounts", 1000, "number of accounts to seed")
		concurrency = flag.Int("concurrency", 64, "number of concurrent workers")
		ops         = flag.Int("ops", 20000, "operations per phase (validate, refresh)")
		races       = flag.Int("races", 200, "tokens to refresh concurrently in the race phase")
		racers      = flag.Int("racers", 8, "goroutines presenting each raced token")
	)
	flag.Parse()

	if *accounts <= 0 || *concurrency <= 0 || *ops <= 0 || *races < 0 || *racers <= 0 {
		fmt.Fprintln(os.Stderr, "accounts, concurrency, ops and racers must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	cfg := forgeauth.DefaultConfig()
	cfg.JWT.PrivateKey = []byte(strings.Repeat("L", 32))
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Security.EnableLoginRateLimit = false
	cfg.Metrics.Enabled = true

	engine, err := forgeauth.New().WithConfig(cfg).WithStore(memory.New()).Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "engine build: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	states := make([]accountState, *accounts)
	fmt.Printf("seeding %d accounts...\n", *accounts)
	startSeed := time.Now()
	for i := range states {
		res, err := engine.Signup(ctx, forgeauth.SignupInput{
			Email:    fmt.Sprintf("load-%d@example.com", i),
			Password: "load-test-password",
			Name:     fmt.Sprintf("Load %d", i),
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "signup failed: %v\n", err)
			os.Exit(1)
		}
		states[i].access = res.Tokens.AccessToken
		states[i].refresh = res.Tokens.RefreshToken
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	validateStats := runValidatePhase(ctx, engine, states, *ops, *concurrency)
	refreshStats := runRefreshPhase(ctx, engine, states, *ops, *concurrency)
	race := runRacePhase(ctx, engine, states, *races, *racers)

	fmt.Println("---- results ----")
	printStats("validate", validateStats)
	printStats("refresh", refreshStats)
	fmt.Printf("race: tokens=%d racers=%d clean=%d violations=%d\n",
		race.tokens, *racers, race.tokens-race.violations, race.violations)

	snap := engine.MetricsSnapshot()
	fmt.Printf("metrics: refresh_success=%d reuse_detected=%d tokens_revoked=%d\n",
		snap.Counters[forgeauth.MetricRefreshSuccess],
		snap.Counters[forgeauth.MetricRefreshReuseDetected],
		snap.Counters[forgeauth.MetricTokensRevoked],
	)

	if race.violations > 0 {
		os.Exit(1)
	}
}

func runValidatePhase(ctx context.Context, engine *forgeauth.Engine, states []accountState, ops, concurrency int) phaseStats {
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
				state := &states[r.Intn(len(states))]
				state.mu.Lock()
				token := state.access
				state.mu.Unlock()

				t0 := time.Now()
				_, err := engine.ValidateAccess(ctx, token)
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

// runRefreshPhase rotates tokens serially per account, so every failure is
// a defect rather than an expected race loss.
func runRefreshPhase(ctx context.Context, engine *forgeauth.Engine, states []accountState, ops, concurrency int) phaseStats {
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
				state := &states[r.Intn(len(states))]

				state.mu.Lock()
				t0 := time.Now()
				pair, err := engine.Refresh(ctx, state.refresh)
				d := time.Since(t0)
				if err == nil {
					state.access = pair.AccessToken
					state.refresh = pair.RefreshToken
				} else {
					atomic.AddInt64(&failures, 1)
				}
				state.mu.Unlock()

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

type raceStats struct {
	tokens     int
	violations int
}

// runRacePhase presents each of the first n refresh tokens from racers
// goroutines at once. At most one may succeed and the rest must see
// ErrReplayDetected. A winner's successor must be dead afterwards, since the
// losers revoked its family.
func runRacePhase(ctx context.Context, engine *forgeauth.Engine, states []accountState, n, racers int) raceStats {
	if n > len(states) {
		n = len(states)
	}
	out := raceStats{tokens: n}

	for i := 0; i < n; i++ {
		token := states[i].refresh
		var (
			wg      sync.WaitGroup
			winners   int64
			other     int64
			successor atomic.Value
			release   = make(chan struct{})
		)
		for r := 0; r < racers; r++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-release
				pair, err := engine.Refresh(ctx, token)
				switch {
				case err == nil:
					atomic.AddInt64(&winners, 1)
					successor.Store(pair.RefreshToken)
				case errors.Is(err, forgeauth.ErrReplayDetected):
				default:
					atomic.AddInt64(&other, 1)
				}
			}()
		}
		close(release)
		wg.Wait()

		if winners > 1 || other != 0 {
			out.violations++
			fmt.Fprintf(os.Stderr, "token %d: winners=%d unexpected errors=%d\n", i, winners, other)
			continue
		}
		if next, ok := successor.Load().(string); ok && racers > 1 {
			if _, err := engine.Refresh(ctx, next); !errors.Is(err, forgeauth.ErrReplayDetected) {
				out.violations++
				fmt.Fprintf(os.Stderr, "token %d: successor survived the replay: %v\n", i, err)
			}
		}
	}
	return out
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

