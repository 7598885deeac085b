package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	goAuthClient "github.com/MrEthical07/goAuthClient"
	"github.com/MrEthical07/goAuthClient/internal/logging"
	"github.com/MrEthical07/goAuthClient/metrics/export/prometheus"
	"github.com/MrEthical07/goAuthClient/store"
	"github.com/MrEthical07/goAuthClient/transport"
	"github.com/alicebob/miniredis/v2"
	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

var signingKey = []byte("goauthclient-loadtest")

// authServer mints HS256 pairs and counts refresh calls.
type authServer struct {
	accessTTL  time.Duration
	refreshTTL time.Duration
	latency    time.Duration
	now        func() time.Time

	seq       atomic.Int64
	logins    atomic.Int64
	refreshes atomic.Int64
}

func (s *authServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}
	if s.latency > 0 {
		time.Sleep(s.latency)
	}

	var subject string
	switch r.URL.Path {
	case "/auth/login":
		body, _ := io.ReadAll(io.LimitReader(r.Body, 1<<16))
		subject = gjson.GetBytes(body, "username").String()
		if subject == "" || gjson.GetBytes(body, "password").String() == "" {
			writeJSON(w, http.StatusUnauthorized, `{"error":"Invalid username or password"}`)
			return
		}
		s.logins.Add(1)
	case "/auth/refresh_token":
		claims := &gojwt.RegisteredClaims{}
		raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if _, err := gojwt.ParseWithClaims(raw, claims, func(*gojwt.Token) (any, error) { return signingKey, nil }); err != nil {
			writeJSON(w, http.StatusUnauthorized, `{"error":"Invalid refresh token"}`)
			return
		}
		subject = claims.Subject
		s.refreshes.Add(1)
	default:
		writeJSON(w, http.StatusNotFound, `{"error":"not found"}`)
		return
	}

	access, err := s.mint(subject, s.accessTTL)
	if err == nil {
		var refresh string
		refresh, err = s.mint(subject, s.refreshTTL)
		if err == nil {
			reply, _ := sjson.Set(`{}`, "accessToken", access)
			reply, _ = sjson.Set(reply, "refreshToken", refresh)
			writeJSON(w, http.StatusOK, reply)
			return
		}
	}
	writeJSON(w, http.StatusInternalServerError, `{"error":"mint failed"}`)
}

func (s *authServer) mint(subject string, ttl time.Duration) (string, error) {
	now := s.now()
	return gojwt.NewWithClaims(gojwt.SigningMethodHS256, gojwt.RegisteredClaims{
		Subject:   subject,
		ID:        fmt.Sprintf("jti-%d", s.seq.Add(1)),
		IssuedAt:  gojwt.NewNumericDate(now),
		ExpiresAt: gojwt.NewNumericDate(now.Add(ttl)),
	}).SignedString(signingKey)
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func main() {
	var (
		managers  = flag.Int("managers", 8, "number of independent client sessions")
		callers   = flag.Int("callers", 64, "concurrent EnsureFreshAccessToken callers per session and round")
		rounds    = flag.Int("rounds", 20, "expiry rounds; every round forces one refresh per session")
		latency   = flag.Duration("latency", 20*time.Millisecond, "simulated auth server latency")
		redisAddr = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix    = flag.String("prefix", "lt", "credential key prefix")
	)
	flag.Parse()

	if *managers <= 0 || *callers <= 0 || *rounds <= 0 {
		fmt.Fprintln(os.Stderr, "managers, callers, and rounds must be > 0")
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
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", mr.Addr())
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	// Every round moves the shared clock past the access TTL so each
	// session has to refresh exactly once.
	var skew atomic.Int64
	clock := func() time.Time { return time.Now().Add(time.Duration(skew.Load())) }

	const accessTTL = time.Minute
	server := &authServer{accessTTL: accessTTL, refreshTTL: 24 * time.Hour, latency: *latency, now: clock}
	httpServer := httptest.NewServer(server)
	defer httpServer.Close()

	tr, err := transport.New(transport.Config{BaseURL: httpServer.URL, UserAgent: "goauthclient-loadtest"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "transport: %v\n", err)
		os.Exit(1)
	}

	sessions := make([]*goAuthClient.Manager, *managers)
	for i := range sessions {
		m, err := goAuthClient.New().
			WithStore(store.NewRedisStore(client, fmt.Sprintf("%s:%d", *prefix, i), 0)).
			WithTransport(tr).
			WithLogger(logging.Discard()).
			WithClock(clock).
			Build()
		if err != nil {
			fmt.Fprintf(os.Stderr, "build manager: %v\n", err)
			os.Exit(1)
		}
		defer m.Close()
		if _, err := m.Login(ctx, fmt.Sprintf("user-%d", i), "secret"); err != nil {
			fmt.Fprintf(os.Stderr, "login %d: %v\n", i, err)
			os.Exit(1)
		}
		sessions[i] = m
	}

	stats := runRounds(ctx, sessions, *callers, *rounds, func() { skew.Add(int64(accessTTL + time.Second)) })

	expected := int64(*managers * *rounds)
	fmt.Println("---- results ----")
	printStats("ensure_fresh", stats)
	fmt.Printf("refresh calls: %d (expected %d, duplicates %d)\n",
		server.refreshes.Load(), expected, server.refreshes.Load()-expected)
	fmt.Println("---- session 0 metrics ----")
	fmt.Print(prometheus.NewPrometheusExporter(sessions[0]).Render())
}

func runRounds(ctx context.Context, sessions []*goAuthClient.Manager, callers, rounds int, expire func()) phaseStats {
	var (
		failures  int64
		latencies = make([]time.Duration, 0, len(sessions)*callers*rounds)
		mu        sync.Mutex
	)

	start := time.Now()
	for round := 0; round < rounds; round++ {
		expire()

		var wg sync.WaitGroup
		gate := make(chan struct{})
		for _, m := range sessions {
			for c := 0; c < callers; c++ {
				wg.Add(1)
				go func(m *goAuthClient.Manager) {
					defer wg.Done()
					<-gate
					t0 := time.Now()
					_, err := m.EnsureFreshAccessToken(ctx)
					d := time.Since(t0)
					if err != nil {
						atomic.AddInt64(&failures, 1)
					}
					mu.Lock()
					latencies = append(latencies, d)
					mu.Unlock()
				}(m)
			}
		}
		close(gate)
		wg.Wait()
	}
	return computeStats(time.Since(start), latencies, failures)
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
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
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
