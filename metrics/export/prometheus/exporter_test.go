package prometheus

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	goAuthClient "github.com/MrEthical07/goAuthClient"
	"github.com/MrEthical07/goAuthClient/store"
	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

type fakeSource struct {
	snapshot goAuthClient.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() goAuthClient.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                          { return f.dropped }

func TestRenderEmptyWhenMetricsDisabled(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: goAuthClient.MetricsSnapshot{
			Counters:   map[goAuthClient.MetricID]uint64{},
			Histograms: map[goAuthClient.MetricID][]uint64{},
		},
	})

	if got := exp.Render(); got != "" {
		t.Fatalf("expected empty output for disabled metrics, got:\n%s", got)
	}
}

func TestRenderIncludesCountersAndHistograms(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: goAuthClient.MetricsSnapshot{
			Counters: map[goAuthClient.MetricID]uint64{
				goAuthClient.MetricRefreshSuccess: 7,
				goAuthClient.MetricRefreshJoined:  15,
			},
			Histograms: map[goAuthClient.MetricID][]uint64{
				goAuthClient.MetricRefreshLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		dropped: 2,
	})

	out := exp.Render()
	for _, want := range []string{
		"goauthclient_refresh_success_total 7",
		"goauthclient_refresh_joined_total 15",
		"goauthclient_login_success_total 0",
		`goauthclient_refresh_latency_seconds_bucket{le="0.01"} 1`,
		`goauthclient_refresh_latency_seconds_bucket{le="+Inf"} 36`,
		"goauthclient_refresh_latency_seconds_count 36",
		"goauthclient_audit_dropped_total 2",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got:\n%s", want, out)
		}
	}
	if strings.Contains(out, "goauthclient_login_latency_seconds") {
		t.Fatalf("histogram without samples map entry should be omitted, got:\n%s", out)
	}
}

func TestHandlerWritesPrometheusContentType(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: goAuthClient.MetricsSnapshot{
			Counters:   map[goAuthClient.MetricID]uint64{goAuthClient.MetricLoginSuccess: 1},
			Histograms: map[goAuthClient.MetricID][]uint64{},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	exp.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("Content-Type"); !strings.Contains(got, "text/plain") {
		t.Fatalf("expected prometheus content type, got %q", got)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

type staticTransport struct {
	pair goAuthClient.CredentialPair
}

func (s staticTransport) Login(context.Context, string, string) (goAuthClient.CredentialPair, error) {
	return s.pair, nil
}

func (s staticTransport) Refresh(context.Context, string) (goAuthClient.CredentialPair, error) {
	return s.pair, nil
}

func TestExporterReadsManager(t *testing.T) {
	token := func(exp time.Time) string {
		signed, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, gojwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: gojwt.NewNumericDate(exp),
		}).SignedString([]byte("k"))
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		return signed
	}
	pair := goAuthClient.CredentialPair{
		AccessToken:  token(time.Now().Add(time.Hour)),
		RefreshToken: token(time.Now().Add(24 * time.Hour)),
	}

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	m, err := goAuthClient.New().
		WithStore(store.NewMemoryStore()).
		WithTransport(staticTransport{pair: pair}).
		WithLogger(logger).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer m.Close()

	if _, err := m.Login(context.Background(), "u", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	out := NewPrometheusExporter(m).Render()
	if !strings.Contains(out, "goauthclient_login_success_total 1") {
		t.Fatalf("expected one login in output, got:\n%s", out)
	}
	if !strings.Contains(out, `goauthclient_login_latency_seconds_bucket{le="+Inf"} 1`) {
		t.Fatalf("expected one login latency sample, got:\n%s", out)
	}
}

func BenchmarkRender(b *testing.B) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: goAuthClient.MetricsSnapshot{
			Counters: map[goAuthClient.MetricID]uint64{
				goAuthClient.MetricLoginSuccess:   1000,
				goAuthClient.MetricLoginFailure:   40,
				goAuthClient.MetricRefreshSuccess: 800,
				goAuthClient.MetricRefreshJoined:  6400,
			},
			Histograms: map[goAuthClient.MetricID][]uint64{
				goAuthClient.MetricLoginLatency:   {10, 20, 30, 40, 50, 60, 70, 80},
				goAuthClient.MetricRefreshLatency: {10, 20, 30, 40, 50, 60, 70, 80},
			},
		},
	})

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = exp.Render()
	}
}
