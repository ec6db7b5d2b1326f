package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/bryanwahyu/automaton-analyst/internal/infra/ratelimit"
)

func TestValidateSymbol(t *testing.T) {
	for _, ok := range []string{"AAPL", "BRK.B", "RELIANCE.NS", "^GSPC", "EURUSD=X", "ticker:msft"} {
		if err := ValidateSymbol(ok); err != nil {
			t.Fatalf("%q: unexpected error %v", ok, err)
		}
	}
	for _, bad := range []string{"", "   ", "AAPL; DROP TABLE", "a/b", strings.Repeat("A", 33), ".NS"} {
		if err := ValidateSymbol(bad); err == nil {
			t.Fatalf("%q: expected error", bad)
		}
	}
}

func TestValidateReportID(t *testing.T) {
	if err := ValidateReportID("7f1b6a3e-1c2d-4e5f-8a9b-0c1d2e3f4a5b"); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	for _, bad := range []string{"", "123", "7F1B6A3E-1C2D-4E5F-8A9B-0C1D2E3F4A5B"} {
		if err := ValidateReportID(bad); err == nil {
			t.Fatalf("%q: expected error", bad)
		}
	}
}

func TestSanitizeAndPagination(t *testing.T) {
	if got := SanitizeString(" AA\x00PL\x07 "); got != "AAPL" {
		t.Fatalf("unexpected sanitized value %q", got)
	}
	if ValidateLimit(0) != 20 || ValidateLimit(500) != 100 || ValidateLimit(7) != 7 {
		t.Fatal("unexpected limit clamping")
	}
	if ValidatePage(-1) != 1 || ValidatePage(3) != 3 {
		t.Fatal("unexpected page clamping")
	}
}

func TestRateLimitPerClient(t *testing.T) {
	limiter := ratelimit.NewKeyed(1, 0.001)
	defer limiter.Close()
	h := RateLimit(limiter)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	do := func(path, ip string) int {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.RemoteAddr = ip + ":5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := do("/v1/analyses", "10.0.0.1"); code != http.StatusNoContent {
		t.Fatalf("expected first call to pass, got %d", code)
	}
	if code := do("/v1/analyses", "10.0.0.1"); code != http.StatusTooManyRequests {
		t.Fatalf("expected second call to be limited, got %d", code)
	}
	if code := do("/v1/analyses", "10.0.0.2"); code != http.StatusNoContent {
		t.Fatalf("expected other client to pass, got %d", code)
	}
	if code := do("/health", "10.0.0.1"); code != http.StatusNoContent {
		t.Fatalf("expected probes to bypass the limiter, got %d", code)
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	if got := clientIP(req); got != "203.0.113.9" {
		t.Fatalf("expected forwarded ip, got %q", got)
	}
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	if got := clientIP(req); got != "192.0.2.1" {
		t.Fatalf("expected remote host, got %q", got)
	}
}

func TestLoggingLevels(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	h := Logging(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/boom" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/fine", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 log entries, got %d", len(entries))
	}
	if entries[0].Level != zapcore.InfoLevel || entries[0].ContextMap()["bytes"] != int64(2) {
		t.Fatalf("unexpected first entry %+v", entries[0].ContextMap())
	}
	if entries[1].Level != zapcore.ErrorLevel || entries[1].ContextMap()["status"] != int64(500) {
		t.Fatalf("unexpected second entry %+v", entries[1].ContextMap())
	}
}

func TestMetricsCountsRequestsAndRuns(t *testing.T) {
	m := NewMetrics()
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bad" {
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ok", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/bad", nil))
	m.RunStarted()
	m.RunStarted()
	m.RunFinished(true)

	s := m.Snapshot()
	if s["requests_total"] != uint64(2) || s["requests_success"] != uint64(1) || s["requests_failed"] != uint64(1) {
		t.Fatalf("unexpected request counters %v", s)
	}
	if s["analyses_total"] != uint64(2) || s["analyses_running"] != int64(1) || s["analyses_failed"] != uint64(1) {
		t.Fatalf("unexpected run counters %v", s)
	}
}

func TestHealthAndReadiness(t *testing.T) {
	h := HealthHandler(map[string]HealthChecker{
		"ok":   CheckerFunc(func(context.Context) error { return nil }),
		"down": CheckerFunc(func(context.Context) error { return errors.New("db down") }),
	})
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	var health HealthStatus
	if err := json.NewDecoder(rec.Body).Decode(&health); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if health.Checks["down"].Message != "db down" || health.Checks["ok"].Status != "healthy" {
		t.Fatalf("unexpected checks %+v", health.Checks)
	}

	rec = httptest.NewRecorder()
	ReadinessHandler(func() bool { return false })(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	var ready map[string]any
	_ = json.NewDecoder(rec.Body).Decode(&ready)
	if rec.Code != http.StatusOK || ready["status"] != "degraded" {
		t.Fatalf("expected degraded readiness with 200, got %d %v", rec.Code, ready)
	}
}

func TestHealthReportsDegradedChecks(t *testing.T) {
	usage := ratelimit.NewManager(nil).
		Configure(ratelimit.SourceStockNews, ratelimit.Limit{Daily: 1}).
		Configure(ratelimit.SourceYahoo, ratelimit.Limit{})
	if err := usage.Acquire(context.Background(), ratelimit.SourceStockNews); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	status := func() map[string]bool { return map[string]bool{"llm": false, "alpha_vantage": true} }

	h := HealthHandler(map[string]HealthChecker{
		"configuration": ConfigChecker(status, "llm", "alpha_vantage"),
		"sources":       QuotaChecker(usage.Usage),
	})
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for degraded, got %d", rec.Code)
	}
	var health HealthStatus
	if err := json.NewDecoder(rec.Body).Decode(&health); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if health.Status != "degraded" {
		t.Fatalf("expected degraded, got %+v", health)
	}
	if c := health.Checks["configuration"]; c.Status != "degraded" || c.Message != "not configured: llm" {
		t.Fatalf("unexpected configuration check %+v", c)
	}
	if c := health.Checks["sources"]; c.Status != "degraded" || !strings.Contains(c.Message, "stock_news (1/1)") {
		t.Fatalf("unexpected sources check %+v", c)
	}
}

func TestEvaluateUnhealthyWinsOverDegraded(t *testing.T) {
	got := Evaluate(context.Background(), map[string]HealthChecker{
		"database":      CheckerFunc(func(context.Context) error { return errors.New("db down") }),
		"configuration": ConfigChecker(func() map[string]bool { return nil }, "llm"),
	})
	if got.Status != "unhealthy" || got.Checks["configuration"].Status != "degraded" {
		t.Fatalf("unexpected evaluation %+v", got)
	}
	if ok := Evaluate(context.Background(), nil); ok.Status != "healthy" {
		t.Fatalf("expected healthy with no checks, got %+v", ok)
	}
}
