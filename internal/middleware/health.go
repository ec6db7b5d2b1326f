package middleware

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bryanwahyu/automaton-analyst/internal/infra/ratelimit"
)

// HealthChecker defines interface for health checking
type HealthChecker interface {
	Check(ctx context.Context) error
}

// CheckerFunc adapts a function to HealthChecker.
type CheckerFunc func(ctx context.Context) error

func (f CheckerFunc) Check(ctx context.Context) error { return f(ctx) }

// DegradedError marks a failed check that still lets analyses run, only with
// fallback output. It turns the overall status into "degraded" instead of 503.
type DegradedError struct{ Reason string }

func (e *DegradedError) Error() string { return e.Reason }

func degradedf(format string, args ...any) error {
	return &DegradedError{Reason: fmt.Sprintf(format, args...)}
}

// DatabaseHealthChecker checks database health
type DatabaseHealthChecker struct {
	DB *sql.DB
}

func (d *DatabaseHealthChecker) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return d.DB.PingContext(ctx)
}

// ConfigChecker degrades when one of the required integrations has no credentials.
func ConfigChecker(status func() map[string]bool, required ...string) HealthChecker {
	return CheckerFunc(func(context.Context) error {
		st := status()
		var missing []string
		for _, name := range required {
			if !st[name] {
				missing = append(missing, name)
			}
		}
		if len(missing) > 0 {
			return degradedf("not configured: %s", strings.Join(missing, ", "))
		}
		return nil
	})
}

// QuotaChecker degrades when a data source has used up its daily calls; the
// fetcher then records an error marker for that source.
func QuotaChecker(usage func() []ratelimit.Usage) HealthChecker {
	return CheckerFunc(func(context.Context) error {
		var exhausted []string
		for _, u := range usage() {
			if !u.Available {
				exhausted = append(exhausted, fmt.Sprintf("%s (%d/%d)", u.Source, u.CallsToday, u.DailyLimit))
			}
		}
		if len(exhausted) > 0 {
			return degradedf("daily quota exhausted: %s", strings.Join(exhausted, ", "))
		}
		return nil
	})
}

// HealthStatus represents the health status
type HealthStatus struct {
	Status    string                 `json:"status"` // healthy | degraded | unhealthy
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckStatus `json:"checks"`
}

// CheckStatus represents individual check status
type CheckStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Evaluate runs every checker concurrently. Only non-degraded failures make
// the result unhealthy.
func Evaluate(ctx context.Context, checkers map[string]HealthChecker) HealthStatus {
	health := HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now(),
		Checks:    make(map[string]CheckStatus, len(checkers)),
	}

	var mu sync.Mutex
	var g errgroup.Group
	for name, checker := range checkers {
		name, checker := name, checker
		g.Go(func() error {
			cs := CheckStatus{Status: "healthy"}
			if err := checker.Check(ctx); err != nil {
				cs = CheckStatus{Status: "unhealthy", Message: err.Error()}
				var d *DegradedError
				if errors.As(err, &d) {
					cs.Status = "degraded"
				}
			}
			mu.Lock()
			health.Checks[name] = cs
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	names := make([]string, 0, len(health.Checks))
	for name := range health.Checks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		switch health.Checks[name].Status {
		case "unhealthy":
			health.Status = "unhealthy"
		case "degraded":
			if health.Status == "healthy" {
				health.Status = "degraded"
			}
		}
	}
	return health
}

// HealthHandler serves Evaluate. Degraded still answers 200.
func HealthHandler(checkers map[string]HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := Evaluate(ctx, checkers)
		statusCode := http.StatusOK
		if health.Status == "unhealthy" {
			statusCode = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		json.NewEncoder(w).Encode(health)
	}
}

// ReadinessHandler reports whether the analysis pipeline can serve runs
// (model + fundamentals configured).
func ReadinessHandler(ready func() bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// degraded masih bisa jalan, step-step fallback ke output minimal
		status := "ready"
		if ready != nil && !ready() {
			status = "degraded"
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"status":    status,
			"timestamp": time.Now(),
		})
	}
}

// LivenessHandler creates a liveness check handler (simplest check)
func LivenessHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
