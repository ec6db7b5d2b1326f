package openai

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bryanwahyu/automaton-analyst/internal/domain/ai"
)

const retryBaseDelay = 300 * time.Millisecond

// Retrying retries transient generation failures with a doubling delay.
// When timeout is set every attempt gets its own deadline, so a slow first
// attempt does not use up the time of the ones after it.
type Retrying struct {
	base     ai.Generator
	attempts int
	delay    time.Duration
	timeout  time.Duration
	log      *zap.Logger
}

// WithRetry wraps base so each call is attempted at most attempts times.
func WithRetry(base ai.Generator, attempts int, log *zap.Logger) *Retrying {
	if attempts < 1 {
		attempts = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Retrying{base: base, attempts: attempts, delay: retryBaseDelay, log: log}
}

// PerAttempt bounds each attempt by d. Zero leaves attempts bounded by the caller's context only.
func (r *Retrying) PerAttempt(d time.Duration) *Retrying {
	r.timeout = d
	return r
}

// Budget is the longest a call can take: every attempt timing out plus the
// backoff between them.
func (r *Retrying) Budget() time.Duration {
	total := time.Duration(r.attempts) * r.timeout
	delay := r.delay
	for i := 1; i < r.attempts; i++ {
		total += delay
		delay *= 2
	}
	return total
}

func (r *Retrying) Generate(ctx context.Context, system, user string) (string, error) {
	delay := r.delay
	var err error
	for attempt := 1; ; attempt++ {
		var text string
		text, err = r.attempt(ctx, system, user)
		if err != nil && ctx.Err() != nil {
			return "", ctx.Err()
		}
		if err == nil || attempt >= r.attempts || !shouldRetry(err) {
			return text, err
		}
		r.log.Warn("llm retry", zap.Int("attempt", attempt), zap.Error(err))
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
		delay *= 2
	}
}

func (r *Retrying) attempt(ctx context.Context, system, user string) (string, error) {
	if r.timeout <= 0 {
		return r.base.Generate(ctx, system, user)
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.base.Generate(ctx, system, user)
}

func shouldRetry(err error) bool {
	if err == nil || errors.Is(err, ai.ErrQuotaExceeded) || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, ai.ErrEmptyCompletion) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if status := statusOf(err); status >= 500 {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, s := range []string{"connection reset", "connection refused", "broken pipe", "tls handshake timeout", "eof"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
