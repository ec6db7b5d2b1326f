package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bryanwahyu/automaton-analyst/internal/application"
)

// ErrLimited is returned when a source has used up its daily quota.
var ErrLimited = errors.New("rate limited")

// Source names of the external data providers.
const (
	SourceYahoo        = "yahoo_finance"
	SourceAlphaVantage = "alpha_vantage"
	SourceStockNews    = "stock_news"
	SourceEdgar        = "sec_edgar"
)

// Limit configures one source. Zero values mean unlimited.
type Limit struct {
	Daily     int
	PerSecond float64
	Burst     int
}

// Usage is the snapshot reported for one source.
type Usage struct {
	Source     string `json:"source"`
	CallsToday int    `json:"calls_today"`
	DailyLimit int    `json:"daily_limit,omitempty"`
	Remaining  int    `json:"remaining"`
	Available  bool   `json:"available"`
	Unlimited  bool   `json:"unlimited"`
}

type source struct {
	limit  Limit
	bucket *TokenBucket
	calls  int
}

// Manager tracks daily call counters and pacing per external source for the
// lifetime of the process. Counters reset when the calendar day changes.
type Manager struct {
	mu      sync.Mutex
	clock   application.Clock
	day     string
	sources map[string]*source
}

func NewManager(clock application.Clock) *Manager {
	if clock == nil {
		clock = application.SystemClock{}
	}
	return &Manager{clock: clock, sources: make(map[string]*source)}
}

// Configure sets the limit of a source, replacing any previous one.
func (m *Manager) Configure(name string, l Limit) *Manager {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := &source{limit: l}
	if l.PerSecond > 0 {
		burst := l.Burst
		if burst < 1 {
			burst = 1
		}
		s.bucket = newBucket(burst, l.PerSecond, m.clock.Now)
	}
	if prev, ok := m.sources[name]; ok {
		s.calls = prev.calls
	}
	m.sources[name] = s
	return m
}

// Acquire records one call to name. It fails with ErrLimited once the daily
// quota is used up and otherwise waits for the pacing bucket.
func (m *Manager) Acquire(ctx context.Context, name string) error {
	m.mu.Lock()
	m.rollover()
	s, ok := m.sources[name]
	if !ok {
		s = &source{}
		m.sources[name] = s
	}
	if s.limit.Daily > 0 && s.calls >= s.limit.Daily {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s daily limit of %d calls reached", ErrLimited, name, s.limit.Daily)
	}
	s.calls++
	bucket := s.bucket
	m.mu.Unlock()

	if bucket == nil {
		return nil
	}
	return bucket.Wait(ctx)
}

// Usage returns a snapshot of every known source, sorted by name.
func (m *Manager) Usage() []Usage {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rollover()

	out := make([]Usage, 0, len(m.sources))
	for name, s := range m.sources {
		u := Usage{Source: name, CallsToday: s.calls, Available: true}
		if s.limit.Daily > 0 {
			u.DailyLimit = s.limit.Daily
			u.Remaining = s.limit.Daily - s.calls
			if u.Remaining < 0 {
				u.Remaining = 0
			}
			u.Available = u.Remaining > 0
		} else {
			u.Unlimited = true
			u.Remaining = -1
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Source < out[j].Source })
	return out
}

// Reset zeroes every daily counter.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sources {
		s.calls = 0
	}
}

// rollover resets counters on a new day; m.mu must be held.
func (m *Manager) rollover() {
	day := m.clock.Now().Format(time.DateOnly)
	if m.day == day {
		return
	}
	if m.day != "" {
		for _, s := range m.sources {
			s.calls = 0
		}
	}
	m.day = day
}
