// Package canned provides deterministic text generators for offline runs and tests.
package canned

import (
	"context"
	"strings"
	"sync"
)

// Rule answers Reply when the system prompt contains Contains.
type Rule struct {
	Contains string
	Reply    string
}

// Generator replies from a fixed script. The first matching rule wins; Err, when
// set, is returned for every call instead.
type Generator struct {
	Rules    []Rule
	Fallback string
	Err      error

	mu    sync.Mutex
	calls []string
}

func New(rules ...Rule) *Generator {
	return &Generator{Rules: rules}
}

// Failing returns a generator whose every call fails with err.
func Failing(err error) *Generator {
	return &Generator{Err: err}
}

func (g *Generator) Generate(ctx context.Context, system, user string) (string, error) {
	g.mu.Lock()
	g.calls = append(g.calls, system)
	g.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if g.Err != nil {
		return "", g.Err
	}
	for _, r := range g.Rules {
		if strings.Contains(system, r.Contains) {
			return r.Reply, nil
		}
	}
	return g.Fallback, nil
}

// Calls returns how many times Generate was invoked.
func (g *Generator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

// CallsMatching counts invocations whose system prompt contains s.
func (g *Generator) CallsMatching(s string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, c := range g.calls {
		if strings.Contains(c, s) {
			n++
		}
	}
	return n
}
