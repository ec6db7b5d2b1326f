package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/bryanwahyu/automaton-analyst/internal/application"
	"github.com/bryanwahyu/automaton-analyst/internal/domain/analysis"
)

// ErrStepLimit is returned if a run executes more steps than the graph allows.
// It cannot happen while the quality checker honours the iteration cap.
var ErrStepLimit = errors.New("workflow engine: step limit exceeded")

// DefaultMaxSteps covers the planner plus MaxIterations+1 passes of the four-step loop.
const DefaultMaxSteps = 1 + 4*(analysis.MaxIterations+1)

// Observer is notified after each node finished.
type Observer func(node Node, st *analysis.State)

// Engine runs a compiled graph against one state, one step at a time.
type Engine struct {
	graph    *Graph
	log      *zap.Logger
	clock    application.Clock
	observer Observer
	maxSteps int
}

// Option customizes the engine instance.
type Option func(*Engine)

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithClock injects a deterministic clock (primarily for tests).
func WithClock(c application.Clock) Option {
	return func(e *Engine) {
		if c != nil {
			e.clock = c
		}
	}
}

func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

func WithMaxSteps(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxSteps = n
		}
	}
}

// New wires an engine to a compiled graph.
func New(g *Graph, opts ...Option) (*Engine, error) {
	if g == nil || !g.compiled {
		return nil, fmt.Errorf("workflow engine: compiled graph is required")
	}
	e := &Engine{
		graph:    g,
		log:      zap.NewNop(),
		clock:    application.SystemClock{},
		maxSteps: DefaultMaxSteps,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Observe returns a copy of the engine that reports to o instead.
func (e *Engine) Observe(o Observer) *Engine {
	cp := *e
	cp.observer = o
	return &cp
}

// Run executes nodes from the entry until End. Steps run strictly sequentially;
// a panicking step is recorded in the audit trail and the run continues.
// Cancellation of ctx is observed between steps only.
func (e *Engine) Run(ctx context.Context, st *analysis.State) error {
	if st == nil {
		return fmt.Errorf("workflow engine: state is required")
	}
	log := e.log.With(zap.String("company", st.CompanyName))
	start := e.clock.Now()

	node := e.graph.entry
	executed := 0
	for node != End {
		if err := ctx.Err(); err != nil {
			log.Warn("run cancelled", zap.String("before", string(node)), zap.Error(err))
			return err
		}
		if executed >= e.maxSteps {
			log.Error("step limit exceeded", zap.Int("steps", executed))
			return ErrStepLimit
		}
		e.runStep(ctx, node, st)
		executed++
		e.notify(node, st)

		next, err := e.graph.next(node, st)
		if err != nil {
			return err
		}
		log.Debug("transition", zap.String("from", string(node)), zap.String("to", string(next)))
		node = next
	}

	log.Info("workflow finished",
		zap.Int("steps", executed),
		zap.Int("iterations", st.IterationCount),
		zap.Bool("quality_passed", st.QualityCheckPassed),
		zap.Duration("elapsed", e.clock.Now().Sub(start)),
	)
	return nil
}

func (e *Engine) runStep(ctx context.Context, node Node, st *analysis.State) {
	step := e.graph.nodes[node]
	before := len(st.Messages)
	started := time.Now()
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("step panicked", zap.String("stage", step.Name()), zap.Any("panic", r))
			st.Append(step.Name(), fmt.Sprintf("%s step failed: %v", step.Name(), r), e.clock.Now())
		}
		if len(st.Messages) == before {
			st.Append(step.Name(), step.Name()+" step finished", e.clock.Now())
		}
		e.log.Debug("step finished", zap.String("stage", step.Name()), zap.Duration("took", time.Since(started)))
	}()
	step.Run(ctx, st)
}

func (e *Engine) notify(node Node, st *analysis.State) {
	if e.observer == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			e.log.Warn("observer panicked", zap.String("node", string(node)), zap.Any("panic", r))
		}
	}()
	e.observer(node, st)
}
