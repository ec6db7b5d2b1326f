package agents

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/bryanwahyu/automaton-analyst/internal/domain/ai"
	"github.com/bryanwahyu/automaton-analyst/internal/domain/analysis"
)

// Planner turns the company identifier into an ordered research plan.
type Planner struct {
	gen  ai.Generator
	deps Deps
}

func NewPlanner(gen ai.Generator, deps Deps) *Planner {
	return &Planner{gen: gen, deps: deps.normalized()}
}

func (p *Planner) Name() string { return StagePlanner }

// Run writes research_plan. It never leaves the plan unset: generation failures
// yield FallbackPlan, unparseable output yields DefaultPlan.
func (p *Planner) Run(ctx context.Context, st *analysis.State) {
	log := p.deps.Logger.With(zap.String("stage", StagePlanner), zap.String("company", st.CompanyName))
	defer func() {
		if r := recover(); r != nil {
			log.Error("planner panicked, using fallback plan", zap.Any("panic", r))
			p.fallback(st)
		}
	}()

	system, user := plannerPrompt(st.CompanyName)
	text, err := p.deps.generate(ctx, p.gen, system, user)
	if err != nil {
		log.Warn("planner generation failed, using fallback plan", zap.Error(err))
		p.fallback(st)
		return
	}

	tasks, perr := ParsePlan(text)
	if perr != nil {
		log.Info("planner output not parseable, using default plan", zap.Error(perr))
		tasks = DefaultPlan(st.CompanyName)
	}

	plan := make([]string, len(tasks))
	for i, t := range tasks {
		plan[i] = t.Description
	}
	st.ResearchPlan = plan
	st.Append(StagePlanner, fmt.Sprintf("Created research plan with %d tasks for %s", len(tasks), st.CompanyName), p.deps.Clock.Now())
	log.Info("research plan created", zap.Int("tasks", len(tasks)))
}

func (p *Planner) fallback(st *analysis.State) {
	st.ResearchPlan = FallbackPlan(st.CompanyName)
	st.Append(StagePlanner, "Created fallback research plan", p.deps.Clock.Now())
}
