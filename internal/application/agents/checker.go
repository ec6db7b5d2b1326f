package agents

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/bryanwahyu/automaton-analyst/internal/domain/ai"
	"github.com/bryanwahyu/automaton-analyst/internal/domain/analysis"
)

// minReportLength is the length under which a report counts as too short.
const minReportLength = 500

var (
	recommendationWords = []string{"BUY", "SELL", "HOLD", "RECOMMENDATION"}
	financialWords      = []string{"PRICE", "REVENUE", "PROFIT", "GROWTH", "VALUATION"}
)

// Override names the rule that forced a pass, if any.
type Override string

const (
	OverrideNone           Override = ""
	OverrideFirstIteration Override = "first_iteration"
	OverrideIterationCap   Override = "iteration_cap"
)

// Verdict is the outcome of the deterministic quality gates.
type Verdict struct {
	Score             int
	HasErrors         bool
	HasRecommendation bool
	HasFinancialData  bool
	TooShort          bool
	NeedsImprovement  bool
	Passed            bool
	Override          Override
}

// Assess applies the heuristic gates and both leniency overrides. iteration is
// the value of iteration_count before this check increments it.
func Assess(report string, score, iteration int) Verdict {
	lower := strings.ToLower(report)
	upper := strings.ToUpper(report)
	v := Verdict{
		Score:             score,
		HasErrors:         strings.Contains(lower, "error") || strings.Contains(lower, "failed"),
		HasRecommendation: containsAny(upper, recommendationWords),
		HasFinancialData:  containsAny(upper, financialWords),
		TooShort:          len(report) < minReportLength,
	}
	v.NeedsImprovement = v.HasErrors ||
		score < 6 ||
		(!v.HasRecommendation && !v.TooShort) ||
		(!v.HasFinancialData && !v.TooShort)

	if iteration == 0 && score >= 5 && v.NeedsImprovement {
		v.NeedsImprovement = false
		v.Override = OverrideFirstIteration
	}
	v.Passed = !v.NeedsImprovement
	if !v.Passed && iteration >= analysis.MaxIterations {
		v.Passed = true
		v.Override = OverrideIterationCap
	}
	return v
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// Checker is the quality gate deciding whether the run loops back to fetching.
type Checker struct {
	gen  ai.Generator
	deps Deps
}

func NewChecker(gen ai.Generator, deps Deps) *Checker {
	return &Checker{gen: gen, deps: deps.normalized()}
}

func (c *Checker) Name() string { return StageChecker }

// Run writes quality_check_passed and increments iteration_count exactly once,
// whatever the outcome. Any fault passes the report.
func (c *Checker) Run(ctx context.Context, st *analysis.State) {
	log := c.deps.Logger.With(zap.String("stage", StageChecker), zap.String("company", st.CompanyName))
	iteration := st.IterationCount
	defer func() {
		if r := recover(); r != nil {
			log.Error("quality check panicked, accepting report", zap.Any("panic", r))
			c.failOpen(st)
		}
		st.IterationCount = iteration + 1
	}()

	report := st.FinalReport
	if report == "" {
		report = "No report available"
	}
	system, user := checkerPrompt(st.CompanyName, report, strings.Join(st.ResearchPlan, ", "))
	text, err := c.deps.generate(ctx, c.gen, system, user)
	if err != nil {
		log.Warn("quality generation failed, accepting report", zap.Error(err))
		c.failOpen(st)
		return
	}

	v := Assess(st.FinalReport, ParseScore(text), iteration)
	st.QualityCheckPassed = v.Passed
	status := "NEEDS_IMPROVEMENT"
	if v.Passed {
		status = "APPROVED"
	}
	st.Append(StageChecker, fmt.Sprintf("Quality check completed. Status: %s (score %d)", status, v.Score), c.deps.Clock.Now())
	log.Info("quality check completed",
		zap.Int("score", v.Score),
		zap.Int("iteration", iteration+1),
		zap.Bool("passed", v.Passed),
		zap.String("override", string(v.Override)),
	)
}

func (c *Checker) failOpen(st *analysis.State) {
	st.QualityCheckPassed = true
	st.Append(StageChecker, "Quality check failed due to error, accepting report", c.deps.Clock.Now())
}
