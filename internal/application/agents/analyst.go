package agents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bryanwahyu/automaton-analyst/internal/domain/ai"
	"github.com/bryanwahyu/automaton-analyst/internal/domain/analysis"
)

// analysisSections are the headings a complete analysis is expected to cover.
var analysisSections = []string{"financial health", "growth prospects", "valuation", "risk factors", "recommendation"}

// Analyst condenses raw_data into a written analysis.
type Analyst struct {
	gen  ai.Generator
	deps Deps
}

func NewAnalyst(gen ai.Generator, deps Deps) *Analyst {
	return &Analyst{gen: gen, deps: deps.normalized()}
}

func (a *Analyst) Name() string { return StageAnalyst }

// Run writes analyzed_data: the generated analysis on success, otherwise an
// error plus a templated fallback sentence.
func (a *Analyst) Run(ctx context.Context, st *analysis.State) {
	log := a.deps.Logger.With(zap.String("stage", StageAnalyst), zap.String("company", st.CompanyName))
	now := a.deps.Clock.Now()
	defer func() {
		if r := recover(); r != nil {
			log.Error("analyst panicked, writing fallback analysis", zap.Any("panic", r))
			a.fallback(st, fmt.Errorf("%v", r), now)
		}
	}()

	stockSummary := "No stock data available"
	if rec, ok := st.Source(analysis.SourceMarket); ok {
		stockSummary = MarketSummary(rec)
	}
	tag, currency := MarketContext(st)

	system, user := analystPrompt(st.CompanyName, now.Format(dateLayout), analysis.MarketLabel(tag), currency, stockSummary, SourceDigest(st))
	text, err := a.deps.generate(ctx, a.gen, system, user)
	if err != nil {
		log.Warn("analysis generation failed", zap.Error(err))
		a.fallback(st, err, now)
		return
	}

	used := st.SourceKeys()
	completeness := Completeness(text)
	st.AnalyzedData = analysis.AnalyzedData{
		DetailedAnalysis: text,
		Timestamp:        now,
		DataSourcesUsed:  used,
		Completeness:     completeness,
	}
	st.Append(StageAnalyst, fmt.Sprintf("Completed comprehensive analysis of %s using %d data sources", st.CompanyName, len(used)), now)
	log.Info("analysis completed", zap.Int("sources", len(used)), zap.Float64("completeness", completeness))
}

func (a *Analyst) fallback(st *analysis.State, cause error, now time.Time) {
	st.AnalyzedData = analysis.AnalyzedData{
		Error:            "Analysis failed: " + cause.Error(),
		FallbackAnalysis: fmt.Sprintf("Basic analysis for %s: Data collection completed, detailed analysis pending.", st.CompanyName),
	}
	st.Append(StageAnalyst, "Analysis encountered issues, fallback analysis created", now)
}

// Completeness returns the percentage of expected sections mentioned in text.
func Completeness(text string) float64 {
	lower := strings.ToLower(text)
	found := 0
	for _, s := range analysisSections {
		if strings.Contains(lower, s) {
			found++
		}
	}
	return float64(found) / float64(len(analysisSections)) * 100
}
