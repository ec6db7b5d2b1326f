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

// Writer produces final_report: a generated body inside a fixed envelope.
type Writer struct {
	gen  ai.Generator
	deps Deps
}

func NewWriter(gen ai.Generator, deps Deps) *Writer {
	return &Writer{gen: gen, deps: deps.normalized()}
}

func (w *Writer) Name() string { return StageWriter }

// Run always leaves final_report non-empty.
func (w *Writer) Run(ctx context.Context, st *analysis.State) {
	log := w.deps.Logger.With(zap.String("stage", StageWriter), zap.String("company", st.CompanyName))
	now := w.deps.Clock.Now().UTC()
	defer func() {
		if r := recover(); r != nil {
			log.Error("report writer panicked, writing error report", zap.Any("panic", r))
			w.fallback(st, fmt.Errorf("%v", r), now)
		}
	}()
	tag, currency := MarketContext(st)

	system, user := writerPrompt(
		st.CompanyName,
		now.Format(dateLayout),
		analysis.MarketLabel(tag),
		currency,
		st.AnalyzedData.Text(),
		strings.Join(st.ResearchPlan, ", "),
	)
	body, err := w.deps.generate(ctx, w.gen, system, user)
	if err != nil {
		log.Warn("report generation failed", zap.Error(err))
		w.fallback(st, err, now)
		return
	}

	st.FinalReport = Envelope(Header{
		Company:     st.CompanyName,
		MarketLabel: analysis.MarketLabel(tag),
		Currency:    currency,
		Sources:     st.JoinedSourceKeys(),
	}, body, now)
	st.Append(StageWriter, "Generated comprehensive investment report for "+st.CompanyName, now)
	log.Info("report generated", zap.Int("length", len(st.FinalReport)))
}

func (w *Writer) fallback(st *analysis.State, cause error, now time.Time) {
	st.FinalReport = ErrorReport(st.CompanyName, cause, st.JoinedSourceKeys())
	st.Append(StageWriter, "Report generation failed, error report created", now)
}

// Header holds the envelope fields rendered above the generated body.
type Header struct {
	Company     string
	MarketLabel string
	Currency    string
	Sources     string
}

// Envelope wraps body with the report header and disclaimer footer.
// For a fixed header and body the output only varies with at.
func Envelope(h Header, body string, at time.Time) string {
	at = at.UTC()
	date := at.Format(dateLayout)
	var b strings.Builder
	fmt.Fprintf(&b, "Investment Research Report: %s\n\n", h.Company)
	fmt.Fprintf(&b, "Generated on: %s\n", date)
	fmt.Fprintf(&b, "Analysis Date: %s\n", at.Format("2006-01-02"))
	b.WriteString("Analysis Type: Comprehensive Multi-Source Analysis\n")
	fmt.Fprintf(&b, "Market: %s\n", h.MarketLabel)
	fmt.Fprintf(&b, "Currency: %s\n", h.Currency)
	fmt.Fprintf(&b, "Data Sources: %s\n\n", h.Sources)
	b.WriteString("---\n\n")
	b.WriteString(strings.TrimSpace(body))
	b.WriteString("\n\n---\n\n")
	b.WriteString("Disclaimer: This analysis is generated by an AI system for educational purposes.\n")
	b.WriteString("Please consult with qualified financial advisors before making investment decisions.\n")
	fmt.Fprintf(&b, "Generated on %s at %s UTC.\n", date, at.Format("15:04:05"))
	return b.String()
}

// ErrorReport is the deterministic report written when generation fails.
func ErrorReport(company string, cause error, sources string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Investment Research Report: %s\n\n", company)
	b.WriteString("Status: Report generation encountered technical difficulties.\n")
	fmt.Fprintf(&b, "Error: %v\n\n", cause)
	fmt.Fprintf(&b, "Available Data: Analysis completed for data sources: %s\n\n", sources)
	b.WriteString("Please review the raw analysis data and try regenerating the report.\n")
	return b.String()
}
