package agents

import (
	"strings"
	"testing"

	"github.com/bryanwahyu/automaton-analyst/internal/domain/analysis"
)

func TestTruncate(t *testing.T) {
	if got := Truncate("hello", 10); got != "hello" {
		t.Fatalf("expected untouched string, got %q", got)
	}
	if got := Truncate("héllo world", 5); got != "héllo..." {
		t.Fatalf("expected rune-safe cut, got %q", got)
	}
	if got := Truncate("abc", 0); got != "" {
		t.Fatalf("expected empty string, got %q", got)
	}
}

func TestFormatMarketCap(t *testing.T) {
	cases := []struct {
		v        any
		currency string
		want     string
	}{
		{2.5e12, "USD", "$2.50T"},
		{3.1e9, "INR", "₹3.10B"},
		{4.2e8, "EUR", "€420.00M"},
		{"1500000000", "CHF", "CHF 1.50B"},
		{nil, "USD", "N/A"},
		{"N/A", "USD", "N/A"},
	}
	for _, c := range cases {
		if got := FormatMarketCap(c.v, c.currency); got != c.want {
			t.Fatalf("FormatMarketCap(%v, %s): expected %q, got %q", c.v, c.currency, c.want, got)
		}
	}
}

func TestSourceDigestCapsEachSource(t *testing.T) {
	st, _ := analysis.NewState("ACME")
	st.Merge(analysis.SourceFilings, analysis.Success(analysis.Record{"blob": strings.Repeat("x", 2000)}))
	st.Merge(analysis.SourceNews, analysis.Failure("news down"))

	digest := SourceDigest(st)
	lines := strings.Split(digest, "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d: %q", len(lines), digest)
	}
	filings := strings.TrimPrefix(lines[0], "SEC Filings: ")
	if len([]rune(filings)) != filingsDigestCap+len(ellipsis) {
		t.Fatalf("expected filings capped at %d runes, got %d", filingsDigestCap, len([]rune(filings)))
	}
	if lines[1] != `Recent News: {"error":"news down"}` {
		t.Fatalf("unexpected news line %q", lines[1])
	}
	if lines[2] != "Alpha Vantage: " {
		t.Fatalf("expected empty fundamentals line, got %q", lines[2])
	}
}

func TestMarketSummary(t *testing.T) {
	rec := analysis.Record{
		"company_info": map[string]any{"longName": "Acme Corp", "currentPrice": 12.5, "marketCap": 2e9},
		"market":       analysis.MarketInternational,
		"currency":     "USD",
		"data_quality": "partial",
	}
	out := MarketSummary(rec)
	for _, want := range []string{
		"Company: Acme Corp",
		"Current Price: USD 12.5",
		"Market Cap: $2.00B",
		"P/E Ratio: N/A",
		"Market: International Market",
		"Data Quality: partial",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestCompleteness(t *testing.T) {
	if got := Completeness("Financial Health, Growth Prospects, Valuation, Risk Factors and a Recommendation"); got != 100 {
		t.Fatalf("expected 100, got %v", got)
	}
	if got := Completeness("nothing relevant"); got != 0 {
		t.Fatalf("expected 0, got %v", got)
	}
}
