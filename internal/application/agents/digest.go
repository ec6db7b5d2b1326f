package agents

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/bryanwahyu/automaton-analyst/internal/domain/analysis"
	"github.com/bryanwahyu/automaton-analyst/internal/domain/market"
)

// Per-source caps applied to the rendered digest text.
const (
	filingsDigestCap      = 500
	newsDigestCap         = 300
	fundamentalsDigestCap = 300
)

const ellipsis = "..."

// Truncate cuts s to max runes and appends "..." when something was removed.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + ellipsis
}

// RenderSource renders a source result as compact JSON; failures render as {"error": ...}.
func RenderSource(res analysis.SourceResult, ok bool) string {
	if !ok {
		return ""
	}
	var v any = res.Data
	if res.Failed() {
		v = map[string]string{"error": res.Err}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

// SourceDigest builds the bounded textual digest of the secondary sources.
func SourceDigest(st *analysis.State) string {
	render := func(key analysis.SourceKey, max int) string {
		res, ok := st.RawData[key]
		return Truncate(RenderSource(res, ok), max)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "SEC Filings: %s\n", render(analysis.SourceFilings, filingsDigestCap))
	fmt.Fprintf(&b, "Recent News: %s\n", render(analysis.SourceNews, newsDigestCap))
	fmt.Fprintf(&b, "Alpha Vantage: %s", render(analysis.SourceFundamentals, fundamentalsDigestCap))
	return b.String()
}

// MarketContext returns the market tag and currency code recorded by the fetcher,
// defaulting to the international market in USD.
func MarketContext(st *analysis.State) (string, string) {
	tag, currency := analysis.MarketInternational, "USD"
	rec, ok := st.Source(analysis.SourceMarket)
	if !ok {
		return tag, currency
	}
	if v, _ := rec["market"].(string); v != "" {
		tag = v
	}
	if v, _ := rec["currency"].(string); v != "" {
		currency = v
	}
	return tag, currency
}

// FormatMarketCap buckets a market capitalisation into T/B/M with the currency symbol.
func FormatMarketCap(v any, currency string) string {
	f, ok := toFloat(v)
	if !ok || f <= 0 {
		return display(v)
	}
	sym := market.CurrencySymbol(currency)
	switch {
	case f >= 1e12:
		return fmt.Sprintf("%s%.2fT", sym, f/1e12)
	case f >= 1e9:
		return fmt.Sprintf("%s%.2fB", sym, f/1e9)
	default:
		return fmt.Sprintf("%s%.2fM", sym, f/1e6)
	}
}

// MarketSummary renders the primary market record for the analyst prompt.
func MarketSummary(rec analysis.Record) string {
	info := asMap(rec["company_info"])
	tag, _ := rec["market"].(string)
	currency, _ := rec["currency"].(string)
	if currency == "" {
		currency = "USD"
	}
	quality, _ := rec["data_quality"].(string)
	if quality == "" {
		quality = "unknown"
	}

	lines := []string{
		"Company: " + display(info["longName"]),
		fmt.Sprintf("Current Price: %s %s", currency, display(info["currentPrice"])),
		"Market Cap: " + FormatMarketCap(info["marketCap"], currency),
		"P/E Ratio: " + display(info["trailingPE"]),
		fmt.Sprintf("52-Week High: %s %s", currency, display(info["fiftyTwoWeekHigh"])),
		fmt.Sprintf("52-Week Low: %s %s", currency, display(info["fiftyTwoWeekLow"])),
		"Revenue Growth: " + display(info["revenueGrowth"]),
		"Profit Margins: " + display(info["profitMargins"]),
		"Industry: " + display(info["industry"]),
		"Sector: " + display(info["sector"]),
		"Market: " + analysis.MarketLabel(tag),
		"Currency: " + currency,
		"Data Quality: " + quality,
	}
	return strings.Join(lines, "\n")
}

func display(v any) string {
	switch x := v.(type) {
	case nil:
		return "N/A"
	case string:
		if x == "" {
			return "N/A"
		}
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.NewReplacer("$", "", ",", "").Replace(strings.TrimSpace(x)), 64)
		return f, err == nil
	}
	return 0, false
}

func asMap(v any) map[string]any {
	switch m := v.(type) {
	case map[string]any:
		return m
	case market.Info:
		return m
	case analysis.Record:
		return m
	}
	return map[string]any{}
}

// populated reports whether a record value carries information.
func populated(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case string:
		return x != "" && x != "N/A"
	}
	return true
}
