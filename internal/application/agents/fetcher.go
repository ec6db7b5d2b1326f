package agents

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bryanwahyu/automaton-analyst/internal/domain/analysis"
	"github.com/bryanwahyu/automaton-analyst/internal/domain/market"
)

// MinRichFields is the number of populated fields a regional lookup must exceed
// before it is preferred over the plain identifier.
const MinRichFields = 50

// minInfoFields is the smallest profile accepted as usable market data.
const minInfoFields = 10

var essentialFields = []string{"currentPrice", "marketCap", "symbol", "sector", "industry"}

// Sources groups the four data capabilities queried by the fetcher.
type Sources struct {
	Price        market.PriceData
	Fundamentals market.Fundamentals
	Filings      market.FilingSource
	News         market.NewsSource
}

// Fetcher queries every source concurrently and merges the results into raw_data.
type Fetcher struct {
	src            Sources
	deps           Deps
	regionalSuffix string
}

func NewFetcher(src Sources, deps Deps) *Fetcher {
	return &Fetcher{src: src, deps: deps.normalized(), regionalSuffix: market.DefaultRegionalSuffix}
}

func (f *Fetcher) Name() string { return StageFetcher }

// Run writes the four source keys of raw_data. A source that fails on a later
// pass does not erase an earlier successful result for the same key.
func (f *Fetcher) Run(ctx context.Context, st *analysis.State) {
	log := f.deps.Logger.With(zap.String("stage", StageFetcher), zap.String("company", st.CompanyName))

	symbol := market.NormalizeSymbol(st.CompanyName)
	if symbol == "" {
		symbol = strings.ToUpper(st.CompanyName)
	}

	calls := map[analysis.SourceKey]func(context.Context) analysis.SourceResult{
		analysis.SourceMarket:       func(ctx context.Context) analysis.SourceResult { return f.fetchMarket(ctx, symbol) },
		analysis.SourceFundamentals: func(ctx context.Context) analysis.SourceResult { return f.fetchFundamentals(ctx, symbol) },
		analysis.SourceFilings:      func(ctx context.Context) analysis.SourceResult { return f.fetchFilings(ctx, symbol) },
		analysis.SourceNews:         func(ctx context.Context) analysis.SourceResult { return f.fetchNews(ctx, st.CompanyName) },
	}

	var (
		mu      sync.Mutex
		results = make(map[analysis.SourceKey]analysis.SourceResult, len(calls))
	)
	g, gctx := errgroup.WithContext(ctx)
	for key, call := range calls {
		key, call := key, call
		g.Go(func() error {
			res := f.guard(gctx, key, call)
			mu.Lock()
			results[key] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	var failed []string
	for _, key := range analysis.SourceKeys {
		res := results[key]
		if res.Failed() {
			failed = append(failed, string(key))
			log.Warn("source failed", zap.String("source", string(key)), zap.String("error", res.Err))
			if prev, ok := st.RawData[key]; ok && !prev.Failed() {
				continue
			}
		}
		st.Merge(key, res)
	}
	sort.Strings(failed)

	msg := fmt.Sprintf("Collected data from %d sources for %s", len(st.RawData), st.CompanyName)
	if len(failed) > 0 {
		msg += fmt.Sprintf(" (%d failed: %s)", len(failed), strings.Join(failed, ", "))
	}
	st.Append(StageFetcher, msg, f.deps.Clock.Now())
	log.Info("data collection finished", zap.Int("sources", len(st.RawData)), zap.Int("failed", len(failed)))
}

// guard runs one source call under the per-call timeout and converts panics into failures.
func (f *Fetcher) guard(ctx context.Context, key analysis.SourceKey, call func(context.Context) analysis.SourceResult) (res analysis.SourceResult) {
	defer func() {
		if r := recover(); r != nil {
			res = analysis.Failure(fmt.Sprintf("%s fetch panicked: %v", key, r))
		}
	}()
	ctx, cancel := context.WithTimeout(ctx, f.deps.CallTimeout)
	defer cancel()
	return call(ctx)
}

func (f *Fetcher) fetchMarket(ctx context.Context, symbol string) analysis.SourceResult {
	if f.src.Price == nil {
		return analysis.Failure("market data source is not configured")
	}
	original := symbol
	chosen := symbol
	var info market.Info

	if !market.HasRegionalSuffix(symbol) {
		regional := symbol + f.regionalSuffix
		if ri, err := f.src.Price.Lookup(ctx, regional); err == nil && richEnough(ri) {
			chosen, info = regional, ri
		}
	}
	if info == nil {
		var err error
		info, err = f.src.Price.Lookup(ctx, original)
		if err != nil {
			return analysis.Failure(fmt.Sprintf("Failed to fetch stock data for %s: %v. For Indian stocks, try using .NS suffix (e.g., RELIANCE.NS)", original, err))
		}
	}
	if len(info) < minInfoFields {
		return analysis.Failure(fmt.Sprintf("Insufficient data for %s. Try using .NS suffix for Indian stocks (e.g., RELIANCE.NS)", original))
	}

	tag := analysis.MarketInternational
	currency := "USD"
	if market.IsRegional(chosen) {
		tag = analysis.MarketRegional
		currency = "INR"
	}
	if c, _ := info["currency"].(string); c != "" {
		currency = c
	}

	var missing []string
	for _, field := range essentialFields {
		if !populated(info[field]) {
			missing = append(missing, field)
		}
	}
	quality := "good"
	if len(missing) > 0 {
		quality = "partial"
	}

	rec := analysis.Record{
		"symbol":          chosen,
		"original_symbol": original,
		"company_info":    info,
		"current_price":   valueOrNA(info["currentPrice"]),
		"market_cap":      valueOrNA(info["marketCap"]),
		"pe_ratio":        valueOrNA(info["trailingPE"]),
		"data_quality":    quality,
		"market":          tag,
		"market_label":    analysis.MarketLabel(tag),
		"currency":        currency,
	}

	history, err := f.src.Price.History(ctx, chosen, "1y")
	if err != nil {
		rec["price_history_error"] = err.Error()
	} else {
		rec["price_history"] = SummarizeSeries(history)
	}
	statements := []struct {
		key  string
		load func(context.Context, string) (market.Statement, error)
	}{
		{"financials", f.src.Price.IncomeStatement},
		{"balance_sheet", f.src.Price.BalanceSheet},
		{"cash_flow", f.src.Price.CashFlow},
	}
	for _, s := range statements {
		stmt, err := s.load(ctx, chosen)
		if err != nil {
			rec[s.key+"_error"] = err.Error()
			continue
		}
		rec[s.key] = stmt
	}
	rec["quality"] = ScoreMarketData(info, len(history) > 0)
	return analysis.Success(rec)
}

func (f *Fetcher) fetchFundamentals(ctx context.Context, symbol string) analysis.SourceResult {
	if f.src.Fundamentals == nil {
		return analysis.Failure("fundamentals source is not configured")
	}
	overview, err := f.src.Fundamentals.Overview(ctx, symbol)
	if err != nil {
		return analysis.Failure(fmt.Sprintf("Alpha Vantage API error: %v", err))
	}
	rec := analysis.Record{"overview": overview, "source": "alpha_vantage"}
	daily, err := f.src.Fundamentals.DailySeries(ctx, symbol)
	if err != nil {
		rec["daily_prices_error"] = err.Error()
	} else {
		rec["daily_prices"] = SummarizeSeries(daily)
	}
	return analysis.Success(rec)
}

func (f *Fetcher) fetchFilings(ctx context.Context, symbol string) analysis.SourceResult {
	if f.src.Filings == nil {
		return analysis.Failure("filings source is not configured")
	}
	filings, err := f.src.Filings.FilingsFor(ctx, symbol)
	if errors.Is(err, market.ErrUnknownSymbol) {
		return analysis.Failure("Could not find CIK for symbol " + symbol)
	}
	if err != nil {
		return analysis.Failure(fmt.Sprintf("SEC EDGAR API error: %v", err))
	}
	return analysis.Success(analysis.Record{
		"company_name":   filings.CompanyName,
		"cik":            filings.CIK,
		"recent_filings": filings.RecentFilings,
		"source":         "sec_edgar",
	})
}

func (f *Fetcher) fetchNews(ctx context.Context, company string) analysis.SourceResult {
	if f.src.News == nil {
		return analysis.Failure("news source is not configured")
	}
	rec, err := f.src.News.HeadlinesFor(ctx, company)
	if err != nil {
		return analysis.Failure(fmt.Sprintf("News fetch error: %v", err))
	}
	return analysis.Success(analysis.Record(rec))
}

// richEnough reports whether a lookup carries more than MinRichFields populated
// fields and a current price.
func richEnough(info market.Info) bool {
	if !populated(info["currentPrice"]) {
		return false
	}
	n := 0
	for _, v := range info {
		if populated(v) {
			n++
		}
	}
	return n > MinRichFields
}

func valueOrNA(v any) any {
	if !populated(v) {
		return "N/A"
	}
	return v
}

// SummarizeSeries reduces a price series to its size, endpoints and change.
func SummarizeSeries(s market.Series) map[string]any {
	out := map[string]any{"points": len(s)}
	if len(s) == 0 {
		return out
	}
	first, last := s[0], s[len(s)-1]
	out["first_date"] = first.Date.Format("2006-01-02")
	out["last_date"] = last.Date.Format("2006-01-02")
	out["first_close"] = first.Close
	out["last_close"] = last.Close
	if first.Close != 0 {
		out["change_pct"] = (last.Close - first.Close) / first.Close * 100
	}
	return out
}

// MarketQuality scores how complete a market profile is.
type MarketQuality struct {
	Score  int      `json:"quality_score"`
	Issues []string `json:"issues"`
	Status string   `json:"status"`
}

// ScoreMarketData awards 20 points per essential field, 8 per optional field and
// 20 for a non-empty price history, capped at 100.
func ScoreMarketData(info market.Info, hasHistory bool) MarketQuality {
	q := MarketQuality{Issues: []string{}}
	for _, field := range []string{"currentPrice", "marketCap", "symbol"} {
		if populated(info[field]) {
			q.Score += 20
		} else {
			q.Issues = append(q.Issues, "Missing "+field)
		}
	}
	for _, field := range []string{"trailingPE", "forwardPE", "dividendYield", "sector", "industry"} {
		if populated(info[field]) {
			q.Score += 8
		}
	}
	if hasHistory {
		q.Score += 20
	} else {
		q.Issues = append(q.Issues, "Empty price history")
	}
	if q.Score > 100 {
		q.Score = 100
	}
	switch {
	case q.Score >= 80:
		q.Status = "good"
	case q.Score >= 60:
		q.Status = "fair"
	default:
		q.Status = "poor"
	}
	return q
}
