// Package yahoo implements market.PriceData on the public Yahoo Finance JSON endpoints.
package yahoo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bryanwahyu/automaton-analyst/internal/domain/market"
	"github.com/bryanwahyu/automaton-analyst/internal/infra/marketdata"
	"github.com/bryanwahyu/automaton-analyst/internal/infra/ratelimit"
)

const (
	DefaultBaseURL = "https://query2.finance.yahoo.com"
	// DefaultCookieURL hands out the session cookie the crumb is bound to.
	DefaultCookieURL = "https://fc.yahoo.com"

	crumbPath     = "/v1/test/getcrumb"
	maxCrumbBytes = 128
)

// profile modules are flattened into one Info map, as most screeners do.
var profileModules = []string{
	"price", "summaryDetail", "defaultKeyStatistics", "financialData", "assetProfile",
}

type Options struct {
	BaseURL    string
	CookieURL  string
	HTTPClient *http.Client
	Limiter    marketdata.Limiter
	UserAgent  string
}

// Client talks to the quoteSummary and chart endpoints. quoteSummary needs a
// session cookie plus a crumb, both fetched lazily and cached until a 401.
type Client struct {
	base      string
	cookieURL string
	hc        *http.Client
	limiter   marketdata.Limiter
	header    http.Header

	mu    sync.Mutex
	crumb string
}

func New(opts Options) *Client {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = "Mozilla/5.0 (compatible; automaton-analyst)"
	}
	cookieURL := opts.CookieURL
	if cookieURL == "" {
		cookieURL = DefaultCookieURL
	}
	// copy supaya jar tidak nempel ke client milik caller
	hc := *marketdata.NewHTTPClient(opts.HTTPClient)
	if hc.Jar == nil {
		jar, _ := cookiejar.New(nil)
		hc.Jar = jar
	}
	return &Client{
		base:      base,
		cookieURL: cookieURL,
		hc:        &hc,
		limiter:   opts.Limiter,
		header:    http.Header{"User-Agent": []string{ua}},
	}
}

// session returns the cached crumb, running the cookie and crumb handshake
// when there is none or refresh is set.
func (c *Client) session(ctx context.Context, refresh bool) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.crumb != "" && !refresh {
		return c.crumb, nil
	}
	c.crumb = ""

	if err := c.seedCookie(ctx); err != nil {
		return "", err
	}
	crumb, err := marketdata.GetText(ctx, c.hc, c.base+crumbPath, c.header, maxCrumbBytes)
	if err != nil {
		return "", fmt.Errorf("crumb: %w", err)
	}
	crumb = strings.TrimSpace(crumb)
	if crumb == "" || strings.ContainsAny(crumb, "<{ ") {
		return "", fmt.Errorf("crumb: unexpected response %q", crumb)
	}
	c.crumb = crumb
	return crumb, nil
}

// seedCookie visits the cookie URL. It answers 404 but still sets the cookie,
// so only transport errors count.
func (c *Client) seedCookie(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cookieURL, nil)
	if err != nil {
		return err
	}
	for k, vs := range c.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	res, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("session cookie: %w", err)
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 64<<10))
	return res.Body.Close()
}

var _ market.PriceData = (*Client)(nil)

type apiError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type summaryResponse struct {
	QuoteSummary struct {
		Result []map[string]map[string]any `json:"result"`
		Error  *apiError                   `json:"error"`
	} `json:"quoteSummary"`
}

func (c *Client) summary(ctx context.Context, symbol string, modules ...string) (map[string]map[string]any, error) {
	if err := marketdata.Acquire(ctx, c.limiter, ratelimit.SourceYahoo); err != nil {
		return nil, err
	}
	resp, err := c.fetchSummary(ctx, symbol, modules, false)
	var se *marketdata.StatusError
	if errors.As(err, &se) && se.Status == http.StatusUnauthorized {
		// crumb expired or cookie rotated
		resp, err = c.fetchSummary(ctx, symbol, modules, true)
	}
	if err != nil {
		return nil, fmt.Errorf("quote summary %s: %w", symbol, err)
	}
	if e := resp.QuoteSummary.Error; e != nil {
		return nil, fmt.Errorf("quote summary %s: %s: %s", symbol, e.Code, e.Description)
	}
	if len(resp.QuoteSummary.Result) == 0 {
		return nil, fmt.Errorf("quote summary %s: %w", symbol, market.ErrUnknownSymbol)
	}
	return resp.QuoteSummary.Result[0], nil
}

func (c *Client) fetchSummary(ctx context.Context, symbol string, modules []string, refresh bool) (*summaryResponse, error) {
	crumb, err := c.session(ctx, refresh)
	if err != nil {
		return nil, err
	}
	u := fmt.Sprintf("%s/v10/finance/quoteSummary/%s?modules=%s&crumb=%s",
		c.base, url.PathEscape(symbol), url.QueryEscape(strings.Join(modules, ",")), url.QueryEscape(crumb))
	var resp summaryResponse
	if err := marketdata.GetJSON(ctx, c.hc, u, c.header, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Lookup returns the flattened profile of symbol. Numeric fields take their raw value.
func (c *Client) Lookup(ctx context.Context, symbol string) (market.Info, error) {
	modules, err := c.summary(ctx, symbol, profileModules...)
	if err != nil {
		return nil, err
	}
	info := market.Info{}
	for _, name := range profileModules {
		for k, v := range modules[name] {
			if flat, ok := flatten(v); ok {
				info[k] = flat
			}
		}
	}
	// financialData.currentPrice kadang kosong, pakai harga pasar
	if _, ok := info["currentPrice"]; !ok {
		if p, ok := info["regularMarketPrice"]; ok {
			info["currentPrice"] = p
		}
	}
	if _, ok := info["symbol"]; !ok {
		info["symbol"] = symbol
	}
	return info, nil
}

// flatten unwraps {"raw": x, "fmt": "..."} values and drops nested structures.
func flatten(v any) (any, bool) {
	switch t := v.(type) {
	case nil:
		return nil, false
	case map[string]any:
		if raw, ok := t["raw"]; ok {
			return raw, true
		}
		return nil, false
	case []any:
		return nil, false
	default:
		return t, true
	}
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*int64   `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *apiError `json:"error"`
	} `json:"chart"`
}

// History returns daily points over period ("1mo", "1y", ...). Days without a close are skipped.
func (c *Client) History(ctx context.Context, symbol, period string) (market.Series, error) {
	if err := marketdata.Acquire(ctx, c.limiter, ratelimit.SourceYahoo); err != nil {
		return nil, err
	}
	u := fmt.Sprintf("%s/v8/finance/chart/%s?range=%s&interval=1d",
		c.base, url.PathEscape(symbol), url.QueryEscape(period))
	var resp chartResponse
	if err := marketdata.GetJSON(ctx, c.hc, u, c.header, &resp); err != nil {
		return nil, fmt.Errorf("chart %s: %w", symbol, err)
	}
	if e := resp.Chart.Error; e != nil {
		return nil, fmt.Errorf("chart %s: %s: %s", symbol, e.Code, e.Description)
	}
	if len(resp.Chart.Result) == 0 || len(resp.Chart.Result[0].Indicators.Quote) == 0 {
		return market.Series{}, nil
	}
	r := resp.Chart.Result[0]
	q := r.Indicators.Quote[0]
	series := make(market.Series, 0, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		closeV := at(q.Close, i)
		if closeV == nil {
			continue
		}
		p := market.Point{
			Date:  time.Unix(ts, 0).UTC(),
			Close: *closeV,
		}
		if v := at(q.Open, i); v != nil {
			p.Open = *v
		}
		if v := at(q.High, i); v != nil {
			p.High = *v
		}
		if v := at(q.Low, i); v != nil {
			p.Low = *v
		}
		if v := at(q.Volume, i); v != nil {
			p.Volume = *v
		}
		series = append(series, p)
	}
	sort.Slice(series, func(i, j int) bool { return series[i].Date.Before(series[j].Date) })
	return series, nil
}

func at[T any](xs []*T, i int) *T {
	if i < len(xs) {
		return xs[i]
	}
	return nil
}

func (c *Client) IncomeStatement(ctx context.Context, symbol string) (market.Statement, error) {
	return c.statement(ctx, symbol, "incomeStatementHistory", "incomeStatementHistory")
}

func (c *Client) BalanceSheet(ctx context.Context, symbol string) (market.Statement, error) {
	return c.statement(ctx, symbol, "balanceSheetHistory", "balanceSheetStatements")
}

func (c *Client) CashFlow(ctx context.Context, symbol string) (market.Statement, error) {
	return c.statement(ctx, symbol, "cashflowStatementHistory", "cashflowStatements")
}

// statement pivots the period list of a module into line item -> period end -> value.
func (c *Client) statement(ctx context.Context, symbol, module, list string) (market.Statement, error) {
	modules, err := c.summary(ctx, symbol, module)
	if err != nil {
		return nil, err
	}
	periods, _ := modules[module][list].([]any)
	out := market.Statement{}
	for _, p := range periods {
		row, ok := p.(map[string]any)
		if !ok {
			continue
		}
		end := periodEnd(row["endDate"])
		if end == "" {
			continue
		}
		for item, v := range row {
			if item == "endDate" || item == "maxAge" {
				continue
			}
			flat, ok := flatten(v)
			if !ok {
				continue
			}
			f, ok := flat.(float64)
			if !ok {
				continue
			}
			if out[item] == nil {
				out[item] = map[string]float64{}
			}
			out[item][end] = f
		}
	}
	return out, nil
}

func periodEnd(v any) string {
	m, ok := v.(map[string]any)
	if !ok {
		return ""
	}
	if s, ok := m["fmt"].(string); ok && s != "" {
		return s
	}
	if raw, ok := m["raw"].(float64); ok {
		return time.Unix(int64(raw), 0).UTC().Format(time.DateOnly)
	}
	return ""
}
