// Package alphavantage implements market.Fundamentals on the Alpha Vantage query API.
package alphavantage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bryanwahyu/automaton-analyst/internal/domain/market"
	"github.com/bryanwahyu/automaton-analyst/internal/infra/marketdata"
	"github.com/bryanwahyu/automaton-analyst/internal/infra/ratelimit"
)

const DefaultBaseURL = "https://www.alphavantage.co"

// PlaceholderKey is the template value shipped in sample configs.
const PlaceholderKey = "YOUR_ALPHA_VANTAGE_API_KEY_HERE"

var ErrNoAPIKey = errors.New("alpha vantage api key is not configured")

type Options struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
	Limiter    marketdata.Limiter
}

type Client struct {
	key     string
	base    string
	hc      *http.Client
	limiter marketdata.Limiter
}

func New(opts Options) *Client {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	return &Client{
		key:     opts.APIKey,
		base:    base,
		hc:      marketdata.NewHTTPClient(opts.HTTPClient),
		limiter: opts.Limiter,
	}
}

var _ market.Fundamentals = (*Client)(nil)

// Configured reports whether a usable key is set.
func (c *Client) Configured() bool {
	return c.key != "" && c.key != PlaceholderKey
}

func (c *Client) query(ctx context.Context, params url.Values, out any) error {
	if !c.Configured() {
		return ErrNoAPIKey
	}
	if err := marketdata.Acquire(ctx, c.limiter, ratelimit.SourceAlphaVantage); err != nil {
		return err
	}
	params.Set("apikey", c.key)
	return marketdata.GetJSON(ctx, c.hc, c.base+"/query?"+params.Encode(), nil, out)
}

// apiMessage returns the error or throttling notice embedded in a 200 response.
func apiMessage(m map[string]any) string {
	for _, k := range []string{"Error Message", "Note", "Information"} {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// Overview returns the company overview fields as reported.
func (c *Client) Overview(ctx context.Context, symbol string) (map[string]string, error) {
	var raw map[string]any
	params := url.Values{"function": {"OVERVIEW"}, "symbol": {symbol}}
	if err := c.query(ctx, params, &raw); err != nil {
		return nil, fmt.Errorf("overview %s: %w", symbol, err)
	}
	if msg := apiMessage(raw); msg != "" {
		return nil, fmt.Errorf("overview %s: %s", symbol, msg)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("overview %s: %w", symbol, market.ErrUnknownSymbol)
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		out[k] = fmt.Sprint(v)
	}
	return out, nil
}

type dailyResponse struct {
	Series map[string]map[string]string `json:"Time Series (Daily)"`
	Error  string                       `json:"Error Message"`
	Note   string                       `json:"Note"`
	Info   string                       `json:"Information"`
}

// DailySeries returns the compact (latest 100 days) daily series, oldest first.
func (c *Client) DailySeries(ctx context.Context, symbol string) (market.Series, error) {
	var resp dailyResponse
	params := url.Values{"function": {"TIME_SERIES_DAILY"}, "symbol": {symbol}, "outputsize": {"compact"}}
	if err := c.query(ctx, params, &resp); err != nil {
		return nil, fmt.Errorf("daily series %s: %w", symbol, err)
	}
	for _, msg := range []string{resp.Error, resp.Note, resp.Info} {
		if msg != "" {
			return nil, fmt.Errorf("daily series %s: %s", symbol, msg)
		}
	}

	series := make(market.Series, 0, len(resp.Series))
	for day, row := range resp.Series {
		d, err := time.Parse(time.DateOnly, day)
		if err != nil {
			continue
		}
		p := market.Point{
			Date:  d,
			Open:  num(row["1. open"]),
			High:  num(row["2. high"]),
			Low:   num(row["3. low"]),
			Close: num(row["4. close"]),
		}
		p.Volume, _ = strconv.ParseInt(row["5. volume"], 10, 64)
		series = append(series, p)
	}
	sort.Slice(series, func(i, j int) bool { return series[i].Date.Before(series[j].Date) })
	return series, nil
}

func num(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
