// Package news implements market.NewsSource on the Stock News API.
package news

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/bryanwahyu/automaton-analyst/internal/domain/market"
	"github.com/bryanwahyu/automaton-analyst/internal/infra/marketdata"
	"github.com/bryanwahyu/automaton-analyst/internal/infra/ratelimit"
)

const (
	DefaultBaseURL = "https://stocknewsapi.com"
	PlaceholderKey = "YOUR_STOCK_NEWS_API_KEY_HERE"
	items          = 10
)

type Options struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
	Limiter    marketdata.Limiter
	Logger     *zap.Logger
}

type Client struct {
	key     string
	base    string
	hc      *http.Client
	limiter marketdata.Limiter
	log     *zap.Logger
}

func New(opts Options) *Client {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{key: opts.APIKey, base: base, hc: marketdata.NewHTTPClient(opts.HTTPClient), limiter: opts.Limiter, log: log}
}

var _ market.NewsSource = (*Client)(nil)

func (c *Client) Configured() bool {
	return c.key != "" && c.key != PlaceholderKey
}

// HeadlinesFor returns the provider response for company. Without a key, or when
// the provider answers with a non-2xx status, a placeholder record is returned.
func (c *Client) HeadlinesFor(ctx context.Context, company string) (map[string]any, error) {
	if !c.Configured() {
		return Placeholder(company), nil
	}
	if err := marketdata.Acquire(ctx, c.limiter, ratelimit.SourceStockNews); err != nil {
		return nil, err
	}
	q := url.Values{"tickers": {company}, "items": {fmt.Sprint(items)}, "token": {c.key}}
	var out map[string]any
	err := marketdata.GetJSON(ctx, c.hc, c.base+"/api/v1?"+q.Encode(), nil, &out)
	var statusErr *marketdata.StatusError
	if errors.As(err, &statusErr) {
		c.log.Warn("news provider returned non-2xx, using placeholder", zap.Int("status", statusErr.Status))
		return Placeholder(company), nil
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Placeholder is the deterministic record used when no news provider is available.
func Placeholder(company string) map[string]any {
	return map[string]any{
		"message": fmt.Sprintf("News search for %s - API key not configured", company),
		"sample_headlines": []string{
			company + " reports quarterly earnings",
			"Analysts update " + company + " price targets",
			company + " market performance analysis",
		},
	}
}
