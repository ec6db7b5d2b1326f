// Package edgar implements market.FilingSource on the SEC EDGAR JSON endpoints.
package edgar

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/bryanwahyu/automaton-analyst/internal/domain/market"
	"github.com/bryanwahyu/automaton-analyst/internal/infra/marketdata"
	"github.com/bryanwahyu/automaton-analyst/internal/infra/ratelimit"
)

const (
	DefaultTickersURL = "https://www.sec.gov/files/company_tickers.json"
	DefaultDataURL    = "https://data.sec.gov"
)

// recentWindow is how many of the latest filings are scanned for ImportantForms.
const recentWindow = 20

var ImportantForms = map[string]bool{"10-K": true, "10-Q": true, "8-K": true, "DEF 14A": true}

type Options struct {
	TickersURL string
	DataURL    string
	// UserAgent is required by the SEC fair access policy ("Company contact@example.com").
	UserAgent  string
	HTTPClient *http.Client
	Limiter    marketdata.Limiter
}

type Client struct {
	tickersURL string
	dataURL    string
	hc         *http.Client
	limiter    marketdata.Limiter
	header     http.Header

	mu   sync.Mutex
	ciks map[string]string
}

func New(opts Options) *Client {
	tickers := opts.TickersURL
	if tickers == "" {
		tickers = DefaultTickersURL
	}
	data := strings.TrimRight(opts.DataURL, "/")
	if data == "" {
		data = DefaultDataURL
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = "automaton-analyst admin@example.com"
	}
	return &Client{
		tickersURL: tickers,
		dataURL:    data,
		hc:         marketdata.NewHTTPClient(opts.HTTPClient),
		limiter:    opts.Limiter,
		header:     http.Header{"User-Agent": []string{ua}},
	}
}

var _ market.FilingSource = (*Client)(nil)

func (c *Client) get(ctx context.Context, url string, out any) error {
	if err := marketdata.Acquire(ctx, c.limiter, ratelimit.SourceEdgar); err != nil {
		return err
	}
	return marketdata.GetJSON(ctx, c.hc, url, c.header, out)
}

type tickerEntry struct {
	CIK    int64  `json:"cik_str"`
	Ticker string `json:"ticker"`
	Title  string `json:"title"`
}

// CIK resolves a ticker to its zero-padded 10 digit CIK. The ticker table is
// downloaded once and kept for the life of the client.
func (c *Client) CIK(ctx context.Context, symbol string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ciks == nil {
		var table map[string]tickerEntry
		if err := c.get(ctx, c.tickersURL, &table); err != nil {
			return "", fmt.Errorf("company tickers: %w", err)
		}
		ciks := make(map[string]string, len(table))
		for _, e := range table {
			ciks[strings.ToUpper(e.Ticker)] = fmt.Sprintf("%010d", e.CIK)
		}
		c.ciks = ciks
	}
	cik, ok := c.ciks[strings.ToUpper(symbol)]
	if !ok {
		return "", fmt.Errorf("cik for %s: %w", symbol, market.ErrUnknownSymbol)
	}
	return cik, nil
}

type submissions struct {
	Name    string `json:"name"`
	Filings struct {
		Recent struct {
			Form            []string `json:"form"`
			FilingDate      []string `json:"filingDate"`
			AccessionNumber []string `json:"accessionNumber"`
		} `json:"recent"`
	} `json:"filings"`
}

// FilingsFor returns the important forms among the most recent filings of symbol.
func (c *Client) FilingsFor(ctx context.Context, symbol string) (market.Filings, error) {
	cik, err := c.CIK(ctx, symbol)
	if err != nil {
		return market.Filings{}, err
	}
	var sub submissions
	if err := c.get(ctx, fmt.Sprintf("%s/submissions/CIK%s.json", c.dataURL, cik), &sub); err != nil {
		return market.Filings{}, fmt.Errorf("submissions %s: %w", cik, err)
	}

	name := sub.Name
	if name == "" {
		name = "Unknown"
	}
	out := market.Filings{CompanyName: name, CIK: cik, RecentFilings: []market.Filing{}}
	recent := sub.Filings.Recent
	for i, form := range recent.Form {
		if i >= recentWindow {
			break
		}
		if !ImportantForms[form] {
			continue
		}
		f := market.Filing{Form: form}
		if i < len(recent.FilingDate) {
			f.FilingDate = recent.FilingDate[i]
		}
		if i < len(recent.AccessionNumber) {
			f.AccessionNumber = recent.AccessionNumber[i]
		}
		out.RecentFilings = append(out.RecentFilings, f)
	}
	return out, nil
}
