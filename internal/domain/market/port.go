package market

import (
	"context"
	"errors"
	"time"
)

// ErrUnknownSymbol is returned when a provider has no record of a symbol.
var ErrUnknownSymbol = errors.New("unknown symbol")

// Info is the raw key/value profile of a listed security (price, cap, ratios, sector...).
type Info map[string]any

// Statement is a financial statement keyed by line item, each holding period values.
type Statement map[string]map[string]float64

// Point is one daily observation of a price series.
type Point struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// Series is a date-ascending price series.
type Series []Point

// Filing is one regulatory filing entry.
type Filing struct {
	Form            string `json:"form"`
	FilingDate      string `json:"filing_date"`
	AccessionNumber string `json:"accession_number"`
}

// Filings is the filings capability result for one company.
type Filings struct {
	CompanyName   string   `json:"company_name"`
	CIK           string   `json:"cik"`
	RecentFilings []Filing `json:"recent_filings"`
}

// PriceData is the market/price capability.
type PriceData interface {
	Lookup(ctx context.Context, symbol string) (Info, error)
	History(ctx context.Context, symbol, period string) (Series, error)
	IncomeStatement(ctx context.Context, symbol string) (Statement, error)
	BalanceSheet(ctx context.Context, symbol string) (Statement, error)
	CashFlow(ctx context.Context, symbol string) (Statement, error)
}

// Fundamentals is the company overview capability.
type Fundamentals interface {
	Overview(ctx context.Context, symbol string) (map[string]string, error)
	DailySeries(ctx context.Context, symbol string) (Series, error)
}

// FilingSource is the regulatory filings capability.
type FilingSource interface {
	FilingsFor(ctx context.Context, symbol string) (Filings, error)
}

// NewsSource is the headlines capability. Unconfigured sources return a placeholder record.
type NewsSource interface {
	HeadlinesFor(ctx context.Context, company string) (map[string]any, error)
}
