// Package marketdata holds the HTTP plumbing shared by the market data providers.
package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultTimeout bounds a single provider request.
const DefaultTimeout = 30 * time.Second

// maxErrorBody limits how much of an error response is kept.
const maxErrorBody = 512

// Limiter paces and counts calls per source.
type Limiter interface {
	Acquire(ctx context.Context, source string) error
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	URL    string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: http status %d: %s", e.URL, e.Status, e.Body)
}

// NewHTTPClient returns c, or a client with DefaultTimeout when c is nil.
func NewHTTPClient(c *http.Client) *http.Client {
	if c != nil {
		return c
	}
	return &http.Client{Timeout: DefaultTimeout}
}

// GetJSON performs a GET and decodes the JSON body into out.
func GetJSON(ctx context.Context, hc *http.Client, url string, header http.Header, out any) error {
	res, err := get(ctx, hc, url, header, "application/json")
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", res.Request.URL.Path, err)
	}
	return nil
}

// GetText performs a GET and returns the body, capped at limit bytes.
func GetText(ctx context.Context, hc *http.Client, url string, header http.Header, limit int64) (string, error) {
	res, err := get(ctx, hc, url, header, "text/plain")
	if err != nil {
		return "", err
	}
	defer res.Body.Close()
	b, err := io.ReadAll(io.LimitReader(res.Body, limit))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", res.Request.URL.Path, err)
	}
	return string(b), nil
}

// get sends the request and turns non-2xx responses into *StatusError.
func get(ctx context.Context, hc *http.Client, url string, header http.Header, accept string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", accept)

	res, err := hc.Do(req)
	if err != nil {
		return nil, err
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		defer res.Body.Close()
		b, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
		return nil, &StatusError{URL: withoutQuery(req), Status: res.StatusCode, Body: string(b)}
	}
	return res, nil
}

// Acquire is a nil-safe call to l.Acquire.
func Acquire(ctx context.Context, l Limiter, source string) error {
	if l == nil {
		return nil
	}
	return l.Acquire(ctx, source)
}

// withoutQuery drops the query string, which may carry API keys.
func withoutQuery(req *http.Request) string {
	u := *req.URL
	u.RawQuery = ""
	u.User = nil
	return u.String()
}
