// Package ecbapi fetches the European Central Bank daily euro foreign
// exchange reference rates.
package ecbapi

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// DailyRatesURL is the ECB daily reference rate document.
const DailyRatesURL = "https://www.ecb.europa.eu/stats/eurofxref/eurofxref-daily.xml"

// DefaultTimeout bounds a fetch when no HTTPClient is supplied.
const DefaultTimeout = 2 * time.Second

// maxDocumentSize caps how much of the response is read; the real document is ~2KB.
const maxDocumentSize = 1 << 20

// Client downloads the raw rate document. Parsing is left to the caller.
type Client struct {
	URL        string
	HTTPClient *http.Client
}

func (c *Client) http() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: DefaultTimeout}
}

func (c *Client) url() string {
	if c.URL != "" {
		return c.URL
	}
	return DailyRatesURL
}

// FetchRates returns the body of the rate document.
func (c *Client) FetchRates(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/xml, text/xml")
	resp, err := c.http().Do(req)
	if err != nil {
		return nil, fmt.Errorf("ecb rates request: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("ecb rates request failed: %s: %s", resp.Status, string(b))
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return nil, fmt.Errorf("ecb rates read: %w", err)
	}
	return body, nil
}
