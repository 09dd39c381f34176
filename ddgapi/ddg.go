// Package ddgapi queries the DuckDuckGo Instant Answer API for unit conversions.
package ddgapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// BaseURL is the Instant Answer endpoint.
const BaseURL = "https://api.duckduckgo.com"

// DefaultTimeout bounds a query when no HTTPClient is supplied.
const DefaultTimeout = 2 * time.Second

// answerTypeConversions is the only answer type relayed to chat.
const answerTypeConversions = "conversions"

// Client asks DuckDuckGo to evaluate conversion queries like "3 miles to km".
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

func (c *Client) http() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: DefaultTimeout}
}

func (c *Client) baseURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return BaseURL
}

type instantAnswer struct {
	AnswerType string `json:"AnswerType"`
	// Answer is a string for conversions but an object for some other types.
	Answer json.RawMessage `json:"Answer"`
}

// Query returns DuckDuckGo's conversion answer for q, or "" when it has none.
func (c *Client) Query(ctx context.Context, q string) (string, error) {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return "", nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL(), nil)
	if err != nil {
		return "", err
	}
	params := req.URL.Query()
	params.Set("q", q)
	params.Set("format", "json")
	params.Set("no_html", "1")
	req.URL.RawQuery = params.Encode()

	resp, err := c.http().Do(req)
	if err != nil {
		return "", fmt.Errorf("duckduckgo request: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("duckduckgo request failed: %s: %s", resp.Status, string(b))
	}

	var body instantAnswer
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("duckduckgo decode: %w", err)
	}
	if body.AnswerType != answerTypeConversions || len(body.Answer) == 0 {
		return "", nil
	}
	var answer string
	if err := json.Unmarshal(body.Answer, &answer); err != nil {
		return "", nil
	}
	return strings.TrimSpace(answer), nil
}
