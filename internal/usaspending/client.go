// Package usaspending fetches federal account spending from the USAspending API.
package usaspending

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"spending/internal/core"
	"spending/internal/log"
)

const (
	DefaultBaseURL  = "https://api.usaspending.gov"
	DefaultTimeout  = 30 * time.Second
	spendingPath    = "/api/v2/spending/"
	pageLimit       = 1000
	spendingType    = "federal_account"
	maxBodySize     = 32 << 20 // 32 MB
	maxErrorBodyLen = 64 << 10
)

// ErrMissingResults indicates a 200 response without a results array.
var ErrMissingResults = errors.New("usaspending: response has no results array")

// Client issues spending queries. A single best-effort request is made per
// fetch: no pagination beyond page 1 and no retries.
type Client struct {
	baseURL string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the overall request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// NewClient creates a client for baseURL (DefaultBaseURL when empty).
func NewClient(baseURL string, opts ...Option) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type filters struct {
	FiscalYear string `json:"fy"`
	Quarter    string `json:"quarter"`
}

type spendingRequest struct {
	Limit   int     `json:"limit"`
	Page    int     `json:"page"`
	Type    string  `json:"type"`
	Filters filters `json:"filters"`
}

type spendingResponse struct {
	Results *[]core.Record `json:"results"`
}

// Fetch returns page 1 (up to 1000 records) of federal account spending for p.
// A non-200 response yields a *core.FetchError carrying status and body.
func (c *Client) Fetch(ctx context.Context, p core.Period) ([]core.Record, error) {
	payload, err := json.Marshal(spendingRequest{
		Limit:   pageLimit,
		Page:    1,
		Type:    spendingType,
		Filters: filters{FiscalYear: p.FiscalYear, Quarter: p.Quarter},
	})
	if err != nil {
		return nil, fmt.Errorf("usaspending: encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+spendingPath, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("usaspending: creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("usaspending: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLen))
		slog.WarnContext(ctx, "Spending API returned error",
			log.FieldComponent, log.ComponentFetch,
			log.FieldUpstreamCode, resp.StatusCode,
			log.FieldFiscalYear, p.FiscalYear,
			log.FieldQuarter, p.Quarter,
			log.FieldDuration, time.Since(start).Milliseconds())
		return nil, &core.FetchError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	dec := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize))
	dec.UseNumber()
	var out spendingResponse
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("usaspending: parsing response: %w", err)
	}
	if out.Results == nil {
		return nil, ErrMissingResults
	}

	slog.InfoContext(ctx, "Fetched spending records",
		log.FieldComponent, log.ComponentFetch,
		log.FieldFiscalYear, p.FiscalYear,
		log.FieldQuarter, p.Quarter,
		log.FieldRecords, len(*out.Results),
		log.FieldDuration, time.Since(start).Milliseconds())
	return *out.Results, nil
}
