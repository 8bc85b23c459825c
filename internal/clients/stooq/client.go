// Package stooq provides a client for the stooq daily CSV feed
package stooq

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/bobmcallan/classfund/internal/common"
	"github.com/bobmcallan/classfund/internal/interfaces"
	"github.com/bobmcallan/classfund/internal/models"
	"github.com/bobmcallan/classfund/internal/ticker"
)

const (
	DefaultBaseURL   = "https://stooq.com"
	DefaultTimeout   = 10 * time.Second
	DefaultRateLimit = 5 // requests per second
	DefaultMarket    = "us"
)

// ErrNoData is returned when stooq has no rows for a symbol.
var ErrNoData = errors.New("stooq: no data")

// Client implements QuoteProvider and CloseHistoryProvider against stooq.
// No API key is required; this is a public endpoint.
type Client struct {
	baseURL    string
	market     string
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = baseURL
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets the rate limit
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		if requestsPerSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
		}
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a new stooq client
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		market:  DefaultMarket,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:  common.NewSilentLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Name identifies the provider
func (c *Client) Name() models.Provider {
	return models.ProviderStooq
}

// Enabled is always true; stooq needs no credentials.
func (c *Client) Enabled() bool {
	return true
}

// Candidates lists the stooq spellings for a normalized ticker ("BRK-B" → "brk-b.us", "brk.b.us").
func (c *Client) Candidates(t string) []string {
	base := strings.ToLower(t)
	out := []string{base + "." + c.market}
	if ticker.HasShareClass(t) {
		out = append(out, strings.ToLower(ticker.WithClassDelimiter(t, "."))+"."+c.market)
	}
	return out
}

// bar is one parsed CSV row.
type bar struct {
	date  time.Time
	close float64
}

// FetchQuote returns the latest daily close, with the prior close when available
func (c *Client) FetchQuote(ctx context.Context, t string) (*models.Quote, error) {
	bars, err := c.history(ctx, t)
	if err != nil {
		return nil, err
	}

	last := bars[len(bars)-1]
	q := &models.Quote{
		Ticker:   t,
		Price:    last.close,
		AsOf:     last.date,
		Provider: models.ProviderStooq,
	}
	if len(bars) > 1 {
		q.PrevClose = bars[len(bars)-2].close
	}
	if !q.Valid() {
		return nil, fmt.Errorf("%w: unusable close for %s", ErrNoData, t)
	}
	return q, nil
}

// FetchLatestTwoCloses returns the two most recent daily closes
func (c *Client) FetchLatestTwoCloses(ctx context.Context, t string) (float64, float64, time.Time, error) {
	bars, err := c.history(ctx, t)
	if err != nil {
		return 0, 0, time.Time{}, err
	}
	if len(bars) < 2 {
		return 0, 0, time.Time{}, fmt.Errorf("%w: need two closes for %s, have %d", ErrNoData, t, len(bars))
	}
	last, prev := bars[len(bars)-1], bars[len(bars)-2]
	return last.close, prev.close, last.date, nil
}

// history tries each candidate spelling and returns date-ordered bars.
func (c *Client) history(ctx context.Context, t string) ([]bar, error) {
	var lastErr error
	for _, symbol := range c.Candidates(t) {
		bars, err := c.download(ctx, symbol)
		if err == nil {
			return bars, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
	}
	return nil, lastErr
}

func (c *Client) download(ctx context.Context, symbol string) ([]bar, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	reqURL := fmt.Sprintf("%s/q/d/l/?s=%s&i=d", c.baseURL, symbol)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/csv")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		c.logger.Warn().Err(err).Str("symbol", symbol).Dur("elapsed", elapsed).Msg("stooq request failed")
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn().Str("symbol", symbol).Int("status", resp.StatusCode).Dur("elapsed", elapsed).Msg("stooq non-OK response")
		return nil, fmt.Errorf("stooq error: status %d for %s", resp.StatusCode, symbol)
	}

	bars, err := parseCSV(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", symbol, err)
	}
	c.logger.Debug().Str("symbol", symbol).Int("rows", len(bars)).Dur("elapsed", elapsed).Msg("stooq download")
	return bars, nil
}

// parseCSV reads Date,Open,High,Low,Close,Volume rows. Unparseable rows are
// skipped; the result is sorted by date ascending.
func parseCSV(r io.Reader) ([]bar, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("invalid csv: %w", err)
	}
	if len(records) < 2 {
		return nil, ErrNoData
	}

	dateCol, closeCol := -1, -1
	for i, h := range records[0] {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "date":
			dateCol = i
		case "close":
			closeCol = i
		}
	}
	if dateCol < 0 || closeCol < 0 {
		// stooq answers "No data" as a plain body for unknown symbols
		return nil, ErrNoData
	}

	bars := make([]bar, 0, len(records)-1)
	for _, rec := range records[1:] {
		if dateCol >= len(rec) || closeCol >= len(rec) {
			continue
		}
		d, err := time.Parse(models.DateLayout, strings.TrimSpace(rec[dateCol]))
		if err != nil {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[closeCol]), 64)
		if err != nil {
			continue
		}
		bars = append(bars, bar{date: d, close: v})
	}
	if len(bars) == 0 {
		return nil, ErrNoData
	}

	sort.SliceStable(bars, func(i, j int) bool { return bars[i].date.Before(bars[j].date) })
	return bars, nil
}

// Ensure Client implements the provider interfaces
var (
	_ interfaces.QuoteProvider        = (*Client)(nil)
	_ interfaces.CloseHistoryProvider = (*Client)(nil)
)
