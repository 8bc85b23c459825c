// Package eodhd provides a client for the EODHD API
package eodhd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/bobmcallan/classfund/internal/common"
	"github.com/bobmcallan/classfund/internal/interfaces"
	"github.com/bobmcallan/classfund/internal/models"
	"github.com/bobmcallan/classfund/internal/ticker"
)

// flexFloat64 handles JSON values that may be either a number or a string.
// EODHD reports unknown values as "NA".
type flexFloat64 float64

func (f *flexFloat64) UnmarshalJSON(data []byte) error {
	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		*f = flexFloat64(num)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		num, err := strconv.ParseFloat(s, 64)
		if err != nil {
			*f = 0
			return nil
		}
		*f = flexFloat64(num)
		return nil
	}
	if string(data) == "null" {
		*f = 0
		return nil
	}
	return fmt.Errorf("cannot unmarshal %s into float64", string(data))
}

const (
	DefaultBaseURL   = "https://eodhd.com/api"
	DefaultTimeout   = 10 * time.Second
	DefaultRateLimit = 10 // requests per second
	DefaultExchange  = "US"
)

// Client fetches US equity quotes from EODHD
type Client struct {
	baseURL    string
	apiKey     string
	exchange   string
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
	now        func() time.Time
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

// WithExchange sets the exchange suffix appended to symbols ("US" → "AAPL.US")
func WithExchange(exchange string) ClientOption {
	return func(c *Client) {
		c.exchange = exchange
	}
}

// NewClient creates a new EODHD client. A client without an API key is
// constructed but reports Enabled() == false.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:  DefaultBaseURL,
		apiKey:   apiKey,
		exchange: DefaultExchange,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:  common.NewSilentLogger(),
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError represents an API error
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("EODHD API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// ErrNoData is returned when EODHD answers but carries no usable price.
var ErrNoData = errors.New("eodhd: no usable price")

// Name identifies the provider
func (c *Client) Name() models.Provider {
	return models.ProviderEODHD
}

// Enabled reports whether an API key is configured
func (c *Client) Enabled() bool {
	return c.apiKey != ""
}

// Symbol converts a normalized ticker into the EODHD spelling ("BRK-B" → "BRK-B.US").
func (c *Client) Symbol(t string) string {
	return ticker.WithClassDelimiter(t, "-") + "." + c.exchange
}

// get performs a rate-limited GET request
func (c *Client) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	// Wait for rate limiter
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	// Add API key
	if params == nil {
		params = url.Values{}
	}
	params.Set("api_token", c.apiKey)
	params.Set("fmt", "json")

	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	c.logger.Debug().Str("url", c.baseURL+path).Msg("EODHD API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
			Endpoint:   path,
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// realTimeResponse is the /real-time payload. Values may be "NA".
type realTimeResponse struct {
	Code          string      `json:"code"`
	Timestamp     flexFloat64 `json:"timestamp"`
	Close         flexFloat64 `json:"close"`
	PreviousClose flexFloat64 `json:"previousClose"`
}

// FetchQuote retrieves the latest (possibly delayed) price for a normalized ticker
func (c *Client) FetchQuote(ctx context.Context, t string) (*models.Quote, error) {
	symbol := c.Symbol(t)
	path := "/real-time/" + symbol

	var rt realTimeResponse
	if err := c.get(ctx, path, nil, &rt); err != nil {
		return nil, err
	}

	q := &models.Quote{
		Ticker:    t,
		Price:     float64(rt.Close),
		PrevClose: float64(rt.PreviousClose),
		AsOf:      c.now(),
		Provider:  models.ProviderEODHD,
	}
	if ts := int64(rt.Timestamp); ts > 0 {
		q.AsOf = time.Unix(ts, 0).UTC()
	}
	if !q.Valid() {
		return nil, fmt.Errorf("%w for %s", ErrNoData, symbol)
	}

	c.logger.Debug().Str("ticker", t).Float64("price", q.Price).Msg("EODHD quote")
	return q, nil
}

// eodBarResponse represents the API response for EOD data
type eodBarResponse struct {
	Date          string      `json:"date"`
	Close         flexFloat64 `json:"close"`
	AdjustedClose flexFloat64 `json:"adjusted_close"`
}

// FetchLatestTwoCloses returns the two most recent end-of-day closes
func (c *Client) FetchLatestTwoCloses(ctx context.Context, t string) (float64, float64, time.Time, error) {
	params := url.Values{}
	params.Set("period", "d")
	params.Set("order", "d") // most recent first
	params.Set("from", c.now().AddDate(0, 0, -10).Format(models.DateLayout))

	symbol := c.Symbol(t)
	var bars []eodBarResponse
	if err := c.get(ctx, "/eod/"+symbol, params, &bars); err != nil {
		return 0, 0, time.Time{}, err
	}
	if len(bars) < 2 {
		return 0, 0, time.Time{}, fmt.Errorf("%w: %d bars for %s", ErrNoData, len(bars), symbol)
	}

	latest, prev := bars[0], bars[1]
	asOf, err := time.Parse(models.DateLayout, latest.Date)
	if err != nil {
		return 0, 0, time.Time{}, fmt.Errorf("invalid bar date %q: %w", latest.Date, err)
	}
	return float64(latest.Close), float64(prev.Close), asOf, nil
}

// Ensure Client implements the provider interfaces
var (
	_ interfaces.QuoteProvider        = (*Client)(nil)
	_ interfaces.CloseHistoryProvider = (*Client)(nil)
)
