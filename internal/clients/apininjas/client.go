// Package apininjas provides a client for the API Ninjas stock price endpoint
package apininjas

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/PaesslerAG/jsonpath"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/bobmcallan/classfund/internal/common"
	"github.com/bobmcallan/classfund/internal/interfaces"
	"github.com/bobmcallan/classfund/internal/models"
	"github.com/bobmcallan/classfund/internal/ticker"
)

const (
	DefaultBaseURL   = "https://api.api-ninjas.com"
	DefaultTimeout   = 10 * time.Second
	DefaultRateLimit = 5 // requests per second
	DefaultPricePath = "$.price"

	stockPricePath = "/v1/stockprice"
	updatedPath    = "$.updated"
)

// ErrNoData is returned when the response carries no usable price.
var ErrNoData = errors.New("apininjas: no usable price")

// Client fetches last-trade prices from API Ninjas
type Client struct {
	apiKey    string
	pricePath string
	http      *resty.Client
	logger    *common.Logger
	limiter   *rate.Limiter
	now       func() time.Time
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if baseURL != "" {
			c.http.SetBaseURL(baseURL)
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
		c.http.SetTimeout(timeout)
	}
}

// WithPricePath sets the JSONPath used to extract the price from the response
func WithPricePath(path string) ClientOption {
	return func(c *Client) {
		if path != "" {
			c.pricePath = path
		}
	}
}

// NewClient creates a new API Ninjas client
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		apiKey:    apiKey,
		pricePath: DefaultPricePath,
		http:      resty.New().SetBaseURL(DefaultBaseURL).SetTimeout(DefaultTimeout),
		limiter:   rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:    common.NewSilentLogger(),
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError represents a non-2xx response
type APIError struct {
	StatusCode int
	Message    string
	Symbol     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API Ninjas error: %s (status: %d, symbol: %s)", e.Message, e.StatusCode, e.Symbol)
}

// Name identifies the provider
func (c *Client) Name() models.Provider {
	return models.ProviderAPINinjas
}

// Enabled reports whether an API key is configured
func (c *Client) Enabled() bool {
	return c.apiKey != ""
}

// Candidates lists the spellings tried for a normalized ticker, dotted class first.
func Candidates(t string) []string {
	if !ticker.HasShareClass(t) {
		return []string{t}
	}
	return []string{ticker.WithClassDelimiter(t, "."), t}
}

// FetchQuote tries each candidate spelling and returns the first usable price
func (c *Client) FetchQuote(ctx context.Context, t string) (*models.Quote, error) {
	var lastErr error
	for _, symbol := range Candidates(t) {
		q, err := c.fetch(ctx, t, symbol)
		if err == nil {
			return q, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Debug().Str("ticker", t).Str("symbol", symbol).Err(err).Msg("API Ninjas candidate failed")
		lastErr = err
	}
	return nil, lastErr
}

func (c *Client) fetch(ctx context.Context, t, symbol string) (*models.Quote, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	start := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("X-Api-Key", c.apiKey).
		SetHeader("Accept", "application/json").
		SetQueryParam("ticker", symbol).
		Get(stockPricePath)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}

	if resp.StatusCode() != http.StatusOK {
		c.logger.Warn().Str("symbol", symbol).Int("status", resp.StatusCode()).Dur("elapsed", time.Since(start)).Msg("API Ninjas non-OK response")
		msg := string(resp.Body())
		if len(msg) > 256 {
			msg = msg[:256]
		}
		return nil, &APIError{StatusCode: resp.StatusCode(), Message: msg, Symbol: symbol}
	}

	var body any
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	price, err := extractFloat(c.pricePath, body)
	if err != nil {
		return nil, fmt.Errorf("%w for %s: %v", ErrNoData, symbol, err)
	}

	q := &models.Quote{
		Ticker:   t,
		Price:    price,
		AsOf:     c.now(),
		Provider: models.ProviderAPINinjas,
	}
	if ts, err := extractFloat(updatedPath, body); err == nil && ts > 0 {
		q.AsOf = time.Unix(int64(ts), 0).UTC()
	}
	if !q.Valid() {
		return nil, fmt.Errorf("%w for %s", ErrNoData, symbol)
	}

	c.logger.Debug().Str("ticker", t).Str("symbol", symbol).Float64("price", price).Dur("elapsed", time.Since(start)).Msg("API Ninjas quote")
	return q, nil
}

// extractFloat evaluates a JSONPath against a decoded body. Some API versions
// answer with a one-element list, so a list result keeps its first element.
func extractFloat(path string, body any) (float64, error) {
	if list, ok := body.([]any); ok {
		if len(list) == 0 {
			return 0, errors.New("empty result")
		}
		body = list[0]
	}
	v, err := jsonpath.Get(path, body)
	if err != nil {
		return 0, err
	}
	if list, ok := v.([]any); ok && len(list) > 0 {
		v = list[0]
	}
	f, ok := v.(float64)
	if !ok || math.IsNaN(f) {
		return 0, fmt.Errorf("%s is not a number: %v", path, v)
	}
	return f, nil
}

// Ensure Client implements QuoteProvider
var _ interfaces.QuoteProvider = (*Client)(nil)
