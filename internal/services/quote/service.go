// Package quote retrieves prices through an ordered chain of providers and
// fans ticker lookups out over a bounded worker pool.
package quote

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/bobmcallan/classfund/internal/common"
	"github.com/bobmcallan/classfund/internal/interfaces"
	"github.com/bobmcallan/classfund/internal/models"
)

// ErrNoQuote is returned when no enabled provider produced a usable price.
var ErrNoQuote = errors.New("no provider returned a usable quote")

// Chain queries providers in priority order and returns the first valid quote.
type Chain struct {
	providers []interfaces.QuoteProvider
	logger    *common.Logger
}

// NewChain creates a provider chain. Disabled providers are dropped here and
// logged once, so requests never consult them.
func NewChain(providers []interfaces.QuoteProvider, logger *common.Logger) *Chain {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	c := &Chain{logger: logger}
	for _, p := range providers {
		if p == nil {
			continue
		}
		if !p.Enabled() {
			logger.Warn().Str("provider", string(p.Name())).Msg("Quote provider disabled: missing configuration")
			continue
		}
		c.providers = append(c.providers, p)
	}
	if len(c.providers) == 0 {
		logger.Warn().Msg("No quote providers enabled; every ticker will be reported missing")
	}
	return c
}

// Providers returns the enabled providers in priority order.
func (c *Chain) Providers() []models.Provider {
	names := make([]models.Provider, len(c.providers))
	for i, p := range c.providers {
		names[i] = p.Name()
	}
	return names
}

// Quote returns the first valid quote for a normalized ticker.
// Provider errors, invalid prices and panics count as absent and the next
// provider is tried.
func (c *Chain) Quote(ctx context.Context, ticker string) (*models.Quote, error) {
	for _, p := range c.providers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		q, err := c.try(ctx, p, ticker)
		if err != nil {
			c.logger.Debug().Str("provider", string(p.Name())).Str("ticker", ticker).Err(err).Msg("Quote provider miss")
			continue
		}
		return q, nil
	}
	return nil, fmt.Errorf("%s: %w", ticker, ErrNoQuote)
}

func (c *Chain) try(ctx context.Context, p interfaces.QuoteProvider, ticker string) (q *models.Quote, err error) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error().
				Str("provider", string(p.Name())).
				Str("ticker", ticker).
				Str("panic", fmt.Sprintf("%v", r)).
				Str("stack", string(debug.Stack())).
				Msg("Quote provider panicked")
			q, err = nil, fmt.Errorf("provider %s panicked: %v", p.Name(), r)
		}
	}()

	q, err = p.FetchQuote(ctx, ticker)
	if err != nil {
		return nil, err
	}
	if !q.Valid() {
		return nil, fmt.Errorf("provider %s returned an unusable price", p.Name())
	}
	q.Ticker = ticker
	if q.Provider == "" {
		q.Provider = p.Name()
	}
	return q, nil
}

// LatestTwoCloses walks the providers that expose close history and returns
// the first complete pair.
func (c *Chain) LatestTwoCloses(ctx context.Context, ticker string) (*models.CloseHistory, error) {
	for _, p := range c.providers {
		hp, ok := p.(interfaces.CloseHistoryProvider)
		if !ok {
			continue
		}
		h, err := c.tryHistory(ctx, p.Name(), hp, ticker)
		if err != nil {
			c.logger.Debug().Str("provider", string(p.Name())).Str("ticker", ticker).Err(err).Msg("Close history miss")
			continue
		}
		return h, nil
	}
	return nil, fmt.Errorf("%s: %w", ticker, ErrNoQuote)
}

func (c *Chain) tryHistory(ctx context.Context, name models.Provider, hp interfaces.CloseHistoryProvider, ticker string) (h *models.CloseHistory, err error) {
	defer func() {
		if r := recover(); r != nil {
			h, err = nil, fmt.Errorf("provider %s panicked: %v", name, r)
		}
	}()

	closePx, prevClose, asOf, err := hp.FetchLatestTwoCloses(ctx, ticker)
	if err != nil {
		return nil, err
	}
	h = &models.CloseHistory{Ticker: ticker, Close: closePx, PrevClose: prevClose, AsOf: asOf, Provider: name}
	if _, ok := h.DailyPct(); !ok {
		return nil, fmt.Errorf("provider %s returned unusable closes", name)
	}
	return h, nil
}
