// Package interfaces defines service contracts for classfund
package interfaces

import (
	"context"
	"time"

	"github.com/bobmcallan/classfund/internal/models"
)

// QuoteProvider is one external price source in the provider chain.
type QuoteProvider interface {
	// Name identifies the provider in logs and on priced positions
	Name() models.Provider

	// Enabled reports whether the provider is configured (e.g. has an API key)
	Enabled() bool

	// FetchQuote returns the latest price for a normalized ticker.
	// Implementations try their own symbol spellings before giving up.
	FetchQuote(ctx context.Context, ticker string) (*models.Quote, error)
}

// CloseHistoryProvider is implemented by providers that can return the two
// most recent end-of-day closes.
type CloseHistoryProvider interface {
	FetchLatestTwoCloses(ctx context.Context, ticker string) (close, prevClose float64, asOf time.Time, err error)
}
