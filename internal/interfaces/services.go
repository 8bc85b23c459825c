// Package interfaces defines service contracts for classfund
package interfaces

import (
	"context"

	"github.com/bobmcallan/classfund/internal/models"
)

// ValuationService produces portfolio snapshots
type ValuationService interface {
	// Valuate loads the ledger, prices it and returns the snapshot.
	// Only an unreadable ledger is an error; missing prices are reported in the snapshot.
	Valuate(ctx context.Context) (*models.PortfolioSnapshot, error)

	// Refresh re-runs the valuation and persists it to the cache
	Refresh(ctx context.Context) (*models.PortfolioSnapshot, error)

	// Benchmark returns the day change of the index proxy
	Benchmark(ctx context.Context) (*models.Benchmark, error)

	// LookupQuotes runs a diagnostic price lookup for the given tickers
	LookupQuotes(ctx context.Context, tickers []string) (map[string]*models.Quote, []string)
}

// LineageService reconciles held tickers against the corporate-action graph
type LineageService interface {
	// Audit returns all edges, roots, unresolved tickers and exits
	Audit(ctx context.Context) (*models.LineageAudit, error)

	// Trace returns the path from the nearest root to ticker
	Trace(ticker string) *models.LineageTrace
}
