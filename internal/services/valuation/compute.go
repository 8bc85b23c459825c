// Package valuation turns the holdings ledger and fetched quotes into a
// weighted portfolio snapshot.
package valuation

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"

	"github.com/bobmcallan/classfund/internal/models"
)

// Compute values holdings against quotes keyed by normalized ticker.
// Market values and the total are accumulated in decimal; weights are derived
// only after the total is known and are all null when the total is zero.
func Compute(holdings []models.Holding, quotes map[string]*models.Quote, now time.Time) *models.PortfolioSnapshot {
	snap := &models.PortfolioSnapshot{
		GeneratedAt:    now.UTC(),
		Positions:      make([]models.Position, 0, len(holdings)),
		MissingTickers: []string{},
	}

	total := decimal.Zero
	values := make([]*decimal.Decimal, len(holdings))
	missing := make(map[string]bool)
	var latest time.Time

	for i, h := range holdings {
		pos := models.Position{
			Ticker: h.Ticker,
			Name:   h.Name,
		}
		if finite(h.Shares) {
			pos.Shares = h.Shares.InexactFloat64()
		}
		if h.CostBasis != nil && finite(*h.CostBasis) {
			pos.CostBasis = floatPtr(h.CostBasis.InexactFloat64())
		}

		q := quotes[h.Ticker]
		var mv, next decimal.Decimal
		priced := q.Valid() && finite(h.Shares)
		if priced {
			mv = decimal.NewFromFloat(q.Price).Mul(h.Shares)
			next = total.Add(mv)
			// a value that cannot be represented as a float64 is left unpriced
			priced = finite(mv) && finite(next)
		}
		if !priced {
			if !missing[h.Ticker] {
				missing[h.Ticker] = true
				snap.MissingTickers = append(snap.MissingTickers, h.Ticker)
			}
			snap.Positions = append(snap.Positions, pos)
			continue
		}

		values[i] = &mv
		total = next

		pos.Price = floatPtr(q.Price)
		pos.MarketValue = floatPtr(mv.InexactFloat64())
		pos.Provider = q.Provider
		pos.Stale = q.Provider == models.ProviderCache
		if q.HasPrevClose() {
			pos.DailyPct = floatPtr((q.Price - q.PrevClose) / q.PrevClose * 100)
		}
		if q.AsOf.After(latest) {
			latest = q.AsOf
		}
		snap.Positions = append(snap.Positions, pos)
	}

	snap.TotalMarketValue = total.InexactFloat64()
	if total.IsPositive() {
		for i := range snap.Positions {
			if values[i] != nil {
				snap.Positions[i].Weight = floatPtr(values[i].Div(total).InexactFloat64())
			}
		}
	}

	sort.Strings(snap.MissingTickers)
	if !latest.IsZero() {
		asOf := latest.UTC().Format(models.DateLayout)
		snap.AsOf = &asOf
	}
	snap.DailyChange = DailyChange(snap.Positions)
	return snap
}

// DailyChange is the market-value-weighted mean of the per-position daily
// percentage over positions that have both closes. Nil when none qualify.
func DailyChange(positions []models.Position) *float64 {
	var pcts, weights []float64
	for _, p := range positions {
		if p.DailyPct == nil || p.MarketValue == nil || *p.MarketValue <= 0 {
			continue
		}
		pcts = append(pcts, *p.DailyPct)
		weights = append(weights, *p.MarketValue)
	}
	if len(pcts) == 0 {
		return nil
	}
	return floatPtr(stat.Mean(pcts, weights))
}

func finite(d decimal.Decimal) bool {
	f := d.InexactFloat64()
	return !math.IsInf(f, 0) && !math.IsNaN(f)
}

func floatPtr(v float64) *float64 {
	return &v
}
