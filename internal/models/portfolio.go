package models

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Holding is one validated ledger row. Ticker is already normalized.
type Holding struct {
	Ticker    string           `json:"ticker"`
	Name      string           `json:"name,omitempty"`
	Shares    decimal.Decimal  `json:"shares"`
	CostBasis *decimal.Decimal `json:"cost_basis,omitempty"`
	Row       int              `json:"row"` // 1-based source row, header excluded
}

// RowError describes a ledger row that was skipped.
type RowError struct {
	Row    int    `json:"row"`
	Ticker string `json:"ticker,omitempty"`
	Reason string `json:"reason"`
}

func (e RowError) Error() string {
	if e.Ticker != "" {
		return "row " + strconv.Itoa(e.Row) + " (" + e.Ticker + "): " + e.Reason
	}
	return "row " + strconv.Itoa(e.Row) + ": " + e.Reason
}

// Position is a holding joined with its quote. Nil pointers serialize as null.
type Position struct {
	Ticker      string   `json:"ticker"`
	Name        string   `json:"name,omitempty"`
	Shares      float64  `json:"shares"`
	CostBasis   *float64 `json:"costBasis,omitempty"`
	Price       *float64 `json:"price"`
	MarketValue *float64 `json:"marketValue"`
	Weight      *float64 `json:"weight"`
	DailyPct    *float64 `json:"dailyPct"`
	Provider    Provider `json:"provider,omitempty"`
	Stale       bool     `json:"stale,omitempty"`
}

// PortfolioSnapshot is the valued, weighted view of the ledger at GeneratedAt.
type PortfolioSnapshot struct {
	GeneratedAt              time.Time  `json:"generatedAt"`
	AsOf                     *string    `json:"asOf,omitempty"` // YYYY-MM-DD of the newest quote
	TotalMarketValue         float64    `json:"totalMarketValue"`
	Positions                []Position `json:"positions"`
	MissingTickers           []string   `json:"missingTickers"`
	DailyChange              *float64   `json:"dailyChange"`
	PreviousTotalMarketValue *float64   `json:"previousTotalMarketValue,omitempty"`
	PreviousAsOf             *string    `json:"previousAsOf,omitempty"`
	TotalChangePct           *float64   `json:"totalChangePct,omitempty"`
	RowErrors                int        `json:"rowErrors"`
}

// DateLayout is the calendar date format used across snapshots and caches.
const DateLayout = "2006-01-02"
