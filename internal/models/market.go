// Package models defines data structures for classfund
package models

import (
	"math"
	"time"
)

// Provider identifies where a quote came from.
type Provider string

const (
	ProviderEODHD     Provider = "eodhd"
	ProviderAPINinjas Provider = "apininjas"
	ProviderStooq     Provider = "stooq"
	ProviderCache     Provider = "cache" // last-known price from the snapshot cache
)

// Quote is a single price observation for a normalized ticker.
type Quote struct {
	Ticker    string    `json:"ticker"`
	Price     float64   `json:"price"`
	PrevClose float64   `json:"prev_close,omitempty"` // 0 when the provider has no previous close
	AsOf      time.Time `json:"as_of"`
	Provider  Provider  `json:"provider"`
}

// Valid reports whether the quote carries a usable price.
// Non-finite or non-positive prices are treated as no quote at all.
func (q *Quote) Valid() bool {
	return q != nil && isPositiveFinite(q.Price)
}

// HasPrevClose reports whether a usable previous close is present.
func (q *Quote) HasPrevClose() bool {
	return q != nil && isPositiveFinite(q.PrevClose)
}

func isPositiveFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}

// CloseHistory holds the two most recent closes for a ticker.
type CloseHistory struct {
	Ticker    string    `json:"ticker"`
	Close     float64   `json:"close"`
	PrevClose float64   `json:"prev_close"`
	AsOf      time.Time `json:"as_of"`
	Provider  Provider  `json:"provider"`
}

// DailyPct returns the percentage change from the previous close, or false
// if either close is unusable.
func (h *CloseHistory) DailyPct() (float64, bool) {
	if h == nil || !isPositiveFinite(h.Close) || !isPositiveFinite(h.PrevClose) {
		return 0, false
	}
	return (h.Close - h.PrevClose) / h.PrevClose * 100, true
}

// Benchmark is the day change of the index proxy shown next to the portfolio.
type Benchmark struct {
	Proxy       string    `json:"proxy"`
	Close       *float64  `json:"close"`
	PrevClose   *float64  `json:"prevClose"`
	DailyChange *float64  `json:"dailyChange"`
	Provider    Provider  `json:"provider,omitempty"`
	LastUpdated time.Time `json:"lastUpdated"`
}
