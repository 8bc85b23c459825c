package models

import "time"

// CachedPrice is a last-known price kept in the snapshot cache.
type CachedPrice struct {
	Close     float64   `json:"close"`
	Date      string    `json:"date"` // quote date, YYYY-MM-DD
	Provider  Provider  `json:"provider,omitempty"`
	FetchedAt time.Time `json:"fetchedAt,omitempty"`
}

// CachedSnapshot is the persisted form of the last successful valuation.
// The legacy {totalMarketValue, timestamp} shape decodes into the same struct.
type CachedSnapshot struct {
	GeneratedAt              time.Time              `json:"generatedAt,omitempty"`
	Timestamp                string                 `json:"timestamp,omitempty"`
	AsOf                     string                 `json:"asOf,omitempty"`
	TotalMarketValue         float64                `json:"totalMarketValue"`
	Prices                   map[string]CachedPrice `json:"prices,omitempty"`
	PreviousTotalMarketValue *float64               `json:"previousTotalMarketValue,omitempty"`
	PreviousAsOf             string                 `json:"previousAsOf,omitempty"`
}

// RecordedAt returns when the snapshot was produced, falling back to the
// legacy timestamp field.
func (c *CachedSnapshot) RecordedAt() time.Time {
	if c == nil {
		return time.Time{}
	}
	if !c.GeneratedAt.IsZero() {
		return c.GeneratedAt
	}
	if t, err := time.Parse(time.RFC3339, c.Timestamp); err == nil {
		return t
	}
	return time.Time{}
}

// ValuationDate returns the calendar date the cached total refers to.
func (c *CachedSnapshot) ValuationDate() string {
	if c == nil {
		return ""
	}
	if c.AsOf != "" {
		return c.AsOf
	}
	if t := c.RecordedAt(); !t.IsZero() {
		return t.Format(DateLayout)
	}
	return ""
}
