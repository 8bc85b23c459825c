// Package common provides shared utilities for classfund
package common

import "time"

// StalenessPolicy decides whether a cached value may stand in for a live one.
// A value is fresh when it is younger than MaxAge, or when SameDay is set and
// it was recorded on the same calendar day as now (in now's location).
type StalenessPolicy struct {
	MaxAge  time.Duration
	SameDay bool
}

// NewStalenessPolicy builds the policy from the cache config.
func NewStalenessPolicy(cfg CacheConfig) StalenessPolicy {
	return StalenessPolicy{MaxAge: cfg.GetMaxAge(), SameDay: cfg.SameDay}
}

// IsFresh reports whether a value recorded at updated is usable at now.
func (p StalenessPolicy) IsFresh(updated, now time.Time) bool {
	if updated.IsZero() || updated.After(now) {
		return false
	}
	if p.SameDay && SameDate(updated.In(now.Location()), now) {
		return true
	}
	return p.MaxAge > 0 && now.Sub(updated) <= p.MaxAge
}

// SameDate reports whether two times fall on the same calendar date.
func SameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

