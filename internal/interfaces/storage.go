// Package interfaces defines service contracts for classfund
package interfaces

import (
	"context"

	"github.com/bobmcallan/classfund/internal/models"
)

// SnapshotStore persists the last successful valuation.
type SnapshotStore interface {
	// Read returns the cached snapshot, or nil when none is usable.
	// A missing or corrupt cache is not an error.
	Read(ctx context.Context) (*models.CachedSnapshot, error)

	// Write replaces the cached snapshot wholesale. Last writer wins.
	Write(ctx context.Context, snap *models.CachedSnapshot) error
}
