package app

import (
	"context"
	"os"
	"time"

	"github.com/bobmcallan/classfund/internal/common"
	"github.com/bobmcallan/classfund/internal/interfaces"
)

// warmCache refreshes the snapshot cache on startup unless it is already fresh.
func warmCache(ctx context.Context, valuationService interfaces.ValuationService, store interfaces.SnapshotStore, policy common.StalenessPolicy, logger *common.Logger) {
	if os.Getenv("CLASSFUND_WARM_CACHE") == "off" {
		logger.Info().Msg("Warm cache: disabled via CLASSFUND_WARM_CACHE=off")
		return
	}

	start := time.Now()

	if store != nil {
		cached, err := store.Read(ctx)
		if err == nil && cached != nil && policy.IsFresh(cached.RecordedAt(), start) {
			logger.Info().Str("recorded_at", cached.RecordedAt().Format(time.RFC3339)).Msg("Warm cache: snapshot already fresh, skipping")
			return
		}
	}

	logger.Info().Msg("Warm cache: starting")

	snap, err := valuationService.Refresh(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("Warm cache: valuation failed")
		return
	}

	logger.Info().
		Float64("total", snap.TotalMarketValue).
		Int("missing", len(snap.MissingTickers)).
		Dur("elapsed", time.Since(start)).
		Msg("Warm cache: complete")
}
