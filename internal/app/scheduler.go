package app

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/bobmcallan/classfund/internal/common"
	"github.com/bobmcallan/classfund/internal/interfaces"
)

// refreshTimeout bounds one scheduled refresh.
const refreshTimeout = 2 * time.Minute

// StartRefreshScheduler registers the out-of-band refresh job on the
// configured cron schedule (UTC). A disabled or empty schedule is a no-op.
func (a *App) StartRefreshScheduler() error {
	cfg := a.Config.Refresh
	if !cfg.Enabled || cfg.Schedule == "" {
		a.Logger.Info().Msg("Refresh scheduler: disabled")
		return nil
	}

	c := cron.New(cron.WithLocation(time.UTC))
	if _, err := c.AddFunc(cfg.Schedule, func() {
		runRefresh(context.Background(), a.ValuationService, a.Logger)
	}); err != nil {
		return fmt.Errorf("invalid refresh schedule %q: %w", cfg.Schedule, err)
	}
	c.Start()
	a.cron = c

	a.Logger.Info().Str("schedule", cfg.Schedule).Msg("Refresh scheduler: started")
	return nil
}

func runRefresh(ctx context.Context, valuationService interfaces.ValuationService, logger *common.Logger) {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, refreshTimeout)
	defer cancel()

	snap, err := valuationService.Refresh(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("Scheduled refresh: failed")
		return
	}

	logger.Info().
		Float64("total", snap.TotalMarketValue).
		Int("positions", len(snap.Positions)).
		Int("missing", len(snap.MissingTickers)).
		Dur("elapsed", time.Since(start)).
		Msg("Scheduled refresh: complete")
}
