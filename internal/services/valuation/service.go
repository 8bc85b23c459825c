package valuation

import (
	"context"
	"time"

	"github.com/bobmcallan/classfund/internal/common"
	"github.com/bobmcallan/classfund/internal/holdings"
	"github.com/bobmcallan/classfund/internal/interfaces"
	"github.com/bobmcallan/classfund/internal/models"
	"github.com/bobmcallan/classfund/internal/services/quote"
	"github.com/bobmcallan/classfund/internal/ticker"
)

// Fetcher prices a batch of tickers. *quote.Scheduler is the production Fetcher.
type Fetcher interface {
	Fetch(ctx context.Context, tickers []string) *quote.FetchResult
}

// CloseSource returns the two latest closes for a ticker. *quote.Chain implements it.
type CloseSource interface {
	LatestTwoCloses(ctx context.Context, ticker string) (*models.CloseHistory, error)
}

// Options configures a Service.
type Options struct {
	LedgerPath   string
	LedgerFormat holdings.Format
	Benchmark    string
	Staleness    common.StalenessPolicy
}

// Service orchestrates ledger load, quote fetch, cache fallback and valuation.
type Service struct {
	opts    Options
	fetcher Fetcher
	closes  CloseSource
	store   interfaces.SnapshotStore
	logger  *common.Logger
	now     func() time.Time // injectable clock for testing
}

// NewService creates a valuation service. store and closes may be nil.
func NewService(opts Options, fetcher Fetcher, closes CloseSource, store interfaces.SnapshotStore, logger *common.Logger) *Service {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	if opts.Benchmark == "" {
		opts.Benchmark = "SPY"
	}
	return &Service{
		opts:    opts,
		fetcher: fetcher,
		closes:  closes,
		store:   store,
		logger:  logger,
		now:     time.Now,
	}
}

// LedgerPath returns the configured ledger location.
func (s *Service) LedgerPath() string {
	return s.opts.LedgerPath
}

// Valuate loads the ledger, prices it and persists the result to the cache.
// Only an unreadable ledger is returned as an error.
func (s *Service) Valuate(ctx context.Context) (*models.PortfolioSnapshot, error) {
	logger := common.LoggerFrom(ctx, s.logger)
	start := s.now()

	ledger, err := holdings.LoadFile(s.opts.LedgerPath, s.opts.LedgerFormat)
	if err != nil {
		logger.Error().Err(err).Str("path", s.opts.LedgerPath).Msg("Holdings ledger unavailable")
		return nil, err
	}
	for _, rowErr := range ledger.Errors {
		logger.Warn().Int("row", rowErr.Row).Str("ticker", rowErr.Ticker).Str("reason", rowErr.Reason).Msg("Skipped ledger row")
	}

	tickers := ledger.Tickers()
	cached := s.readCache(ctx)
	fetched := s.fetcher.Fetch(ctx, tickers)

	quotes := make(map[string]*models.Quote, len(tickers))
	for t, q := range fetched.Quotes {
		quotes[t] = q
	}
	fromCache := s.applyCacheFallback(quotes, fetched.Missing, cached, start)

	snap := Compute(ledger.Holdings, quotes, start)
	snap.RowErrors = len(ledger.Errors)
	applyReferenceTotals(snap, cached)

	logger.Info().
		Int("holdings", len(ledger.Holdings)).
		Int("priced", len(fetched.Quotes)).
		Int("from_cache", fromCache).
		Int("missing", len(snap.MissingTickers)).
		Float64("total", snap.TotalMarketValue).
		Dur("elapsed", s.now().Sub(start)).
		Msg("Portfolio valued")

	s.writeCache(ctx, snap, fetched.Quotes, cached)
	return snap, nil
}

// Refresh re-runs the valuation out of band (scheduled job or refresh endpoint).
func (s *Service) Refresh(ctx context.Context) (*models.PortfolioSnapshot, error) {
	s.logger.Info().Msg("Portfolio refresh started")
	snap, err := s.Valuate(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Portfolio refresh failed")
		return nil, err
	}
	return snap, nil
}

// LookupQuotes prices the given tickers without touching the ledger or cache.
func (s *Service) LookupQuotes(ctx context.Context, tickers []string) (map[string]*models.Quote, []string) {
	res := s.fetcher.Fetch(ctx, ticker.Unique(tickers))
	return res.Quotes, res.Missing
}

// Benchmark returns the day change of the index proxy. Unavailable closes
// produce null fields, not an error.
func (s *Service) Benchmark(ctx context.Context) (*models.Benchmark, error) {
	b := &models.Benchmark{Proxy: s.opts.Benchmark, LastUpdated: s.now().UTC()}
	if s.closes == nil {
		return b, nil
	}

	h, err := s.closes.LatestTwoCloses(ctx, s.opts.Benchmark)
	if err != nil {
		common.LoggerFrom(ctx, s.logger).Warn().Err(err).Str("proxy", s.opts.Benchmark).Msg("Benchmark closes unavailable")
		return b, nil
	}
	pct, ok := h.DailyPct()
	if !ok {
		return b, nil
	}
	b.Close = floatPtr(h.Close)
	b.PrevClose = floatPtr(h.PrevClose)
	b.DailyChange = floatPtr(pct)
	b.Provider = h.Provider
	if !h.AsOf.IsZero() {
		b.LastUpdated = h.AsOf.UTC()
	}
	return b, nil
}

func (s *Service) readCache(ctx context.Context) *models.CachedSnapshot {
	if s.store == nil {
		return nil
	}
	cached, err := s.store.Read(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Snapshot cache read failed")
		return nil
	}
	return cached
}

// applyCacheFallback prices tickers every provider missed from the cache,
// provided the cached price is fresh under the staleness policy.
func (s *Service) applyCacheFallback(quotes map[string]*models.Quote, missing []string, cached *models.CachedSnapshot, now time.Time) int {
	if cached == nil || len(cached.Prices) == 0 {
		return 0
	}
	n := 0
	for _, t := range missing {
		cp, ok := cached.Prices[t]
		if !ok || cp.Close <= 0 {
			continue
		}
		fetchedAt := cp.FetchedAt
		if fetchedAt.IsZero() {
			fetchedAt = cached.RecordedAt()
		}
		if !s.opts.Staleness.IsFresh(fetchedAt, now) {
			s.logger.Debug().Str("ticker", t).Time("fetched_at", fetchedAt).Msg("Cached price too old for fallback")
			continue
		}

		asOf := fetchedAt
		if d, err := time.Parse(models.DateLayout, cp.Date); err == nil {
			asOf = d
		}
		quotes[t] = &models.Quote{Ticker: t, Price: cp.Close, AsOf: asOf, Provider: models.ProviderCache}
		n++
	}
	return n
}

// applyReferenceTotals sets the day-over-day comparison from the cache. A
// cache from an earlier date becomes the reference; a cache from the same
// date carries its own reference forward.
func applyReferenceTotals(snap *models.PortfolioSnapshot, cached *models.CachedSnapshot) {
	if cached == nil {
		return
	}
	today := snap.GeneratedAt.Format(models.DateLayout)
	if snap.AsOf != nil {
		today = *snap.AsOf
	}
	cachedDate := cached.ValuationDate()

	var prev *float64
	var prevAsOf string
	switch {
	case cachedDate == "":
		return
	case cachedDate < today:
		prev = floatPtr(cached.TotalMarketValue)
		prevAsOf = cachedDate
	case cachedDate == today:
		prev = cached.PreviousTotalMarketValue
		prevAsOf = cached.PreviousAsOf
	default:
		return
	}
	if prev == nil || *prev <= 0 {
		return
	}

	snap.PreviousTotalMarketValue = floatPtr(*prev)
	if prevAsOf != "" {
		snap.PreviousAsOf = &prevAsOf
	}
	if snap.TotalMarketValue > 0 {
		snap.TotalChangePct = floatPtr((snap.TotalMarketValue - *prev) / *prev * 100)
	}
}

// writeCache persists the snapshot. Nothing is written when no position was
// priced live, so a provider outage cannot overwrite a good cache with zeros.
// Cached prices for tickers not refreshed this pass are carried forward with
// their original fetch time.
func (s *Service) writeCache(ctx context.Context, snap *models.PortfolioSnapshot, live map[string]*models.Quote, cached *models.CachedSnapshot) {
	if s.store == nil {
		return
	}
	if len(live) == 0 {
		s.logger.Warn().Msg("No live prices; snapshot cache left unchanged")
		return
	}

	out := &models.CachedSnapshot{
		GeneratedAt:      snap.GeneratedAt,
		Timestamp:        snap.GeneratedAt.Format(time.RFC3339),
		AsOf:             snap.GeneratedAt.Format(models.DateLayout),
		TotalMarketValue: snap.TotalMarketValue,
		Prices:           make(map[string]models.CachedPrice, len(live)),
	}
	if snap.AsOf != nil {
		out.AsOf = *snap.AsOf
	}
	if snap.PreviousTotalMarketValue != nil {
		out.PreviousTotalMarketValue = floatPtr(*snap.PreviousTotalMarketValue)
	}
	if snap.PreviousAsOf != nil {
		out.PreviousAsOf = *snap.PreviousAsOf
	}

	if cached != nil {
		for t, cp := range cached.Prices {
			if cp.FetchedAt.IsZero() {
				cp.FetchedAt = cached.RecordedAt()
			}
			out.Prices[t] = cp
		}
	}
	for t, q := range live {
		out.Prices[t] = models.CachedPrice{
			Close:     q.Price,
			Date:      q.AsOf.UTC().Format(models.DateLayout),
			Provider:  q.Provider,
			FetchedAt: snap.GeneratedAt,
		}
	}

	if err := s.store.Write(ctx, out); err != nil {
		common.LoggerFrom(ctx, s.logger).Warn().Err(err).Msg("Snapshot cache write failed")
	}
}

// Ensure Service implements ValuationService
var _ interfaces.ValuationService = (*Service)(nil)
