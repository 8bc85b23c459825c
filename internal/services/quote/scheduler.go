package quote

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/bobmcallan/classfund/internal/common"
	"github.com/bobmcallan/classfund/internal/models"
	"github.com/bobmcallan/classfund/internal/ticker"
)

// DefaultConcurrency is the worker count used when none is configured.
const DefaultConcurrency = 6

// Source resolves one ticker to a quote. *Chain is the production Source.
type Source interface {
	Quote(ctx context.Context, ticker string) (*models.Quote, error)
}

// FetchResult holds the outcome of one scheduler pass.
type FetchResult struct {
	Quotes  map[string]*models.Quote
	Missing []string // sorted
}

// Scheduler fans tickers out over a fixed number of workers.
type Scheduler struct {
	source      Source
	concurrency int
	logger      *common.Logger
}

// NewScheduler creates a scheduler. Concurrency below 1 is clamped to 1.
func NewScheduler(source Source, concurrency int, logger *common.Logger) *Scheduler {
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	return &Scheduler{source: source, concurrency: concurrency, logger: logger}
}

// Concurrency returns the worker count.
func (s *Scheduler) Concurrency() int {
	return s.concurrency
}

// Fetch prices every distinct ticker. Each ticker is handled by exactly one
// worker, which writes only its own result slot; the map is assembled after
// all workers have returned.
func (s *Scheduler) Fetch(ctx context.Context, tickers []string) *FetchResult {
	unique := ticker.Unique(tickers)
	results := make([]*models.Quote, len(unique))

	workers := s.concurrency
	if workers > len(unique) {
		workers = len(unique)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = s.fetchOne(ctx, unique[i])
			}
		}()
	}

	for i := range unique {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	res := &FetchResult{Quotes: make(map[string]*models.Quote, len(unique)), Missing: []string{}}
	for i, t := range unique {
		if results[i] != nil {
			res.Quotes[t] = results[i]
		} else {
			res.Missing = append(res.Missing, t)
		}
	}
	sort.Strings(res.Missing)

	s.logger.Info().
		Int("tickers", len(unique)).
		Int("priced", len(res.Quotes)).
		Int("missing", len(res.Missing)).
		Int("workers", workers).
		Msg("Quote fetch complete")
	return res
}

// fetchOne never panics; a panicking source is recorded as a miss.
func (s *Scheduler) fetchOne(ctx context.Context, t string) (q *models.Quote) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Str("ticker", t).Str("panic", fmt.Sprintf("%v", r)).Msg("Quote worker recovered from panic")
			q = nil
		}
	}()

	q, err := s.source.Quote(ctx, t)
	if err != nil || !q.Valid() {
		return nil
	}
	return q
}
