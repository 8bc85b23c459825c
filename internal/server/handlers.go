package server

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/bobmcallan/classfund/internal/common"
	"github.com/bobmcallan/classfund/internal/models"
	"github.com/bobmcallan/classfund/internal/services/valuation"
	"github.com/bobmcallan/classfund/internal/ticker"
)

// QuoteLookupResponse is the body of a ticker-restricted refresh.
type QuoteLookupResponse struct {
	Tickers []string                 `json:"tickers"`
	Quotes  map[string]*models.Quote `json:"quotes"`
	Missing []string                 `json:"missing"`
}

// handlePortfolioGet handles GET /api/portfolio. Partial provider failure
// is still a 200; only an unreadable ledger is a 500.
func (s *Server) handlePortfolioGet(w http.ResponseWriter, r *http.Request) {
	snap, err := s.app.ValuationService.Valuate(r.Context())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respond(w, r, http.StatusOK, snap)
}

// handlePortfolioChart handles GET /api/portfolio/chart.png.
func (s *Server) handlePortfolioChart(w http.ResponseWriter, r *http.Request) {
	snap, err := s.app.ValuationService.Valuate(r.Context())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	png, err := valuation.RenderAllocationChart(snap)
	if err != nil {
		WriteError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

// handleRefresh handles POST /api/refresh. With ?ticker= or ?tickers= it
// only looks up those prices; otherwise it re-values and persists the ledger.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	raw := append(query["ticker"], query["tickers"]...)

	if strings.TrimSpace(strings.Join(raw, "")) != "" {
		tickers := ticker.ParseList(raw...)
		if len(tickers) == 0 {
			WriteErrorWithCode(w, http.StatusBadRequest, "No valid tickers supplied", "invalid_tickers")
			return
		}
		quotes, missing := s.app.ValuationService.LookupQuotes(r.Context(), tickers)
		if quotes == nil {
			quotes = map[string]*models.Quote{}
		}
		s.respond(w, r, http.StatusOK, QuoteLookupResponse{Tickers: tickers, Quotes: quotes, Missing: missing})
		return
	}

	snap, err := s.app.ValuationService.Refresh(r.Context())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respond(w, r, http.StatusOK, snap)
}

// handleBenchmark handles GET /api/benchmark.
func (s *Server) handleBenchmark(w http.ResponseWriter, r *http.Request) {
	bench, err := s.app.ValuationService.Benchmark(r.Context())
	if err != nil {
		common.LoggerFrom(r.Context(), s.logger).Warn().Err(err).Msg("Benchmark failed")
		WriteError(w, http.StatusBadGateway, err.Error())
		return
	}
	s.respond(w, r, http.StatusOK, bench)
}

// handleLineageAudit handles GET /api/lineage.
func (s *Server) handleLineageAudit(w http.ResponseWriter, r *http.Request) {
	audit, err := s.app.LineageService.Audit(r.Context())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respond(w, r, http.StatusOK, audit)
}

// handleLineageTrace handles GET /api/lineage/{ticker}.
func (s *Server) handleLineageTrace(w http.ResponseWriter, r *http.Request) {
	t := ticker.Normalize(chi.URLParam(r, "ticker"))
	if !ticker.Valid(t) {
		WriteErrorWithCode(w, http.StatusBadRequest, "Invalid ticker", "invalid_ticker")
		return
	}
	s.respond(w, r, http.StatusOK, s.app.LineageService.Trace(t))
}
