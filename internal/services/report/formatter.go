// Package report renders snapshots, benchmark and lineage data as markdown.
// The CLI and the MCP tools share these formatters.
package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Rhymond/go-money"

	"github.com/bobmcallan/classfund/internal/models"
)

// Currency is the ledger's reporting currency.
const Currency = money.USD

// FormatMoney renders an amount in the reporting currency, e.g. "$1,250.00".
func FormatMoney(v float64) string {
	return money.NewFromFloat(v, Currency).Display()
}

// FormatSignedPct renders a percentage with an explicit sign, or "n/a".
func FormatSignedPct(p *float64) string {
	if p == nil {
		return "n/a"
	}
	return fmt.Sprintf("%+.2f%%", *p)
}

func formatOptionalMoney(v *float64) string {
	if v == nil {
		return "-"
	}
	return FormatMoney(*v)
}

func formatWeight(w *float64) string {
	if w == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f%%", *w*100)
}

// FormatSnapshot renders the portfolio valuation. bench may be nil.
func FormatSnapshot(snap *models.PortfolioSnapshot, bench *models.Benchmark) string {
	var sb strings.Builder

	sb.WriteString("# Portfolio Valuation\n\n")
	if snap.AsOf != nil {
		sb.WriteString(fmt.Sprintf("**As of:** %s\n", *snap.AsOf))
	}
	sb.WriteString(fmt.Sprintf("**Generated:** %s\n", snap.GeneratedAt.Format("2006-01-02 15:04 MST")))
	sb.WriteString(fmt.Sprintf("**Total Value:** %s\n", FormatMoney(snap.TotalMarketValue)))
	sb.WriteString(fmt.Sprintf("**Day Change:** %s\n", FormatSignedPct(snap.DailyChange)))
	if snap.PreviousTotalMarketValue != nil {
		prevAsOf := "previous"
		if snap.PreviousAsOf != nil {
			prevAsOf = *snap.PreviousAsOf
		}
		sb.WriteString(fmt.Sprintf("**Since %s:** %s (%s)\n", prevAsOf, FormatSignedPct(snap.TotalChangePct), FormatMoney(*snap.PreviousTotalMarketValue)))
	}
	if bench != nil {
		sb.WriteString(fmt.Sprintf("**%s Day Change:** %s\n", bench.Proxy, FormatSignedPct(bench.DailyChange)))
	}
	sb.WriteString("\n")

	positions := append([]models.Position(nil), snap.Positions...)
	sort.SliceStable(positions, func(i, j int) bool {
		wi, wj := weightOf(positions[i]), weightOf(positions[j])
		if wi != wj {
			return wi > wj
		}
		return positions[i].Ticker < positions[j].Ticker
	})

	if len(positions) == 0 {
		sb.WriteString("No holdings in the ledger.\n")
		return sb.String()
	}

	sb.WriteString("## Holdings\n\n")
	sb.WriteString("| Symbol | Name | Shares | Price | Value | Weight | Day | Source |\n")
	sb.WriteString("|--------|------|--------|-------|-------|--------|-----|--------|\n")
	for _, p := range positions {
		source := string(p.Provider)
		if p.Stale {
			source += " (stale)"
		}
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s | %s | %s | %s |\n",
			p.Ticker, p.Name, formatShares(p.Shares),
			formatOptionalMoney(p.Price), formatOptionalMoney(p.MarketValue),
			formatWeight(p.Weight), FormatSignedPct(p.DailyPct), source,
		))
	}
	sb.WriteString(fmt.Sprintf("| **Total** | | | | **%s** | | | |\n\n", FormatMoney(snap.TotalMarketValue)))

	if len(snap.MissingTickers) > 0 {
		sb.WriteString(fmt.Sprintf("**Missing prices:** %s\n\n", strings.Join(snap.MissingTickers, ", ")))
	}
	if snap.RowErrors > 0 {
		sb.WriteString(fmt.Sprintf("_%d ledger row(s) skipped._\n", snap.RowErrors))
	}
	return sb.String()
}

func weightOf(p models.Position) float64 {
	if p.Weight == nil {
		return -1
	}
	return *p.Weight
}

func formatShares(s float64) string {
	if s == float64(int64(s)) {
		return fmt.Sprintf("%d", int64(s))
	}
	return fmt.Sprintf("%.4f", s)
}

// FormatBenchmark renders the index proxy day change.
func FormatBenchmark(b *models.Benchmark) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# Benchmark: %s\n\n", b.Proxy))
	if b.DailyChange == nil {
		sb.WriteString("Benchmark closes unavailable.\n")
		return sb.String()
	}
	sb.WriteString(fmt.Sprintf("**Close:** %s\n", formatOptionalMoney(b.Close)))
	sb.WriteString(fmt.Sprintf("**Previous Close:** %s\n", formatOptionalMoney(b.PrevClose)))
	sb.WriteString(fmt.Sprintf("**Day Change:** %s\n", FormatSignedPct(b.DailyChange)))
	sb.WriteString(fmt.Sprintf("**As of:** %s (%s)\n", b.LastUpdated.Format(models.DateLayout), b.Provider))
	return sb.String()
}

// FormatLineage renders the lineage audit: mappings, unresolved tickers and exits.
func FormatLineage(audit *models.LineageAudit) string {
	var sb strings.Builder
	sb.WriteString("# Corporate Action Lineage\n\n")

	sb.WriteString("## Mappings\n\n")
	sb.WriteString("| Current | From | Mechanism | Notes |\n")
	sb.WriteString("|---------|------|-----------|-------|\n")
	for _, e := range audit.Edges {
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n", labelled(e.ToTicker, e.ToName), labelled(e.FromTicker, e.FromName), e.Mechanism, e.Notes))
	}
	sb.WriteString("\n")

	if len(audit.Unresolved) > 0 {
		sb.WriteString("## Unresolved\n\n")
		for _, t := range audit.Unresolved {
			sb.WriteString(fmt.Sprintf("- %s\n", t))
		}
		sb.WriteString("\n")
	}

	if len(audit.Exits) > 0 {
		sb.WriteString("## Exits\n\n")
		sb.WriteString("| Ticker | Name | Kind | Notes |\n")
		sb.WriteString("|--------|------|------|-------|\n")
		for _, x := range audit.Exits {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n", x.Ticker, x.Name, x.Kind, x.Notes))
		}
	}
	return sb.String()
}

// FormatTrace renders the resolution path of one ticker.
func FormatTrace(tr *models.LineageTrace) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# Lineage: %s\n\n", tr.Ticker))
	switch {
	case !tr.Resolved:
		sb.WriteString("**Unresolved:** no confirmed path from an explicit purchase.\n")
	case len(tr.Path) == 0:
		sb.WriteString("Explicit purchase (root).\n")
	default:
		sb.WriteString(fmt.Sprintf("**Purchased as:** %s\n\n", tr.Root))
		for i, e := range tr.Path {
			sb.WriteString(fmt.Sprintf("%d. %s → %s (%s)\n", i+1, e.FromTicker, e.ToTicker, e.Mechanism))
		}
	}
	return sb.String()
}

// FormatQuotes renders a diagnostic price lookup.
func FormatQuotes(quotes map[string]*models.Quote, missing []string) string {
	var sb strings.Builder
	sb.WriteString("# Quote Lookup\n\n")

	tickers := make([]string, 0, len(quotes))
	for t := range quotes {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)

	if len(tickers) > 0 {
		sb.WriteString("| Symbol | Price | Prev Close | As of | Source |\n")
		sb.WriteString("|--------|-------|------------|-------|--------|\n")
		for _, t := range tickers {
			q := quotes[t]
			prev := "-"
			if q.HasPrevClose() {
				prev = FormatMoney(q.PrevClose)
			}
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s |\n", t, FormatMoney(q.Price), prev, q.AsOf.Format(models.DateLayout), q.Provider))
		}
		sb.WriteString("\n")
	}
	if len(missing) > 0 {
		sb.WriteString(fmt.Sprintf("**Missing prices:** %s\n", strings.Join(missing, ", ")))
	}
	return sb.String()
}

func labelled(t, name string) string {
	if name == "" {
		return t
	}
	return fmt.Sprintf("%s (%s)", t, name)
}
