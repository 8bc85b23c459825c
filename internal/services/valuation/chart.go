package valuation

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/bobmcallan/classfund/internal/models"
)

// MaxChartBars caps the allocation chart; smaller weights are folded into "Other".
const MaxChartBars = 12

// RenderAllocationChart renders a PNG bar chart of position weights (percent).
// Returns raw PNG bytes.
func RenderAllocationChart(snap *models.PortfolioSnapshot) ([]byte, error) {
	if snap == nil {
		return nil, fmt.Errorf("no snapshot to chart")
	}

	type slice struct {
		label  string
		weight float64
	}
	var slices []slice
	for _, p := range snap.Positions {
		if p.Weight != nil && *p.Weight > 0 {
			slices = append(slices, slice{label: p.Ticker, weight: *p.Weight * 100})
		}
	}
	if len(slices) == 0 {
		return nil, fmt.Errorf("no priced positions to chart")
	}

	sort.SliceStable(slices, func(i, j int) bool { return slices[i].weight > slices[j].weight })
	if len(slices) > MaxChartBars {
		other := 0.0
		for _, s := range slices[MaxChartBars-1:] {
			other += s.weight
		}
		slices = append(slices[:MaxChartBars-1], slice{label: "Other", weight: other})
	}

	maxWeight := 0.0
	bars := make([]chart.Value, len(slices))
	for i, s := range slices {
		bars[i] = chart.Value{
			Label: s.label,
			Value: s.weight,
			Style: chart.Style{
				FillColor:   drawing.ColorFromHex("2563eb"), // blue-600
				StrokeColor: drawing.ColorFromHex("1d4ed8"),
				StrokeWidth: 1,
			},
		}
		if s.weight > maxWeight {
			maxWeight = s.weight
		}
	}

	title := "Portfolio Allocation"
	if snap.AsOf != nil {
		title += " (" + *snap.AsOf + ")"
	}

	graph := chart.BarChart{
		Title:  title,
		Width:  900,
		Height: 400,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 10, Right: 20, Bottom: 10},
		},
		BarWidth:   40,
		BarSpacing: 20,
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: 0, Max: maxWeight * 1.1},
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return fmt.Sprintf("%.0f%%", f)
				}
				return ""
			},
		},
		Bars: bars,
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("chart render failed: %w", err)
	}

	return buf.Bytes(), nil
}
