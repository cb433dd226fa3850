// Package report renders batch summaries as a PNG chart and as a log line.
package report

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/talgya/aislesim/internal/engine"
	"github.com/talgya/aislesim/internal/history"
)

// RenderChart draws the mean in-store, newly infected, and infected-visitor
// curves. With tickSec > 0 the x axis is hours since opening, otherwise
// ticks.
func RenderChart(w io.Writer, sum history.Summary, tickSec int) error {
	if sum.TotalTicks < 2 {
		return errors.New("render chart: need at least two ticks")
	}

	xs := make([]float64, sum.TotalTicks)
	xName := "tick"
	for i := range xs {
		xs[i] = float64(i)
		if tickSec > 0 {
			xs[i] = float64(i*tickSec) / 3600
		}
	}
	if tickSec > 0 {
		xName = "hours since opening"
	}

	graph := chart.Chart{
		Title:  fmt.Sprintf("Mean over %d runs", sum.Runs),
		Width:  960,
		Height: 480,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 20, Right: 20, Bottom: 20},
		},
		XAxis: chart.XAxis{
			Name:  xName,
			Style: chart.Style{FontSize: 10.0},
			ValueFormatter: func(v any) string {
				return fmt.Sprintf("%.1f", v.(float64))
			},
		},
		YAxis: chart.YAxis{
			Name:  "customers",
			Style: chart.Style{FontSize: 10.0},
		},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    "In store",
				XValues: xs,
				YValues: sum.InStore.Mean,
				Style:   chart.Style{StrokeColor: chart.ColorBlue, StrokeWidth: 2.0},
			},
			chart.ContinuousSeries{
				Name:    "Newly infected (cumulative)",
				XValues: xs,
				YValues: sum.NewlyInfected.Mean,
				Style:   chart.Style{StrokeColor: chart.ColorRed, StrokeWidth: 2.0},
			},
			chart.ContinuousSeries{
				Name:    "Infected visitors (cumulative)",
				XValues: xs,
				YValues: sum.InfectedVisited.Mean,
				Style:   chart.Style{StrokeColor: drawing.Color{R: 255, G: 165, B: 0, A: 255}, StrokeWidth: 2.0},
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	if err := graph.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}

// WriteChartFile renders the chart to path.
func WriteChartFile(path string, sum history.Summary, tickSec int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create chart: %w", err)
	}
	if err := RenderChart(f, sum, tickSec); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// LogSummary writes a one-line summary of the batch.
func LogSummary(logger *slog.Logger, sum history.Summary, tickSec int) {
	if logger == nil {
		logger = slog.Default()
	}
	peakTick, peak := sum.InStore.Peak()
	logger.Info("batch summary",
		"runs", sum.Runs,
		"visitors_per_day", humanize.Ftoa(round2(sum.Visited.Final())),
		"newly_infected_per_day", humanize.Ftoa(round2(sum.NewlyInfected.Final())),
		"infected_visitors_per_day", humanize.Ftoa(round2(sum.InfectedVisited.Final())),
		"peak_in_store", humanize.Ftoa(round2(peak)),
		"peak_at", peakLabel(peakTick, tickSec),
		"departures", humanize.Comma(int64(sum.Departures)),
		"mean_shopping_ticks", humanize.Ftoa(round2(sum.MeanShoppingTime)),
		"mean_exposure_ticks", humanize.Ftoa(round2(sum.MeanExposureTime)),
		"infected_fraction", humanize.FtoaWithDigits(sum.InfectedFraction, 4),
	)
}

func peakLabel(tick, tickSec int) string {
	if tickSec <= 0 {
		return fmt.Sprintf("tick %d", tick)
	}
	return engine.ClockTime(tick, tickSec) + " after opening"
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
