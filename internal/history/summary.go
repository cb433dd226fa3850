package history

import (
	"github.com/samber/lo"
	"gonum.org/v1/gonum/stat"
)

// Series is a per-index mean and sample standard deviation across runs.
type Series struct {
	Mean []float64 `json:"mean"`
	Std  []float64 `json:"std"`
}

// Summary aggregates all completed runs.
type Summary struct {
	Runs       int `json:"runs"`
	TotalTicks int `json:"total_ticks"`
	NumNodes   int `json:"n_nodes"`

	InStore         Series `json:"in_store"`
	Visited         Series `json:"visited"`
	NewlyInfected   Series `json:"newly_infected"`
	InfectedVisited Series `json:"infected_visited"`
	NodeExposure    Series `json:"node_exposure"`

	Departures       int     `json:"departures"`
	MeanExposureTime float64 `json:"mean_exposure_time"`
	MeanShoppingTime float64 `json:"mean_shopping_time"`
	InfectedFraction float64 `json:"infected_fraction"`
}

// Summaries computes statistics over completed runs only. With a single run
// every standard deviation is 0.
func (h *History) Summaries() (Summary, error) {
	runs := h.Runs()
	if len(runs) == 0 {
		return Summary{}, ErrNoRun
	}

	s := Summary{
		Runs:            len(runs),
		TotalTicks:      h.totalTicks,
		NumNodes:        h.nNodes,
		InStore:         columnStats(runs, h.totalTicks, func(r *Run) []int { return r.InStore }),
		Visited:         columnStats(runs, h.totalTicks, func(r *Run) []int { return r.Visited }),
		NewlyInfected:   columnStats(runs, h.totalTicks, func(r *Run) []int { return r.NewlyInfected }),
		InfectedVisited: columnStats(runs, h.totalTicks, func(r *Run) []int { return r.InfectedVisited }),
		NodeExposure:    columnStats(runs, h.nNodes, func(r *Run) []int { return r.NodeExposure }),
	}

	departures := lo.FlatMap(runs, func(r *Run, _ int) []Departure { return r.Departures })
	s.Departures = len(departures)
	if s.Departures > 0 {
		n := float64(s.Departures)
		s.MeanExposureTime = float64(lo.SumBy(departures, func(d Departure) int { return d.ExposureTime })) / n
		s.MeanShoppingTime = float64(lo.SumBy(departures, func(d Departure) int { return d.ShoppingTime })) / n
		s.InfectedFraction = float64(lo.CountBy(departures, func(d Departure) bool { return d.Infected })) / n
	}
	return s, nil
}

// columnStats computes the mean and deviation of each index across runs.
func columnStats(runs []*Run, width int, pick func(*Run) []int) Series {
	s := Series{Mean: make([]float64, width), Std: make([]float64, width)}
	col := make([]float64, len(runs))
	for i := 0; i < width; i++ {
		for j, r := range runs {
			col[j] = float64(pick(r)[i])
		}
		if len(col) == 1 {
			s.Mean[i] = col[0]
			continue
		}
		s.Mean[i], s.Std[i] = stat.MeanStdDev(col, nil)
	}
	return s
}

// Final returns the last value of a series, or 0 for an empty one.
func (s Series) Final() float64 {
	if len(s.Mean) == 0 {
		return 0
	}
	return s.Mean[len(s.Mean)-1]
}

// Peak returns the index and value of the largest mean.
func (s Series) Peak() (int, float64) {
	if len(s.Mean) == 0 {
		return 0, 0
	}
	idx := 0
	for i, v := range s.Mean {
		if v > s.Mean[idx] {
			idx = i
		}
	}
	return idx, s.Mean[idx]
}
