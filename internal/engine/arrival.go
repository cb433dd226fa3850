package engine

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/talgya/aislesim/internal/config"
)

// ArrivalCurve gives the per-tick probability that a customer walks in. It is
// a weighted mixture of gamma densities over hours since opening, so a day
// can have a lunchtime and an evening peak.
type ArrivalCurve struct {
	HoursOpen float64
	Scale     float64

	components []distuv.Gamma
	weights    []float64
}

// NewArrivalCurve builds the curve from the flow and customer settings.
func NewArrivalCurve(flow config.FlowConfig, cust config.CustomersConfig) *ArrivalCurve {
	a := &ArrivalCurve{HoursOpen: flow.HoursOpen, Scale: cust.ArrivalProbScale}
	for _, c := range cust.ArrivalGamma {
		// distuv uses the rate parameterization.
		a.components = append(a.components, distuv.Gamma{Alpha: c.Shape, Beta: 1 / c.Scale})
		a.weights = append(a.weights, c.Weight)
	}
	return a
}

// Probability returns the arrival probability at tick, clamped to [0, 1].
func (a *ArrivalCurve) Probability(tick, totalTicks int) float64 {
	if totalTicks <= 0 || a.Scale <= 0 {
		return 0
	}
	h := a.HoursOpen * float64(tick) / float64(totalTicks)
	density := 0.0
	for i, g := range a.components {
		density += a.weights[i] * g.Prob(h)
	}
	p := a.Scale * density
	switch {
	case math.IsNaN(p) || p < 0:
		return 0
	case p > 1:
		return 1
	}
	return p
}

// Expected returns the expected number of arrivals over a whole day, ignoring
// pool exhaustion.
func (a *ArrivalCurve) Expected(totalTicks int) float64 {
	total := 0.0
	for t := 0; t < totalTicks; t++ {
		total += a.Probability(t, totalTicks)
	}
	return total
}
