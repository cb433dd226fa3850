// Synthetic baskets for runs without a dataset.
package dataset

import (
	"log/slog"
	"math/rand"
	"strconv"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/aislesim/internal/config"
	"github.com/talgya/aislesim/internal/entropy"
)

// Popularity bounds for generated section visit probabilities.
const (
	minVisitProb = 0.15
	maxVisitProb = 0.65
)

// maxRedraws bounds the retries for a basket that came out empty.
const maxRedraws = 1000

// Generator draws baskets section by section: a customer visits each section
// with that section's probability and picks one item stocked there.
type Generator struct {
	store     config.StoreConfig
	visitProb []float64
	rng       *rand.Rand
}

// NewGenerator uses the configured section visit probabilities, or a noise
// field over the section grid when none are configured.
func NewGenerator(seed int64, sc config.StoreConfig, cust config.CustomersConfig) *Generator {
	probs := cust.SectionVisitProb
	if len(probs) == 0 {
		probs = SectionPopularity(seed, sc)
	}
	return &Generator{
		store:     sc,
		visitProb: probs,
		rng:       entropy.New(seed, entropy.OffsetDataset),
	}
}

// VisitProb returns the per-section visit probabilities in use.
func (g *Generator) VisitProb() []float64 {
	out := make([]float64, len(g.visitProb))
	copy(out, g.visitProb)
	return out
}

// SectionPopularity samples smooth noise at each section's grid position so
// neighbouring sections get similar popularity, mapped into [0.15, 0.65].
func SectionPopularity(seed int64, sc config.StoreConfig) []float64 {
	noise := opensimplex.NewNormalized(seed)
	probs := make([]float64, sc.NSections)
	for s := range probs {
		x := float64(s / sc.NAislesH)
		y := float64(s % sc.NAislesH)
		v := octaveNoise(noise, x, y, 3, 0.35, 0.5)
		probs[s] = minVisitProb + (maxVisitProb-minVisitProb)*v
	}
	return probs
}

// octaveNoise layers frequencies of normalized noise; the result stays in [0, 1].
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}

// Basket draws one non-empty basket, ascending by item id.
func (g *Generator) Basket() []int {
	for attempt := 0; attempt < maxRedraws; attempt++ {
		items := g.draw()
		if len(items) > 0 {
			return items
		}
		slog.Debug("regenerating empty basket", "attempt", attempt)
	}
	// Every section is effectively unvisited; fall back to one random item.
	return []int{1 + g.rng.Intn(g.store.NItems)}
}

func (g *Generator) draw() []int {
	sc := g.store
	var items []int
	for s, p := range g.visitProb {
		if g.rng.Float64() >= p {
			continue
		}
		group := s*sc.NShelves + g.rng.Intn(sc.NShelves)
		item := group*sc.ItemsPerSection + 1 + g.rng.Intn(sc.ItemsPerSection)
		if item <= sc.NItems {
			items = append(items, item)
		}
	}
	return items
}

// Baskets draws n baskets with customer ids "1".."n".
func (g *Generator) Baskets(n int) []Basket {
	out := make([]Basket, n)
	for i := range out {
		out[i] = Basket{CustomerID: strconv.Itoa(i + 1), Items: g.Basket()}
	}
	return out
}
