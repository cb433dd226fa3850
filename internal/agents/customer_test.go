package agents

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/aislesim/internal/config"
	"github.com/talgya/aislesim/internal/route"
	"github.com/talgya/aislesim/internal/store"
)

type sinkRecorder struct {
	nodes []store.Node
}

func (s *sinkRecorder) AddExposure(n store.Node) {
	s.nodes = append(s.nodes, n)
}

var covidModel = InfectionModel{R0: 2.5, AverageContacts: 3}

// singleShelfRoute plans a route in a one-section, one-shelf store.
func singleShelfRoute(t *testing.T, wait config.IntRange) *route.Route {
	t.Helper()
	g, err := store.Build(config.StoreConfig{NAislesW: 1, NAislesH: 1, NShelves: 1})
	require.NoError(t, err)
	p := &route.Planner{Graph: g, WaitRange: wait, TillWaitRange: config.IntRange{0, 0}}
	r, err := p.Plan([]store.Location{{}}, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	return r
}

func TestTransmissibility(t *testing.T) {
	p, err := covidModel.Transmissibility(1)
	require.NoError(t, err)
	assert.InDelta(t, 2.5/3, p, 1e-12)

	p, err = covidModel.Transmissibility(5)
	require.NoError(t, err)
	assert.InDelta(t, 2.5/15, p, 1e-12)

	_, err = covidModel.Transmissibility(0)
	assert.ErrorIs(t, err, ErrNotInfectious)

	p, err = InfectionModel{R0: 9, AverageContacts: 1}.Transmissibility(1)
	require.NoError(t, err)
	assert.Equal(t, 1.0, p)
}

func TestTransmissionRateMatchesModel(t *testing.T) {
	r := singleShelfRoute(t, config.IntRange{0, 0})
	rng := rand.New(rand.NewSource(2024))

	const trials = 10000
	hits := 0
	for i := 0; i < trials; i++ {
		src := NewCustomer(1, nil, r)
		dst := NewCustomer(2, nil, r)
		src.Admit()
		dst.Admit()
		src.Advance()
		dst.Advance()
		src.Advance()
		dst.Advance()
		src.SetInfected(1)

		if src.TryTransmit(dst, covidModel, rng, nil) {
			hits++
			assert.True(t, dst.IsInfected())
			assert.False(t, dst.IsInfectious())
		}
		assert.Equal(t, 1, src.ExposureTime)
		assert.Equal(t, 1, dst.ExposureTime)
	}

	rate := float64(hits) / trials
	assert.GreaterOrEqual(t, rate, 0.80)
	assert.LessOrEqual(t, rate, 0.87)
}

func TestTryTransmitPreconditions(t *testing.T) {
	r := singleShelfRoute(t, config.IntRange{0, 0})
	rng := rand.New(rand.NewSource(1))

	fresh := func() (*Customer, *Customer) {
		a, b := NewCustomer(1, nil, r), NewCustomer(2, nil, r)
		a.Admit()
		b.Admit()
		a.SetInfected(1)
		return a, b
	}

	t.Run("not admitted", func(t *testing.T) {
		a := NewCustomer(1, nil, r)
		a.SetInfected(1)
		b := NewCustomer(2, nil, r)
		b.Admit()
		assert.False(t, a.TryTransmit(b, covidModel, rng, nil))
		assert.Zero(t, b.ExposureTime)
	})

	t.Run("different nodes", func(t *testing.T) {
		a, b := fresh()
		a.Advance()
		sink := &sinkRecorder{}
		assert.False(t, a.TryTransmit(b, covidModel, rng, sink))
		assert.Empty(t, sink.nodes)
	})

	t.Run("source not infectious", func(t *testing.T) {
		a, b := fresh()
		a.SetInfected(0)
		assert.False(t, a.TryTransmit(b, covidModel, rng, nil))
		assert.Zero(t, a.ExposureTime)
	})

	t.Run("susceptible source", func(t *testing.T) {
		a, b := NewCustomer(1, nil, r), NewCustomer(2, nil, r)
		a.Admit()
		b.Admit()
		for i := 0; i < 100; i++ {
			assert.False(t, a.TryTransmit(b, covidModel, rng, nil))
		}
	})

	t.Run("target already infected", func(t *testing.T) {
		a, b := fresh()
		b.SetInfected(0)
		assert.False(t, a.TryTransmit(b, covidModel, rng, nil))
		assert.Zero(t, b.ExposureTime)
	})

	t.Run("self", func(t *testing.T) {
		a, _ := fresh()
		assert.False(t, a.TryTransmit(a, covidModel, rng, nil))
	})

	t.Run("exposure reported at shared node", func(t *testing.T) {
		a, b := fresh()
		sink := &sinkRecorder{}
		a.TryTransmit(b, covidModel, rng, sink)
		assert.Equal(t, []store.Node{r.WalkedPath[0]}, sink.nodes)
	})
}

func TestTryTransmitIdempotentFalseAfterLeaving(t *testing.T) {
	r := singleShelfRoute(t, config.IntRange{0, 0})
	rng := rand.New(rand.NewSource(1))

	a, b := NewCustomer(1, nil, r), NewCustomer(2, nil, r)
	a.Admit()
	b.Admit()
	a.SetInfected(3)
	for !b.HasLeft() {
		b.Advance()
	}

	before := *b
	for i := 0; i < 10; i++ {
		assert.False(t, a.TryTransmit(b, covidModel, rng, nil))
		assert.False(t, b.TryTransmit(a, covidModel, rng, nil))
	}
	assert.Equal(t, before, *b)
	assert.Zero(t, a.ExposureTime)
}

func TestAdvanceWalksRouteThenLeaves(t *testing.T) {
	r := singleShelfRoute(t, config.IntRange{0, 0})
	c := NewCustomer(1, nil, r)

	c.Advance()
	assert.Equal(t, StateWaiting, c.State, "advance before admission is a no-op")

	c.Admit()
	var seen []store.Node
	ticks := 0
	for c.InStore() {
		n, ok := c.Position()
		require.True(t, ok)
		seen = append(seen, n)
		c.Advance()
		ticks++
	}
	assert.Equal(t, r.WalkedPath, seen)
	assert.Equal(t, r.Hops()+1, ticks)

	_, ok := c.Position()
	assert.False(t, ok)
	c.Admit()
	assert.True(t, c.HasLeft(), "a customer is never re-admitted")
}

func TestAdvanceHonoursDwell(t *testing.T) {
	r := singleShelfRoute(t, config.IntRange{3, 3})
	c := NewCustomer(1, nil, r)
	c.Admit()

	ticks := 0
	for c.InStore() {
		c.Advance()
		ticks++
	}
	assert.Equal(t, r.Hops()+r.TotalWait()+1, ticks)
}

func TestResetDrawsInfection(t *testing.T) {
	r := singleShelfRoute(t, config.IntRange{0, 0})
	rng := rand.New(rand.NewSource(9))
	c := NewCustomer(1, []int{1}, r)

	cfg := config.InfectionConfig{InitProb: 1, DurationRange: config.IntRange{2, 4}}
	for i := 0; i < 50; i++ {
		c.ExposureTime = 7
		c.Reset(rng, cfg)
		assert.True(t, c.IsInfected())
		assert.True(t, c.InfectedOnArrival)
		assert.GreaterOrEqual(t, c.InfectionDuration, 2)
		assert.LessOrEqual(t, c.InfectionDuration, 4)
		assert.Zero(t, c.ExposureTime)
		assert.Equal(t, StateWaiting, c.State)
	}

	cfg.InitProb = 0
	c.Reset(rng, cfg)
	assert.False(t, c.IsInfected())
	assert.Zero(t, c.InfectionDuration)
}

func TestIsInfectedIsPure(t *testing.T) {
	r := singleShelfRoute(t, config.IntRange{0, 0})
	c := NewCustomer(1, nil, r)
	for i := 0; i < 1000; i++ {
		require.False(t, c.IsInfected())
	}
	c.SetInfected(2)
	for i := 0; i < 1000; i++ {
		require.True(t, c.IsInfected())
	}
}

func TestCloneSharesRoute(t *testing.T) {
	r := singleShelfRoute(t, config.IntRange{0, 0})
	c := NewCustomer(1, []int{1}, r)
	cp := c.Clone()
	cp.Admit()
	cp.SetInfected(1)

	assert.Same(t, c.Route, cp.Route)
	assert.Equal(t, StateWaiting, c.State)
	assert.False(t, c.Infected)
}
