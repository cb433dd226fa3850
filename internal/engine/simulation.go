// Simulation drives one simulated day: arrivals, movement, transmission,
// departures.
package engine

import (
	"errors"
	"fmt"
	"math/rand"
	"slices"

	"github.com/talgya/aislesim/internal/agents"
	"github.com/talgya/aislesim/internal/config"
	"github.com/talgya/aislesim/internal/history"
	"github.com/talgya/aislesim/internal/store"
)

// ErrDayOver is returned by Step once every tick has run.
var ErrDayOver = errors.New("simulation day is over")

// Recorder receives the facts of one run. *history.Run implements it.
type Recorder interface {
	RecordTick(inStore, visited, newlyInfected, infectedVisited int) error
	RecordDeparture(d history.Departure)
	AddExposure(node store.Node)
}

// Hooks are optional observers of a run. They are called synchronously from
// Step and must not mutate the customers they are given.
type Hooks struct {
	OnAdmit    func(tick int, c *agents.Customer)
	OnTransmit func(tick int, src, dst *agents.Customer)
	OnDepart   func(tick int, c *agents.Customer)
}

// Simulation holds the state of one run. It is single-threaded; parallel
// runs each get their own Simulation and customer pool.
type Simulation struct {
	Graph      *store.Graph
	Pool       []*agents.Customer
	Arrival    *ArrivalCurve
	Model      agents.InfectionModel
	Infection  config.InfectionConfig
	TotalTicks int

	Hooks

	rng *rand.Rand
	rec Recorder

	tick     int
	next     int // Pool index of the next customer to admit
	inStore  []*agents.Customer
	admitted int

	newlyInfected    int
	infectedAdmitted int
}

// NewSimulation validates the run parameters. The pool is owned by the
// simulation from here on.
func NewSimulation(g *store.Graph, pool []*agents.Customer, cfg config.Config) (*Simulation, error) {
	if len(pool) == 0 {
		return nil, errors.New("new simulation: empty customer pool")
	}
	if cfg.Flow.TickDurationSec <= 0 {
		return nil, &config.ConfigError{Field: "flow.tick_duration_sec", Reason: "must be positive"}
	}
	total := cfg.TotalTicks()
	if total < 1 {
		return nil, &config.ConfigError{Field: "flow", Reason: "day has no ticks"}
	}
	return &Simulation{
		Graph:      g,
		Pool:       pool,
		Arrival:    NewArrivalCurve(cfg.Flow, cfg.Customers),
		Model:      agents.InfectionModel{R0: cfg.Infection.R0, AverageContacts: cfg.Infection.AverageContacts},
		Infection:  cfg.Infection,
		TotalTicks: total,
	}, nil
}

// Reset prepares a new day. The pool is put in id order and shuffled with
// rng, so the admission order depends only on the seed. Every customer then
// draws its initial infection state.
func (s *Simulation) Reset(rng *rand.Rand, rec Recorder) {
	s.rng = rng
	s.rec = rec
	s.tick = 0
	s.next = 0
	s.inStore = s.inStore[:0]
	s.admitted = 0
	s.newlyInfected = 0
	s.infectedAdmitted = 0

	slices.SortFunc(s.Pool, func(a, b *agents.Customer) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	rng.Shuffle(len(s.Pool), func(i, j int) {
		s.Pool[i], s.Pool[j] = s.Pool[j], s.Pool[i]
	})
	for _, c := range s.Pool {
		c.Reset(rng, s.Infection)
	}
}

// Tick returns the number of completed ticks.
func (s *Simulation) Tick() int {
	return s.tick
}

// Done returns true once every tick has run.
func (s *Simulation) Done() bool {
	return s.tick >= s.TotalTicks
}

// InStore returns the customers currently inside.
func (s *Simulation) InStore() []*agents.Customer {
	return slices.Clone(s.inStore)
}

// AdmitNext draws against the arrival curve and, on success, admits the next
// customer in pool order. It returns nil when nobody arrives or the pool is
// exhausted.
func (s *Simulation) AdmitNext() *agents.Customer {
	if s.next >= len(s.Pool) {
		return nil
	}
	if s.rng.Float64() >= s.Arrival.Probability(s.tick, s.TotalTicks) {
		return nil
	}
	c := s.Pool[s.next]
	s.next++
	s.admit(c)
	return c
}

func (s *Simulation) admit(c *agents.Customer) {
	c.Admit()
	s.inStore = append(s.inStore, c)
	s.admitted++
	if c.IsInfected() {
		s.infectedAdmitted++
	}
	if s.OnAdmit != nil {
		s.OnAdmit(s.tick, c)
	}
}

// Step runs one tick in fixed order: admission, movement, transmission,
// retirement, then the tick's counts are recorded.
func (s *Simulation) Step() error {
	if s.Done() {
		return ErrDayOver
	}
	if s.rec == nil {
		return errors.New("step: simulation not reset")
	}

	s.AdmitNext()

	for _, c := range s.inStore {
		c.Advance()
		if c.InStore() {
			c.ShoppingTime++
		}
	}

	// Ordered pairs by index. A customer infected earlier in this loop has
	// duration 0 and cannot pass it on before leaving.
	for i, src := range s.inStore {
		if !src.IsInfectious() {
			continue
		}
		for j, dst := range s.inStore {
			if i == j {
				continue
			}
			if src.TryTransmit(dst, s.Model, s.rng, s.rec) {
				s.newlyInfected++
				if s.OnTransmit != nil {
					s.OnTransmit(s.tick, src, dst)
				}
			}
		}
	}

	remaining := s.inStore[:0]
	for _, c := range s.inStore {
		if c.HasLeft() {
			s.depart(c)
			continue
		}
		remaining = append(remaining, c)
	}
	clear(s.inStore[len(remaining):])
	s.inStore = remaining

	if err := s.rec.RecordTick(len(s.inStore), s.admitted, s.newlyInfected, s.infectedAdmitted); err != nil {
		return fmt.Errorf("tick %d: %w", s.tick, err)
	}
	s.tick++
	return nil
}

func (s *Simulation) depart(c *agents.Customer) {
	s.rec.RecordDeparture(history.Departure{
		ExposureTime: c.ExposureTime,
		ShoppingTime: c.ShoppingTime,
		Infected:     c.IsInfected(),
	})
	if s.OnDepart != nil {
		s.OnDepart(s.tick, c)
	}
}

// Close flushes customers still inside at closing time as departures.
func (s *Simulation) Close() {
	for _, c := range s.inStore {
		s.depart(c)
	}
	clear(s.inStore)
	s.inStore = s.inStore[:0]
}

// RunDay resets the simulation, steps through every tick, and closes the
// store.
func (s *Simulation) RunDay(rng *rand.Rand, rec Recorder) error {
	s.Reset(rng, rec)
	for !s.Done() {
		if err := s.Step(); err != nil {
			return err
		}
	}
	s.Close()
	return nil
}

// Stats is a snapshot of the run counters.
type Stats struct {
	Tick             int `json:"tick"`
	InStore          int `json:"in_store"`
	Admitted         int `json:"admitted"`
	NewlyInfected    int `json:"newly_infected"`
	InfectedAdmitted int `json:"infected_admitted"`
}

// Stats returns the current counters.
func (s *Simulation) Stats() Stats {
	return Stats{
		Tick:             s.tick,
		InStore:          len(s.inStore),
		Admitted:         s.admitted,
		NewlyInfected:    s.newlyInfected,
		InfectedAdmitted: s.infectedAdmitted,
	}
}
