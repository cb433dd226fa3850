package agents

import (
	"fmt"
	"math/rand"

	"github.com/talgya/aislesim/internal/config"
	"github.com/talgya/aislesim/internal/route"
	"github.com/talgya/aislesim/internal/store"
)

// Customer is one shopper. The Route is planned once and shared between
// clones; everything else is run state.
type Customer struct {
	ID    CustomerID   `json:"id"`
	Items []int        `json:"items"`
	Route *route.Route `json:"-"`

	State         State      `json:"state"`
	PositionIndex int        `json:"position_index"`
	Node          store.Node `json:"node"`
	WaitTimer     int        `json:"wait_timer"`

	Infected          bool `json:"infected"`
	InfectionDuration int  `json:"infection_duration"` // 0 means not infectious
	InfectedOnArrival bool `json:"infected_on_arrival"`

	ExposureTime int `json:"exposure_time"`
	ShoppingTime int `json:"shopping_time"`
}

// NewCustomer creates a customer that has not yet entered the store.
func NewCustomer(id CustomerID, items []int, r *route.Route) *Customer {
	return &Customer{ID: id, Items: items, Route: r}
}

// Reset clears run state and draws the initial infection status: infected
// with probability InitProb, and if so infectious for a duration drawn
// uniformly from DurationRange.
func (c *Customer) Reset(rng *rand.Rand, cfg config.InfectionConfig) {
	c.State = StateWaiting
	c.PositionIndex = 0
	c.Node = 0
	c.WaitTimer = 0
	c.ExposureTime = 0
	c.ShoppingTime = 0

	c.Infected = rng.Float64() < cfg.InitProb
	c.InfectionDuration = 0
	if c.Infected {
		lo, hi := cfg.DurationRange.Min(), cfg.DurationRange.Max()
		c.InfectionDuration = lo + rng.Intn(hi-lo+1)
	}
	c.InfectedOnArrival = c.Infected
}

// Admit places the customer at the start of its route. It is a no-op for a
// customer that is already inside or has left.
func (c *Customer) Admit() {
	if c.State != StateWaiting {
		return
	}
	c.State = StateInStore
	c.PositionIndex = 0
	c.Node = c.Route.WalkedPath[0]
	c.WaitTimer = c.Route.WaitTimes[0]
}

// Advance moves the customer one tick along its route: count down the dwell
// timer, else step to the next node, else leave.
func (c *Customer) Advance() {
	if c.State != StateInStore {
		return
	}
	if c.WaitTimer > 0 {
		c.WaitTimer--
		return
	}
	if c.PositionIndex >= len(c.Route.WalkedPath)-1 {
		c.State = StateLeft
		return
	}
	c.PositionIndex++
	c.Node = c.Route.WalkedPath[c.PositionIndex]
	c.WaitTimer = c.Route.WaitTimes[c.PositionIndex]
}

// Position returns the current node, or false if the customer is not inside.
func (c *Customer) Position() (store.Node, bool) {
	if c.State != StateInStore {
		return 0, false
	}
	return c.Node, true
}

// InStore returns true while the customer is walking its route.
func (c *Customer) InStore() bool {
	return c.State == StateInStore
}

// HasLeft returns true once the customer finished its route.
func (c *Customer) HasLeft() bool {
	return c.State == StateLeft
}

// IsInfected reports the infection status. It never changes state.
func (c *Customer) IsInfected() bool {
	return c.Infected
}

// IsInfectious returns true if the customer can pass the infection on.
func (c *Customer) IsInfectious() bool {
	return c.Infected && c.InfectionDuration > 0
}

// SetInfected marks the customer infected for the given duration. Customers
// infected during a run get duration 0 and cannot transmit before leaving.
func (c *Customer) SetInfected(duration int) {
	c.Infected = true
	c.InfectionDuration = duration
}

// TryTransmit evaluates one tick of contact from c to other. Both customers
// must be inside at the same node, c must be infectious and other
// susceptible. Each such contact counts one tick of exposure for both and is
// reported to sink before the transmission draw.
func (c *Customer) TryTransmit(other *Customer, model InfectionModel, rng *rand.Rand, sink ExposureSink) bool {
	if c == other || !c.InStore() || !other.InStore() {
		return false
	}
	if c.Node != other.Node || !c.IsInfectious() || other.Infected {
		return false
	}

	p, err := model.Transmissibility(c.InfectionDuration)
	if err != nil {
		return false
	}

	c.ExposureTime++
	other.ExposureTime++
	if sink != nil {
		sink.AddExposure(c.Node)
	}

	if rng.Float64() < p {
		other.SetInfected(0)
		return true
	}
	return false
}

// Clone returns a copy with independent run state sharing the same Route.
func (c *Customer) Clone() *Customer {
	cp := *c
	return &cp
}

func (c *Customer) String() string {
	return fmt.Sprintf("Customer(%d, %s, node=%d, infected=%t)", c.ID, c.State, c.Node, c.Infected)
}
