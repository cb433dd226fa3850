// Package agents provides the customer model: route position, dwell timer,
// infection state, and the exposure and shopping-time counters flushed to the
// history when a customer leaves.
package agents

import (
	"errors"
	"math"

	"github.com/talgya/aislesim/internal/store"
)

// CustomerID is a dense identifier starting at 1.
type CustomerID uint64

// State tracks where a customer is in its visit.
type State uint8

const (
	StateWaiting State = iota // Not yet admitted this run
	StateInStore              // Walking the route
	StateLeft                 // Finished; never re-admitted within a run
)

func (s State) String() string {
	switch s {
	case StateWaiting:
		return "waiting"
	case StateInStore:
		return "in_store"
	case StateLeft:
		return "left"
	}
	return "unknown"
}

// ErrNotInfectious is returned when a transmissibility is requested for a
// non-positive infection duration.
var ErrNotInfectious = errors.New("infection duration must be positive")

// InfectionModel is the per-contact transmission model.
type InfectionModel struct {
	R0              float64
	AverageContacts float64
}

// Transmissibility returns the probability that one tick of contact with an
// infectious customer transmits, R0 / (average_contacts * duration), capped
// at 1.
func (m InfectionModel) Transmissibility(duration int) (float64, error) {
	if duration <= 0 {
		return 0, ErrNotInfectious
	}
	if m.AverageContacts <= 0 {
		return 0, errors.New("average contacts must be positive")
	}
	return math.Min(m.R0/(m.AverageContacts*float64(duration)), 1), nil
}

// ExposureSink receives one call per tick of co-location between an
// infectious and a susceptible customer.
type ExposureSink interface {
	AddExposure(node store.Node)
}
