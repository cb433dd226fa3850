// Customer spawning: turns baskets into customers with planned routes.
package agents

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/talgya/aislesim/internal/config"
	"github.com/talgya/aislesim/internal/entropy"
	"github.com/talgya/aislesim/internal/route"
)

// Spawner creates customers for the simulation. Route dwell times are drawn
// from the spawner's own source, so a pool is fixed for a given seed.
type Spawner struct {
	rng     *rand.Rand
	store   config.StoreConfig
	planner *route.Planner
	nextID  CustomerID
}

// NewSpawner creates a customer spawner with the given seed.
func NewSpawner(seed int64, sc config.StoreConfig, planner *route.Planner) *Spawner {
	return &Spawner{
		rng:     entropy.New(seed, entropy.OffsetRoutes),
		store:   sc,
		planner: planner,
		nextID:  1,
	}
}

// SpawnOne plans a route for one basket. An empty basket fails with
// route.ErrEmptyVisitSet.
func (s *Spawner) SpawnOne(items []int) (*Customer, error) {
	visits, err := ItemsToVisits(items, s.store)
	if err != nil {
		return nil, fmt.Errorf("map items: %w", err)
	}
	r, err := s.planner.Plan(visits, s.rng)
	if err != nil {
		return nil, fmt.Errorf("plan route: %w", err)
	}

	id := s.nextID
	s.nextID++
	return NewCustomer(id, items, r), nil
}

// SpawnPool creates one customer per basket. Empty baskets are skipped with a
// warning; any other failure aborts.
func (s *Spawner) SpawnPool(baskets [][]int) ([]*Customer, error) {
	pool := make([]*Customer, 0, len(baskets))
	skipped := 0
	for i, items := range baskets {
		c, err := s.SpawnOne(items)
		if errors.Is(err, route.ErrEmptyVisitSet) {
			skipped++
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("basket %d: %w", i, err)
		}
		pool = append(pool, c)
	}
	if skipped > 0 {
		slog.Warn("skipped empty baskets", "count", skipped)
	}
	if len(pool) == 0 {
		return nil, errors.New("no customers: every basket was empty")
	}
	return pool, nil
}

// ClonePool copies a pool for an independent run.
func ClonePool(pool []*Customer) []*Customer {
	out := make([]*Customer, len(pool))
	for i, c := range pool {
		out[i] = c.Clone()
	}
	return out
}
