// Package route plans a customer's walk through the store: the order in which
// shelves are visited, every node traversed on the way, and how long the
// customer dwells at each position.
package route

import (
	"errors"
	"fmt"
	"math/rand"
	"slices"

	"github.com/talgya/aislesim/internal/config"
	"github.com/talgya/aislesim/internal/store"
)

// ErrEmptyVisitSet is returned when a customer has nothing to visit. Callers
// must regenerate the customer rather than plan an empty route.
var ErrEmptyVisitSet = errors.New("empty visit set")

// Route is an immutable planned trip. WalkedPath and WaitTimes are aligned
// one-to-one; the walk starts at the entrance, passes the till exactly once,
// and ends at the exit.
type Route struct {
	VisitOrder []store.Node `json:"visit_order"`
	WalkedPath []store.Node `json:"walked_path"`
	WaitTimes  []int        `json:"wait_times"`
}

// Len returns the number of positions in the walk.
func (r *Route) Len() int {
	return len(r.WalkedPath)
}

// Hops returns the number of moves needed to walk the route.
func (r *Route) Hops() int {
	return len(r.WalkedPath) - 1
}

// TotalWait returns the sum of all dwell times.
func (r *Route) TotalWait() int {
	total := 0
	for _, w := range r.WaitTimes {
		total += w
	}
	return total
}

// Planner builds routes over a shared store graph.
type Planner struct {
	Graph         *store.Graph
	WaitRange     config.IntRange
	TillWaitRange config.IntRange
	Policy        config.RoutePolicy

	// ExactMaxVisits bounds the permutation search. Larger visit sets fall
	// back to nearest neighbour.
	ExactMaxVisits int
}

// NewPlanner creates a planner from the customers section of the config.
func NewPlanner(g *store.Graph, cfg config.CustomersConfig) *Planner {
	return &Planner{
		Graph:          g,
		WaitRange:      cfg.ItemWaitRange,
		TillWaitRange:  cfg.TillWaitRange,
		Policy:         cfg.RoutePolicy,
		ExactMaxVisits: cfg.ExactMaxVisits,
	}
}

// Plan orders the visits and expands them into a full walk. Dwell times are
// drawn from rng: one per visit in visiting order, then one for the till.
func (p *Planner) Plan(visits []store.Location, rng *rand.Rand) (*Route, error) {
	if len(visits) == 0 {
		return nil, ErrEmptyVisitSet
	}

	targets := make([]store.Node, len(visits))
	for i, loc := range visits {
		n, err := p.Graph.LocationToNode(loc)
		if err != nil {
			return nil, fmt.Errorf("plan visit %v: %w", loc, err)
		}
		targets[i] = n
	}

	var order []store.Node
	if p.Policy == config.RouteExact && len(targets) <= p.ExactMaxVisits {
		order = p.exactOrder(targets)
	} else {
		order = p.nearestOrder(targets)
	}

	g := p.Graph
	r := &Route{
		VisitOrder: []store.Node{g.Start},
		WalkedPath: []store.Node{g.Start},
		WaitTimes:  []int{0},
	}
	cur := g.Start
	for _, t := range order {
		r.VisitOrder = append(r.VisitOrder, t)
		r.walkTo(g.ShortestPath(cur, t), sample(rng, p.WaitRange))
		cur = t
	}
	r.VisitOrder = append(r.VisitOrder, g.Till, g.End)
	r.walkTo(g.ShortestPath(cur, g.Till), sample(rng, p.TillWaitRange))
	r.walkTo(g.ShortestPath(g.Till, g.End), 0)
	return r, nil
}

// walkTo appends path minus its first node, which is already the current
// position. The last node gets the dwell time. A zero-length leg means a
// repeat visit to the same spot, so the dwell time accumulates instead.
func (r *Route) walkTo(path []store.Node, dwell int) {
	leg := path[1:]
	if len(leg) == 0 {
		r.WaitTimes[len(r.WaitTimes)-1] += dwell
		return
	}
	for range leg {
		r.WaitTimes = append(r.WaitTimes, 0)
	}
	r.WalkedPath = append(r.WalkedPath, leg...)
	r.WaitTimes[len(r.WaitTimes)-1] = dwell
}

// nearestOrder repeatedly moves to the closest remaining target. Ties go to
// the target listed first.
func (p *Planner) nearestOrder(targets []store.Node) []store.Node {
	remaining := slices.Clone(targets)
	order := make([]store.Node, 0, len(targets))
	cur := p.Graph.Start

	for len(remaining) > 0 {
		best := 0
		bestDist := p.Graph.Distance(cur, remaining[0])
		for i := 1; i < len(remaining); i++ {
			if d := p.Graph.Distance(cur, remaining[i]); d < bestDist {
				best, bestDist = i, d
			}
		}
		cur = remaining[best]
		order = append(order, cur)
		remaining = slices.Delete(remaining, best, best+1)
	}
	return order
}

// exactOrder tries every permutation and keeps the first one with the fewest
// hops from the entrance through all targets to the till.
func (p *Planner) exactOrder(targets []store.Node) []store.Node {
	g := p.Graph
	best := slices.Clone(targets)
	bestCost := -1

	perm := make([]store.Node, 0, len(targets))
	used := make([]bool, len(targets))

	var search func(cur store.Node, cost int)
	search = func(cur store.Node, cost int) {
		if bestCost >= 0 && cost >= bestCost {
			return
		}
		if len(perm) == len(targets) {
			total := cost + g.Distance(cur, g.Till)
			if bestCost < 0 || total < bestCost {
				bestCost = total
				copy(best, perm)
			}
			return
		}
		for i, t := range targets {
			if used[i] {
				continue
			}
			used[i] = true
			perm = append(perm, t)
			search(t, cost+g.Distance(cur, t))
			perm = perm[:len(perm)-1]
			used[i] = false
		}
	}
	search(g.Start, 0)
	return best
}

// sample draws uniformly from the inclusive range.
func sample(rng *rand.Rand, r config.IntRange) int {
	if r.Max() <= r.Min() {
		return r.Min()
	}
	return r.Min() + rng.Intn(r.Max()-r.Min()+1)
}
