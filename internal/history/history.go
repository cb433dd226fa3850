// Package history collects per-tick and per-customer facts across repeated
// simulation runs and summarizes them.
package history

import (
	"errors"
	"fmt"
	"sync"

	"github.com/talgya/aislesim/internal/store"
)

var (
	ErrNoRun         = errors.New("no run in progress")
	ErrIncompleteRun = errors.New("run did not record every tick")
	ErrShapeMismatch = errors.New("run shape does not match history")
)

// Departure is the terminal record of one customer.
type Departure struct {
	ExposureTime int  `json:"exposure_time"`
	ShoppingTime int  `json:"shopping_time"`
	Infected     bool `json:"infected"`
}

// Run holds one simulated day. Tick series are cumulative except InStore.
type Run struct {
	InStore         []int `json:"in_store"`
	Visited         []int `json:"visited"`
	NewlyInfected   []int `json:"newly_infected"`
	InfectedVisited []int `json:"infected_visited"`

	NodeExposure []int       `json:"node_exposure"`
	Departures   []Departure `json:"departures"`

	ticks int
}

// NewRun creates an empty run sized for totalTicks and nNodes.
func NewRun(totalTicks, nNodes int) *Run {
	return &Run{
		InStore:         make([]int, totalTicks),
		Visited:         make([]int, totalTicks),
		NewlyInfected:   make([]int, totalTicks),
		InfectedVisited: make([]int, totalTicks),
		NodeExposure:    make([]int, nNodes),
	}
}

// RecordTick stores the counts for the next tick.
func (r *Run) RecordTick(inStore, visited, newlyInfected, infectedVisited int) error {
	if r.ticks >= len(r.InStore) {
		return fmt.Errorf("record tick %d: %w", r.ticks, ErrShapeMismatch)
	}
	t := r.ticks
	r.InStore[t] = inStore
	r.Visited[t] = visited
	r.NewlyInfected[t] = newlyInfected
	r.InfectedVisited[t] = infectedVisited
	r.ticks++
	return nil
}

// RecordDeparture appends a customer's terminal record.
func (r *Run) RecordDeparture(d Departure) {
	r.Departures = append(r.Departures, d)
}

// AddExposure counts one tick of exposure at node. Nodes outside the run's
// range are ignored.
func (r *Run) AddExposure(node store.Node) {
	if node >= 0 && int(node) < len(r.NodeExposure) {
		r.NodeExposure[node]++
	}
}

// Ticks returns how many ticks have been recorded.
func (r *Run) Ticks() int {
	return r.ticks
}

// Complete returns true once every tick has been recorded.
func (r *Run) Complete() bool {
	return r.ticks == len(r.InStore)
}

// TotalExposure returns the exposure ticks summed over all nodes.
func (r *Run) TotalExposure() int {
	total := 0
	for _, v := range r.NodeExposure {
		total += v
	}
	return total
}

// History is the append-only collection of completed runs. It is safe for
// concurrent use: batch workers append while readers summarize.
type History struct {
	totalTicks int
	nNodes     int

	mu      sync.RWMutex
	runs    []*Run
	current *Run
}

// New creates an empty history. Every run must have totalTicks ticks and
// nNodes exposure counters.
func New(totalTicks, nNodes int) *History {
	return &History{totalTicks: totalTicks, nNodes: nNodes}
}

// Restore rebuilds a history from saved runs, checking every shape.
func Restore(totalTicks, nNodes int, runs []*Run) (*History, error) {
	h := New(totalTicks, nNodes)
	for i, r := range runs {
		r.ticks = len(r.InStore)
		if err := h.Append(r); err != nil {
			return nil, fmt.Errorf("restore run %d: %w", i, err)
		}
	}
	return h, nil
}

// TotalTicks returns the fixed tick count of every run.
func (h *History) TotalTicks() int { return h.totalTicks }

// NumNodes returns the fixed exposure array length.
func (h *History) NumNodes() int { return h.nNodes }

// NewRun creates a run shaped for this history.
func (h *History) NewRun() *Run {
	return NewRun(h.totalTicks, h.nNodes)
}

// Append commits a completed run.
func (h *History) Append(r *Run) error {
	if err := h.checkShape(r); err != nil {
		return err
	}
	h.mu.Lock()
	h.runs = append(h.runs, r)
	h.mu.Unlock()
	return nil
}

func (h *History) checkShape(r *Run) error {
	for _, series := range [][]int{r.InStore, r.Visited, r.NewlyInfected, r.InfectedVisited} {
		if len(series) != h.totalTicks {
			return fmt.Errorf("%w: %d ticks, want %d", ErrShapeMismatch, len(series), h.totalTicks)
		}
	}
	if len(r.NodeExposure) != h.nNodes {
		return fmt.Errorf("%w: %d nodes, want %d", ErrShapeMismatch, len(r.NodeExposure), h.nNodes)
	}
	if !r.Complete() {
		return fmt.Errorf("%w: %d of %d ticks", ErrIncompleteRun, r.ticks, h.totalTicks)
	}
	return nil
}

// NumRuns returns the number of completed runs.
func (h *History) NumRuns() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.runs)
}

// Runs returns the completed runs. The runs themselves must not be modified.
func (h *History) Runs() []*Run {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Run, len(h.runs))
	copy(out, h.runs)
	return out
}

// ── Single-run recording surface ──────────────────────────────────────
// Used when one caller drives runs one after another.

// StartRun begins a new run, discarding any unfinished one.
func (h *History) StartRun() {
	h.current = h.NewRun()
}

// RecordTick records the counts for the next tick of the current run.
func (h *History) RecordTick(inStore, visited, newlyInfected, infectedVisited int) error {
	if h.current == nil {
		return ErrNoRun
	}
	return h.current.RecordTick(inStore, visited, newlyInfected, infectedVisited)
}

// RecordDeparture records a departed customer in the current run.
func (h *History) RecordDeparture(exposureTime, shoppingTime int, infected bool) error {
	if h.current == nil {
		return ErrNoRun
	}
	h.current.RecordDeparture(Departure{ExposureTime: exposureTime, ShoppingTime: shoppingTime, Infected: infected})
	return nil
}

// AddExposure counts a tick of exposure in the current run. Without a run in
// progress it does nothing.
func (h *History) AddExposure(node store.Node) {
	if h.current != nil {
		h.current.AddExposure(node)
	}
}

// EndRun commits the current run. A run that did not record every tick is
// dropped and ErrIncompleteRun returned.
func (h *History) EndRun() error {
	if h.current == nil {
		return ErrNoRun
	}
	r := h.current
	h.current = nil
	return h.Append(r)
}
