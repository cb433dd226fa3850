// Package engine provides the tick-based simulation loop and the batch runner
// that repeats it over many independent days.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/talgya/aislesim/internal/agents"
	"github.com/talgya/aislesim/internal/config"
	"github.com/talgya/aislesim/internal/entropy"
	"github.com/talgya/aislesim/internal/history"
	"github.com/talgya/aislesim/internal/store"
)

// Engine runs a batch of independent days and commits each to a shared
// History.
type Engine struct {
	Graph   *store.Graph
	Pool    []*agents.Customer // Template pool; every run works on a clone
	Config  config.Config
	Seed    int64
	History *history.History

	// Callbacks, populated during setup. Hooks fire from worker goroutines
	// when Config.Batch.Workers > 1.
	Hooks
	OnRun func(run int, r *history.Run) // After a run is committed, in run order

	completed atomic.Int64
	running   atomic.Bool
}

// NewEngine creates a batch engine. The history is created to fit the graph
// and the configured day length.
func NewEngine(g *store.Graph, pool []*agents.Customer, cfg config.Config, seed int64) (*Engine, error) {
	if len(pool) == 0 {
		return nil, errors.New("new engine: empty customer pool")
	}
	if cfg.TotalTicks() < 1 {
		return nil, &config.ConfigError{Field: "flow", Reason: "day has no ticks"}
	}
	return &Engine{
		Graph:   g,
		Pool:    pool,
		Config:  cfg,
		Seed:    seed,
		History: history.New(cfg.TotalTicks(), g.NumNodes()),
	}, nil
}

// Total returns the number of runs in the batch.
func (e *Engine) Total() int {
	return e.Config.Batch.NSimulations
}

// Completed returns the number of committed runs.
func (e *Engine) Completed() int {
	return int(e.completed.Load())
}

// Running returns true while Run is executing.
func (e *Engine) Running() bool {
	return e.running.Load()
}

// Run executes the batch. Run i always uses the same random source, so the
// committed history does not depend on the worker count. Cancelling ctx
// abandons the batch between runs; unfinished runs are never committed.
func (e *Engine) Run(ctx context.Context) error {
	e.running.Store(true)
	defer e.running.Store(false)

	total := e.Total()
	workers := max(e.Config.Batch.Workers, 1)
	slog.Info("batch started", "runs", total, "workers", workers, "customers", len(e.Pool), "seed", e.Seed)

	c := &committer{engine: e, pending: make(map[int]*history.Run)}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i := 0; i < total; i++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r, err := e.runOne(i)
			if err != nil {
				return fmt.Errorf("run %d: %w", i, err)
			}
			return c.commit(i, r)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	slog.Info("batch finished", "runs", e.Completed())
	return nil
}

func (e *Engine) runOne(i int) (*history.Run, error) {
	sim, err := NewSimulation(e.Graph, agents.ClonePool(e.Pool), e.Config)
	if err != nil {
		return nil, err
	}
	sim.Hooks = e.Hooks

	r := e.History.NewRun()
	if err := sim.RunDay(entropy.ForRun(e.Seed, i), r); err != nil {
		return nil, err
	}
	stats := sim.Stats()
	slog.Debug("run simulated", "run", i, "admitted", stats.Admitted, "newly_infected", stats.NewlyInfected)
	return r, nil
}

// committer appends finished runs to the history in run order.
type committer struct {
	engine *Engine

	mu      sync.Mutex
	next    int
	pending map[int]*history.Run
}

func (c *committer) commit(i int, r *history.Run) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pending[i] = r
	for {
		r, ok := c.pending[c.next]
		if !ok {
			return nil
		}
		delete(c.pending, c.next)
		if err := c.engine.History.Append(r); err != nil {
			return fmt.Errorf("commit run %d: %w", c.next, err)
		}
		c.engine.completed.Add(1)
		slog.Info("run complete", "run", c.next,
			"visited", last(r.Visited), "newly_infected", last(r.NewlyInfected),
			"departures", len(r.Departures))
		if c.engine.OnRun != nil {
			c.engine.OnRun(c.next, r)
		}
		c.next++
	}
}

func last(xs []int) int {
	if len(xs) == 0 {
		return 0
	}
	return xs[len(xs)-1]
}

// ClockTime returns the time since opening at the start of tick as "H:MM".
func ClockTime(tick, tickDurationSec int) string {
	totalMinutes := tick * tickDurationSec / 60
	return fmt.Sprintf("%d:%02d", totalMinutes/60, totalMinutes%60)
}
