// Command aislesim runs batches of simulated shopping days and reports how
// much customers were exposed to infectious shoppers along their routes.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/talgya/aislesim/internal/agents"
	"github.com/talgya/aislesim/internal/api"
	"github.com/talgya/aislesim/internal/config"
	"github.com/talgya/aislesim/internal/dataset"
	"github.com/talgya/aislesim/internal/engine"
	"github.com/talgya/aislesim/internal/entropy"
	"github.com/talgya/aislesim/internal/history"
	"github.com/talgya/aislesim/internal/persistence"
	"github.com/talgya/aislesim/internal/report"
	"github.com/talgya/aislesim/internal/route"
	"github.com/talgya/aislesim/internal/store"
)

type options struct {
	configPath string
	dataPath   string
	customers  int
	runs       int
	workers    int
	seed       int64
	dbPath     string
	chartPath  string
	addr       string
	replay     string
	list       bool
	logLevel   string
}

func parseFlags() options {
	var o options
	flag.StringVar(&o.configPath, "config", "", "YAML configuration file (defaults when empty)")
	flag.StringVar(&o.dataPath, "data", "", "CSV of customer baskets (synthetic customers when empty)")
	flag.IntVar(&o.customers, "customers", 0, "synthetic customer count (overrides config)")
	flag.IntVar(&o.runs, "runs", 0, "simulated days in the batch (overrides config)")
	flag.IntVar(&o.workers, "workers", 0, "days simulated in parallel (overrides config)")
	flag.Int64Var(&o.seed, "seed", 0, "random seed (overrides config; 0 keeps the configured one)")
	flag.StringVar(&o.dbPath, "db", "data/aislesim.db", "SQLite database for saved batches (empty disables)")
	flag.StringVar(&o.chartPath, "chart", "", "write a PNG chart of the batch to this path")
	flag.StringVar(&o.addr, "addr", "", "serve the HTTP API on this address, e.g. :8080")
	flag.StringVar(&o.replay, "replay", "", "load a saved batch by id (or \"last\") instead of simulating")
	flag.BoolVar(&o.list, "list", false, "list saved batches and exit")
	flag.StringVar(&o.logLevel, "log-level", "info", "debug, info, warn or error")
	flag.Parse()
	return o
}

func main() {
	o := parseFlags()

	var level slog.Level
	if err := level.UnmarshalText([]byte(o.logLevel)); err != nil {
		fmt.Fprintf(os.Stderr, "bad -log-level %q\n", o.logLevel)
		os.Exit(2)
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	// A missing .env is fine; the environment may already be set.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("could not read .env", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var err error
	switch {
	case o.list:
		err = listBatches(o)
	case o.replay != "":
		err = replay(ctx, o)
	default:
		err = simulate(ctx, o)
	}
	if err != nil {
		slog.Error("aislesim failed", "error", err)
		os.Exit(1)
	}
}

// ── Configuration ─────────────────────────────────────────────────────

func loadConfig(o options) (config.Config, error) {
	cfg := config.Default()
	if o.configPath != "" {
		var err error
		if cfg, err = config.LoadFile(o.configPath); err != nil {
			return cfg, err
		}
	}
	if err := config.ApplyEnv(&cfg); err != nil {
		return cfg, err
	}

	if o.customers > 0 {
		cfg.Customers.NCustomers = o.customers
	}
	if o.runs > 0 {
		cfg.Batch.NSimulations = o.runs
	}
	if o.workers > 0 {
		cfg.Batch.Workers = o.workers
	}
	if o.seed != 0 {
		cfg.Seed = o.seed
	}
	return cfg, cfg.Validate()
}

func openDB(path string) (*persistence.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := persistence.Open(path)
	if err != nil {
		return nil, err
	}
	slog.Info("database opened", "path", path)
	return db, nil
}

// ── Simulate ──────────────────────────────────────────────────────────

func simulate(ctx context.Context, o options) error {
	cfg, err := loadConfig(o)
	if err != nil {
		return err
	}
	seed := entropy.ResolveSeed(cfg.Seed)
	slog.Info("aislesim starting",
		"seed", seed,
		"runs", cfg.Batch.NSimulations,
		"workers", cfg.Batch.Workers,
		"ticks_per_day", cfg.TotalTicks(),
		"route_policy", cfg.Customers.RoutePolicy,
	)

	// ── Store ─────────────────────────────────────────────────────────
	g, err := store.Build(cfg.Store)
	if err != nil {
		return err
	}
	slog.Info("store ready", "layout", g.String(), "nodes", g.NumNodes())

	// ── Customers ─────────────────────────────────────────────────────
	baskets, err := loadBaskets(o.dataPath, seed, cfg)
	if err != nil {
		return err
	}
	spawner := agents.NewSpawner(seed, cfg.Store, route.NewPlanner(g, cfg.Customers))
	pool, err := spawner.SpawnPool(dataset.Items(baskets))
	if err != nil {
		return err
	}
	slog.Info("customer pool ready", "customers", len(pool))

	// ── Engine ────────────────────────────────────────────────────────
	eng, err := engine.NewEngine(g, pool, cfg, seed)
	if err != nil {
		return err
	}
	metrics := api.NewMetrics()
	eng.Hooks = metrics.Hooks()
	eng.OnRun = metrics.ObserveRun

	meta, err := persistence.NewBatchMeta(cfg, seed, len(pool))
	if err != nil {
		return err
	}

	var srv *api.Server
	if o.addr != "" {
		srv = &api.Server{
			Graph:           g,
			History:         eng.History,
			Eng:             eng,
			Metrics:         metrics,
			Addr:            o.addr,
			BatchID:         meta.ID.String(),
			Seed:            seed,
			TickDurationSec: cfg.Flow.TickDurationSec,
		}
		srv.SetCustomers(pool)
		srv.Start(ctx)
		fmt.Printf("API: http://localhost%s/api/v1/status\n", o.addr)
	}

	start := time.Now()
	runErr := eng.Run(ctx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	slog.Info("batch finished",
		"completed", eng.Completed(),
		"of", eng.Total(),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	if eng.History.NumRuns() == 0 {
		return runErr
	}

	// A cancelled batch still saves and reports the days it finished.
	if o.dbPath != "" {
		db, err := openDB(o.dbPath)
		if err != nil {
			return err
		}
		defer db.Close()
		if _, err := db.SaveHistory(meta, eng.History); err != nil {
			return err
		}
		fmt.Printf("Batch %s saved. Replay with -replay %s\n", meta.ID, meta.ID)
	}

	if err := summarize(eng.History, cfg.Flow.TickDurationSec, o.chartPath); err != nil {
		return err
	}

	if srv != nil && ctx.Err() == nil {
		fmt.Println("Serving results... (Ctrl+C to stop)")
		<-ctx.Done()
	}
	return nil
}

func loadBaskets(path string, seed int64, cfg config.Config) ([]dataset.Basket, error) {
	if path != "" {
		baskets, err := dataset.LoadFile(path)
		if err != nil {
			return nil, err
		}
		slog.Info("dataset loaded", "path", path, "baskets", len(baskets))
		return baskets, nil
	}
	gen := dataset.NewGenerator(seed, cfg.Store, cfg.Customers)
	slog.Info("generating synthetic customers",
		"customers", cfg.Customers.NCustomers,
		"section_visit_prob", gen.VisitProb(),
	)
	return gen.Baskets(cfg.Customers.NCustomers), nil
}

func summarize(h *history.History, tickSec int, chartPath string) error {
	sum, err := h.Summaries()
	if err != nil {
		return err
	}
	report.LogSummary(slog.Default(), sum, tickSec)
	if chartPath != "" {
		if err := report.WriteChartFile(chartPath, sum, tickSec); err != nil {
			return err
		}
		slog.Info("chart written", "path", chartPath)
	}
	return nil
}

// ── Replay ────────────────────────────────────────────────────────────

func replay(ctx context.Context, o options) error {
	if o.dbPath == "" {
		return errors.New("replay: -db is required")
	}
	db, err := openDB(o.dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	var id uuid.UUID
	if strings.EqualFold(o.replay, "last") {
		id, err = db.LastBatch()
	} else {
		id, err = uuid.Parse(o.replay)
	}
	if err != nil {
		return fmt.Errorf("replay %q: %w", o.replay, err)
	}

	meta, h, err := db.LoadHistory(id)
	if err != nil {
		return err
	}
	cfg, err := meta.Config()
	if err != nil {
		return err
	}
	slog.Info("batch restored",
		"batch_id", meta.ID,
		"created_at", meta.CreatedAt.Format(time.RFC3339),
		"seed", meta.Seed,
		"runs", meta.NumRuns,
	)

	if err := summarize(h, cfg.Flow.TickDurationSec, o.chartPath); err != nil {
		return err
	}
	if o.addr == "" {
		return nil
	}

	g, err := store.Build(cfg.Store)
	if err != nil {
		return err
	}
	srv := &api.Server{
		Graph:           g,
		History:         h,
		Addr:            o.addr,
		BatchID:         meta.ID.String(),
		Seed:            meta.Seed,
		TickDurationSec: cfg.Flow.TickDurationSec,
	}
	srv.Start(ctx)
	fmt.Printf("API: http://localhost%s/api/v1/status (Ctrl+C to stop)\n", o.addr)
	<-ctx.Done()
	return nil
}

func listBatches(o options) error {
	if o.dbPath == "" {
		return errors.New("list: -db is required")
	}
	db, err := openDB(o.dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	batches, err := db.ListBatches()
	if err != nil {
		return err
	}
	if len(batches) == 0 {
		fmt.Println("No saved batches.")
		return nil
	}
	for _, b := range batches {
		fmt.Printf("%s  %s  seed=%d runs=%d customers=%d ticks=%d\n",
			b.ID, b.CreatedAt.Format(time.RFC3339), b.Seed, b.NumRuns, b.NumCustomers, b.TotalTicks)
	}
	return nil
}
