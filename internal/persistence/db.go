// Package persistence provides SQLite storage for simulation batches, so a
// saved history can be listed and replayed with its exact shape.
package persistence

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"gopkg.in/yaml.v3"
	_ "modernc.org/sqlite"

	"github.com/talgya/aislesim/internal/config"
	"github.com/talgya/aislesim/internal/history"
)

// DB wraps a SQLite connection for batch persistence.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS batches (
		id TEXT PRIMARY KEY,
		created_at INTEGER NOT NULL,
		seed INTEGER NOT NULL,
		total_ticks INTEGER NOT NULL,
		n_nodes INTEGER NOT NULL,
		n_simulations INTEGER NOT NULL,
		n_customers INTEGER NOT NULL,
		config_yaml TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS tick_series (
		batch_id TEXT NOT NULL,
		run INTEGER NOT NULL,
		tick INTEGER NOT NULL,
		in_store INTEGER NOT NULL,
		visited INTEGER NOT NULL,
		newly_infected INTEGER NOT NULL,
		infected_visited INTEGER NOT NULL,
		PRIMARY KEY (batch_id, run, tick)
	);

	CREATE TABLE IF NOT EXISTS node_exposure (
		batch_id TEXT NOT NULL,
		run INTEGER NOT NULL,
		node INTEGER NOT NULL,
		ticks INTEGER NOT NULL,
		PRIMARY KEY (batch_id, run, node)
	);

	CREATE TABLE IF NOT EXISTS departures (
		batch_id TEXT NOT NULL,
		run INTEGER NOT NULL,
		seq INTEGER NOT NULL,
		exposure_time INTEGER NOT NULL,
		shopping_time INTEGER NOT NULL,
		infected INTEGER NOT NULL,
		PRIMARY KEY (batch_id, run, seq)
	);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_batches_created ON batches(created_at);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// BatchMeta describes one saved batch.
type BatchMeta struct {
	ID           uuid.UUID `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	Seed         int64     `json:"seed"`
	TotalTicks   int       `json:"total_ticks"`
	NumNodes     int       `json:"n_nodes"`
	NumRuns      int       `json:"n_simulations"`
	NumCustomers int       `json:"n_customers"`
	ConfigYAML   string    `json:"-"`
}

// NewBatchMeta creates metadata for a new batch with a fresh id.
func NewBatchMeta(cfg config.Config, seed int64, customers int) (BatchMeta, error) {
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return BatchMeta{}, fmt.Errorf("marshal config: %w", err)
	}
	return BatchMeta{
		ID:           uuid.New(),
		CreatedAt:    time.Now().UTC(),
		Seed:         seed,
		NumCustomers: customers,
		ConfigYAML:   string(raw),
	}, nil
}

// Config decodes the configuration the batch was run with.
func (m BatchMeta) Config() (config.Config, error) {
	cfg := config.Default()
	if err := yaml.Unmarshal([]byte(m.ConfigYAML), &cfg); err != nil {
		return cfg, fmt.Errorf("decode batch config: %w", err)
	}
	return cfg, nil
}

type batchRow struct {
	ID           string `db:"id"`
	CreatedAt    int64  `db:"created_at"`
	Seed         int64  `db:"seed"`
	TotalTicks   int    `db:"total_ticks"`
	NumNodes     int    `db:"n_nodes"`
	NumRuns      int    `db:"n_simulations"`
	NumCustomers int    `db:"n_customers"`
	ConfigYAML   string `db:"config_yaml"`
}

func (r batchRow) meta() (BatchMeta, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return BatchMeta{}, fmt.Errorf("parse batch id: %w", err)
	}
	return BatchMeta{
		ID:           id,
		CreatedAt:    time.Unix(r.CreatedAt, 0).UTC(),
		Seed:         r.Seed,
		TotalTicks:   r.TotalTicks,
		NumNodes:     r.NumNodes,
		NumRuns:      r.NumRuns,
		NumCustomers: r.NumCustomers,
		ConfigYAML:   r.ConfigYAML,
	}, nil
}

// SaveHistory writes every completed run of h under meta.ID in one
// transaction. The shape fields of meta are taken from h.
func (db *DB) SaveHistory(meta BatchMeta, h *history.History) (BatchMeta, error) {
	runs := h.Runs()
	meta.TotalTicks = h.TotalTicks()
	meta.NumNodes = h.NumNodes()
	meta.NumRuns = len(runs)
	slog.Info("saving batch", "batch_id", meta.ID, "runs", meta.NumRuns)

	tx, err := db.conn.Beginx()
	if err != nil {
		return meta, err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`INSERT INTO batches
		(id, created_at, seed, total_ticks, n_nodes, n_simulations, n_customers, config_yaml)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		meta.ID.String(), meta.CreatedAt.Unix(), meta.Seed,
		meta.TotalTicks, meta.NumNodes, meta.NumRuns, meta.NumCustomers, meta.ConfigYAML)
	if err != nil {
		return meta, fmt.Errorf("insert batch: %w", err)
	}

	tickStmt, err := tx.Preparex(`INSERT INTO tick_series
		(batch_id, run, tick, in_store, visited, newly_infected, infected_visited)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return meta, err
	}
	defer tickStmt.Close()

	nodeStmt, err := tx.Preparex(`INSERT INTO node_exposure (batch_id, run, node, ticks) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return meta, err
	}
	defer nodeStmt.Close()

	depStmt, err := tx.Preparex(`INSERT INTO departures
		(batch_id, run, seq, exposure_time, shopping_time, infected)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return meta, err
	}
	defer depStmt.Close()

	id := meta.ID.String()
	for run, r := range runs {
		for t := range r.InStore {
			if _, err := tickStmt.Exec(id, run, t, r.InStore[t], r.Visited[t], r.NewlyInfected[t], r.InfectedVisited[t]); err != nil {
				return meta, fmt.Errorf("insert tick %d of run %d: %w", t, run, err)
			}
		}
		// Only non-zero counters; n_nodes restores the full array.
		for node, ticks := range r.NodeExposure {
			if ticks == 0 {
				continue
			}
			if _, err := nodeStmt.Exec(id, run, node, ticks); err != nil {
				return meta, fmt.Errorf("insert exposure of run %d: %w", run, err)
			}
		}
		for seq, d := range r.Departures {
			infected := 0
			if d.Infected {
				infected = 1
			}
			if _, err := depStmt.Exec(id, run, seq, d.ExposureTime, d.ShoppingTime, infected); err != nil {
				return meta, fmt.Errorf("insert departure of run %d: %w", run, err)
			}
		}
	}

	if _, err := tx.Exec("INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)", "last_batch", id); err != nil {
		return meta, fmt.Errorf("save meta: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return meta, err
	}
	slog.Info("batch saved", "batch_id", meta.ID)
	return meta, nil
}

// LastBatch returns the id of the most recently saved batch.
func (db *DB) LastBatch() (uuid.UUID, error) {
	var value string
	if err := db.conn.Get(&value, "SELECT value FROM meta WHERE key = ?", "last_batch"); err != nil {
		return uuid.Nil, err
	}
	return uuid.Parse(value)
}

// ListBatches returns saved batches, newest first.
func (db *DB) ListBatches() ([]BatchMeta, error) {
	var rows []batchRow
	if err := db.conn.Select(&rows, "SELECT * FROM batches ORDER BY created_at DESC, id"); err != nil {
		return nil, err
	}
	out := make([]BatchMeta, 0, len(rows))
	for _, r := range rows {
		m, err := r.meta()
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// LoadHistory restores a saved batch. Every array comes back with its saved
// length.
func (db *DB) LoadHistory(id uuid.UUID) (BatchMeta, *history.History, error) {
	var row batchRow
	if err := db.conn.Get(&row, "SELECT * FROM batches WHERE id = ?", id.String()); err != nil {
		return BatchMeta{}, nil, fmt.Errorf("load batch %s: %w", id, err)
	}
	meta, err := row.meta()
	if err != nil {
		return BatchMeta{}, nil, err
	}

	runs := make([]*history.Run, meta.NumRuns)
	for i := range runs {
		runs[i] = &history.Run{
			InStore:         make([]int, meta.TotalTicks),
			Visited:         make([]int, meta.TotalTicks),
			NewlyInfected:   make([]int, meta.TotalTicks),
			InfectedVisited: make([]int, meta.TotalTicks),
			NodeExposure:    make([]int, meta.NumNodes),
		}
	}

	var ticks []struct {
		Run             int `db:"run"`
		Tick            int `db:"tick"`
		InStore         int `db:"in_store"`
		Visited         int `db:"visited"`
		NewlyInfected   int `db:"newly_infected"`
		InfectedVisited int `db:"infected_visited"`
	}
	if err := db.conn.Select(&ticks, `SELECT run, tick, in_store, visited, newly_infected, infected_visited
		FROM tick_series WHERE batch_id = ? ORDER BY run, tick`, row.ID); err != nil {
		return meta, nil, fmt.Errorf("load ticks: %w", err)
	}
	if len(ticks) != meta.NumRuns*meta.TotalTicks {
		return meta, nil, fmt.Errorf("load ticks: %w: %d rows, want %d",
			history.ErrShapeMismatch, len(ticks), meta.NumRuns*meta.TotalTicks)
	}
	for _, t := range ticks {
		if t.Run >= meta.NumRuns || t.Tick >= meta.TotalTicks {
			return meta, nil, fmt.Errorf("load ticks: %w: run %d tick %d", history.ErrShapeMismatch, t.Run, t.Tick)
		}
		r := runs[t.Run]
		r.InStore[t.Tick] = t.InStore
		r.Visited[t.Tick] = t.Visited
		r.NewlyInfected[t.Tick] = t.NewlyInfected
		r.InfectedVisited[t.Tick] = t.InfectedVisited
	}

	var exposure []struct {
		Run   int `db:"run"`
		Node  int `db:"node"`
		Ticks int `db:"ticks"`
	}
	if err := db.conn.Select(&exposure, "SELECT run, node, ticks FROM node_exposure WHERE batch_id = ?", row.ID); err != nil {
		return meta, nil, fmt.Errorf("load exposure: %w", err)
	}
	for _, e := range exposure {
		if e.Run >= meta.NumRuns || e.Node >= meta.NumNodes {
			return meta, nil, fmt.Errorf("load exposure: %w: run %d node %d", history.ErrShapeMismatch, e.Run, e.Node)
		}
		runs[e.Run].NodeExposure[e.Node] = e.Ticks
	}

	var deps []struct {
		Run          int  `db:"run"`
		ExposureTime int  `db:"exposure_time"`
		ShoppingTime int  `db:"shopping_time"`
		Infected     bool `db:"infected"`
	}
	if err := db.conn.Select(&deps, `SELECT run, exposure_time, shopping_time, infected
		FROM departures WHERE batch_id = ? ORDER BY run, seq`, row.ID); err != nil {
		return meta, nil, fmt.Errorf("load departures: %w", err)
	}
	for _, d := range deps {
		if d.Run >= meta.NumRuns {
			return meta, nil, fmt.Errorf("load departures: %w: run %d", history.ErrShapeMismatch, d.Run)
		}
		runs[d.Run].RecordDeparture(history.Departure{
			ExposureTime: d.ExposureTime,
			ShoppingTime: d.ShoppingTime,
			Infected:     d.Infected,
		})
	}

	h, err := history.Restore(meta.TotalTicks, meta.NumNodes, runs)
	if err != nil {
		return meta, nil, err
	}
	return meta, h, nil
}
