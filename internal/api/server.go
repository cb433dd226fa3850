// Package api provides the read-only HTTP API over a simulation batch: batch
// status, summary statistics, store geometry for visualizers, customer
// routes, a chart, and Prometheus metrics.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/talgya/aislesim/internal/agents"
	"github.com/talgya/aislesim/internal/engine"
	"github.com/talgya/aislesim/internal/history"
	"github.com/talgya/aislesim/internal/report"
	"github.com/talgya/aislesim/internal/store"
)

// Server serves batch state over HTTP.
type Server struct {
	Graph   *store.Graph
	History *history.History
	Eng     *engine.Engine // Nil when serving a replayed batch
	Metrics *Metrics
	Addr    string
	BatchID string
	Seed    int64

	// TickDurationSec labels chart and summary times. 0 leaves them as ticks.
	TickDurationSec int

	customers map[agents.CustomerID]*agents.Customer
}

// SetCustomers indexes the customer pool for route lookups.
func (s *Server) SetCustomers(pool []*agents.Customer) {
	s.customers = lo.KeyBy(pool, func(c *agents.Customer) agents.CustomerID { return c.ID })
}

// Handler builds the request router.
func (s *Server) Handler() http.Handler {
	chartLimiter := NewRateLimiter(60, time.Minute)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/status", s.handleStatus)
	mux.HandleFunc("GET /api/v1/summary", s.handleSummary)
	mux.HandleFunc("GET /api/v1/exposure", s.handleExposure)
	mux.HandleFunc("GET /api/v1/store", s.handleStore)
	mux.HandleFunc("GET /api/v1/route/{id}", s.handleRoute)
	mux.HandleFunc("GET /api/v1/chart.png", RateLimitMiddleware(chartLimiter, s.handleChart))
	if s.Metrics != nil {
		mux.Handle("GET /metrics", s.Metrics.Handler())
	}
	return corsMiddleware(mux)
}

// Start serves the API in a goroutine until ctx is cancelled.
func (s *Server) Start(ctx context.Context) {
	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", s.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP shutdown error", "error", err)
		}
	}()
}

// corsMiddleware allows visualizer frontends to read the API. Set
// AISLESIM_CORS_ORIGINS to a comma-separated list of extra origins.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:3000": true,
	}
	for _, origin := range strings.Split(os.Getenv("AISLESIM_CORS_ORIGINS"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			allowedOrigins[origin] = true
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"batch_id":    s.BatchID,
		"seed":        s.Seed,
		"runs":        s.History.NumRuns(),
		"total_ticks": s.History.TotalTicks(),
		"n_nodes":     s.History.NumNodes(),
		"customers":   len(s.customers),
		"replay":      s.Eng == nil,
	}
	if s.Eng != nil {
		status["running"] = s.Eng.Running()
		status["completed"] = s.Eng.Completed()
		status["total"] = s.Eng.Total()
	}
	writeJSON(w, status)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	sum, ok := s.summaries(w)
	if !ok {
		return
	}
	writeJSON(w, sum)
}

func (s *Server) summaries(w http.ResponseWriter) (history.Summary, bool) {
	sum, err := s.History.Summaries()
	if errors.Is(err, history.ErrNoRun) {
		http.Error(w, "no completed runs yet", http.StatusServiceUnavailable)
		return sum, false
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return sum, false
	}
	return sum, true
}

func (s *Server) handleExposure(w http.ResponseWriter, r *http.Request) {
	sum, ok := s.summaries(w)
	if !ok {
		return
	}

	type nodeExposure struct {
		Node store.Node `json:"node"`
		Kind string     `json:"kind"`
		X    int        `json:"x"`
		Y    int        `json:"y"`
		Mean float64    `json:"mean"`
		Std  float64    `json:"std"`
	}
	nodes := make([]nodeExposure, 0, sum.NumNodes)
	for i := 0; i < sum.NumNodes; i++ {
		n := store.Node(i)
		c := s.Graph.Coord(n)
		nodes = append(nodes, nodeExposure{
			Node: n,
			Kind: s.Graph.Kind(n).String(),
			X:    c.X,
			Y:    c.Y,
			Mean: sum.NodeExposure.Mean[i],
			Std:  sum.NodeExposure.Std[i],
		})
	}
	writeJSON(w, map[string]any{
		"runs":  sum.Runs,
		"nodes": nodes,
	})
}

// handleStore returns the store geometry for visualizers.
func (s *Server) handleStore(w http.ResponseWriter, r *http.Request) {
	type nodeEntry struct {
		ID   store.Node `json:"id"`
		Kind string     `json:"kind"`
		X    int        `json:"x"`
		Y    int        `json:"y"`
	}

	g := s.Graph
	nodes := make([]nodeEntry, 0, g.NumNodes())
	for i := 0; i < g.NumNodes(); i++ {
		n := store.Node(i)
		c := g.Coord(n)
		nodes = append(nodes, nodeEntry{ID: n, Kind: g.Kind(n).String(), X: c.X, Y: c.Y})
	}

	writeJSON(w, map[string]any{
		"width":  g.Layout.NodesW,
		"height": g.Layout.NodesH,
		"till":   g.Till,
		"start":  g.Start,
		"end":    g.End,
		"nodes":  nodes,
		"edges":  g.Edges(),
	})
}

func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid customer id", http.StatusBadRequest)
		return
	}
	c, ok := s.customers[agents.CustomerID(id)]
	if !ok {
		http.Error(w, "customer not found", http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]any{
		"customer_id": c.ID,
		"items":       c.Items,
		"visit_order": c.Route.VisitOrder,
		"walked_path": c.Route.WalkedPath,
		"wait_times":  c.Route.WaitTimes,
		"hops":        c.Route.Hops(),
		"total_wait":  c.Route.TotalWait(),
	})
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	sum, ok := s.summaries(w)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if err := report.RenderChart(w, sum, s.TickDurationSec); err != nil {
		slog.Error("render chart", "error", err)
		http.Error(w, "chart failed", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		slog.Debug("write json", "error", err)
	}
}
