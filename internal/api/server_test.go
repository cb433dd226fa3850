package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/aislesim/internal/agents"
	"github.com/talgya/aislesim/internal/config"
	"github.com/talgya/aislesim/internal/engine"
	"github.com/talgya/aislesim/internal/history"
	"github.com/talgya/aislesim/internal/route"
	"github.com/talgya/aislesim/internal/store"
)

func newTestServer(t *testing.T, runBatch bool) (*Server, []*agents.Customer) {
	t.Helper()
	cfg := config.Default()
	cfg.Seed = 3
	cfg.Batch.NSimulations = 2
	cfg.Infection.InitProb = 0.3

	g, err := store.Build(cfg.Store)
	require.NoError(t, err)
	baskets := make([][]int, 150)
	for i := range baskets {
		baskets[i] = []int{1 + (i*37)%cfg.Store.NItems, 1 + (i*101)%cfg.Store.NItems}
	}
	pool, err := agents.NewSpawner(cfg.Seed, cfg.Store, route.NewPlanner(g, cfg.Customers)).SpawnPool(baskets)
	require.NoError(t, err)

	eng, err := engine.NewEngine(g, pool, cfg, cfg.Seed)
	require.NoError(t, err)
	m := NewMetrics()
	eng.Hooks = m.Hooks()
	eng.OnRun = m.ObserveRun
	if runBatch {
		require.NoError(t, eng.Run(context.Background()))
	}

	s := &Server{
		Graph:           g,
		History:         eng.History,
		Eng:             eng,
		Metrics:         m,
		BatchID:         "test-batch",
		TickDurationSec: cfg.Flow.TickDurationSec,
	}
	s.SetCustomers(pool)
	return s, pool
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestStatus(t *testing.T) {
	s, pool := newTestServer(t, true)
	rec := get(t, s.Handler(), "/api/v1/status")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "test-batch", body["batch_id"])
	assert.Equal(t, float64(2), body["runs"])
	assert.Equal(t, float64(2), body["completed"])
	assert.Equal(t, float64(720), body["total_ticks"])
	assert.Equal(t, float64(len(pool)), body["customers"])
	assert.Equal(t, false, body["running"])
}

func TestSummaryBeforeAnyRun(t *testing.T) {
	s, _ := newTestServer(t, false)
	h := s.Handler()
	assert.Equal(t, http.StatusServiceUnavailable, get(t, h, "/api/v1/summary").Code)
	assert.Equal(t, http.StatusServiceUnavailable, get(t, h, "/api/v1/chart.png").Code)
}

func TestSummaryAndExposure(t *testing.T) {
	s, _ := newTestServer(t, true)
	h := s.Handler()

	rec := get(t, h, "/api/v1/summary")
	require.Equal(t, http.StatusOK, rec.Code)
	var sum history.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sum))
	assert.Equal(t, 2, sum.Runs)
	assert.Len(t, sum.InStore.Mean, 720)
	assert.Len(t, sum.NodeExposure.Mean, s.Graph.NumNodes())

	rec = get(t, h, "/api/v1/exposure")
	require.Equal(t, http.StatusOK, rec.Code)
	var exp struct {
		Runs  int `json:"runs"`
		Nodes []struct {
			Node int     `json:"node"`
			Kind string  `json:"kind"`
			Mean float64 `json:"mean"`
		} `json:"nodes"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &exp))
	require.Len(t, exp.Nodes, s.Graph.NumNodes())
	assert.Equal(t, "till", exp.Nodes[s.Graph.Till].Kind)
}

func TestStoreGeometry(t *testing.T) {
	s, _ := newTestServer(t, false)
	rec := get(t, s.Handler(), "/api/v1/store")
	require.Equal(t, http.StatusOK, rec.Code)

	var geo struct {
		Width int `json:"width"`
		Start int `json:"start"`
		Nodes []struct {
			ID   int    `json:"id"`
			Kind string `json:"kind"`
		} `json:"nodes"`
		Edges [][2]int `json:"edges"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &geo))
	assert.Equal(t, 4, geo.Width)
	assert.Equal(t, int(s.Graph.Start), geo.Start)
	assert.Len(t, geo.Nodes, 47)
	assert.Len(t, geo.Edges, len(s.Graph.Edges()))
	assert.Equal(t, "start", geo.Nodes[geo.Start].Kind)
}

func TestRouteLookup(t *testing.T) {
	s, pool := newTestServer(t, false)
	h := s.Handler()

	rec := get(t, h, "/api/v1/route/1")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		CustomerID int   `json:"customer_id"`
		WalkedPath []int `json:"walked_path"`
		WaitTimes  []int `json:"wait_times"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.CustomerID)
	assert.Len(t, body.WalkedPath, len(pool[0].Route.WalkedPath))
	assert.Len(t, body.WaitTimes, len(body.WalkedPath))

	assert.Equal(t, http.StatusNotFound, get(t, h, "/api/v1/route/99999").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, h, "/api/v1/route/abc").Code)
}

func TestChartPNG(t *testing.T) {
	s, _ := newTestServer(t, true)
	rec := get(t, s.Handler(), "/api/v1/chart.png")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "\x89PNG"))
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t, true)
	rec := get(t, s.Handler(), "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "aislesim_runs_completed_total 2")
	assert.Contains(t, body, "aislesim_customers_admitted_total")
	assert.Contains(t, body, `aislesim_departures_total{infected="false"}`)
}

func TestCORSPreflight(t *testing.T) {
	s, _ := newTestServer(t, false)
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/status", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	now := time.Unix(1000, 0)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"))
	assert.Equal(t, 61, rl.RetryAfter("a"))

	now = now.Add(time.Minute)
	assert.True(t, rl.Allow("a"))
}

func TestClientKey(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.5:4321"
	assert.Equal(t, "10.0.0.5", clientKey(r))
	r.Header.Set("X-Forwarded-For", "1.2.3.4, 10.0.0.1")
	assert.Equal(t, "1.2.3.4", clientKey(r))
}
