package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
store:
  n_aisles_w: 4
  n_aisles_h: 2
  n_shelves: 4
flow:
  hours_open: 10
  tick_duration_sec: 30
`

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 720, cfg.TotalTicks())
}

func TestParseOverrideWinsElseDefault(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML + `
infection:
  R0: 3.5
  duration_range: [2, 4]
unknown_section:
  whatever: true
`))
	require.NoError(t, err)

	assert.Equal(t, 3.5, cfg.Infection.R0)
	assert.Equal(t, IntRange{2, 4}, cfg.Infection.DurationRange)
	// Untouched keys keep their defaults.
	assert.Equal(t, Default().Infection.AverageContacts, cfg.Infection.AverageContacts)
	assert.Equal(t, Default().Customers.ArrivalGamma, cfg.Customers.ArrivalGamma)
	assert.Equal(t, 1200, cfg.TotalTicks())
}

func TestParseMissingRequiredKey(t *testing.T) {
	_, err := Parse([]byte(`
store:
  n_aisles_w: 4
  n_aisles_h: 2
flow:
  hours_open: 10
  tick_duration_sec: 30
`))
	var cerr *ConfigError
	require.True(t, errors.As(err, &cerr), "got %v", err)
	assert.Equal(t, "store.n_shelves", cerr.Field)
}

func TestParseReplacesArrivalCurve(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML + `
customers:
  arrival_gamma:
    - {shape: 4, scale: 1, weight: 2}
`))
	require.NoError(t, err)
	require.Len(t, cfg.Customers.ArrivalGamma, 1)
	assert.Equal(t, GammaComponent{Shape: 4, Scale: 1, Weight: 2}, cfg.Customers.ArrivalGamma[0])
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(*Config){
		"store.n_aisles_w":          func(c *Config) { c.Store.NAislesW = 0 },
		"store.n_sections":          func(c *Config) { c.Store.NSections = 9 },
		"store.n_items":             func(c *Config) { c.Store.NItems = 801 },
		"flow.tick_duration_sec":    func(c *Config) { c.Flow.TickDurationSec = 0 },
		"flow":                      func(c *Config) { c.Flow.HoursOpen = 0.001 },
		"infection.duration_range":  func(c *Config) { c.Infection.DurationRange = IntRange{0, 3} },
		"customers.item_wait_range": func(c *Config) { c.Customers.ItemWaitRange = IntRange{5, 1} },
		"customers.route_policy":    func(c *Config) { c.Customers.RoutePolicy = "random" },
		"batch.workers":             func(c *Config) { c.Batch.Workers = 0 },
	}
	for field, mutate := range cases {
		t.Run(field, func(t *testing.T) {
			cfg := Default()
			mutate(&cfg)
			err := cfg.Validate()
			var cerr *ConfigError
			require.True(t, errors.As(err, &cerr), "got %v", err)
			assert.Equal(t, field, cerr.Field)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalYAML), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.Flow.TickDurationSec)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("AISLESIM_INFECTION_R0", "4.25")
	t.Setenv("AISLESIM_CUSTOMERS_TILL_WAIT_RANGE", "0, 0")
	t.Setenv("AISLESIM_BATCH_N_SIMULATIONS", "3")

	cfg := Default()
	require.NoError(t, ApplyEnv(&cfg))
	assert.Equal(t, 4.25, cfg.Infection.R0)
	assert.Equal(t, IntRange{0, 0}, cfg.Customers.TillWaitRange)
	assert.Equal(t, 3, cfg.Batch.NSimulations)
}

func TestIntRangeDecode(t *testing.T) {
	var r IntRange
	require.NoError(t, r.Decode("3,9"))
	assert.Equal(t, 3, r.Min())
	assert.Equal(t, 9, r.Max())
	assert.Error(t, r.Decode("3"))
	assert.Error(t, r.Decode("a,b"))
}
