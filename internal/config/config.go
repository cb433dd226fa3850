// Package config holds the typed simulation parameters: store layout, customer
// flow, arrival process, infection model, and batch settings.
package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Config is the finalized parameter structure consumed by the simulation core.
type Config struct {
	// Seed feeds every random draw. 0 means derive one from the clock.
	Seed int64 `yaml:"seed" envconfig:"SEED"`

	Store     StoreConfig     `yaml:"store" envconfig:"STORE"`
	Flow      FlowConfig      `yaml:"flow" envconfig:"FLOW"`
	Customers CustomersConfig `yaml:"customers" envconfig:"CUSTOMERS"`
	Infection InfectionConfig `yaml:"infection" envconfig:"INFECTION"`
	Batch     BatchConfig     `yaml:"batch" envconfig:"BATCH"`
}

// StoreConfig describes the store layout.
//
// The grid is NAislesW columns wide. Each column holds NAislesH sections of
// NShelves shelves, separated by cross-aisle rows.
type StoreConfig struct {
	NItems          int `yaml:"n_items" envconfig:"N_ITEMS"`
	ItemsPerSection int `yaml:"items_per_section" envconfig:"ITEMS_PER_SECTION"`
	NSections       int `yaml:"n_sections" envconfig:"N_SECTIONS"`
	NAislesW        int `yaml:"n_aisles_w" envconfig:"N_AISLES_W"`
	NAislesH        int `yaml:"n_aisles_h" envconfig:"N_AISLES_H"`
	NShelves        int `yaml:"n_shelves" envconfig:"N_SHELVES"`
}

// FlowConfig sets the length of a simulated day.
type FlowConfig struct {
	HoursOpen       float64 `yaml:"hours_open" envconfig:"HOURS_OPEN"`
	TickDurationSec int     `yaml:"tick_duration_sec" envconfig:"TICK_DURATION_SEC"`
}

// GammaComponent is one peak of the arrival curve, in hours since opening.
type GammaComponent struct {
	Shape  float64 `yaml:"shape"`
	Scale  float64 `yaml:"scale"`
	Weight float64 `yaml:"weight"`
}

// RoutePolicy selects how customers order their shelf visits.
type RoutePolicy string

const (
	RouteNearest RoutePolicy = "nearest"
	RouteExact   RoutePolicy = "exact"
)

// CustomersConfig controls the customer population and their behavior in store.
type CustomersConfig struct {
	// NCustomers is the size of the synthetic pool when no dataset is given.
	NCustomers       int              `yaml:"n_customers" envconfig:"N_CUSTOMERS"`
	ArrivalGamma     []GammaComponent `yaml:"arrival_gamma" ignored:"true"`
	ArrivalProbScale float64          `yaml:"arrival_prob_scale" envconfig:"ARRIVAL_PROB_SCALE"`
	ItemWaitRange    IntRange         `yaml:"item_wait_range" envconfig:"ITEM_WAIT_RANGE"`
	TillWaitRange    IntRange         `yaml:"till_wait_range" envconfig:"TILL_WAIT_RANGE"`
	// SectionVisitProb optionally fixes the per-section visit probability of
	// synthetic customers. Empty means a generated popularity field.
	SectionVisitProb []float64   `yaml:"section_visit_prob" ignored:"true"`
	RoutePolicy      RoutePolicy `yaml:"route_policy" envconfig:"ROUTE_POLICY"`
	ExactMaxVisits   int         `yaml:"exact_max_visits" envconfig:"EXACT_MAX_VISITS"`
}

// InfectionConfig parameterizes the transmission model.
type InfectionConfig struct {
	InitProb        float64  `yaml:"init_prob" envconfig:"INIT_PROB"`
	R0              float64  `yaml:"R0" envconfig:"R0"`
	AverageContacts float64  `yaml:"average_contacts" envconfig:"AVERAGE_CONTACTS"`
	DurationRange   IntRange `yaml:"duration_range" envconfig:"DURATION_RANGE"`
}

// BatchConfig controls how many independent days are simulated.
type BatchConfig struct {
	NSimulations int `yaml:"n_simulations" envconfig:"N_SIMULATIONS"`
	Workers      int `yaml:"workers" envconfig:"WORKERS"`
}

// IntRange is an inclusive [Min, Max] integer range, written as a two-element
// list in YAML and as "min,max" in the environment.
type IntRange [2]int

// Min returns the lower bound.
func (r IntRange) Min() int { return r[0] }

// Max returns the upper bound.
func (r IntRange) Max() int { return r[1] }

// Decode implements envconfig.Decoder.
func (r *IntRange) Decode(value string) error {
	parts := strings.Split(value, ",")
	if len(parts) != 2 {
		return fmt.Errorf("range %q: want \"min,max\"", value)
	}
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return fmt.Errorf("range %q: %w", value, err)
		}
		r[i] = n
	}
	return nil
}

// Default returns a complete configuration for a mid-sized supermarket open
// twelve hours with one-minute ticks.
func Default() Config {
	return Config{
		Seed: 0,
		Store: StoreConfig{
			NItems:          800,
			ItemsPerSection: 25,
			NSections:       8,
			NAislesW:        4,
			NAislesH:        2,
			NShelves:        4,
		},
		Flow: FlowConfig{
			HoursOpen:       12,
			TickDurationSec: 60,
		},
		Customers: CustomersConfig{
			NCustomers: 1000,
			ArrivalGamma: []GammaComponent{
				{Shape: 9, Scale: 0.5, Weight: 1},   // lunchtime, mode 4h after opening
				{Shape: 28, Scale: 0.33, Weight: 1}, // evening, mode ~9h after opening
			},
			ArrivalProbScale: 1.5,
			ItemWaitRange:    IntRange{1, 10},
			TillWaitRange:    IntRange{2, 6},
			RoutePolicy:      RouteNearest,
			ExactMaxVisits:   6,
		},
		Infection: InfectionConfig{
			InitProb:        229.9 / 100000,
			R0:              2.5,
			AverageContacts: 3,
			DurationRange:   IntRange{1, 7},
		},
		Batch: BatchConfig{
			NSimulations: 10,
			Workers:      1,
		},
	}
}

// TotalTicks returns the number of ticks in one simulated day.
func (c Config) TotalTicks() int {
	if c.Flow.TickDurationSec <= 0 {
		return 0
	}
	return int(c.Flow.HoursOpen * 3600 / float64(c.Flow.TickDurationSec))
}

// SectionCapacity returns how many sections the layout can hold.
func (s StoreConfig) SectionCapacity() int {
	return s.NAislesW * s.NAislesH
}
