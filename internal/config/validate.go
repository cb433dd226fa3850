package config

import "fmt"

// ConfigError reports a malformed or missing parameter. It is fatal and is
// surfaced before any run starts.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Field, e.Reason)
}

func invalid(field, format string, args ...any) error {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Validate checks every parameter once, returning the first problem found.
func (c Config) Validate() error {
	if err := c.Store.Validate(); err != nil {
		return err
	}

	if c.Flow.HoursOpen <= 0 {
		return invalid("flow.hours_open", "must be positive, got %g", c.Flow.HoursOpen)
	}
	if c.Flow.TickDurationSec <= 0 {
		return invalid("flow.tick_duration_sec", "must be positive, got %d", c.Flow.TickDurationSec)
	}
	if c.TotalTicks() < 1 {
		return invalid("flow", "day is shorter than one tick")
	}

	cu := c.Customers
	if cu.NCustomers < 0 {
		return invalid("customers.n_customers", "must not be negative, got %d", cu.NCustomers)
	}
	if cu.ArrivalProbScale < 0 {
		return invalid("customers.arrival_prob_scale", "must not be negative, got %g", cu.ArrivalProbScale)
	}
	for i, g := range cu.ArrivalGamma {
		if g.Shape <= 0 || g.Scale <= 0 || g.Weight < 0 {
			return invalid(fmt.Sprintf("customers.arrival_gamma[%d]", i),
				"shape and scale must be positive and weight non-negative")
		}
	}
	if err := checkRange("customers.item_wait_range", cu.ItemWaitRange, 0); err != nil {
		return err
	}
	if err := checkRange("customers.till_wait_range", cu.TillWaitRange, 0); err != nil {
		return err
	}
	if n := len(cu.SectionVisitProb); n > 0 {
		if n != c.Store.NSections {
			return invalid("customers.section_visit_prob", "has %d entries for %d sections", n, c.Store.NSections)
		}
		for i, p := range cu.SectionVisitProb {
			if p < 0 || p > 1 {
				return invalid(fmt.Sprintf("customers.section_visit_prob[%d]", i), "must be in [0,1], got %g", p)
			}
		}
	}
	switch cu.RoutePolicy {
	case RouteNearest, RouteExact:
	default:
		return invalid("customers.route_policy", "unknown policy %q", cu.RoutePolicy)
	}
	if cu.ExactMaxVisits < 0 {
		return invalid("customers.exact_max_visits", "must not be negative")
	}

	in := c.Infection
	if in.InitProb < 0 || in.InitProb > 1 {
		return invalid("infection.init_prob", "must be in [0,1], got %g", in.InitProb)
	}
	if in.R0 < 0 {
		return invalid("infection.R0", "must not be negative, got %g", in.R0)
	}
	if in.AverageContacts <= 0 {
		return invalid("infection.average_contacts", "must be positive, got %g", in.AverageContacts)
	}
	// Infectious customers always divide by their duration.
	if err := checkRange("infection.duration_range", in.DurationRange, 1); err != nil {
		return err
	}

	if c.Batch.NSimulations < 1 {
		return invalid("batch.n_simulations", "must be at least 1, got %d", c.Batch.NSimulations)
	}
	if c.Batch.Workers < 1 {
		return invalid("batch.workers", "must be at least 1, got %d", c.Batch.Workers)
	}
	return nil
}

// Validate checks the store parameters, including the item catalogue.
func (s StoreConfig) Validate() error {
	if err := s.ValidateLayout(); err != nil {
		return err
	}
	if s.NSections <= 0 || s.NSections > s.SectionCapacity() {
		return invalid("store.n_sections", "must be in [1,%d], got %d", s.SectionCapacity(), s.NSections)
	}
	if s.ItemsPerSection <= 0 {
		return invalid("store.items_per_section", "must be positive, got %d", s.ItemsPerSection)
	}
	if maxItems := s.NSections * s.NShelves * s.ItemsPerSection; s.NItems <= 0 || s.NItems > maxItems {
		return invalid("store.n_items", "must be in [1,%d], got %d", maxItems, s.NItems)
	}
	return nil
}

// ValidateLayout checks only the grid dimensions.
func (s StoreConfig) ValidateLayout() error {
	if s.NAislesW <= 0 {
		return invalid("store.n_aisles_w", "must be positive, got %d", s.NAislesW)
	}
	if s.NAislesH <= 0 {
		return invalid("store.n_aisles_h", "must be positive, got %d", s.NAislesH)
	}
	if s.NShelves <= 0 {
		return invalid("store.n_shelves", "must be positive, got %d", s.NShelves)
	}
	return nil
}

func checkRange(field string, r IntRange, floor int) error {
	if r.Min() < floor {
		return invalid(field, "lower bound must be at least %d, got %d", floor, r.Min())
	}
	if r.Max() < r.Min() {
		return invalid(field, "upper bound %d below lower bound %d", r.Max(), r.Min())
	}
	return nil
}
