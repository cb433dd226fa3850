package config

import (
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix namespaces environment overrides, e.g. AISLESIM_INFECTION_R0.
const EnvPrefix = "AISLESIM"

// requiredKeys must be present in a configuration file. The layout and the
// length of the day have no sensible universal default.
var requiredKeys = [][2]string{
	{"store", "n_aisles_w"},
	{"store", "n_aisles_h"},
	{"store", "n_shelves"},
	{"flow", "hours_open"},
	{"flow", "tick_duration_sec"},
}

// LoadFile reads a YAML configuration on top of Default. Keys present in the
// file win; everything else keeps its default. Unknown keys are ignored.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML bytes on top of Default and validates the result.
func Parse(data []byte) (Config, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Config{}, &ConfigError{Field: "yaml", Reason: err.Error()}
	}
	for _, key := range requiredKeys {
		section, ok := raw[key[0]].(map[string]any)
		if !ok {
			return Config{}, &ConfigError{Field: key[0], Reason: "missing section"}
		}
		if _, ok := section[key[1]]; !ok {
			return Config{}, &ConfigError{Field: key[0] + "." + key[1], Reason: "missing required key"}
		}
	}

	cfg := Default()
	// An arrival curve in the file replaces the default one wholesale.
	if customers, ok := raw["customers"].(map[string]any); ok {
		if _, ok := customers["arrival_gamma"]; ok {
			cfg.Customers.ArrivalGamma = nil
		}
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, &ConfigError{Field: "yaml", Reason: err.Error()}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from AISLESIM_* environment variables and
// revalidates.
func ApplyEnv(cfg *Config) error {
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return &ConfigError{Field: "env", Reason: err.Error()}
	}
	return cfg.Validate()
}
