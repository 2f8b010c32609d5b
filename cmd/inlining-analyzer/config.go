package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/wichtounet/inlining-analyzer/internal/params"
)

// Config is the optional YAML configuration file accepted by --config. Every
// field is optional; an absent file leaves every Engine option at its
// built-in default.
type Config struct {
	ProtectedLibraries []string           `yaml:"protected_libraries"`
	Filters            []string           `yaml:"filters"`
	DefaultFilters     bool               `yaml:"default_filters"`
	Demangled          bool               `yaml:"demangled"`
	FilterDuplicates   bool               `yaml:"filter_duplicates"`
	Parameters         map[string]float64 `yaml:"parameters"`
}

// loadConfig reads and validates a YAML config file. An empty path is not
// an error: it returns the zero Config.
func loadConfig(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	for name := range cfg.Parameters {
		if _, ok := params.ByName(name); !ok {
			return cfg, fmt.Errorf("parsing config: unknown parameter %q", name)
		}
	}

	return cfg, nil
}
