// Package config holds the canopy CLI configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the full application configuration.
type Config struct {
	// ProgramsDir is the directory of program definition YAML files.
	ProgramsDir string `yaml:"programs_dir"`

	// StorePath is the sqlite run-store database file.
	StorePath string `yaml:"store_path"`

	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Verbose bool `yaml:"verbose"`
}

// Default returns the configuration used when no config file exists.
func Default() Config {
	return Config{
		ProgramsDir: "programs",
		StorePath:   filepath.Join(".canopy", "runs.db"),
	}
}

// Load reads a YAML config file, layering it over the defaults. A missing
// file is not an error; the defaults are returned.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}
