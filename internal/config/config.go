// Package config loads backtest strategy configuration from a YAML file,
// applying spec defaults to any field left unset.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sawpanic/statarb-backtester/internal/backtest"
)

// Load reads a YAML config file and merges it over backtest.DefaultConfig.
// Keys absent from the file keep their defaults; any key present in the
// file, including one set explicitly to 0, overrides the default.
func Load(path string) (backtest.Config, error) {
	cfg := backtest.DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return backtest.Config{}, fmt.Errorf("read config file %q: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return backtest.Config{}, fmt.Errorf("parse config file %q: %w", path, err)
	}

	return cfg, nil
}
