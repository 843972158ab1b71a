package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"forgecore/pkg/logging"
)

// Load reads path, overlaying its contents onto Default(). A missing
// file is not an error: the caller gets pure defaults.
func Load(path string) (EngineConfig, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Info("config", "no config file at %s, using defaults", path)
			return cfg, nil
		}
		return EngineConfig{}, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return EngineConfig{}, fmt.Errorf("parsing config %s: %w", path, err)
	}
	logging.Info("config", "loaded configuration from %s", path)
	return cfg, nil
}
