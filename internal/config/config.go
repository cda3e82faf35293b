// Package config loads the hub's static startup settings: a bind
// address and a log level. Connection tunables (ping interval, maximum
// message size) are constants in internal/handler and are not read from
// the config file. None of it is state the registry
// or its peers depend on across a connection's lifetime — spec.md's
// "Persisted state: None" is about the roster, not about how the
// process itself is configured at startup.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the hub's process-level settings.
type Config struct {
	Address  string `yaml:"address"`
	LogLevel string `yaml:"logLevel"`
}

// Default mirrors spec.md §6: "default localhost:4000".
func Default() Config {
	return Config{Address: "localhost:4000", LogLevel: "info"}
}

// Load reads an optional YAML file at path and overlays it onto the
// defaults. A missing path is not an error — the file is optional, per
// the teacher's own env-var-first posture
// (jhead-lanscape/signaling/cmd/signaling/main.go has no config file at
// all; this module adds one because a multi-flag CLI benefits from it,
// following ehrlich-b-wingthing's config.Load pattern).
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
