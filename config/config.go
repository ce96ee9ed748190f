// Package config loads server configuration from an optional YAML file with
// environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds the server settings.
type Config struct {
	Port           int      `yaml:"port"`
	DatabasePath   string   `yaml:"database_path"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Default returns the configuration used when no file or env is present.
func Default() Config {
	return Config{
		Port:         8080,
		DatabasePath: "hostel.db",
		AllowedOrigins: []string{
			"http://localhost:5173",
			"http://localhost:8080",
		},
	}
}

// Load reads the YAML file at path (if it exists) over the defaults, then
// applies environment overrides: PORT, DATABASE_PATH.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Missing file is fine; defaults + env apply.
		case err != nil:
			return cfg, fmt.Errorf("reading config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parsing config %s: %w", path, err)
			}
		}
	}

	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		cfg.Port = port
	}
	if v := os.Getenv("DATABASE_PATH"); v != "" {
		cfg.DatabasePath = v
	}
	return cfg, nil
}
