// Package config loads and finalizes the pipeline configuration from TOML
// files, environment overlays, and environment variable overrides.
package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/arclight-io/scrubber/pkg/database"
	"github.com/arclight-io/scrubber/pkg/detection"
	"github.com/arclight-io/scrubber/pkg/storage"
)

const (
	BaseConfigFile       = "config.toml"
	OverlayConfigPattern = "config.%s.toml"

	EnvScrubberEnv = "SCRUBBER_ENV"
)

var databaseEnv = &database.Env{
	Host:            "SCRUBBER_DB_HOST",
	Port:            "SCRUBBER_DB_PORT",
	Name:            "SCRUBBER_DB_NAME",
	User:            "SCRUBBER_DB_USER",
	Password:        "SCRUBBER_DB_PASSWORD",
	SSLMode:         "SCRUBBER_DB_SSL_MODE",
	ConnMaxLifetime: "SCRUBBER_DB_CONN_MAX_LIFETIME",
	ConnTimeout:     "SCRUBBER_DB_CONN_TIMEOUT",
}

var detectionEnv = &detection.Env{
	Endpoint: "SCRUBBER_LANGUAGE_ENDPOINT",
	Key:      "SCRUBBER_LANGUAGE_KEY",
	Timeout:  "SCRUBBER_LANGUAGE_TIMEOUT",
}

var storageEnv = &storage.Env{
	ContainerName:    "SCRUBBER_STORAGE_CONTAINER_NAME",
	ConnectionString: "SCRUBBER_STORAGE_CONNECTION_STRING",
}

// Config is the root configuration for a pipeline run. An immutable *Config
// is passed into the pipeline constructor; no package-level mutable state.
type Config struct {
	Pipeline  PipelineConfig   `toml:"pipeline"`
	Database  database.Config  `toml:"database"`
	Detection detection.Config `toml:"detection"`
	Storage   storage.Config   `toml:"storage"`
}

// Env returns the SCRUBBER_ENV value, defaulting to "local".
func (c *Config) Env() string {
	if env := os.Getenv(EnvScrubberEnv); env != "" {
		return env
	}
	return "local"
}

// Load reads the base config (if present) and applies any environment
// overlay. An explicit path overrides the default base file. If no config
// file exists, an empty config is returned so Finalize, flag merging, and
// Validate can resolve the run from defaults, environment variables, and
// flags alone.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	base := path
	if base == "" {
		base = BaseConfigFile
	}

	if _, err := os.Stat(base); err == nil {
		loaded, err := load(base)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else if path != "" {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}

	if overlay := overlayPath(); overlay != "" {
		loaded, err := load(overlay)
		if err != nil {
			return nil, fmt.Errorf("load overlay %s: %w", overlay, err)
		}
		cfg.Merge(loaded)
	}

	return cfg, nil
}

// Merge overwrites non-zero fields from overlay across all sub-configs.
func (c *Config) Merge(overlay *Config) {
	c.Pipeline.Merge(&overlay.Pipeline)
	c.Database.Merge(&overlay.Database)
	c.Detection.Merge(&overlay.Detection)
	c.Storage.Merge(&overlay.Storage)
}

// Finalize applies defaults and environment overrides to all sub-configs.
// Explicit overlays (CLI flags) merge after Finalize so they take precedence
// over environment variables; Validate runs last on the resolved values.
func (c *Config) Finalize() {
	c.Pipeline.Finalize()
	c.Database.Finalize(databaseEnv)
	c.Detection.Finalize(detectionEnv)
	c.Storage.Finalize(storageEnv)
}

// Validate checks the fully resolved configuration. Failures here are
// configuration errors: fatal before any processing starts.
func (c *Config) Validate() error {
	if err := c.Pipeline.Validate(); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	if err := c.Database.Validate(); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := c.Detection.Validate(); err != nil {
		return fmt.Errorf("detection: %w", err)
	}
	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	return nil
}

func load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

func overlayPath() string {
	if env := os.Getenv(EnvScrubberEnv); env != "" {
		path := fmt.Sprintf(OverlayConfigPattern, env)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
