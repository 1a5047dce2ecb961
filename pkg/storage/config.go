package storage

import (
	"fmt"
	"os"
)

// Config holds Azure Blob Storage parameters for run artifacts.
// Artifact mirroring is optional: it activates only when a connection
// string is configured.
type Config struct {
	ContainerName    string `toml:"container_name"`
	ConnectionString string `toml:"connection_string"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	ContainerName    string
	ConnectionString string
}

// Enabled reports whether artifact mirroring is configured.
func (c *Config) Enabled() bool {
	return c.ConnectionString != ""
}

// Finalize applies defaults and environment variable overrides.
func (c *Config) Finalize(env *Env) {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	if overlay.ContainerName != "" {
		c.ContainerName = overlay.ContainerName
	}
	if overlay.ConnectionString != "" {
		c.ConnectionString = overlay.ConnectionString
	}
}

func (c *Config) loadDefaults() {
	if c.ContainerName == "" {
		c.ContainerName = "scrubber-artifacts"
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.ContainerName != "" {
		if v := os.Getenv(env.ContainerName); v != "" {
			c.ContainerName = v
		}
	}
	if env.ConnectionString != "" {
		if v := os.Getenv(env.ConnectionString); v != "" {
			c.ConnectionString = v
		}
	}
}

// Validate checks the fully resolved configuration.
func (c *Config) Validate() error {
	if c.Enabled() && c.ContainerName == "" {
		return fmt.Errorf("container_name required")
	}
	return nil
}
