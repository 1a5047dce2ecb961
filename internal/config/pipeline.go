package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/arclight-io/scrubber/pkg/detection"
)

const (
	EnvPipelineTier      = "SCRUBBER_PIPELINE_TIER"
	EnvPipelineBatchSize = "SCRUBBER_PIPELINE_BATCH_SIZE"
	EnvPipelineLanguage  = "SCRUBBER_PIPELINE_LANGUAGE"
)

// PipelineConfig holds operator-tunable pipeline parameters.
type PipelineConfig struct {
	// Tier is the detection service plan; it bounds concurrent in-flight
	// batches. One of "S", "S0", "F0".
	Tier string `toml:"tier"`
	// BatchSize is the number of documents per detection call, capped by
	// the service maximum.
	BatchSize int `toml:"batch_size"`
	// Language is the BCP-47 language code submitted with each document.
	Language string `toml:"language"`
	// CloudMode stores redacted output in the document store instead of a
	// local file.
	CloudMode bool `toml:"cloud_mode"`
	// RedactedOutput is the local JSON path for redacted messages.
	RedactedOutput string `toml:"redacted_output"`
	// FailedOutput is the local CSV path for failed-message metadata.
	FailedOutput string `toml:"failed_output"`
}

// Finalize applies defaults and environment variable overrides.
func (c *PipelineConfig) Finalize() {
	c.loadDefaults()
	c.loadEnv()
}

// Merge overwrites non-zero fields from overlay.
func (c *PipelineConfig) Merge(overlay *PipelineConfig) {
	if overlay.Tier != "" {
		c.Tier = overlay.Tier
	}
	if overlay.BatchSize != 0 {
		c.BatchSize = overlay.BatchSize
	}
	if overlay.Language != "" {
		c.Language = overlay.Language
	}
	if overlay.CloudMode {
		c.CloudMode = true
	}
	if overlay.RedactedOutput != "" {
		c.RedactedOutput = overlay.RedactedOutput
	}
	if overlay.FailedOutput != "" {
		c.FailedOutput = overlay.FailedOutput
	}
}

func (c *PipelineConfig) loadDefaults() {
	if c.Tier == "" {
		c.Tier = "S0"
	}
	if c.BatchSize == 0 {
		c.BatchSize = detection.MaxBatchSize
	}
	if c.Language == "" {
		c.Language = "en"
	}
	if c.RedactedOutput == "" {
		c.RedactedOutput = "redacted_messages.json"
	}
	if c.FailedOutput == "" {
		c.FailedOutput = "failed_messages_ledger.csv"
	}
}

func (c *PipelineConfig) loadEnv() {
	if v := os.Getenv(EnvPipelineTier); v != "" {
		c.Tier = v
	}
	if v := os.Getenv(EnvPipelineBatchSize); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.BatchSize = n
		}
	}
	if v := os.Getenv(EnvPipelineLanguage); v != "" {
		c.Language = v
	}
}

// Validate checks the fully resolved configuration.
func (c *PipelineConfig) Validate() error {
	switch c.Tier {
	case "S", "S0", "F0":
	default:
		return fmt.Errorf("invalid tier %q: must be S, S0, or F0", c.Tier)
	}
	if c.BatchSize < 1 || c.BatchSize > detection.MaxBatchSize {
		return fmt.Errorf("invalid batch_size %d: must be 1-%d", c.BatchSize, detection.MaxBatchSize)
	}
	if c.Language == "" {
		return fmt.Errorf("language required")
	}
	return nil
}
