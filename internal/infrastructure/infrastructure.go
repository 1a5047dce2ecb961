// Package infrastructure assembles the long-lived clients a pipeline run
// shares across all concurrent batch tasks: logging, the document store
// connection, the entity detection client, and the optional artifact store.
package infrastructure

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/arclight-io/scrubber/internal/config"
	"github.com/arclight-io/scrubber/pkg/database"
	"github.com/arclight-io/scrubber/pkg/detection"
	"github.com/arclight-io/scrubber/pkg/lifecycle"
	"github.com/arclight-io/scrubber/pkg/storage"
)

// Infrastructure holds the shared systems. Clients are created once per run
// and treated as read-only by batch tasks.
type Infrastructure struct {
	Run      *lifecycle.Run
	Logger   *slog.Logger
	Database database.System
	Detector *detection.Client
	// Artifacts is nil unless blob mirroring is configured.
	Artifacts storage.System
}

// New creates the infrastructure from finalized configuration. Construction
// failures are configuration errors: fatal before any processing starts.
func New(cfg *config.Config, verbose bool) (*Infrastructure, error) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	db, err := database.New(&cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("database init failed: %w", err)
	}

	detector, err := detection.NewClient(&cfg.Detection, logger)
	if err != nil {
		return nil, fmt.Errorf("detection init failed: %w", err)
	}

	infra := &Infrastructure{
		Run:      lifecycle.New(),
		Logger:   logger,
		Database: db,
		Detector: detector,
	}

	if cfg.Storage.Enabled() {
		artifacts, err := storage.New(&cfg.Storage, logger)
		if err != nil {
			return nil, fmt.Errorf("artifact store init failed: %w", err)
		}
		infra.Artifacts = artifacts
	}

	return infra, nil
}

// Open establishes connectivity for all configured systems and registers
// their close hooks with the run.
func (i *Infrastructure) Open() error {
	if err := i.Database.Open(i.Run); err != nil {
		return fmt.Errorf("database open failed: %w", err)
	}
	if i.Artifacts != nil {
		if err := i.Artifacts.Open(i.Run); err != nil {
			return fmt.Errorf("artifact store open failed: %w", err)
		}
	}
	return nil
}
