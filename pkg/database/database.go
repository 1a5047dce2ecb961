// Package database provides PostgreSQL connection management for the pipeline.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/arclight-io/scrubber/pkg/lifecycle"
)

// System manages the document store connection shared by all repositories.
type System interface {
	// Connection returns the underlying connection pool.
	Connection() *sql.DB
	// Open verifies connectivity and registers a close hook with the run.
	Open(run *lifecycle.Run) error
}

type database struct {
	conn        *sql.DB
	logger      *slog.Logger
	connTimeout time.Duration
}

// New validates the DSN and configures pool parameters. No connection is
// established until Open is called.
func New(cfg *Config, logger *slog.Logger) (System, error) {
	db, err := sql.Open("pgx", cfg.Dsn())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetimeDuration())

	return &database{
		conn:        db,
		logger:      logger.With("system", "database"),
		connTimeout: cfg.ConnTimeoutDuration(),
	}, nil
}

func (d *database) Connection() *sql.DB {
	return d.conn
}

func (d *database) Open(run *lifecycle.Run) error {
	ctx, cancel := context.WithTimeout(run.Context(), d.connTimeout)
	defer cancel()

	if err := d.conn.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	d.logger.Info("document store connection established")

	run.OnClose(func() {
		if err := d.conn.Close(); err != nil {
			d.logger.Error("database close failed", "error", err)
			return
		}
		d.logger.Info("document store connection closed")
	})

	return nil
}
