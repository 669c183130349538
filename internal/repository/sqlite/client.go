package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/tybug/snitchvisbot/internal/config"
)

// Client wraps the SQLite database handle.
type Client struct {
	db  *sql.DB
	log *zap.Logger
}

// NewClient opens the SQLite database with the given configuration. WAL mode
// allows concurrent readers while an index job is writing; busy_timeout
// reduces SQLITE_BUSY errors under contention. The pragmas ride in the DSN
// so the driver applies them to every pooled connection, not just the one a
// setup statement happens to run on.
func NewClient(ctx context.Context, cfg *config.DBConfig, log *zap.Logger) (*Client, error) {
	log.Info("Opening SQLite database", zap.String("path", cfg.Path))

	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)",
		cfg.Path, cfg.BusyTimeoutMS)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info("SQLite database opened successfully")

	return &Client{db: db, log: log}, nil
}

// DB returns the underlying database handle.
func (c *Client) DB() *sql.DB {
	return c.db
}

// Close closes the database.
func (c *Client) Close() error {
	c.log.Info("Closing SQLite database")
	if err := c.db.Close(); err != nil {
		c.log.Error("Error closing SQLite database", zap.Error(err))
		return err
	}
	return nil
}
