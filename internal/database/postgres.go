package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/yeleman/anam-desktop/internal/config"
	"github.com/yeleman/anam-desktop/internal/domain"
)

// NewPostgresDB opens the case database pool. No connection is made until
// Acquire or the first query.
func NewPostgresDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
		db.SetMaxIdleConns(cfg.MaxConns)
	}
	return db, nil
}

// Acquire probes the database within timeout and pins one connection for
// exclusive use by the caller.
func Acquire(ctx context.Context, db *sql.DB, target string, timeout time.Duration) (*sql.Conn, error) {
	probeCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		probeCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := db.PingContext(probeCtx); err != nil {
		return nil, &domain.ConnectionError{Target: target, Err: err}
	}
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, &domain.ConnectionError{Target: target, Err: err}
	}
	return conn, nil
}

// Close closes the pool
func Close(db *sql.DB) error {
	if db != nil {
		return db.Close()
	}
	return nil
}
