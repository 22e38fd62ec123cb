package repository

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"github.com/yeleman/anam-desktop/internal/database"
)

// Connector opens Sessions against the case database pool
type Connector struct {
	db      *sql.DB
	target  string
	timeout time.Duration
	logger  *zap.Logger
}

// NewConnector target names the store in connection errors
func NewConnector(db *sql.DB, target string, timeout time.Duration, logger *zap.Logger) *Connector {
	return &Connector{db: db, target: target, timeout: timeout, logger: logger}
}

// Open probes the store and returns a Session on a dedicated connection
func (c *Connector) Open(ctx context.Context) (*Session, error) {
	conn, err := database.Acquire(ctx, c.db, c.target, c.timeout)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("Case database session opened", zap.String("target", c.target))
	return NewSession(conn, c.logger), nil
}
