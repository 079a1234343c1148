package health

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// DatabaseChecker checks PostgreSQL connectivity for the snapshot store
type DatabaseChecker struct {
	db      *sqlx.DB
	timeout time.Duration
}

func NewDatabaseChecker(db *sqlx.DB, timeout time.Duration) *DatabaseChecker {
	if timeout == 0 {
		timeout = 3 * time.Second
	}
	return &DatabaseChecker{db: db, timeout: timeout}
}

func (c *DatabaseChecker) Name() string { return "database" }

func (c *DatabaseChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.db.PingContext(ctx); err != nil {
		return NewUnhealthyResult("database", err).WithDuration(time.Since(start))
	}

	stats := c.db.Stats()
	return NewHealthyResult("database", "connected").
		WithDuration(time.Since(start)).
		WithMetadata("open_connections", stats.OpenConnections).
		WithMetadata("in_use", stats.InUse)
}
