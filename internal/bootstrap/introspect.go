package bootstrap

import (
	"context"

	"youspent/internal/log"
)

// The calls below are diagnostics. They swallow every error and degrade to an
// empty or false result.

// PendingMigrations returns the ids of migrations not yet applied, in order.
func (c *Coordinator) PendingMigrations(ctx context.Context) []string {
	ids, err := c.store.PendingMigrationIDs(ctx)
	if err != nil {
		c.logger.WarnContext(ctx, "Failed to list pending migrations", log.FieldError, err)
		return []string{}
	}
	if ids == nil {
		return []string{}
	}
	return ids
}

// AppliedMigrations returns the ids of applied migrations, in order.
func (c *Coordinator) AppliedMigrations(ctx context.Context) []string {
	ids, err := c.store.AppliedMigrationIDs(ctx)
	if err != nil {
		c.logger.WarnContext(ctx, "Failed to list applied migrations", log.FieldError, err)
		return []string{}
	}
	if ids == nil {
		return []string{}
	}
	return ids
}

// ClearAllData deletes every row of every managed table, keeping the schema,
// then seeds the default expense types again. It waits for an in-flight
// Initialize so the two never seed at the same time.
func (c *Coordinator) ClearAllData(ctx context.Context) (ok bool) {
	c.state.mu.Lock()
	defer c.state.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			c.logger.ErrorContext(ctx, "Clear data panicked", "panic", r)
			ok = false
		}
	}()

	if err := c.store.ClearAll(ctx); err != nil {
		c.logger.ErrorContext(ctx, "Failed to clear data", log.FieldError, err)
		return false
	}
	c.seed(ctx)
	return true
}

// CanConnect reports whether the store is reachable.
func (c *Coordinator) CanConnect(ctx context.Context) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()
	return c.store.Connect(ctx)
}

// StorePath returns the absolute store location, or "" when it cannot be resolved.
func (c *Coordinator) StorePath() string {
	p, err := c.store.Path()
	if err != nil {
		return ""
	}
	return p
}
