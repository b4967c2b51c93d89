package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

func embeddedMigrations() fs.FS {
	sub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

// Migration identifies one forward-only schema delta.
type Migration struct {
	Version uint
	ID      string
}

// Migrations lists the defined migrations in application order.
func (s *Store) Migrations() ([]Migration, error) {
	src, err := iofs.New(s.migrations, ".")
	if err != nil {
		return nil, fmt.Errorf("create iofs source: %w", err)
	}
	defer src.Close()

	var out []Migration
	version, err := src.First()
	for err == nil {
		m, rerr := readMigration(src, version)
		if rerr != nil {
			return nil, rerr
		}
		out = append(out, m)
		version, err = src.Next(version)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	return out, nil
}

func readMigration(src source.Driver, version uint) (Migration, error) {
	r, identifier, err := src.ReadUp(version)
	if err != nil {
		return Migration{}, fmt.Errorf("read migration %d: %w", version, err)
	}
	r.Close()
	return Migration{Version: version, ID: fmt.Sprintf("%03d_%s", version, identifier)}, nil
}

// ApplyMigrations brings the schema up to the latest version.
func (s *Store) ApplyMigrations(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// Create a separate connection for migrations to avoid interfering with the main connection
	migrateDB, err := sql.Open("sqlite", s.dsn())
	if err != nil {
		return fmt.Errorf("open migration database: %w", err)
	}
	defer migrateDB.Close()

	driver, err := sqlite.WithInstance(migrateDB, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite driver: %w", err)
	}

	d, err := iofs.New(s.migrations, ".")
	if err != nil {
		return fmt.Errorf("create iofs source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", d, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			m.GracefulStop <- true
		case <-done:
		}
	}()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("read schema version: %w", err)
	}
	slog.InfoContext(ctx, "Migrations applied", "version", version, "dirty", dirty)
	return nil
}

// schemaVersion reads golang-migrate's history row without creating anything.
// ok is false when the store or the history table does not exist.
func (s *Store) schemaVersion(ctx context.Context) (version uint, dirty bool, ok bool, err error) {
	if !s.exists() {
		return 0, false, false, nil
	}
	db, err := s.DB()
	if err != nil {
		return 0, false, false, err
	}

	var tables int
	err = db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'schema_migrations'`).Scan(&tables)
	if err != nil {
		return 0, false, false, fmt.Errorf("inspect schema: %w", err)
	}
	if tables == 0 {
		return 0, false, false, nil
	}

	var v int64
	err = db.QueryRowContext(ctx, `SELECT version, dirty FROM schema_migrations LIMIT 1`).Scan(&v, &dirty)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, false, nil
	}
	if err != nil {
		return 0, false, false, fmt.Errorf("read schema version: %w", err)
	}
	if v < 0 {
		return 0, false, false, nil
	}
	return uint(v), dirty, true, nil
}

// AppliedMigrationIDs returns the ids of migrations recorded as applied, in
// order. A dirty head version counts as not applied.
func (s *Store) AppliedMigrationIDs(ctx context.Context) ([]string, error) {
	applied, _, err := s.splitMigrations(ctx)
	return applied, err
}

// PendingMigrationIDs returns the ids still to be applied, in order.
func (s *Store) PendingMigrationIDs(ctx context.Context) ([]string, error) {
	_, pending, err := s.splitMigrations(ctx)
	return pending, err
}

func (s *Store) splitMigrations(ctx context.Context) ([]string, []string, error) {
	all, err := s.Migrations()
	if err != nil {
		return nil, nil, err
	}
	version, dirty, ok, err := s.schemaVersion(ctx)
	if err != nil {
		return nil, nil, err
	}

	applied := []string{}
	pending := []string{}
	for _, m := range all {
		isApplied := ok && (m.Version < version || (m.Version == version && !dirty))
		if isApplied {
			applied = append(applied, m.ID)
		} else {
			pending = append(pending, m.ID)
		}
	}
	return applied, pending, nil
}
