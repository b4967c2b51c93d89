package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

var ErrNotFound = errors.New("not found")

// managedTables lists every table holding user data, children first so that
// deletes never trip a foreign key.
var managedTables = []string{"expenses", "days", "weeks", "months", "years", "expense_types"}

// Store is the file-backed SQLite handle shared by the repositories and the
// bring-up coordinator. The underlying *sql.DB is opened lazily and swapped
// when the file is deleted.
type Store struct {
	path       string
	migrations fs.FS
	now        func() time.Time

	mu sync.RWMutex
	db *sql.DB
}

type Option func(*Store)

// WithMigrations replaces the embedded migration set. The FS root must hold
// golang-migrate style NNN_title.up.sql files.
func WithMigrations(fsys fs.FS) Option {
	return func(s *Store) {
		s.migrations = fsys
	}
}

// WithClock overrides the time source used for created_at stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New returns a Store for dbPath without touching the disk.
func New(dbPath string, opts ...Option) *Store {
	s := &Store{
		path:       dbPath,
		migrations: embeddedMigrations(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) dsn() string {
	return s.path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

// DB returns the open handle, opening it on first use.
func (s *Store) DB() (*sql.DB, error) {
	s.mu.RLock()
	db := s.db
	s.mu.RUnlock()
	if db != nil {
		return db, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return s.db, nil
	}
	if s.path == "" {
		return nil, errors.New("empty database path")
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	db, err := sql.Open("sqlite", s.dsn())
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	s.db = db
	return db, nil
}

func (s *Store) exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Connect reports whether the store file exists and answers a ping.
func (s *Store) Connect(ctx context.Context) bool {
	if !s.exists() {
		return false
	}
	db, err := s.DB()
	if err != nil {
		return false
	}
	return db.PingContext(ctx) == nil
}

// CreateStoreIfAbsent makes sure the database file exists.
func (s *Store) CreateStoreIfAbsent(ctx context.Context) error {
	db, err := s.DB()
	if err != nil {
		return err
	}
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	return nil
}

// DeleteStore closes the handle and removes the database file together with
// its journal files. A missing file is not an error.
func (s *Store) DeleteStore(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
		s.db = nil
	}
	for _, suffix := range []string{"", "-wal", "-shm", "-journal"} {
		if err := os.Remove(s.path + suffix); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, fmt.Errorf("remove %s: %w", s.path+suffix, err))
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	slog.InfoContext(ctx, "Database store deleted", "path", s.path)
	return nil
}

// ClearAll deletes every row of every managed table in one transaction and
// resets the id sequences. The schema and migration history are kept.
func (s *Store) ClearAll(ctx context.Context) error {
	db, err := s.DB()
	if err != nil {
		return err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin clear: %w", err)
	}
	defer tx.Rollback()

	for _, table := range managedTables {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sqlite_sequence`); err != nil {
		return fmt.Errorf("reset sequences: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit clear: %w", err)
	}

	slog.InfoContext(ctx, "All data cleared", "tables", len(managedTables))
	return nil
}

// Path returns the absolute location of the database file.
func (s *Store) Path() (string, error) {
	if s.path == "" {
		return "", errors.New("empty database path")
	}
	return filepath.Abs(s.path)
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		return err
	}
	return nil
}
