// Package bootstrap brings the expense store from an unknown state to
// "schema current and defaults present", once per process.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"

	"youspent/internal/core"
	"youspent/internal/log"
)

// ErrInitialization is wrapped by the error Initialize returns under FailureFatal.
var ErrInitialization = errors.New("database initialization failed")

// Persistence is the store handle the coordinator drives.
type Persistence interface {
	Connect(ctx context.Context) bool
	ApplyMigrations(ctx context.Context) error
	AppliedMigrationIDs(ctx context.Context) ([]string, error)
	PendingMigrationIDs(ctx context.Context) ([]string, error)
	DeleteStore(ctx context.Context) error
	CreateStoreIfAbsent(ctx context.Context) error
	Path() (string, error)
	ClearAll(ctx context.Context) error
}

// ExpenseTypes is the subset of the expense type repository used for seeding
// and for the schema drift check.
type ExpenseTypes interface {
	Count(ctx context.Context) (int64, error)
	Add(ctx context.Context, et core.ExpenseType) (core.ExpenseType, error)
}

// FailureMode decides what Initialize does when recovery also fails.
type FailureMode int

const (
	// FailureFatal returns an error wrapping ErrInitialization.
	FailureFatal FailureMode = iota
	// FailureDegrade logs the failure and returns nil, leaving the store as is.
	FailureDegrade
)

func (m FailureMode) String() string {
	switch m {
	case FailureFatal:
		return "fatal"
	case FailureDegrade:
		return "degrade"
	default:
		return fmt.Sprintf("FailureMode(%d)", int(m))
	}
}

// ParseFailureMode accepts "fatal" or "degrade", ignoring case.
func ParseFailureMode(s string) (FailureMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fatal":
		return FailureFatal, nil
	case "degrade":
		return FailureDegrade, nil
	default:
		return FailureFatal, fmt.Errorf("unknown failure mode %q (want fatal or degrade)", s)
	}
}

type Coordinator struct {
	store   Persistence
	types   ExpenseTypes
	state   *State
	mode    FailureMode
	timeout time.Duration
	logger  *log.Logger
	now     func() time.Time
	metrics *metrics
}

type Option func(*Coordinator)

func WithFailureMode(mode FailureMode) Option {
	return func(c *Coordinator) { c.mode = mode }
}

// WithTimeout bounds the whole bring-up, recovery included. Zero means no deadline.
func WithTimeout(d time.Duration) Option {
	return func(c *Coordinator) { c.timeout = d }
}

func WithLogger(l *log.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// WithClock overrides the time source for seed creation stamps.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// WithRegisterer registers the bring-up metrics with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(c *Coordinator) { c.metrics = newMetrics(reg) }
}

// NewCoordinator wires a coordinator. A nil state gets a fresh one, which only
// makes sense when this coordinator is the sole owner of the store.
func NewCoordinator(store Persistence, types ExpenseTypes, state *State, opts ...Option) *Coordinator {
	if state == nil {
		state = NewState()
	}
	c := &Coordinator{
		store:  store,
		types:  types,
		state:  state,
		mode:   FailureFatal,
		logger: log.New(log.DefaultConfig()).WithComponent(log.ComponentBootstrap),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = newMetrics(nil)
	}
	return c
}

// Initialize performs the one-shot bring-up: drift check, optional
// recreation, migrations and seeding, with a single recovery attempt. Calls
// after a successful bring-up return nil immediately; concurrent callers block
// until the in-flight attempt finishes.
func (c *Coordinator) Initialize(ctx context.Context) error {
	c.state.mu.Lock()
	defer c.state.mu.Unlock()

	if c.state.done {
		return nil
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	ctx, span := startSpan(ctx, "Coordinator.Initialize",
		attribute.String("bootstrap.failure_mode", c.mode.String()))
	start := time.Now()

	outcome := outcomeOK
	err := c.bringUp(ctx)
	switch {
	case err == nil:
	case ctx.Err() != nil:
		// Cancelled or timed out: no recovery, the store stays as it is.
		err = fmt.Errorf("%w: %w", ErrInitialization, err)
		outcome = outcomeFailed
	default:
		c.logger.WarnContext(ctx, "Database bring-up failed, recreating store", log.FieldError, err)
		outcome = outcomeRecovered
		if rerr := c.recreate(ctx); rerr != nil {
			err = fmt.Errorf("%w: %w", ErrInitialization, errors.Join(err, rerr))
			outcome = outcomeFailed
		} else {
			err = nil
		}
	}

	c.metrics.runs.WithLabelValues(outcome).Inc()
	c.metrics.duration.Observe(time.Since(start).Seconds())
	span.SetAttributes(attribute.String("bootstrap.outcome", outcome))
	endSpan(span, err)

	if err != nil {
		if c.mode == FailureDegrade {
			c.logger.ErrorContext(ctx, "Database initialization failed, continuing with degraded store",
				log.FieldError, err)
			return nil
		}
		c.logger.ErrorContext(ctx, "Database initialization failed", log.FieldError, err)
		return err
	}

	c.state.done = true
	c.logger.InfoContext(ctx, "Database initialized",
		log.FieldOutcome, outcome,
		log.FieldDuration, time.Since(start).Milliseconds())
	return nil
}

func (c *Coordinator) bringUp(ctx context.Context) (err error) {
	ctx, span := startSpan(ctx, "Coordinator.bringUp")
	defer func() { endSpan(span, err) }()

	if c.needsRecreation(ctx) {
		c.logger.WarnContext(ctx, "Schema drift detected, recreating store")
		if err := c.store.DeleteStore(ctx); err != nil {
			c.logger.WarnContext(ctx, "Failed to delete drifted store", log.FieldError, err)
		}
	}
	if err := c.migrate(ctx); err != nil {
		return err
	}
	c.seed(ctx)
	return nil
}

// recreate forces a store deletion and runs migrations and seeding once more.
func (c *Coordinator) recreate(ctx context.Context) (err error) {
	ctx, span := startSpan(ctx, "Coordinator.recreate")
	defer func() { endSpan(span, err) }()
	c.metrics.recoveries.Inc()

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.store.DeleteStore(ctx); err != nil {
		return fmt.Errorf("delete store: %w", err)
	}
	if err := c.migrate(ctx); err != nil {
		return err
	}
	c.seed(ctx)
	c.logger.InfoContext(ctx, "Store recreated after failed bring-up")
	return nil
}

// needsRecreation reports whether the store claims applied migrations while
// the expense type table cannot be queried. Failures while checking mean no conflict.
func (c *Coordinator) needsRecreation(ctx context.Context) bool {
	if !c.store.Connect(ctx) {
		c.logger.DebugContext(ctx, "Store unreachable, skipping drift check")
		return false
	}
	applied, err := c.store.AppliedMigrationIDs(ctx)
	if err != nil {
		c.logger.WarnContext(ctx, "Failed to read migration history", log.FieldError, err)
		return false
	}
	if len(applied) == 0 {
		return false
	}
	if _, err := c.types.Count(ctx); err != nil {
		if ctx.Err() != nil {
			return false
		}
		c.logger.WarnContext(ctx, "Expense type table unreadable despite applied migrations",
			"applied", len(applied), log.FieldError, err)
		return true
	}
	return false
}

func (c *Coordinator) migrate(ctx context.Context) error {
	if err := c.store.CreateStoreIfAbsent(ctx); err != nil {
		return fmt.Errorf("create store: %w", err)
	}
	if err := c.store.ApplyMigrations(ctx); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// seed inserts the default expense types into an empty table. Failures are
// logged and never escalated.
func (c *Coordinator) seed(ctx context.Context) {
	ctx, span := startSpan(ctx, "Coordinator.seed")
	var err error
	defer func() { endSpan(span, err) }()

	var n int64
	n, err = c.types.Count(ctx)
	if err != nil {
		c.logger.WarnContext(ctx, "Failed to count expense types, skipping seed", log.FieldError, err)
		return
	}
	if n > 0 {
		span.SetAttributes(attribute.Int64("bootstrap.existing_types", n))
		return
	}

	inserted := 0
	for _, et := range core.DefaultExpenseTypes(c.now()) {
		if _, err = c.types.Add(ctx, et); err != nil {
			c.logger.WarnContext(ctx, "Failed to seed expense type", "name", et.Name, log.FieldError, err)
			break
		}
		inserted++
	}
	c.metrics.seeded.Add(float64(inserted))
	span.SetAttributes(attribute.Int("bootstrap.seeded_types", inserted))
	c.logger.InfoContext(ctx, "Default expense types seeded", "count", inserted)
}
