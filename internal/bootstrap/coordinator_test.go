package bootstrap

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"youspent/internal/core"
	"youspent/internal/log"
)

var (
	errBoom   = errors.New("boom")
	fixedTime = time.Date(2024, time.January, 2, 9, 0, 0, 0, time.UTC)
)

// fakeStore records calls and replays scripted failures.
type fakeStore struct {
	mu sync.Mutex

	reachable    bool
	applied      []string
	appliedErr   error
	pendingErr   error
	applyErrs    []error // consumed per call; the last one repeats
	blockApply   bool
	deleteErr    error
	createErr    error
	clearErr     error
	pathErr      error
	connectPanic bool

	types *fakeTypes

	applyCalls  int
	deleteCalls int
	createCalls int
	clearCalls  int
}

func (f *fakeStore) Connect(context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connectPanic {
		panic("driver exploded")
	}
	return f.reachable
}

func (f *fakeStore) ApplyMigrations(ctx context.Context) error {
	f.mu.Lock()
	f.applyCalls++
	block := f.blockApply
	var err error
	if len(f.applyErrs) > 0 {
		err = f.applyErrs[0]
		if len(f.applyErrs) > 1 {
			f.applyErrs = f.applyErrs[1:]
		}
	}
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.reachable = true
	f.applied = []string{"001_create_expense_types", "002_create_calendar", "003_create_expenses"}
	f.mu.Unlock()
	return nil
}

func (f *fakeStore) AppliedMigrationIDs(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appliedErr != nil {
		return nil, f.appliedErr
	}
	return append([]string(nil), f.applied...), nil
}

func (f *fakeStore) PendingMigrationIDs(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pendingErr != nil {
		return nil, f.pendingErr
	}
	return nil, nil
}

func (f *fakeStore) DeleteStore(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls++
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.reachable = false
	f.applied = nil
	if f.types != nil {
		f.types.reset()
	}
	return nil
}

func (f *fakeStore) CreateStoreIfAbsent(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	return f.createErr
}

func (f *fakeStore) Path() (string, error) {
	if f.pathErr != nil {
		return "", f.pathErr
	}
	return "/var/lib/youspent/youspent.db", nil
}

func (f *fakeStore) ClearAll(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clearCalls++
	if f.clearErr != nil {
		return f.clearErr
	}
	if f.types != nil {
		f.types.reset()
	}
	return nil
}

type fakeTypes struct {
	mu        sync.Mutex
	rows      []core.ExpenseType
	countErrs []error // consumed per call
	addErr    error
	addCalls  int
}

func (f *fakeTypes) Count(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.countErrs) > 0 {
		err := f.countErrs[0]
		f.countErrs = f.countErrs[1:]
		if err != nil {
			return 0, err
		}
	}
	return int64(len(f.rows)), nil
}

func (f *fakeTypes) Add(_ context.Context, et core.ExpenseType) (core.ExpenseType, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addCalls++
	if f.addErr != nil {
		return et, f.addErr
	}
	et.ID = int64(len(f.rows) + 1)
	f.rows = append(f.rows, et)
	return et, nil
}

func (f *fakeTypes) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = nil
}

func (f *fakeTypes) names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.rows))
	for _, r := range f.rows {
		names = append(names, r.Name)
	}
	return names
}

func newFakes() (*fakeStore, *fakeTypes) {
	types := &fakeTypes{}
	return &fakeStore{types: types}, types
}

func newTestCoordinator(store Persistence, types ExpenseTypes, opts ...Option) *Coordinator {
	opts = append([]Option{WithLogger(log.Discard()), WithClock(func() time.Time { return fixedTime })}, opts...)
	return NewCoordinator(store, types, NewState(), opts...)
}

func TestInitialize_FreshStore(t *testing.T) {
	store, types := newFakes()
	c := newTestCoordinator(store, types)

	require.NoError(t, c.Initialize(context.Background()))

	assert.Equal(t, 1, store.applyCalls)
	assert.Equal(t, 1, store.createCalls)
	assert.Zero(t, store.deleteCalls, "unreachable store is not recreated")
	assert.Equal(t, core.DefaultExpenseTypeNames, types.names())
	for _, et := range types.rows {
		assert.True(t, et.IsActive)
		assert.Equal(t, fixedTime, et.CreatedAt)
	}
	assert.True(t, c.state.Initialized())
}

func TestInitialize_Idempotent(t *testing.T) {
	store, types := newFakes()
	c := newTestCoordinator(store, types)

	for i := 0; i < 5; i++ {
		require.NoError(t, c.Initialize(context.Background()))
	}

	assert.Equal(t, 1, store.applyCalls)
	assert.Equal(t, len(core.DefaultExpenseTypeNames), types.addCalls)
}

func TestInitialize_SharedStateAcrossCoordinators(t *testing.T) {
	store, types := newFakes()
	state := NewState()
	first := NewCoordinator(store, types, state, WithLogger(log.Discard()))
	second := NewCoordinator(store, types, state, WithLogger(log.Discard()))

	require.NoError(t, first.Initialize(context.Background()))
	require.NoError(t, second.Initialize(context.Background()))

	assert.Equal(t, 1, store.applyCalls)
}

func TestInitialize_ConcurrentCallers(t *testing.T) {
	store, types := newFakes()
	c := newTestCoordinator(store, types)

	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < 10; i++ {
		g.Go(func() error {
			return c.Initialize(ctx)
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, 1, store.applyCalls)
	assert.Len(t, types.names(), len(core.DefaultExpenseTypeNames))
}

func TestInitialize_SeedSkippedWhenTypesExist(t *testing.T) {
	store, types := newFakes()
	types.rows = []core.ExpenseType{{ID: 1, Name: "Rent"}, {ID: 2, Name: "Gym"}, {ID: 3, Name: "Pets"}}
	c := newTestCoordinator(store, types)

	require.NoError(t, c.Initialize(context.Background()))

	assert.Zero(t, types.addCalls)
	assert.Equal(t, []string{"Rent", "Gym", "Pets"}, types.names())
}

func TestInitialize_DriftTriggersRecreation(t *testing.T) {
	store, types := newFakes()
	store.reachable = true
	store.applied = []string{"001_create_expense_types"}
	types.rows = []core.ExpenseType{{ID: 1, Name: "Stale"}}
	types.countErrs = []error{errors.New("no such table: expense_types")}
	c := newTestCoordinator(store, types)

	require.NoError(t, c.Initialize(context.Background()))

	assert.Equal(t, 1, store.deleteCalls)
	assert.Equal(t, 1, store.applyCalls)
	assert.Equal(t, core.DefaultExpenseTypeNames, types.names())
}

func TestInitialize_NoDriftQueryWithoutAppliedMigrations(t *testing.T) {
	store, types := newFakes()
	store.reachable = true
	types.countErrs = []error{errBoom}
	c := newTestCoordinator(store, types)

	require.NoError(t, c.Initialize(context.Background()))

	assert.Zero(t, store.deleteCalls)
	// the scripted failure hits the seed count instead and is only logged
	assert.Zero(t, types.addCalls)
	assert.True(t, c.state.Initialized())
}

func TestInitialize_HistoryReadFailureMeansNoConflict(t *testing.T) {
	store, types := newFakes()
	store.reachable = true
	store.appliedErr = errBoom
	c := newTestCoordinator(store, types)

	require.NoError(t, c.Initialize(context.Background()))
	assert.Zero(t, store.deleteCalls)
	assert.Equal(t, 1, store.applyCalls)
}

func TestInitialize_DeleteFailureDuringRecreationIsLogged(t *testing.T) {
	store, types := newFakes()
	store.reachable = true
	store.applied = []string{"001_create_expense_types"}
	store.deleteErr = errors.New("file locked")
	types.countErrs = []error{errors.New("no such table: expense_types")}
	c := newTestCoordinator(store, types)

	require.NoError(t, c.Initialize(context.Background()))

	assert.Equal(t, 1, store.deleteCalls)
	assert.Equal(t, 1, store.applyCalls)
}

func TestInitialize_RecoverySucceeds(t *testing.T) {
	reg := prometheus.NewRegistry()
	store, types := newFakes()
	store.applyErrs = []error{errors.New("dirty database version 2"), nil}
	c := newTestCoordinator(store, types, WithRegisterer(reg))

	require.NoError(t, c.Initialize(context.Background()))

	assert.Equal(t, 2, store.applyCalls)
	assert.Equal(t, 1, store.deleteCalls)
	assert.Equal(t, core.DefaultExpenseTypeNames, types.names())
	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.runs.WithLabelValues(outcomeRecovered)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.recoveries))
	assert.Equal(t, float64(len(core.DefaultExpenseTypeNames)), testutil.ToFloat64(c.metrics.seeded))
}

func TestInitialize_RecoveryBound(t *testing.T) {
	tests := []struct {
		name    string
		mode    FailureMode
		wantErr bool
	}{
		{"fatal", FailureFatal, true},
		{"degrade", FailureDegrade, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, types := newFakes()
			first := errors.New("first failure")
			second := errors.New("second failure")
			store.applyErrs = []error{first, second}
			c := newTestCoordinator(store, types, WithFailureMode(tt.mode))

			err := c.Initialize(context.Background())

			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInitialization)
				assert.ErrorIs(t, err, first)
				assert.ErrorIs(t, err, second)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, 2, store.applyCalls, "exactly one recovery attempt")
			assert.Equal(t, 1, store.deleteCalls)
			assert.False(t, c.state.Initialized())
			assert.Empty(t, types.names())
		})
	}
}

func TestInitialize_RetriesAfterFailedAttempt(t *testing.T) {
	store, types := newFakes()
	store.applyErrs = []error{errBoom, errBoom, nil}
	c := newTestCoordinator(store, types, WithFailureMode(FailureDegrade))

	require.NoError(t, c.Initialize(context.Background()))
	require.False(t, c.state.Initialized())

	require.NoError(t, c.Initialize(context.Background()))
	assert.True(t, c.state.Initialized())
	assert.Equal(t, 3, store.applyCalls)
}

func TestInitialize_RecoveryDeleteFailure(t *testing.T) {
	store, types := newFakes()
	store.applyErrs = []error{errBoom}
	store.deleteErr = errors.New("permission denied")
	c := newTestCoordinator(store, types)

	err := c.Initialize(context.Background())

	require.ErrorIs(t, err, ErrInitialization)
	assert.Equal(t, 1, store.applyCalls, "recovery stops when the store cannot be deleted")
}

func TestInitialize_CreateFailureTriggersRecovery(t *testing.T) {
	store, types := newFakes()
	store.createErr = errBoom
	c := newTestCoordinator(store, types)

	err := c.Initialize(context.Background())

	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, 2, store.createCalls)
	assert.Zero(t, store.applyCalls)
}

func TestInitialize_SeedFailureNotEscalated(t *testing.T) {
	store, types := newFakes()
	types.addErr = errBoom
	c := newTestCoordinator(store, types)

	require.NoError(t, c.Initialize(context.Background()))

	assert.Equal(t, 1, types.addCalls, "seeding stops at the first failed insert")
	assert.Zero(t, store.deleteCalls)
	assert.True(t, c.state.Initialized())
}

func TestInitialize_Timeout(t *testing.T) {
	store, types := newFakes()
	store.blockApply = true
	c := newTestCoordinator(store, types, WithTimeout(20*time.Millisecond))

	err := c.Initialize(context.Background())

	require.ErrorIs(t, err, ErrInitialization)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, store.applyCalls, "an expired attempt is not retried")
	assert.Zero(t, store.deleteCalls, "an expired attempt never deletes the store")
	assert.False(t, c.state.Initialized())
}

func TestInitialize_CancelledSkipsRecovery(t *testing.T) {
	tests := []struct {
		name string
		mode FailureMode
	}{
		{"fatal", FailureFatal},
		{"degrade", FailureDegrade},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := prometheus.NewRegistry()
			store, types := newFakes()
			store.reachable = true
			store.applied = []string{"001_create_expense_types"}
			store.applyErrs = []error{context.Canceled}
			types.countErrs = []error{context.Canceled}
			c := newTestCoordinator(store, types, WithFailureMode(tt.mode), WithRegisterer(reg))

			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			err := c.Initialize(ctx)

			if tt.mode == FailureFatal {
				require.ErrorIs(t, err, ErrInitialization)
				assert.ErrorIs(t, err, context.Canceled)
			} else {
				assert.NoError(t, err)
			}
			assert.Zero(t, store.deleteCalls)
			assert.Zero(t, testutil.ToFloat64(c.metrics.recoveries))
			assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.runs.WithLabelValues(outcomeFailed)))
			assert.False(t, c.state.Initialized())
		})
	}
}

func TestInitialize_RetriesAfterCancellation(t *testing.T) {
	store, types := newFakes()
	store.applyErrs = []error{context.Canceled, nil}
	c := newTestCoordinator(store, types)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(t, c.Initialize(ctx))

	require.NoError(t, c.Initialize(context.Background()))
	assert.True(t, c.state.Initialized())
	assert.Zero(t, store.deleteCalls)
	assert.Equal(t, core.DefaultExpenseTypeNames, types.names())
}

func TestInitialize_MetricsOnSuccess(t *testing.T) {
	reg := prometheus.NewRegistry()
	store, types := newFakes()
	c := newTestCoordinator(store, types, WithRegisterer(reg))

	require.NoError(t, c.Initialize(context.Background()))
	require.NoError(t, c.Initialize(context.Background()))

	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.runs.WithLabelValues(outcomeOK)))
	assert.Zero(t, testutil.ToFloat64(c.metrics.recoveries))
	assert.Equal(t, 1, testutil.CollectAndCount(c.metrics.duration))
}

func TestParseFailureMode(t *testing.T) {
	tests := []struct {
		in      string
		want    FailureMode
		wantErr bool
	}{
		{"fatal", FailureFatal, false},
		{"Degrade", FailureDegrade, false},
		{" DEGRADE ", FailureDegrade, false},
		{"crash", FailureFatal, true},
		{"", FailureFatal, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFailureMode(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want, mustParse(t, got.String()))
		})
	}
}

func mustParse(t *testing.T, s string) FailureMode {
	t.Helper()
	m, err := ParseFailureMode(s)
	require.NoError(t, err)
	return m
}
