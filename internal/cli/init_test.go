package cli

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"youspent/internal/config"
	"youspent/internal/core"
	"youspent/internal/log"
)

func openTestApp(t *testing.T) *App {
	t.Helper()
	cfg := &config.Config{
		SQLiteDBPath:     filepath.Join(t.TempDir(), "youspent.db"),
		InitFailureMode:  "fatal",
		LogLevel:         "error",
		SummaryCacheSize: 8,
		SummaryCacheTTL:  time.Hour,
	}
	app, err := Open(context.Background(), cfg, log.Discard(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })
	require.NoError(t, app.Ready(context.Background()))
	return app
}

func TestApp_ClearAllDataDropsCachedSummaries(t *testing.T) {
	ctx := context.Background()
	app := openTestApp(t)
	date := time.Date(2024, time.June, 3, 12, 0, 0, 0, time.UTC)

	_, err := app.Expenses.AddExpense(ctx, core.Expense{
		Description: "Groceries",
		Amount:      core.Money{Cents: 5400},
		Date:        date,
		Category:    "Food",
	})
	require.NoError(t, err)

	before, err := app.Summaries.Summary(ctx, core.PeriodMonth, date)
	require.NoError(t, err)
	require.Equal(t, int64(5400), before.Total.Cents)

	require.True(t, app.ClearAllData(ctx))

	after, err := app.Summaries.Summary(ctx, core.PeriodMonth, date)
	require.NoError(t, err)
	assert.Zero(t, after.Total.Cents)
	assert.Zero(t, after.Count)

	types, err := app.ExpenseTypes.List(ctx)
	require.NoError(t, err)
	assert.Len(t, types, len(core.DefaultExpenseTypeNames))
}

func TestApp_ExpenseWritesDropCachedSummaries(t *testing.T) {
	ctx := context.Background()
	app := openTestApp(t)
	date := time.Date(2024, time.June, 3, 12, 0, 0, 0, time.UTC)

	first, err := app.Summaries.Summary(ctx, core.PeriodDay, date)
	require.NoError(t, err)
	require.Zero(t, first.Count)

	_, err = app.Expenses.AddExpense(ctx, core.Expense{
		Description: "Coffee",
		Amount:      core.Money{Cents: 250},
		Date:        date,
	})
	require.NoError(t, err)

	second, err := app.Summaries.Summary(ctx, core.PeriodDay, date)
	require.NoError(t, err)
	assert.Equal(t, 1, second.Count)
}
