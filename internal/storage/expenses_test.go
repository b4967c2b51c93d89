package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"youspent/internal/core"
)

func at(day, hour int) time.Time {
	return time.Date(2024, time.March, day, hour, 0, 0, 0, time.UTC)
}

func seedExpenses(t *testing.T, repo *ExpenseRepository, expenses ...core.Expense) []core.Expense {
	t.Helper()
	out := make([]core.Expense, 0, len(expenses))
	for _, e := range expenses {
		saved, err := repo.Add(context.Background(), e)
		require.NoError(t, err)
		out = append(out, saved)
	}
	return out
}

func TestExpenseRepository_CRUD(t *testing.T) {
	ctx := context.Background()
	repo := NewExpenseRepository(newMigratedStore(t))

	created, err := repo.Add(ctx, core.Expense{
		Description: "Coffee",
		Amount:      core.Money{Cents: 350},
		Date:        at(4, 9),
		Category:    "Food",
	})
	require.NoError(t, err)
	assert.NotZero(t, created.ID)

	got, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got)
	assert.Nil(t, got.DayID)
	assert.Nil(t, got.ExpenseTypeID)

	got.Amount = core.Money{Cents: 400}
	got.Description = "Coffee and croissant"
	_, err = repo.Update(ctx, got)
	require.NoError(t, err)

	reread, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(400), reread.Amount.Cents)
	assert.Equal(t, "Coffee and croissant", reread.Description)

	deleted, err := repo.Delete(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = repo.GetByID(ctx, created.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = repo.Update(ctx, got)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExpenseRepository_Queries(t *testing.T) {
	ctx := context.Background()
	s := newMigratedStore(t)
	repo := NewExpenseRepository(s)
	types := NewExpenseTypeRepository(s)

	food, err := types.Add(ctx, core.ExpenseType{Name: "Food", IsActive: true})
	require.NoError(t, err)

	seedExpenses(t, repo,
		core.Expense{Description: "Breakfast", Amount: core.Money{Cents: 500}, Date: at(1, 8), Category: "Food", ExpenseTypeID: &food.ID},
		core.Expense{Description: "Bus", Amount: core.Money{Cents: 200}, Date: at(1, 9), Category: "Transport"},
		core.Expense{Description: "Dinner", Amount: core.Money{Cents: 2500}, Date: at(2, 20), Category: "Food", ExpenseTypeID: &food.ID},
		core.Expense{Description: "Cinema", Amount: core.Money{Cents: 1000}, Date: at(10, 21), Category: "Entertainment"},
	)

	t.Run("all newest first", func(t *testing.T) {
		all, err := repo.GetAll(ctx)
		require.NoError(t, err)
		require.Len(t, all, 4)
		assert.Equal(t, "Cinema", all[0].Description)
		assert.Equal(t, "Breakfast", all[3].Description)
	})

	t.Run("by day", func(t *testing.T) {
		day, err := repo.ByDay(ctx, at(1, 23))
		require.NoError(t, err)
		require.Len(t, day, 2)
		assert.Equal(t, "Breakfast", day[0].Description)
		assert.Equal(t, "Bus", day[1].Description)
	})

	t.Run("by date range inclusive", func(t *testing.T) {
		got, err := repo.ByDateRange(ctx, at(1, 9), at(2, 20))
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "Dinner", got[0].Description)
		assert.Equal(t, "Bus", got[1].Description)
	})

	t.Run("by category exact", func(t *testing.T) {
		got, err := repo.ByCategory(ctx, "Food")
		require.NoError(t, err)
		assert.Len(t, got, 2)

		got, err = repo.ByCategory(ctx, "food")
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("by type", func(t *testing.T) {
		got, err := repo.ByTypeID(ctx, food.ID, at(1, 0), at(31, 0))
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("total spent", func(t *testing.T) {
		total, err := repo.TotalSpent(ctx, at(1, 0), at(2, 23))
		require.NoError(t, err)
		assert.Equal(t, int64(3200), total.Cents)

		total, err = repo.TotalSpent(ctx, at(20, 0), at(25, 0))
		require.NoError(t, err)
		assert.Zero(t, total.Cents)
	})

	t.Run("categories", func(t *testing.T) {
		got, err := repo.Categories(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"Entertainment", "Food", "Transport"}, got)
	})

	t.Run("summarize", func(t *testing.T) {
		start, end := core.MonthBounds(2024, 3)
		total, count, byCategory, err := repo.Summarize(ctx, start, end)
		require.NoError(t, err)
		assert.Equal(t, int64(4200), total.Cents)
		assert.Equal(t, 4, count)
		assert.Equal(t, []core.CategoryAmount{
			{Name: "Food", Amount: core.Money{Cents: 3000}},
			{Name: "Entertainment", Amount: core.Money{Cents: 1000}},
			{Name: "Transport", Amount: core.Money{Cents: 200}},
		}, byCategory)
	})
}

func TestExpenseRepository_TypeDeleteNullsReference(t *testing.T) {
	ctx := context.Background()
	s := newMigratedStore(t)
	repo := NewExpenseRepository(s)
	types := NewExpenseTypeRepository(s)

	bills, err := types.Add(ctx, core.ExpenseType{Name: "Bills", IsActive: true})
	require.NoError(t, err)
	saved := seedExpenses(t, repo, core.Expense{
		Description:   "Electricity",
		Amount:        core.Money{Cents: 8000},
		Date:          at(5, 12),
		Category:      "Bills",
		ExpenseTypeID: &bills.ID,
	})

	_, err = types.Delete(ctx, bills.ID)
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, saved[0].ID)
	require.NoError(t, err)
	assert.Nil(t, got.ExpenseTypeID)
	assert.Equal(t, "Bills", got.Category)
}
