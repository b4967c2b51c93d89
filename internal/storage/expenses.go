package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"youspent/internal/core"
)

type ExpenseRepository struct {
	store *Store
}

func NewExpenseRepository(store *Store) *ExpenseRepository {
	return &ExpenseRepository{store: store}
}

const expenseColumns = `id, description, amount_cents, date, category, day_id, expense_type_id`

func scanExpense(row rowScanner) (core.Expense, error) {
	var (
		e             core.Expense
		date          string
		dayID, typeID sql.NullInt64
	)
	if err := row.Scan(&e.ID, &e.Description, &e.Amount.Cents, &date, &e.Category, &dayID, &typeID); err != nil {
		return e, err
	}
	t, err := parseTimestamp(date)
	if err != nil {
		return e, fmt.Errorf("parse expense date %q: %w", date, err)
	}
	e.Date = t
	e.DayID = idPtr(dayID)
	e.ExpenseTypeID = idPtr(typeID)
	return e, nil
}

func (r *ExpenseRepository) list(ctx context.Context, op, where, order string, args ...any) ([]core.Expense, error) {
	query := `SELECT ` + expenseColumns + ` FROM expenses`
	if where != "" {
		query += ` WHERE ` + where
	}
	query += ` ORDER BY ` + order
	expenses, err := queryAll(ctx, r.store, scanExpense, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return expenses, nil
}

func (r *ExpenseRepository) GetByID(ctx context.Context, id int64) (core.Expense, error) {
	e, err := queryOne(ctx, r.store, scanExpense,
		`SELECT `+expenseColumns+` FROM expenses WHERE id = ?`, id)
	if err != nil {
		return e, fmt.Errorf("get expense %d: %w", id, err)
	}
	return e, nil
}

func (r *ExpenseRepository) GetAll(ctx context.Context) ([]core.Expense, error) {
	return r.list(ctx, "list expenses", "", "date DESC, id DESC")
}

func (r *ExpenseRepository) Add(ctx context.Context, e core.Expense) (core.Expense, error) {
	id, err := insert(ctx, r.store,
		`INSERT INTO expenses (description, amount_cents, date, category, day_id, expense_type_id)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.Description, e.Amount.Cents, formatTimestamp(e.Date), e.Category, nullID(e.DayID), nullID(e.ExpenseTypeID))
	if err != nil {
		return e, fmt.Errorf("create expense: %w", err)
	}
	e.ID = id

	slog.InfoContext(ctx, "Expense saved",
		"id", e.ID,
		"description", e.Description,
		"amount_cents", e.Amount.Cents,
		"date", formatDate(e.Date))

	return e, nil
}

func (r *ExpenseRepository) Update(ctx context.Context, e core.Expense) (core.Expense, error) {
	err := execAffecting(ctx, r.store,
		`UPDATE expenses SET description = ?, amount_cents = ?, date = ?, category = ?, day_id = ?, expense_type_id = ?
		 WHERE id = ?`,
		e.Description, e.Amount.Cents, formatTimestamp(e.Date), e.Category, nullID(e.DayID), nullID(e.ExpenseTypeID), e.ID)
	if err != nil {
		return e, fmt.Errorf("update expense %d: %w", e.ID, err)
	}
	return e, nil
}

func (r *ExpenseRepository) Delete(ctx context.Context, id int64) (bool, error) {
	return deleteByID(ctx, r.store, "expenses", id)
}

// ByDateRange returns expenses dated within [start, end], newest first.
func (r *ExpenseRepository) ByDateRange(ctx context.Context, start, end time.Time) ([]core.Expense, error) {
	return r.list(ctx, "list expenses by date range", "date >= ? AND date <= ?", "date DESC, id DESC",
		formatTimestamp(start), formatTimestamp(end))
}

// ByCategory matches the category label exactly.
func (r *ExpenseRepository) ByCategory(ctx context.Context, category string) ([]core.Expense, error) {
	return r.list(ctx, "list expenses by category", "category = ?", "date DESC, id DESC", category)
}

// ByDay returns the expenses on date's calendar day in chronological order.
func (r *ExpenseRepository) ByDay(ctx context.Context, date time.Time) ([]core.Expense, error) {
	start, end := core.DayBounds(date)
	return r.list(ctx, "list expenses by day", "date >= ? AND date < ?", "date, id",
		formatTimestamp(start), formatTimestamp(end))
}

// ByDayID returns the expenses owned by a Day row.
func (r *ExpenseRepository) ByDayID(ctx context.Context, dayID int64) ([]core.Expense, error) {
	return r.list(ctx, "list expenses by day id", "day_id = ?", "date, id", dayID)
}

// ByTypeID returns expenses of one type dated within [start, end], newest first.
func (r *ExpenseRepository) ByTypeID(ctx context.Context, typeID int64, start, end time.Time) ([]core.Expense, error) {
	return r.list(ctx, "list expenses by type", "expense_type_id = ? AND date >= ? AND date <= ?", "date DESC, id DESC",
		typeID, formatTimestamp(start), formatTimestamp(end))
}

// TotalSpent sums amounts dated within [start, end].
func (r *ExpenseRepository) TotalSpent(ctx context.Context, start, end time.Time) (core.Money, error) {
	db, err := r.store.DB()
	if err != nil {
		return core.Money{}, err
	}
	var total int64
	err = db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount_cents), 0) FROM expenses WHERE date >= ? AND date <= ?`,
		formatTimestamp(start), formatTimestamp(end)).Scan(&total)
	if err != nil {
		return core.Money{}, fmt.Errorf("total spent: %w", err)
	}
	return core.Money{Cents: total}, nil
}

// Categories returns the distinct category labels in use, sorted.
func (r *ExpenseRepository) Categories(ctx context.Context) ([]string, error) {
	categories, err := queryAll(ctx, r.store, func(row rowScanner) (string, error) {
		var c string
		err := row.Scan(&c)
		return c, err
	}, `SELECT DISTINCT category FROM expenses ORDER BY category`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

// Summarize aggregates expenses dated within [start, end) by category label.
func (r *ExpenseRepository) Summarize(ctx context.Context, start, end time.Time) (core.Money, int, []core.CategoryAmount, error) {
	type categoryRow struct {
		amount core.CategoryAmount
		count  int
	}
	rows, err := queryAll(ctx, r.store, func(row rowScanner) (categoryRow, error) {
		var c categoryRow
		err := row.Scan(&c.amount.Name, &c.amount.Amount.Cents, &c.count)
		return c, err
	}, `SELECT category, SUM(amount_cents), COUNT(*) FROM expenses
		WHERE date >= ? AND date < ?
		GROUP BY category
		ORDER BY SUM(amount_cents) DESC, category`,
		formatTimestamp(start), formatTimestamp(end))
	if err != nil {
		return core.Money{}, 0, nil, fmt.Errorf("summarize expenses: %w", err)
	}

	var (
		total core.Money
		count int
	)
	byCategory := make([]core.CategoryAmount, 0, len(rows))
	for _, row := range rows {
		total = total.Add(row.amount.Amount)
		count += row.count
		byCategory = append(byCategory, row.amount)
	}
	return total, count, byCategory, nil
}
