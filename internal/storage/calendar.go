package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"youspent/internal/core"
)

// Year, Month, Week and Day rows form the containment hierarchy. Deleting a
// parent cascades to its descendants through ON DELETE CASCADE.

type YearRepository struct {
	store *Store
}

func NewYearRepository(store *Store) *YearRepository {
	return &YearRepository{store: store}
}

func scanYear(row rowScanner) (core.Year, error) {
	var y core.Year
	err := row.Scan(&y.ID, &y.YearNumber)
	return y, err
}

func (r *YearRepository) GetByID(ctx context.Context, id int64) (core.Year, error) {
	y, err := queryOne(ctx, r.store, scanYear, `SELECT id, year_number FROM years WHERE id = ?`, id)
	if err != nil {
		return y, fmt.Errorf("get year %d: %w", id, err)
	}
	return y, nil
}

// Get finds the row for a calendar year number.
func (r *YearRepository) Get(ctx context.Context, yearNumber int) (core.Year, error) {
	y, err := queryOne(ctx, r.store, scanYear, `SELECT id, year_number FROM years WHERE year_number = ?`, yearNumber)
	if err != nil {
		return y, fmt.Errorf("get year %d: %w", yearNumber, err)
	}
	return y, nil
}

func (r *YearRepository) GetAll(ctx context.Context) ([]core.Year, error) {
	years, err := queryAll(ctx, r.store, scanYear, `SELECT id, year_number FROM years ORDER BY year_number`)
	if err != nil {
		return nil, fmt.Errorf("list years: %w", err)
	}
	return years, nil
}

func (r *YearRepository) Add(ctx context.Context, y core.Year) (core.Year, error) {
	id, err := insert(ctx, r.store, `INSERT INTO years (year_number) VALUES (?)`, y.YearNumber)
	if err != nil {
		return y, fmt.Errorf("create year: %w", err)
	}
	y.ID = id
	return y, nil
}

func (r *YearRepository) Update(ctx context.Context, y core.Year) (core.Year, error) {
	if err := execAffecting(ctx, r.store, `UPDATE years SET year_number = ? WHERE id = ?`, y.YearNumber, y.ID); err != nil {
		return y, fmt.Errorf("update year %d: %w", y.ID, err)
	}
	return y, nil
}

func (r *YearRepository) Delete(ctx context.Context, id int64) (bool, error) {
	return deleteByID(ctx, r.store, "years", id)
}

type MonthRepository struct {
	store *Store
}

func NewMonthRepository(store *Store) *MonthRepository {
	return &MonthRepository{store: store}
}

const monthColumns = `id, month_number, year, year_id`

func scanMonth(row rowScanner) (core.Month, error) {
	var (
		m      core.Month
		yearID sql.NullInt64
	)
	if err := row.Scan(&m.ID, &m.MonthNumber, &m.Year, &yearID); err != nil {
		return m, err
	}
	m.YearID = idPtr(yearID)
	return m, nil
}

func (r *MonthRepository) GetByID(ctx context.Context, id int64) (core.Month, error) {
	m, err := queryOne(ctx, r.store, scanMonth, `SELECT `+monthColumns+` FROM months WHERE id = ?`, id)
	if err != nil {
		return m, fmt.Errorf("get month %d: %w", id, err)
	}
	return m, nil
}

// Get finds the row for a calendar year and month number.
func (r *MonthRepository) Get(ctx context.Context, year, monthNumber int) (core.Month, error) {
	m, err := queryOne(ctx, r.store, scanMonth,
		`SELECT `+monthColumns+` FROM months WHERE year = ? AND month_number = ?`, year, monthNumber)
	if err != nil {
		return m, fmt.Errorf("get month %d-%02d: %w", year, monthNumber, err)
	}
	return m, nil
}

func (r *MonthRepository) GetAll(ctx context.Context) ([]core.Month, error) {
	months, err := queryAll(ctx, r.store, scanMonth, `SELECT `+monthColumns+` FROM months ORDER BY year, month_number`)
	if err != nil {
		return nil, fmt.Errorf("list months: %w", err)
	}
	return months, nil
}

// ByYear returns the months owned by a Year row.
func (r *MonthRepository) ByYear(ctx context.Context, yearID int64) ([]core.Month, error) {
	months, err := queryAll(ctx, r.store, scanMonth,
		`SELECT `+monthColumns+` FROM months WHERE year_id = ? ORDER BY month_number`, yearID)
	if err != nil {
		return nil, fmt.Errorf("list months of year %d: %w", yearID, err)
	}
	return months, nil
}

func (r *MonthRepository) Add(ctx context.Context, m core.Month) (core.Month, error) {
	id, err := insert(ctx, r.store,
		`INSERT INTO months (month_number, year, year_id) VALUES (?, ?, ?)`,
		m.MonthNumber, m.Year, nullID(m.YearID))
	if err != nil {
		return m, fmt.Errorf("create month: %w", err)
	}
	m.ID = id
	return m, nil
}

func (r *MonthRepository) Update(ctx context.Context, m core.Month) (core.Month, error) {
	err := execAffecting(ctx, r.store,
		`UPDATE months SET month_number = ?, year = ?, year_id = ? WHERE id = ?`,
		m.MonthNumber, m.Year, nullID(m.YearID), m.ID)
	if err != nil {
		return m, fmt.Errorf("update month %d: %w", m.ID, err)
	}
	return m, nil
}

func (r *MonthRepository) Delete(ctx context.Context, id int64) (bool, error) {
	return deleteByID(ctx, r.store, "months", id)
}

type WeekRepository struct {
	store *Store
}

func NewWeekRepository(store *Store) *WeekRepository {
	return &WeekRepository{store: store}
}

const weekColumns = `id, start_date, end_date, week_number, year, month_id`

func scanWeek(row rowScanner) (core.Week, error) {
	var (
		w          core.Week
		start, end string
		monthID    sql.NullInt64
	)
	if err := row.Scan(&w.ID, &start, &end, &w.WeekNumber, &w.Year, &monthID); err != nil {
		return w, err
	}
	var err error
	if w.StartDate, err = parseDate(start); err != nil {
		return w, fmt.Errorf("parse week start %q: %w", start, err)
	}
	if w.EndDate, err = parseDate(end); err != nil {
		return w, fmt.Errorf("parse week end %q: %w", end, err)
	}
	w.MonthID = idPtr(monthID)
	return w, nil
}

func (r *WeekRepository) GetByID(ctx context.Context, id int64) (core.Week, error) {
	w, err := queryOne(ctx, r.store, scanWeek, `SELECT `+weekColumns+` FROM weeks WHERE id = ?`, id)
	if err != nil {
		return w, fmt.Errorf("get week %d: %w", id, err)
	}
	return w, nil
}

// Get finds the week of a month by ISO year and week number.
func (r *WeekRepository) Get(ctx context.Context, monthID int64, year, weekNumber int) (core.Week, error) {
	w, err := queryOne(ctx, r.store, scanWeek,
		`SELECT `+weekColumns+` FROM weeks WHERE month_id = ? AND year = ? AND week_number = ?`,
		monthID, year, weekNumber)
	if err != nil {
		return w, fmt.Errorf("get week %d-W%02d of month %d: %w", year, weekNumber, monthID, err)
	}
	return w, nil
}

func (r *WeekRepository) GetAll(ctx context.Context) ([]core.Week, error) {
	weeks, err := queryAll(ctx, r.store, scanWeek, `SELECT `+weekColumns+` FROM weeks ORDER BY start_date, id`)
	if err != nil {
		return nil, fmt.Errorf("list weeks: %w", err)
	}
	return weeks, nil
}

// ByMonth returns the weeks owned by a Month row.
func (r *WeekRepository) ByMonth(ctx context.Context, monthID int64) ([]core.Week, error) {
	weeks, err := queryAll(ctx, r.store, scanWeek,
		`SELECT `+weekColumns+` FROM weeks WHERE month_id = ? ORDER BY start_date`, monthID)
	if err != nil {
		return nil, fmt.Errorf("list weeks of month %d: %w", monthID, err)
	}
	return weeks, nil
}

func (r *WeekRepository) Add(ctx context.Context, w core.Week) (core.Week, error) {
	id, err := insert(ctx, r.store,
		`INSERT INTO weeks (start_date, end_date, week_number, year, month_id) VALUES (?, ?, ?, ?, ?)`,
		formatDate(w.StartDate), formatDate(w.EndDate), w.WeekNumber, w.Year, nullID(w.MonthID))
	if err != nil {
		return w, fmt.Errorf("create week: %w", err)
	}
	w.ID = id
	return w, nil
}

func (r *WeekRepository) Update(ctx context.Context, w core.Week) (core.Week, error) {
	err := execAffecting(ctx, r.store,
		`UPDATE weeks SET start_date = ?, end_date = ?, week_number = ?, year = ?, month_id = ? WHERE id = ?`,
		formatDate(w.StartDate), formatDate(w.EndDate), w.WeekNumber, w.Year, nullID(w.MonthID), w.ID)
	if err != nil {
		return w, fmt.Errorf("update week %d: %w", w.ID, err)
	}
	return w, nil
}

func (r *WeekRepository) Delete(ctx context.Context, id int64) (bool, error) {
	return deleteByID(ctx, r.store, "weeks", id)
}

type DayRepository struct {
	store *Store
}

func NewDayRepository(store *Store) *DayRepository {
	return &DayRepository{store: store}
}

const dayColumns = `id, date, month_id, week_id`

func scanDay(row rowScanner) (core.Day, error) {
	var (
		d               core.Day
		date            string
		monthID, weekID sql.NullInt64
	)
	if err := row.Scan(&d.ID, &date, &monthID, &weekID); err != nil {
		return d, err
	}
	t, err := parseDate(date)
	if err != nil {
		return d, fmt.Errorf("parse day %q: %w", date, err)
	}
	d.Date = t
	d.MonthID = idPtr(monthID)
	d.WeekID = idPtr(weekID)
	return d, nil
}

func (r *DayRepository) list(ctx context.Context, op, where string, args ...any) ([]core.Day, error) {
	days, err := queryAll(ctx, r.store, scanDay,
		`SELECT `+dayColumns+` FROM days WHERE `+where+` ORDER BY date, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return days, nil
}

func (r *DayRepository) GetByID(ctx context.Context, id int64) (core.Day, error) {
	d, err := queryOne(ctx, r.store, scanDay, `SELECT `+dayColumns+` FROM days WHERE id = ?`, id)
	if err != nil {
		return d, fmt.Errorf("get day %d: %w", id, err)
	}
	return d, nil
}

// GetByDate finds the row for date's calendar day.
func (r *DayRepository) GetByDate(ctx context.Context, date time.Time) (core.Day, error) {
	d, err := queryOne(ctx, r.store, scanDay,
		`SELECT `+dayColumns+` FROM days WHERE date = ? ORDER BY id LIMIT 1`, formatDate(date))
	if err != nil {
		return d, fmt.Errorf("get day %s: %w", formatDate(date), err)
	}
	return d, nil
}

func (r *DayRepository) GetAll(ctx context.Context) ([]core.Day, error) {
	return r.list(ctx, "list days", "1 = 1")
}

func (r *DayRepository) ByMonth(ctx context.Context, monthID int64) ([]core.Day, error) {
	return r.list(ctx, "list days of month", "month_id = ?", monthID)
}

func (r *DayRepository) ByWeek(ctx context.Context, weekID int64) ([]core.Day, error) {
	return r.list(ctx, "list days of week", "week_id = ?", weekID)
}

// InRange returns the days within [start, end] by calendar date.
func (r *DayRepository) InRange(ctx context.Context, start, end time.Time) ([]core.Day, error) {
	return r.list(ctx, "list days in range", "date >= ? AND date <= ?", formatDate(start), formatDate(end))
}

func (r *DayRepository) Add(ctx context.Context, d core.Day) (core.Day, error) {
	d.Date = core.StartOfDay(d.Date)
	id, err := insert(ctx, r.store,
		`INSERT INTO days (date, month_id, week_id) VALUES (?, ?, ?)`,
		formatDate(d.Date), nullID(d.MonthID), nullID(d.WeekID))
	if err != nil {
		return d, fmt.Errorf("create day: %w", err)
	}
	d.ID = id
	return d, nil
}

func (r *DayRepository) Update(ctx context.Context, d core.Day) (core.Day, error) {
	d.Date = core.StartOfDay(d.Date)
	err := execAffecting(ctx, r.store,
		`UPDATE days SET date = ?, month_id = ?, week_id = ? WHERE id = ?`,
		formatDate(d.Date), nullID(d.MonthID), nullID(d.WeekID), d.ID)
	if err != nil {
		return d, fmt.Errorf("update day %d: %w", d.ID, err)
	}
	return d, nil
}

func (r *DayRepository) Delete(ctx context.Context, id int64) (bool, error) {
	return deleteByID(ctx, r.store, "days", id)
}
