package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"youspent/internal/amqp"
	"youspent/internal/core"
	"youspent/internal/log"
	"youspent/internal/storage"
)

// EventPublisher announces expense changes to other processes. *amqp.Client
// satisfies it.
type EventPublisher interface {
	PublishExpenseEvent(ctx context.Context, e *amqp.ExpenseEvent) error
}

// ExpenseService records expenses and keeps the Year/Month/Week/Day hierarchy
// in step, creating calendar rows the first time a date is used.
type ExpenseService struct {
	expenses *storage.ExpenseRepository
	types    *storage.ExpenseTypeRepository
	years    *storage.YearRepository
	months   *storage.MonthRepository
	weeks    *storage.WeekRepository
	days     *storage.DayRepository

	publisher EventPublisher

	// calendarMu serializes find-or-create of calendar rows.
	calendarMu sync.Mutex

	listenersMu sync.RWMutex
	listeners   []func()
}

func NewExpenseService(store *storage.Store, publisher EventPublisher) *ExpenseService {
	return &ExpenseService{
		expenses:  storage.NewExpenseRepository(store),
		types:     storage.NewExpenseTypeRepository(store),
		years:     storage.NewYearRepository(store),
		months:    storage.NewMonthRepository(store),
		weeks:     storage.NewWeekRepository(store),
		days:      storage.NewDayRepository(store),
		publisher: publisher,
	}
}

// OnChange registers fn to run after every successful write.
func (s *ExpenseService) OnChange(fn func()) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *ExpenseService) changed() {
	s.listenersMu.RLock()
	defer s.listenersMu.RUnlock()
	for _, fn := range s.listeners {
		fn()
	}
}

// AddExpense validates e, links it to its Day (creating the calendar rows if
// needed) and to the expense type its category names, then saves it.
func (s *ExpenseService) AddExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return e, err
	}
	if err := s.resolveType(ctx, &e); err != nil {
		return e, err
	}

	day, err := s.ensureDay(ctx, e.Date)
	if err != nil {
		return e, fmt.Errorf("resolve day: %w", err)
	}
	e.DayID = &day.ID

	saved, err := s.expenses.Add(ctx, e)
	if err != nil {
		return e, fmt.Errorf("save expense: %w", err)
	}
	log.FromContext(ctx).WithComponent(log.ComponentExpense).InfoContext(ctx, "Expense recorded",
		log.NewFields().
			WithOperation(log.OpCreate).
			WithExpense(saved.ID, saved.Description, saved.Amount.Cents, saved.Category).
			ToSlice()...)

	s.publish(ctx, amqp.ActionCreated, saved)
	s.changed()
	return saved, nil
}

// UpdateExpense replaces the stored fields of e. Moving an expense to another
// date relinks it to that date's Day.
func (s *ExpenseService) UpdateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return e, err
	}
	current, err := s.expenses.GetByID(ctx, e.ID)
	if err != nil {
		return e, err
	}
	if err := s.resolveType(ctx, &e); err != nil {
		return e, err
	}

	e.DayID = current.DayID
	if e.DayID == nil || !core.StartOfDay(current.Date).Equal(core.StartOfDay(e.Date)) {
		day, err := s.ensureDay(ctx, e.Date)
		if err != nil {
			return e, fmt.Errorf("resolve day: %w", err)
		}
		e.DayID = &day.ID
	}

	updated, err := s.expenses.Update(ctx, e)
	if err != nil {
		return e, err
	}

	s.publish(ctx, amqp.ActionUpdated, updated)
	s.changed()
	return updated, nil
}

// DeleteExpense removes an expense. It reports false when id does not exist.
func (s *ExpenseService) DeleteExpense(ctx context.Context, id int64) (bool, error) {
	deleted, err := s.expenses.Delete(ctx, id)
	if err != nil || !deleted {
		return deleted, err
	}

	s.publish(ctx, amqp.ActionDeleted, core.Expense{ID: id})
	s.changed()
	return true, nil
}

func (s *ExpenseService) GetExpense(ctx context.Context, id int64) (core.Expense, error) {
	return s.expenses.GetByID(ctx, id)
}

// ExpensesByDate returns the expenses recorded on date's calendar day.
func (s *ExpenseService) ExpensesByDate(ctx context.Context, date time.Time) ([]core.Expense, error) {
	return s.expenses.ByDay(ctx, date)
}

// ExpensesInRange returns expenses dated within [start, end].
func (s *ExpenseService) ExpensesInRange(ctx context.Context, start, end time.Time) ([]core.Expense, error) {
	return s.expenses.ByDateRange(ctx, start, end)
}

// TotalSpent sums expenses dated within [start, end].
func (s *ExpenseService) TotalSpent(ctx context.Context, start, end time.Time) (core.Money, error) {
	if end.Before(start) {
		return core.Money{}, fmt.Errorf("%w: range ends before it starts", core.ErrInvalidDate)
	}
	return s.expenses.TotalSpent(ctx, start, end)
}

// ExpensesByCategory matches the category label exactly. Renaming an expense
// type does not relink expenses recorded under the old label.
func (s *ExpenseService) ExpensesByCategory(ctx context.Context, category string) ([]core.Expense, error) {
	return s.expenses.ByCategory(ctx, category)
}

func (s *ExpenseService) ExpensesByType(ctx context.Context, typeID int64, start, end time.Time) ([]core.Expense, error) {
	return s.expenses.ByTypeID(ctx, typeID, start, end)
}

func (s *ExpenseService) Categories(ctx context.Context) ([]string, error) {
	return s.expenses.Categories(ctx)
}

func (s *ExpenseService) AllExpenses(ctx context.Context) ([]core.Expense, error) {
	return s.expenses.GetAll(ctx)
}

// resolveType fills whichever of category label and type id is missing. A
// category with no matching type is kept as a free label.
func (s *ExpenseService) resolveType(ctx context.Context, e *core.Expense) error {
	if e.ExpenseTypeID != nil {
		et, err := s.types.GetByID(ctx, *e.ExpenseTypeID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("%w: unknown expense type %d", core.ErrInvalidExpense, *e.ExpenseTypeID)
			}
			return err
		}
		if e.Category == "" {
			e.Category = et.Name
		}
		return nil
	}
	if e.Category == "" {
		return nil
	}

	et, err := s.types.GetByName(ctx, e.Category)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	e.ExpenseTypeID = &et.ID
	return nil
}

// ensureDay returns the Day row for date, creating it and any missing Year,
// Month and Week above it.
func (s *ExpenseService) ensureDay(ctx context.Context, date time.Time) (core.Day, error) {
	s.calendarMu.Lock()
	defer s.calendarMu.Unlock()

	day, err := s.days.GetByDate(ctx, date)
	if err == nil {
		return day, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return day, err
	}

	month, err := s.ensureMonth(ctx, date)
	if err != nil {
		return day, err
	}
	week, err := s.ensureWeek(ctx, month, date)
	if err != nil {
		return day, err
	}

	day, err = s.days.Add(ctx, core.Day{Date: date, MonthID: &month.ID, WeekID: &week.ID})
	if err != nil {
		return day, err
	}
	slog.DebugContext(ctx, "Calendar day created", "date", day.Date.Format(time.DateOnly), "id", day.ID)
	return day, nil
}

func (s *ExpenseService) ensureMonth(ctx context.Context, date time.Time) (core.Month, error) {
	month, err := s.months.Get(ctx, date.Year(), int(date.Month()))
	if err == nil || !errors.Is(err, storage.ErrNotFound) {
		return month, err
	}

	year, err := s.years.Get(ctx, date.Year())
	if errors.Is(err, storage.ErrNotFound) {
		year, err = s.years.Add(ctx, core.Year{YearNumber: date.Year()})
	}
	if err != nil {
		return month, err
	}

	return s.months.Add(ctx, core.Month{
		MonthNumber: int(date.Month()),
		Year:        date.Year(),
		YearID:      &year.ID,
	})
}

func (s *ExpenseService) ensureWeek(ctx context.Context, month core.Month, date time.Time) (core.Week, error) {
	w := core.MonthWeek(date)
	week, err := s.weeks.Get(ctx, month.ID, w.Year, w.WeekNumber)
	if err == nil || !errors.Is(err, storage.ErrNotFound) {
		return week, err
	}
	w.MonthID = &month.ID
	return s.weeks.Add(ctx, w)
}

// publish announces a change. Failures are logged, the write already succeeded.
func (s *ExpenseService) publish(ctx context.Context, action amqp.Action, e core.Expense) {
	if s.publisher == nil {
		return
	}

	event := amqp.NewExpenseEvent(action, e.ID)
	if action != amqp.ActionDeleted {
		event.AmountCents = e.Amount.Cents
		event.Category = e.Category
		event.Date = e.Date.Format(time.DateOnly)
	}
	if err := s.publisher.PublishExpenseEvent(ctx, event); err != nil {
		slog.ErrorContext(ctx, "Failed to publish expense event",
			"action", action,
			"id", e.ID,
			"error", err)
	}
}
