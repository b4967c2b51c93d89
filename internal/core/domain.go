package core

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

type (
	// ExpenseType is a user-managed spending category. Name uniqueness is
	// case-insensitive and enforced on lookup, not by the schema.
	ExpenseType struct {
		ID        int64
		Name      string `validate:"nonblank,max=100"`
		IsActive  bool
		CreatedAt time.Time
	}

	Expense struct {
		ID            int64
		Description   string `validate:"nonblank,max=500"`
		Amount        Money
		Date          time.Time
		Category      string `validate:"max=100"`
		DayID         *int64
		ExpenseTypeID *int64
	}

	Day struct {
		ID      int64
		Date    time.Time
		MonthID *int64
		WeekID  *int64
	}

	// Week is an ISO week clipped to the month that owns it.
	Week struct {
		ID         int64
		StartDate  time.Time
		EndDate    time.Time
		WeekNumber int
		Year       int
		MonthID    *int64
	}

	Month struct {
		ID          int64
		MonthNumber int
		Year        int
		YearID      *int64
	}

	Year struct {
		ID         int64
		YearNumber int
	}
)

var (
	ErrInvalidDate        = errors.New("invalid date")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidExpense     = errors.New("invalid expense")
	ErrInvalidExpenseType = errors.New("invalid expense type")
)

// DefaultExpenseTypeNames are seeded into an empty store, in this order.
var DefaultExpenseTypeNames = []string{
	"Food",
	"Transport",
	"Entertainment",
	"Shopping",
	"Bills",
	"Healthcare",
	"Education",
	"Other",
}

// DefaultExpenseTypes returns the canonical seed set, active and stamped with now.
func DefaultExpenseTypes(now time.Time) []ExpenseType {
	types := make([]ExpenseType, 0, len(DefaultExpenseTypeNames))
	for _, name := range DefaultExpenseTypeNames {
		types = append(types, ExpenseType{Name: name, IsActive: true, CreatedAt: now})
	}
	return types
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		_ = validate.RegisterValidation("nonblank", func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		})
	})
	return validate
}

func (t ExpenseType) Validate() error {
	if err := validatorInstance().Struct(t); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidExpenseType, err)
	}
	return nil
}

func (e Expense) Validate() error {
	if e.Date.IsZero() {
		return ErrInvalidDate
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if err := validatorInstance().Struct(e); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidExpense, err)
	}
	return nil
}

// SameName reports whether two expense type names match ignoring case and
// surrounding whitespace.
func SameName(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
