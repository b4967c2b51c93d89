package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"youspent/internal/core"
	"youspent/internal/storage"
)

var ErrDuplicateName = errors.New("expense type name already exists")

// ExpenseTypeService manages the user's expense categories. Names are unique
// ignoring case; the check happens here, the schema does not enforce it.
type ExpenseTypeService struct {
	types *storage.ExpenseTypeRepository
}

func NewExpenseTypeService(store *storage.Store) *ExpenseTypeService {
	return &ExpenseTypeService{types: storage.NewExpenseTypeRepository(store)}
}

func (s *ExpenseTypeService) List(ctx context.Context) ([]core.ExpenseType, error) {
	return s.types.GetAll(ctx)
}

func (s *ExpenseTypeService) ListActive(ctx context.Context) ([]core.ExpenseType, error) {
	return s.types.Active(ctx)
}

func (s *ExpenseTypeService) Get(ctx context.Context, id int64) (core.ExpenseType, error) {
	return s.types.GetByID(ctx, id)
}

// FindByName looks a type up ignoring case.
func (s *ExpenseTypeService) FindByName(ctx context.Context, name string) (core.ExpenseType, error) {
	return s.types.GetByName(ctx, name)
}

// Add creates an active type named name.
func (s *ExpenseTypeService) Add(ctx context.Context, name string) (core.ExpenseType, error) {
	et := core.ExpenseType{Name: strings.TrimSpace(name), IsActive: true}
	if err := et.Validate(); err != nil {
		return et, err
	}
	if err := s.ensureUnique(ctx, et.Name, 0); err != nil {
		return et, err
	}

	created, err := s.types.Add(ctx, et)
	if err != nil {
		return et, err
	}
	slog.InfoContext(ctx, "Expense type created", "id", created.ID, "name", created.Name)
	return created, nil
}

// Rename changes a type's name. Expenses keep the label they were recorded with.
func (s *ExpenseTypeService) Rename(ctx context.Context, id int64, name string) (core.ExpenseType, error) {
	et, err := s.types.GetByID(ctx, id)
	if err != nil {
		return et, err
	}
	et.Name = strings.TrimSpace(name)
	if err := et.Validate(); err != nil {
		return et, err
	}
	if err := s.ensureUnique(ctx, et.Name, id); err != nil {
		return et, err
	}
	return s.types.Update(ctx, et)
}

// ToggleActive flips the active flag. It reports false when id does not exist.
func (s *ExpenseTypeService) ToggleActive(ctx context.Context, id int64) (bool, error) {
	return s.types.ToggleActive(ctx, id)
}

// Delete removes a type. Expenses that referenced it keep their category
// label and lose the link.
func (s *ExpenseTypeService) Delete(ctx context.Context, id int64) (bool, error) {
	return s.types.Delete(ctx, id)
}

func (s *ExpenseTypeService) ensureUnique(ctx context.Context, name string, selfID int64) error {
	existing, err := s.types.GetByName(ctx, name)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if existing.ID == selfID {
		return nil
	}
	return fmt.Errorf("%w: %q", ErrDuplicateName, existing.Name)
}
