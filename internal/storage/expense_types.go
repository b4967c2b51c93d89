package storage

import (
	"context"
	"fmt"
	"log/slog"

	"youspent/internal/core"
)

type ExpenseTypeRepository struct {
	store *Store
}

func NewExpenseTypeRepository(store *Store) *ExpenseTypeRepository {
	return &ExpenseTypeRepository{store: store}
}

const expenseTypeColumns = `id, name, is_active, created_at`

func scanExpenseType(row rowScanner) (core.ExpenseType, error) {
	var (
		et      core.ExpenseType
		created string
	)
	if err := row.Scan(&et.ID, &et.Name, &et.IsActive, &created); err != nil {
		return et, err
	}
	t, err := parseTimestamp(created)
	if err != nil {
		return et, fmt.Errorf("parse created_at %q: %w", created, err)
	}
	et.CreatedAt = t
	return et, nil
}

func (r *ExpenseTypeRepository) GetByID(ctx context.Context, id int64) (core.ExpenseType, error) {
	et, err := queryOne(ctx, r.store, scanExpenseType,
		`SELECT `+expenseTypeColumns+` FROM expense_types WHERE id = ?`, id)
	if err != nil {
		return et, fmt.Errorf("get expense type %d: %w", id, err)
	}
	return et, nil
}

func (r *ExpenseTypeRepository) GetAll(ctx context.Context) ([]core.ExpenseType, error) {
	types, err := queryAll(ctx, r.store, scanExpenseType,
		`SELECT `+expenseTypeColumns+` FROM expense_types ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list expense types: %w", err)
	}
	return types, nil
}

// Active returns the types flagged active, ordered by name.
func (r *ExpenseTypeRepository) Active(ctx context.Context) ([]core.ExpenseType, error) {
	types, err := queryAll(ctx, r.store, scanExpenseType,
		`SELECT `+expenseTypeColumns+` FROM expense_types WHERE is_active = 1 ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list active expense types: %w", err)
	}
	return types, nil
}

// GetByName finds a type by name ignoring case. Matching happens in Go
// because SQLite's NOCASE only folds ASCII.
func (r *ExpenseTypeRepository) GetByName(ctx context.Context, name string) (core.ExpenseType, error) {
	types, err := r.GetAll(ctx)
	if err != nil {
		return core.ExpenseType{}, err
	}
	for _, et := range types {
		if core.SameName(et.Name, name) {
			return et, nil
		}
	}
	return core.ExpenseType{}, fmt.Errorf("get expense type %q: %w", name, ErrNotFound)
}

// Add inserts et and returns it with its generated id. A zero CreatedAt is
// stamped with the store clock.
func (r *ExpenseTypeRepository) Add(ctx context.Context, et core.ExpenseType) (core.ExpenseType, error) {
	if et.CreatedAt.IsZero() {
		et.CreatedAt = r.store.now()
	}
	id, err := insert(ctx, r.store,
		`INSERT INTO expense_types (name, is_active, created_at) VALUES (?, ?, ?)`,
		et.Name, et.IsActive, formatTimestamp(et.CreatedAt))
	if err != nil {
		return et, fmt.Errorf("create expense type: %w", err)
	}
	et.ID = id
	return et, nil
}

// Update writes name and active flag. The creation stamp is immutable.
func (r *ExpenseTypeRepository) Update(ctx context.Context, et core.ExpenseType) (core.ExpenseType, error) {
	err := execAffecting(ctx, r.store,
		`UPDATE expense_types SET name = ?, is_active = ? WHERE id = ?`,
		et.Name, et.IsActive, et.ID)
	if err != nil {
		return et, fmt.Errorf("update expense type %d: %w", et.ID, err)
	}
	return r.GetByID(ctx, et.ID)
}

func (r *ExpenseTypeRepository) Delete(ctx context.Context, id int64) (bool, error) {
	return deleteByID(ctx, r.store, "expense_types", id)
}

// ToggleActive flips the active flag. It returns false when id does not exist.
func (r *ExpenseTypeRepository) ToggleActive(ctx context.Context, id int64) (bool, error) {
	err := execAffecting(ctx, r.store,
		`UPDATE expense_types SET is_active = CASE is_active WHEN 1 THEN 0 ELSE 1 END WHERE id = ?`, id)
	if err != nil {
		if isNotFound(err) {
			slog.WarnContext(ctx, "Expense type not found for toggle", "id", id)
			return false, nil
		}
		return false, fmt.Errorf("toggle expense type %d: %w", id, err)
	}
	return true, nil
}

// Count returns the number of expense types. It doubles as the trivial query
// the bring-up uses to detect a missing table.
func (r *ExpenseTypeRepository) Count(ctx context.Context) (int64, error) {
	db, err := r.store.DB()
	if err != nil {
		return 0, err
	}
	var n int64
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM expense_types`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count expense types: %w", err)
	}
	return n, nil
}
