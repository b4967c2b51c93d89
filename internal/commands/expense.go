package commands

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"youspent/internal/cli"
	"youspent/internal/core"
)

func newExpenseCommand(open Opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "expense",
		Short: "Record, list and delete expenses",
	}

	cmd.AddCommand(
		newExpenseAddCommand(open),
		newExpenseListCommand(open),
		newExpenseDeleteCommand(open),
	)

	return cmd
}

func newExpenseAddCommand(open Opener) *cobra.Command {
	var (
		amount   string
		category string
		typeID   int64
		date     string
	)

	cmd := &cobra.Command{
		Use:   "add <description>",
		Short: "Record an expense",
		Args:  cobra.ExactArgs(1),
		RunE: run(open, false, func(ctx context.Context, cmd *cobra.Command, app *cli.App, args []string) error {
			money, err := core.ParseMoney(amount)
			if err != nil {
				return fmt.Errorf("parsing amount %q: %w", amount, err)
			}
			day, err := parseDate(date)
			if err != nil {
				return err
			}

			e := core.Expense{
				Description: args[0],
				Amount:      money,
				Date:        day,
				Category:    category,
			}
			if typeID > 0 {
				e.ExpenseTypeID = &typeID
			}

			saved, err := app.Expenses.AddExpense(ctx, e)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recorded expense %d: %s %s on %s\n",
				saved.ID, saved.Amount, saved.Description, saved.Date.Format(time.DateOnly))
			return nil
		}),
	}

	cmd.Flags().StringVar(&amount, "amount", "", "amount, e.g. 12.50 (required)")
	_ = cmd.MarkFlagRequired("amount")
	cmd.Flags().StringVar(&category, "category", "", "category label, linked to the expense type of the same name")
	cmd.Flags().Int64Var(&typeID, "type-id", 0, "expense type id; fills the category when it is empty")
	cmd.Flags().StringVar(&date, "date", "", "date as YYYY-MM-DD (default today)")

	return cmd
}

func newExpenseListCommand(open Opener) *cobra.Command {
	var (
		date     string
		from     string
		to       string
		category string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List expenses by day, range or category",
		Args:  cobra.NoArgs,
		RunE: run(open, false, func(ctx context.Context, cmd *cobra.Command, app *cli.App, _ []string) error {
			var (
				expenses []core.Expense
				err      error
			)
			switch {
			case category != "":
				expenses, err = app.Expenses.ExpensesByCategory(ctx, category)
			case from != "" || to != "":
				var start, end time.Time
				if start, err = parseDate(from); err != nil {
					return err
				}
				if end, err = parseDate(to); err != nil {
					return err
				}
				_, dayEnd := core.DayBounds(end)
				expenses, err = app.Expenses.ExpensesInRange(ctx, core.StartOfDay(start), dayEnd.Add(-time.Second))
			case date != "":
				var day time.Time
				if day, err = parseDate(date); err != nil {
					return err
				}
				expenses, err = app.Expenses.ExpensesByDate(ctx, day)
			default:
				expenses, err = app.Expenses.AllExpenses(ctx)
			}
			if err != nil {
				return err
			}
			return printExpenses(cmd.OutOrStdout(), expenses)
		}),
	}

	cmd.Flags().StringVar(&date, "date", "", "only expenses on this day (YYYY-MM-DD)")
	cmd.Flags().StringVar(&from, "from", "", "range start, inclusive (YYYY-MM-DD, default today)")
	cmd.Flags().StringVar(&to, "to", "", "range end, inclusive (YYYY-MM-DD, default today)")
	cmd.Flags().StringVar(&category, "category", "", "only expenses with this exact category")
	cmd.MarkFlagsMutuallyExclusive("date", "from")
	cmd.MarkFlagsMutuallyExclusive("date", "to")
	cmd.MarkFlagsMutuallyExclusive("category", "date")

	return cmd
}

func newExpenseDeleteCommand(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an expense",
		Args:  cobra.ExactArgs(1),
		RunE: run(open, false, func(ctx context.Context, cmd *cobra.Command, app *cli.App, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("parsing id %q: %w", args[0], err)
			}
			deleted, err := app.Expenses.DeleteExpense(ctx, id)
			if err != nil {
				return err
			}
			if !deleted {
				return fmt.Errorf("expense %d not found", id)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted expense %d\n", id)
			return nil
		}),
	}
}

func printExpenses(out io.Writer, expenses []core.Expense) error {
	if len(expenses) == 0 {
		fmt.Fprintln(out, "No expenses")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDATE\tAMOUNT\tCATEGORY\tDESCRIPTION")
	var total core.Money
	for _, e := range expenses {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
			e.ID, e.Date.Format(time.DateOnly), e.Amount, e.Category, e.Description)
		total = total.Add(e.Amount)
	}
	fmt.Fprintf(w, "\t\t%s\t\ttotal\n", total)
	return w.Flush()
}
