package commands

import (
	"context"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"youspent/internal/cli"
	"youspent/internal/core"
)

func newTypesCommand(open Opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "types",
		Short: "Manage expense types",
	}

	cmd.AddCommand(
		newTypesListCommand(open),
		newTypesAddCommand(open),
		newTypesToggleCommand(open),
	)

	return cmd
}

func newTypesListCommand(open Opener) *cobra.Command {
	var activeOnly bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List expense types",
		Args:  cobra.NoArgs,
		RunE: run(open, false, func(ctx context.Context, cmd *cobra.Command, app *cli.App, _ []string) error {
			var (
				types []core.ExpenseType
				err   error
			)
			if activeOnly {
				types, err = app.ExpenseTypes.ListActive(ctx)
			} else {
				types, err = app.ExpenseTypes.List(ctx)
			}
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tACTIVE")
			for _, et := range types {
				fmt.Fprintf(w, "%d\t%s\t%t\n", et.ID, et.Name, et.IsActive)
			}
			return w.Flush()
		}),
	}

	cmd.Flags().BoolVar(&activeOnly, "active", false, "only active types")

	return cmd
}

func newTypesAddCommand(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "add <name>",
		Short: "Add an expense type",
		Args:  cobra.ExactArgs(1),
		RunE: run(open, false, func(ctx context.Context, cmd *cobra.Command, app *cli.App, args []string) error {
			et, err := app.ExpenseTypes.Add(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added expense type %d: %s\n", et.ID, et.Name)
			return nil
		}),
	}
}

func newTypesToggleCommand(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <id>",
		Short: "Activate or deactivate an expense type",
		Args:  cobra.ExactArgs(1),
		RunE: run(open, false, func(ctx context.Context, cmd *cobra.Command, app *cli.App, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("parsing id %q: %w", args[0], err)
			}
			ok, err := app.ExpenseTypes.ToggleActive(ctx, id)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("expense type %d not found", id)
			}
			et, err := app.ExpenseTypes.Get(ctx, id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Expense type %s active: %t\n", et.Name, et.IsActive)
			return nil
		}),
	}
}
