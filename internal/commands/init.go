package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"youspent/internal/cli"
)

func newInitCommand(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create, migrate and seed the store",
		Args:  cobra.NoArgs,
		RunE: run(open, false, func(ctx context.Context, cmd *cobra.Command, app *cli.App, _ []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Store ready at %s\n", app.Coordinator.StorePath())
			fmt.Fprintf(out, "Applied migrations: %s\n", joinOrNone(app.Coordinator.AppliedMigrations(ctx)))
			return nil
		}),
	}
}

func newStatusCommand(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report store location and migration state without changing anything",
		Args:  cobra.NoArgs,
		RunE: run(open, true, func(ctx context.Context, cmd *cobra.Command, app *cli.App, _ []string) error {
			out := cmd.OutOrStdout()
			path := app.Coordinator.StorePath()
			if path == "" {
				path = "(unknown)"
			}
			fmt.Fprintf(out, "Store:     %s\n", path)
			fmt.Fprintf(out, "Reachable: %t\n", app.Coordinator.CanConnect(ctx))
			fmt.Fprintf(out, "Applied:   %s\n", joinOrNone(app.Coordinator.AppliedMigrations(ctx)))
			fmt.Fprintf(out, "Pending:   %s\n", joinOrNone(app.Coordinator.PendingMigrations(ctx)))
			return nil
		}),
	}
}

func newResetCommand(open Opener) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete all data and restore the default expense types",
		Args:  cobra.NoArgs,
		RunE: run(open, false, func(ctx context.Context, cmd *cobra.Command, app *cli.App, _ []string) error {
			if !yes {
				return errors.New("reset deletes every expense; rerun with --yes to confirm")
			}
			if !app.ClearAllData(ctx) {
				return errors.New("reset failed, see log for details")
			}
			fmt.Fprintln(cmd.OutOrStdout(), "All data cleared")
			return nil
		}),
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deletion of all data")

	return cmd
}

func joinOrNone(ids []string) string {
	if len(ids) == 0 {
		return "none"
	}
	return strings.Join(ids, ", ")
}
