package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"youspent/internal/cli"
	"youspent/internal/log"
)

// Opener builds the application for one command invocation.
type Opener func(ctx context.Context) (*cli.App, error)

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand(open Opener) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "youspent",
		Short: "Personal expense tracker backed by an on-device SQLite store",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		newInitCommand(open),
		newStatusCommand(open),
		newResetCommand(open),
		newExpenseCommand(open),
		newTypesCommand(open),
		newSummaryCommand(open),
	)

	return rootCmd
}

// run opens the app, brings the store up unless skipReady is set, and hands
// it to fn. The app is closed afterwards.
func run(open Opener, skipReady bool, fn func(ctx context.Context, cmd *cobra.Command, app *cli.App, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		app, err := open(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = app.Close() }()
		ctx = log.WithContext(ctx, app.Logger)

		if !skipReady {
			if err := app.Ready(ctx); err != nil {
				return err
			}
		}
		return fn(ctx, cmd, app, args)
	}
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Now().UTC(), nil
	}
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing date %q: want YYYY-MM-DD", s)
	}
	return d, nil
}
