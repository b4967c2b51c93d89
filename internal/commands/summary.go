package commands

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"youspent/internal/cli"
	"youspent/internal/core"
)

func newSummaryCommand(open Opener) *cobra.Command {
	var (
		date   string
		period string
	)

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show spending for the day, week, month and year around a date",
		Args:  cobra.NoArgs,
		RunE: run(open, false, func(ctx context.Context, cmd *cobra.Command, app *cli.App, _ []string) error {
			day, err := parseDate(date)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if period == "" {
				overview, err := app.Summaries.Overview(ctx, day)
				if err != nil {
					return err
				}
				for _, s := range []core.PeriodSummary{overview.Day, overview.Week, overview.Month, overview.Year} {
					if err := printSummary(out, s); err != nil {
						return err
					}
				}
				return nil
			}

			p := core.Period(period)
			if !p.IsValid() {
				return fmt.Errorf("unknown period %q: want day, week, month or year", period)
			}
			summary, err := app.Summaries.Summary(ctx, p, day)
			if err != nil {
				return err
			}
			return printSummary(out, summary)
		}),
	}

	cmd.Flags().StringVar(&date, "date", "", "reference date as YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&period, "period", "", "day, week, month or year (default all four)")

	return cmd
}

func printSummary(out io.Writer, s core.PeriodSummary) error {
	// End is exclusive; show the last day covered.
	last := s.End.AddDate(0, 0, -1)
	fmt.Fprintf(out, "%s %s..%s: %s across %d expenses\n",
		s.Period, s.Start.Format(time.DateOnly), last.Format(time.DateOnly), s.Total, s.Count)

	if len(s.ByCategory) == 0 {
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, c := range s.ByCategory {
		name := c.Name
		if name == "" {
			name = "(none)"
		}
		fmt.Fprintf(w, "  %s\t%s\n", name, c.Amount)
	}
	return w.Flush()
}
