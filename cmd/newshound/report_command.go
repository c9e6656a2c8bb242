package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"newshound/internal/deliver"
)

func newReportCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Send a recap report over the stored items",
	}
	cmd.AddCommand(newReportRunCommand(ctx, "daily", "Send the daily recap (last 24 hours)",
		func(runCtx context.Context, rt *runtime) (deliver.ReportResult, error) {
			return rt.reporter.RunDailyReport(runCtx)
		}))
	cmd.AddCommand(newReportRunCommand(ctx, "weekly", "Send the weekly roundup (last 7 days)",
		func(runCtx context.Context, rt *runtime) (deliver.ReportResult, error) {
			return rt.reporter.RunWeeklyReport(runCtx)
		}))
	return cmd
}

func newReportRunCommand(ctx *commandContext, use, short string, run func(context.Context, *runtime) (deliver.ReportResult, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(func(runCtx context.Context, rt *runtime) error {
				result, err := run(runCtx, rt)
				if err != nil {
					return err
				}
				switch {
				case result.Skipped:
					fmt.Fprintln(cmd.OutOrStdout(), "delivery is disabled")
				case result.Items == 0:
					fmt.Fprintln(cmd.OutOrStdout(), "nothing to report")
				default:
					fmt.Fprintf(cmd.OutOrStdout(), "report sent covering %d items\n", result.Items)
				}
				return nil
			})
		},
	}
}
