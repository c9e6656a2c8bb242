package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"newshound/internal/fetch"
)

func newFetchCommand(ctx *commandContext) *cobra.Command {
	var explore bool

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Run one fetch cycle for all due subscriptions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(func(runCtx context.Context, rt *runtime) error {
				result, err := rt.orchestrator.RunFetchCycle(runCtx)
				if err != nil {
					return err
				}
				printCycle(cmd, "fetch", result)

				if explore {
					exploreResult, err := rt.orchestrator.RunExploreCycle(runCtx)
					if err != nil {
						return err
					}
					printCycle(cmd, "explore", exploreResult)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&explore, "explore", false, "Also run keyword and trend exploration")
	return cmd
}

func newEnrichCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "enrich",
		Short: "Analyze queued items with the configured model",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(func(runCtx context.Context, rt *runtime) error {
				if limit <= 0 {
					limit = rt.cfg.LLM.BatchSize
				}
				result, err := rt.queue.ProcessBatch(runCtx, limit)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "enrich: %d analyzed, %d failed\n", result.Processed, result.Failed)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum items to analyze (defaults to the configured batch size)")
	return cmd
}

func newDeliverCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "deliver",
		Short: "Send the digest for the current delivery window",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(func(runCtx context.Context, rt *runtime) error {
				result, err := rt.windower.RunDeliveryBatch(runCtx)
				if err != nil {
					return err
				}
				switch {
				case result.Skipped:
					fmt.Fprintln(cmd.OutOrStdout(), "delivery is disabled")
				case result.Delivered == 0:
					fmt.Fprintln(cmd.OutOrStdout(), "nothing to deliver in the current window")
				default:
					fmt.Fprintf(cmd.OutOrStdout(), "delivered %d items\n", result.Delivered)
				}
				return nil
			})
		},
	}
}

func printCycle(cmd *cobra.Command, name string, result fetch.CycleResult) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d processed, %d skipped, %d failed, %d new, %d updated, %d filtered\n",
		name, result.Processed, result.Skipped, result.Failed, result.NewItems, result.UpdatedItems, result.Filtered)
}
