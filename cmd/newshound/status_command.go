package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"newshound/internal/preflight"
	"newshound/internal/storage"
)

const (
	ansiBlue   = "\x1b[34m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiReset  = "\x1b[0m"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var runLimit int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show pipeline counters, budget spend, and recent fetch runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(func(_ context.Context, rt *runtime) error {
				return renderStatus(cmd, rt, runLimit)
			})
		},
	}

	cmd.Flags().IntVar(&runLimit, "runs", 10, "Number of recent fetch runs to show")
	return cmd
}

func renderStatus(cmd *cobra.Command, rt *runtime, runLimit int) error {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	cmdCtx := cmd.Context()

	printSection(out, "Checks", colorize)
	for _, result := range preflight.Run(cmdCtx, rt.cfg, rt.store) {
		printCheck(out, result, colorize)
	}
	fmt.Fprintln(out)

	stats, err := rt.store.ItemStats(cmdCtx)
	if err != nil {
		return fmt.Errorf("load item stats: %w", err)
	}

	printSection(out, "Pipeline", colorize)
	fmt.Fprintln(out, renderTable(
		[]string{"Items", "Awaiting analysis", "Awaiting delivery", "Delivered", "Active subscriptions"},
		[][]string{{
			strconv.Itoa(stats.TotalItems),
			strconv.Itoa(stats.Unenriched),
			strconv.Itoa(stats.Undelivered),
			strconv.Itoa(stats.DeliveredItems),
			strconv.Itoa(stats.Subscriptions),
		}},
		[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight},
	))

	printSection(out, "Budget", colorize)
	day := time.Now().In(rt.cfg.Location()).Format("2006-01-02")
	limit := rt.resolver.DailyBudgetLimit(cmdCtx)
	budgetRows := make([][]string, 0, len(rt.registry.Kinds()))
	for _, kind := range rt.registry.Kinds() {
		used, err := rt.store.BudgetUnitsForDay(cmdCtx, kind, day)
		if err != nil {
			return fmt.Errorf("load budget for %s: %w", kind, err)
		}
		limitText := "unlimited"
		if limit > 0 {
			limitText = strconv.Itoa(limit)
		}
		budgetRows = append(budgetRows, []string{kind, strconv.Itoa(used), limitText})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Source", "Used today", "Daily limit"},
		budgetRows,
		[]columnAlignment{alignLeft, alignRight, alignRight},
	))

	runs, err := rt.store.RecentFetchRuns(cmdCtx, runLimit)
	if err != nil {
		return fmt.Errorf("load fetch runs: %w", err)
	}
	printSection(out, "Recent fetch runs", colorize)
	if len(runs) == 0 {
		fmt.Fprintln(out, "  no fetch runs recorded yet")
		return nil
	}
	runRows := make([][]string, 0, len(runs))
	for _, run := range runs {
		runRows = append(runRows, []string{
			run.FinishedAt.Local().Format("01-02 15:04"),
			run.Source,
			describeRunTarget(run),
			string(run.Status),
			strconv.Itoa(run.TotalFetched),
			strconv.Itoa(run.NewItems),
			strconv.Itoa(run.FilteredItems),
			run.ErrorMessage,
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Finished", "Source", "Target", "Status", "Fetched", "New", "Filtered", "Error"},
		runRows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
	))
	return nil
}

func describeRunTarget(run *storage.FetchRun) string {
	if run.SubscriptionID == nil {
		return "explore"
	}
	return "subscription " + strconv.FormatInt(*run.SubscriptionID, 10)
}

func printSection(out io.Writer, title string, colorize bool) {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	if colorize {
		line = ansiBlue + line + ansiReset
	}
	fmt.Fprintln(out, line)
}

func printCheck(out io.Writer, result preflight.Result, colorize bool) {
	label := "WARN"
	color := ansiYellow
	if result.Passed {
		label = "OK"
		color = ansiGreen
	}
	line := fmt.Sprintf("  %-20s [%s] %s", result.Name+":", label, result.Detail)
	if colorize {
		line = color + line + ansiReset
	}
	fmt.Fprintln(out, line)
}
