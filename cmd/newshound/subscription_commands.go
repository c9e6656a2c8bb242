package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"newshound/internal/storage"
)

func newSubscriptionCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "subscription",
		Aliases: []string{"sub"},
		Short:   "Manage fetch subscriptions",
	}

	cmd.AddCommand(newSubscriptionAddCommand(ctx))
	cmd.AddCommand(newSubscriptionListCommand(ctx))
	cmd.AddCommand(newSubscriptionStatusCommand(ctx, "pause", storage.SubscriptionPaused))
	cmd.AddCommand(newSubscriptionStatusCommand(ctx, "resume", storage.SubscriptionActive))
	cmd.AddCommand(newSubscriptionRemoveCommand(ctx))

	return cmd
}

func newSubscriptionAddCommand(ctx *commandContext) *cobra.Command {
	var (
		name       string
		source     string
		subType    string
		interval   int
		noAnalysis bool
		noDelivery bool
	)

	cmd := &cobra.Command{
		Use:   "add <target>",
		Short: "Add a keyword, author, or topic subscription",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(func(runCtx context.Context, rt *runtime) error {
				target := strings.TrimSpace(args[0])
				if target == "" {
					return fmt.Errorf("subscription target is required")
				}
				if _, ok := rt.registry.Get(source); !ok {
					return fmt.Errorf("unknown source %q (available: %s)", source, strings.Join(rt.registry.Kinds(), ", "))
				}
				switch subType {
				case storage.SubscriptionKeyword, storage.SubscriptionAuthor, storage.SubscriptionTopic:
				default:
					return fmt.Errorf("unknown subscription type %q", subType)
				}

				if interval <= 0 {
					interval = rt.cfg.Fetch.DefaultInterval
				}
				if interval < rt.cfg.Fetch.MinInterval {
					interval = rt.cfg.Fetch.MinInterval
				}
				if name == "" {
					name = fmt.Sprintf("%s %s %q", source, subType, target)
				}

				sub := &storage.Subscription{
					Name:            name,
					Source:          source,
					Type:            subType,
					Target:          target,
					FetchInterval:   interval,
					AnalysisEnabled: !noAnalysis,
					DeliveryEnabled: !noDelivery,
					Status:          storage.SubscriptionActive,
				}
				if err := rt.store.CreateSubscription(runCtx, sub); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added subscription %d: %s\n", sub.ID, sub.Name)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Display name (defaults to source, type, and target)")
	cmd.Flags().StringVar(&source, "source", "twitter", "Source kind (twitter, youtube, rss)")
	cmd.Flags().StringVar(&subType, "type", storage.SubscriptionKeyword, "Subscription type (keyword, author, topic)")
	cmd.Flags().IntVar(&interval, "interval", 0, "Fetch interval in seconds (defaults to the configured value)")
	cmd.Flags().BoolVar(&noAnalysis, "no-analysis", false, "Skip LLM analysis for fetched items")
	cmd.Flags().BoolVar(&noDelivery, "no-delivery", false, "Exclude fetched items from digests")
	return cmd
}

func newSubscriptionListCommand(ctx *commandContext) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List subscriptions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(func(runCtx context.Context, rt *runtime) error {
				var statuses []storage.SubscriptionStatus
				if !all {
					statuses = []storage.SubscriptionStatus{storage.SubscriptionActive, storage.SubscriptionPaused}
				}
				subs, err := rt.store.ListSubscriptions(runCtx, statuses...)
				if err != nil {
					return err
				}
				if len(subs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No subscriptions configured")
					return nil
				}

				rows := make([][]string, 0, len(subs))
				for _, sub := range subs {
					lastFetched := "never"
					if sub.LastFetchedAt != nil {
						lastFetched = sub.LastFetchedAt.Local().Format("2006-01-02 15:04")
					}
					rows = append(rows, []string{
						strconv.FormatInt(sub.ID, 10),
						sub.Name,
						sub.Source,
						sub.Type,
						sub.Target,
						(time.Duration(sub.FetchInterval) * time.Second).String(),
						string(sub.Status),
						lastFetched,
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Name", "Source", "Type", "Target", "Interval", "Status", "Last fetched"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Include removed subscriptions")
	return cmd
}

func newSubscriptionStatusCommand(ctx *commandContext, verb string, status storage.SubscriptionStatus) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " <id>",
		Short: strings.ToUpper(verb[:1]) + verb[1:] + " a subscription",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(func(runCtx context.Context, rt *runtime) error {
				id, err := parseSubscriptionID(args[0])
				if err != nil {
					return err
				}
				if err := rt.store.SetSubscriptionStatus(runCtx, id, status); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Subscription %d is now %s\n", id, status)
				return nil
			})
		},
	}
}

func newSubscriptionRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <id>",
		Aliases: []string{"rm"},
		Short:   "Remove a subscription (items it fetched are kept)",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(func(runCtx context.Context, rt *runtime) error {
				id, err := parseSubscriptionID(args[0])
				if err != nil {
					return err
				}
				if err := rt.store.SetSubscriptionStatus(runCtx, id, storage.SubscriptionDeleted); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed subscription %d\n", id)
				return nil
			})
		},
	}
}

func parseSubscriptionID(value string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid subscription id %q", value)
	}
	return id, nil
}
