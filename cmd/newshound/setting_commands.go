package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"newshound/internal/settings"
)

func newSettingCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "setting",
		Short: "Inspect and override runtime settings",
		Long: "Runtime settings are stored in the database and take precedence over the\n" +
			"configuration file. The daemon picks up changes without a restart.",
	}

	cmd.AddCommand(newSettingListCommand(ctx))
	cmd.AddCommand(newSettingSetCommand(ctx))
	cmd.AddCommand(newSettingUnsetCommand(ctx))
	return cmd
}

func newSettingListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show known settings and active overrides",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(func(runCtx context.Context, rt *runtime) error {
				overrides, err := rt.store.ListSettings(runCtx)
				if err != nil {
					return err
				}

				rows := make([][]string, 0, len(settings.KnownKeys()))
				for _, key := range settings.KnownKeys() {
					value, overridden := overrides[key]
					if !overridden {
						value = "(default)"
					}
					rows = append(rows, []string{key, value})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Key", "Override"},
					rows,
					[]columnAlignment{alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
}

func newSettingSetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Override a setting",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(func(runCtx context.Context, rt *runtime) error {
				key := strings.TrimSpace(args[0])
				encoded, err := settings.EncodeOverride(key, args[1])
				if err != nil {
					return err
				}
				if err := rt.store.PutSetting(runCtx, key, encoded, "set via CLI"); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s\n", key, encoded)
				return nil
			})
		},
	}
}

func newSettingUnsetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "unset <key>",
		Short: "Remove an override and return to the configured default",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(func(runCtx context.Context, rt *runtime) error {
				key := strings.TrimSpace(args[0])
				if err := rt.store.DeleteSetting(runCtx, key); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Unset %s\n", key)
				return nil
			})
		},
	}
}
