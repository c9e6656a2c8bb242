package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newNotifyCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Webhook utilities",
	}
	cmd.AddCommand(newNotifyTestCommand(ctx))
	return cmd
}

func newNotifyTestCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Send a test message to the configured webhook",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(func(runCtx context.Context, rt *runtime) error {
				if !rt.sender.Configured() {
					return fmt.Errorf("no webhook URL configured; set delivery.webhook_url first")
				}
				body := fmt.Sprintf("newshound webhook test sent at %s", time.Now().Format(time.RFC3339))
				if err := rt.sender.Send(runCtx, "Newshound Test", body); err != nil {
					return fmt.Errorf("send test message: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Test message sent")
				return nil
			})
		},
	}
}
