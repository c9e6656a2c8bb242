package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"newshound/internal/daemon"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run the scheduler in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := ctx.buildRuntime()
			if err != nil {
				return err
			}

			d, err := daemon.New(rt.cfg, rt.store, rt.logger, daemon.Stages{
				Fetcher:   rt.orchestrator,
				Enricher:  rt.queue,
				Deliverer: rt.windower,
				Reporter:  rt.reporter,
			})
			if err != nil {
				rt.Close()
				return err
			}
			defer d.Close()

			if err := d.Start(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "newshound daemon running; press Ctrl+C to stop")

			signals := make(chan os.Signal, 1)
			signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(signals)

			select {
			case <-cmd.Context().Done():
			case sig := <-signals:
				fmt.Fprintf(cmd.OutOrStdout(), "received %s, shutting down\n", sig)
			}
			d.Stop()
			return nil
		},
	}
}
