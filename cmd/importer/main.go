package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "importer",
		Short:         "Blackout schedule importer",
		Long:          `Imports planned electricity outages from the utility portal into the barghalarm database`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(createImportCmd())
	rootCmd.AddCommand(createImportTomorrowCmd())
	rootCmd.AddCommand(createPruneCmd())
	rootCmd.AddCommand(createDiscoverCmd())
	rootCmd.AddCommand(createSeedCmd())
	rootCmd.AddCommand(createScheduleCmd())

	return rootCmd
}
