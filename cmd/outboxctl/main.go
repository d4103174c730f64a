// Command outboxctl inspects and repairs the transactional outbox.
//
// Usage:
//
//	outboxctl list --status FAILED --limit 20
//	outboxctl stats
//	outboxctl sweep --older-than 24h
//	outboxctl requeue --id 42
//
// Connection settings come from the same YAML file the services use
// (--config or CONFIG_FILE).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type globalFlags struct {
	configFile string
	storage    string
	output     string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:           "outboxctl",
		Short:         "Inspect and repair the transactional outbox",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&flags.configFile, "config", "c", "", "Service config file (defaults to CONFIG_FILE)")
	rootCmd.PersistentFlags().StringVarP(&flags.storage, "storage", "s", "postgres", "Outbox storage: postgres or mongo")
	rootCmd.PersistentFlags().StringVarP(&flags.output, "output", "o", "table", "Output format: table or json")

	rootCmd.AddCommand(
		newListCmd(flags),
		newStatsCmd(flags),
		newSweepCmd(flags),
		newRequeueCmd(flags),
	)
	return rootCmd
}
