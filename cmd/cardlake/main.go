package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cardlake/cardlake/internal/commands"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:   "cardlake",
		Short: "Staging-to-processed transformation pipeline for TCG market prices",
		Long: `cardlake turns immutable raw price captures into an analytics-ready
processed layer: slowly changing card and price-variant dimensions, an
idempotent weekly price-history fact table, and a durable batch ledger
that gates visibility on committed batches.`,
		Version: version,
	}

	root.AddCommand(
		commands.NewInitCmd(),
		commands.NewRunCmd(),
		commands.NewStatusCmd(),
		commands.NewExportCmd(),
		commands.NewTopCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
