package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/cardlake/cardlake/internal/config"
	"github.com/cardlake/cardlake/internal/warehouse"
	"github.com/cardlake/cardlake/pkg/types"
)

const warehouseTimeout = 5 * time.Minute

// NewExportCmd creates the export command.
func NewExportCmd() *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "export [table]",
		Short: "Export a processed table to parquet",
		Long: fmt.Sprintf("Exports one of %s, %s, %s, or %s to a parquet file.",
			types.TableCardMaster, types.TableVariantMaster, types.TablePriceHistory, types.TableWeeklyTopCards),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table := args[0]
			if outPath == "" {
				outPath = table + ".parquet"
			}
			return runExport(table, outPath)
		},
	}

	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Output file path (default <table>.parquet)")
	return cmd
}

// NewTopCmd creates the top command.
func NewTopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "top",
		Short: "Show the weekly top cards leaderboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTop()
		},
	}
}

func openWarehouse() (*warehouse.Warehouse, *types.ProjectConfig, error) {
	cfg, err := config.Load(".")
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	if cfg.Store != "local" {
		return nil, nil, fmt.Errorf("warehouse commands require the local store (processed JSONL tables)")
	}

	w, err := warehouse.Open(cfg.Warehouse, nil)
	if err != nil {
		return nil, nil, err
	}
	return w, cfg, nil
}

func runExport(table, outPath string) error {
	w, cfg, err := openWarehouse()
	if err != nil {
		return err
	}
	defer w.Close()

	ctx, cancel := context.WithTimeout(context.Background(), warehouseTimeout)
	defer cancel()

	if err := w.CreateViews(ctx, cfg.LocalStore.Dir); err != nil {
		return err
	}
	if err := w.ExportParquet(ctx, table, outPath); err != nil {
		return err
	}

	color.Green("Exported %s to %s", table, outPath)
	return nil
}

func runTop() error {
	w, cfg, err := openWarehouse()
	if err != nil {
		return err
	}
	defer w.Close()

	ctx, cancel := context.WithTimeout(context.Background(), warehouseTimeout)
	defer cancel()

	if err := w.CreateViews(ctx, cfg.LocalStore.Dir); err != nil {
		return err
	}
	cards, err := w.WeeklyTop(ctx)
	if err != nil {
		return err
	}

	if len(cards) == 0 {
		fmt.Println("No price history recorded yet.")
		return nil
	}

	bold := color.New(color.Bold)
	_, _ = bold.Printf("Top cards for %s:\n", cards[0].Week)
	fmt.Println()
	for _, c := range cards {
		fmt.Printf("  %3d. %-30s %-20s %-14s $%.2f\n",
			c.Rank, c.CardName, c.SetName, c.PriceType, c.Market)
	}
	fmt.Println()
	return nil
}
