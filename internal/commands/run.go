package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/cardlake/cardlake/internal/config"
	"github.com/cardlake/cardlake/internal/pipeline"
	"github.com/cardlake/cardlake/pkg/types"
)

const runTimeout = 30 * time.Minute

// NewRunCmd creates the run command.
func NewRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run [batch-id]",
		Short: "Process one raw batch through to the processed layer",
		Long:  "Normalizes the batch's captures, maintains the dimensions, and commits price facts.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(args[0])
		},
	}
}

func runBatch(batchID string) error {
	cfg, err := config.Load(".")
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	s, err := newStore(cfg)
	if err != nil {
		return fmt.Errorf("creating store: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	if err := s.Start(ctx); err != nil {
		return fmt.Errorf("connecting to store: %w", err)
	}
	defer func() { _ = s.Stop(ctx) }()

	coord, err := buildCoordinator(cfg, s)
	if err != nil {
		return err
	}

	color.Cyan("Running batch %s...", batchID)

	entry, err := coord.Run(ctx, batchID)
	if err != nil {
		if errors.Is(err, pipeline.ErrBatchLocked) {
			color.Yellow("Batch %s is already being processed by another run.", batchID)
			return err
		}
		color.Red("Batch %s failed: %v", batchID, err)
		if entry != nil && entry.Outcome != nil {
			printOutcome(entry.Outcome)
		}
		return err
	}

	color.Green("Batch %s committed.", batchID)
	printOutcome(entry.Outcome)
	return nil
}

func printOutcome(o *types.OutcomeReport) {
	if o == nil {
		return
	}
	fmt.Println()
	fmt.Printf("  Records:    %d validated, %d dropped\n", o.Validated, o.Dropped)
	fmt.Printf("  Cards:      %d inserted, %d updated\n", o.CardsInserted, o.CardsUpdated)
	fmt.Printf("  Variants:   %d inserted, %d updated\n", o.VariantsInserted, o.VariantsUpdated)
	fmt.Printf("  Facts:      %d inserted, %d replaced, %d skipped\n", o.Inserted, o.Replaced, o.Skipped)
	if o.Rejected > 0 {
		color.Yellow("  Rejected:   %d (see the rejected-records sink)", o.Rejected)
	}
	fmt.Println()
}
