package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/cardlake/cardlake/internal/config"
	"github.com/cardlake/cardlake/internal/store"
	"github.com/cardlake/cardlake/pkg/types"
)

// NewStatusCmd creates the status command.
func NewStatusCmd() *cobra.Command {
	var batchID string
	var eventLimit int

	cmd := &cobra.Command{
		Use:   "status [batch-id]",
		Short: "Show batch ledger state and recent audit events",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				batchID = args[0]
			}
			return runStatus(batchID, eventLimit)
		},
	}

	cmd.Flags().IntVar(&eventLimit, "events", 10, "Number of recent events to show")
	return cmd
}

func runStatus(batchID string, eventLimit int) error {
	cfg, err := config.Load(".")
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	s, err := newStore(cfg)
	if err != nil {
		return fmt.Errorf("creating store: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.Start(ctx); err != nil {
		return fmt.Errorf("connecting to store: %w", err)
	}
	defer func() { _ = s.Stop(ctx) }()

	if batchID != "" {
		return showBatch(ctx, s, batchID, eventLimit)
	}
	return showLedger(ctx, s)
}

func showLedger(ctx context.Context, s store.Store) error {
	batches, err := s.ListBatches(ctx, 20)
	if err != nil {
		return fmt.Errorf("listing batches: %w", err)
	}

	if len(batches) == 0 {
		fmt.Println("No batches recorded.")
		return nil
	}

	bold := color.New(color.Bold)
	_, _ = bold.Println("Recent Batches:")
	fmt.Println()

	for _, b := range batches {
		fmt.Printf("  %-16s %-15s started=%s", b.BatchID, statusString(b.Status),
			b.StartedAt.Format(time.RFC3339))
		if b.Outcome != nil {
			fmt.Printf("  validated=%d dropped=%d rejected=%d",
				b.Outcome.Validated, b.Outcome.Dropped, b.Outcome.Rejected)
		}
		fmt.Println()
	}
	fmt.Println()
	return nil
}

func showBatch(ctx context.Context, s store.Store, batchID string, eventLimit int) error {
	entry, err := s.GetBatch(ctx, batchID)
	if err != nil {
		return fmt.Errorf("reading batch ledger: %w", err)
	}
	if entry == nil {
		return fmt.Errorf("batch %q not found", batchID)
	}

	bold := color.New(color.Bold)
	_, _ = bold.Printf("Batch: %s\n", entry.BatchID)
	fmt.Printf("  Attempt: %s\n", entry.AttemptID)
	fmt.Printf("  Status:  %s\n", statusString(entry.Status))
	fmt.Printf("  Started: %s\n", entry.StartedAt.Format(time.RFC3339))
	if entry.CompletedAt != nil {
		fmt.Printf("  Done:    %s\n", entry.CompletedAt.Format(time.RFC3339))
	}
	if entry.Error != "" {
		color.Red("  Error:   %s", entry.Error)
	}
	printOutcome(entry.Outcome)

	events, err := s.ListEvents(ctx, batchID, eventLimit)
	if err != nil {
		return fmt.Errorf("listing events: %w", err)
	}
	if len(events) > 0 {
		_, _ = bold.Println("  Recent Events:")
		for _, e := range events {
			fmt.Printf("    %s  %-24s %s\n",
				e.Timestamp.Format(time.RFC3339), e.Kind, e.Message)
		}
		fmt.Println()
	}

	rejected, err := s.ListRejected(ctx, batchID)
	if err != nil {
		return fmt.Errorf("listing rejected records: %w", err)
	}
	if len(rejected) > 0 {
		color.Yellow("  Rejected Records: %d", len(rejected))
		for _, r := range rejected {
			fmt.Printf("    %s/%s  %s  %s\n", r.CardID, r.PriceType, r.Reason, r.Detail)
		}
		fmt.Println()
	}

	return nil
}

func statusString(status types.BatchStatus) string {
	switch status {
	case types.BatchCommitted:
		return color.GreenString(string(status))
	case types.BatchFailed:
		return color.RedString(string(status))
	case types.BatchPending, types.BatchStaged, types.BatchDimensioned:
		return color.CyanString(string(status))
	}
	return string(status)
}
