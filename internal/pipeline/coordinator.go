// Package pipeline implements the batch coordinator that drives one raw
// capture batch through normalization, dimension maintenance, and fact
// commit.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/cardlake/cardlake/internal/dimension"
	"github.com/cardlake/cardlake/internal/fact"
	"github.com/cardlake/cardlake/internal/lifecycle"
	"github.com/cardlake/cardlake/internal/metrics"
	"github.com/cardlake/cardlake/internal/normalize"
	"github.com/cardlake/cardlake/internal/raw"
	"github.com/cardlake/cardlake/internal/store"
	"github.com/cardlake/cardlake/pkg/types"
)

// lockTTL bounds how long a crashed run can hold a batch before another
// attempt may take over.
const lockTTL = 15 * time.Minute

// Coordinator orchestrates the per-batch PENDING -> STAGED -> DIMENSIONED ->
// COMMITTED lifecycle, persisting state to the ledger at every step so crash
// recovery is "read the ledger", never "guess from partial tables".
type Coordinator struct {
	reader     raw.Reader
	normalizer *normalize.Normalizer
	builder    *dimension.Builder
	appender   *fact.Appender
	store      store.Store
	alertFn    func(types.Alert)
	logger     *slog.Logger
}

// New creates a Coordinator.
func New(reader raw.Reader, n *normalize.Normalizer, b *dimension.Builder, a *fact.Appender, s store.Store, alertFn func(types.Alert), logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		reader:     reader,
		normalizer: n,
		builder:    b,
		appender:   a,
		store:      s,
		alertFn:    alertFn,
		logger:     logger,
	}
}

// ErrBatchLocked is returned when another attempt already holds the batch.
var ErrBatchLocked = errors.New("batch is locked by another run")

// Run processes one batch end to end and returns the final ledger entry.
// Running an already committed batch starts a fresh attempt; because every
// write downstream is idempotent, such a re-run ends in all skips.
func (c *Coordinator) Run(ctx context.Context, batchID string) (*types.BatchLedgerEntry, error) {
	acquired, err := c.store.AcquireLock(ctx, lockKey(batchID), lockTTL)
	if err != nil {
		return nil, &types.StorageFailure{Op: "acquire batch lock", Err: err}
	}
	if !acquired {
		return nil, fmt.Errorf("batch %s: %w", batchID, ErrBatchLocked)
	}
	defer func() {
		if err := c.store.ReleaseLock(context.WithoutCancel(ctx), lockKey(batchID)); err != nil {
			c.logger.Error("failed to release batch lock", "batch", batchID, "error", err)
		}
	}()

	now := time.Now().UTC()
	entry := &types.BatchLedgerEntry{
		BatchID:   batchID,
		AttemptID: ulid.Make().String(),
		Status:    types.BatchPending,
		StartedAt: now,
		UpdatedAt: now,
	}
	if err := c.store.PutBatch(ctx, *entry); err != nil {
		return nil, &types.StorageFailure{Op: "record batch attempt", Err: err}
	}
	c.recordStateChange(ctx, entry, "")
	metrics.BatchesStarted.Add(1)

	c.logger.Info("batch run starting", "batch", batchID, "attempt", entry.AttemptID)

	captures, err := c.loadCaptures(ctx, batchID)
	if err != nil {
		return c.fail(ctx, entry, err)
	}

	result, err := c.normalizer.NormalizeBatch(ctx, batchID, captures)
	if err != nil {
		var dte *types.DropThresholdExceeded
		if errors.As(err, &dte) && result != nil {
			c.recordThresholdBreach(ctx, batchID, result, dte)
		}
		return c.fail(ctx, entry, err)
	}

	entry.Outcome = &types.OutcomeReport{
		Validated: result.Validated,
		Dropped:   result.Dropped,
	}
	metrics.RecordsValidated.Add(int64(result.Validated))
	metrics.RecordsDropped.Add(int64(result.Dropped))
	if err := c.advance(ctx, entry, types.BatchStaged); err != nil {
		return c.fail(ctx, entry, err)
	}

	cardDelta, res, err := c.builder.UpsertCards(ctx, batchID, result.Cards)
	if err != nil {
		return c.fail(ctx, entry, err)
	}
	variantDelta, err := c.builder.UpsertVariants(ctx, batchID, result.Prices, res)
	if err != nil {
		return c.fail(ctx, entry, err)
	}

	entry.Outcome.CardsInserted = cardDelta.Inserted
	entry.Outcome.CardsUpdated = cardDelta.Updated
	entry.Outcome.VariantsInserted = variantDelta.Inserted
	entry.Outcome.VariantsUpdated = variantDelta.Updated
	if err := c.advance(ctx, entry, types.BatchDimensioned); err != nil {
		return c.fail(ctx, entry, err)
	}

	outcome, err := c.appender.Append(ctx, batchID, result.Prices, res)
	if err != nil {
		return c.fail(ctx, entry, err)
	}

	entry.Outcome.Inserted = outcome.Inserted
	entry.Outcome.Replaced = outcome.Replaced
	entry.Outcome.Skipped = outcome.Skipped
	entry.Outcome.Rejected = outcome.Rejected
	metrics.FactsInserted.Add(int64(outcome.Inserted))
	metrics.FactsReplaced.Add(int64(outcome.Replaced))
	metrics.FactsSkipped.Add(int64(outcome.Skipped))
	metrics.FactsRejected.Add(int64(outcome.Rejected))

	completed := time.Now().UTC()
	entry.CompletedAt = &completed
	if err := c.advance(ctx, entry, types.BatchCommitted); err != nil {
		return c.fail(ctx, entry, err)
	}
	metrics.BatchesCommitted.Add(1)

	_ = c.store.AppendEvent(ctx, types.Event{
		EventID: ulid.Make().String(),
		Kind:    types.EventBatchCommitted,
		BatchID: batchID,
		Message: fmt.Sprintf("batch committed: %d inserted, %d replaced, %d skipped, %d rejected",
			outcome.Inserted, outcome.Replaced, outcome.Skipped, outcome.Rejected),
		Details:   outcomeDetails(entry.Outcome),
		Timestamp: completed,
	})

	if outcome.Rejected > 0 {
		c.fireAlert(types.Alert{
			Level:     types.AlertLevelWarning,
			BatchID:   batchID,
			Message:   fmt.Sprintf("Batch %s committed with %d rejected price records", batchID, outcome.Rejected),
			Details:   map[string]interface{}{"rejected": outcome.Rejected},
			Timestamp: completed,
		})
	}

	c.logger.Info("batch run committed",
		"batch", batchID,
		"attempt", entry.AttemptID,
		"validated", result.Validated,
		"dropped", result.Dropped,
		"inserted", outcome.Inserted,
		"replaced", outcome.Replaced,
		"skipped", outcome.Skipped,
		"rejected", outcome.Rejected)

	return entry, nil
}

// Status returns the ledger entry and recent audit events for a batch.
func (c *Coordinator) Status(ctx context.Context, batchID string, eventLimit int) (*types.BatchLedgerEntry, []types.Event, error) {
	entry, err := c.store.GetBatch(ctx, batchID)
	if err != nil {
		return nil, nil, &types.StorageFailure{Op: "read batch ledger", Err: err}
	}
	if entry == nil {
		return nil, nil, fmt.Errorf("batch %q not found", batchID)
	}
	events, err := c.store.ListEvents(ctx, batchID, eventLimit)
	if err != nil {
		return entry, nil, &types.StorageFailure{Op: "read batch events", Err: err}
	}
	return entry, events, nil
}

func (c *Coordinator) loadCaptures(ctx context.Context, batchID string) ([]*types.RawCapture, error) {
	refs, err := c.reader.ListCaptures(ctx, batchID)
	if err != nil {
		return nil, err
	}
	captures := make([]*types.RawCapture, 0, len(refs))
	for _, ref := range refs {
		capture, err := c.reader.ReadCapture(ctx, ref)
		if err != nil {
			return nil, err
		}
		captures = append(captures, capture)
	}
	return captures, nil
}

// advance moves the ledger entry to the next lifecycle state and persists it.
func (c *Coordinator) advance(ctx context.Context, entry *types.BatchLedgerEntry, to types.BatchStatus) error {
	if err := lifecycle.Transition(entry.Status, to); err != nil {
		return err
	}
	from := entry.Status
	entry.Status = to
	entry.UpdatedAt = time.Now().UTC()
	if err := c.store.PutBatch(ctx, *entry); err != nil {
		entry.Status = from
		return &types.StorageFailure{Op: "persist batch state", Err: err}
	}
	c.recordStateChange(ctx, entry, from)
	return nil
}

// fail marks the batch FAILED. The cause is preserved in the ledger so a
// later attempt can be judged against it.
func (c *Coordinator) fail(ctx context.Context, entry *types.BatchLedgerEntry, cause error) (*types.BatchLedgerEntry, error) {
	c.logger.Error("batch run failed", "batch", entry.BatchID, "attempt", entry.AttemptID, "error", cause)

	from := entry.Status
	entry.Status = types.BatchFailed
	entry.Error = cause.Error()
	completed := time.Now().UTC()
	entry.CompletedAt = &completed
	entry.UpdatedAt = completed

	if err := c.store.PutBatch(ctx, *entry); err != nil {
		c.logger.Error("failed to persist FAILED state", "batch", entry.BatchID, "error", err)
	}
	c.recordStateChange(ctx, entry, from)
	metrics.BatchesFailed.Add(1)

	_ = c.store.AppendEvent(ctx, types.Event{
		EventID:   ulid.Make().String(),
		Kind:      types.EventBatchFailed,
		BatchID:   entry.BatchID,
		Message:   cause.Error(),
		Timestamp: completed,
	})

	c.fireAlert(types.Alert{
		Level:     types.AlertLevelError,
		BatchID:   entry.BatchID,
		Message:   fmt.Sprintf("Batch %s failed: %v", entry.BatchID, cause),
		Timestamp: completed,
	})

	return entry, cause
}

func (c *Coordinator) recordStateChange(ctx context.Context, entry *types.BatchLedgerEntry, from types.BatchStatus) {
	details := map[string]interface{}{
		"attemptId": entry.AttemptID,
		"to":        string(entry.Status),
	}
	if from != "" {
		details["from"] = string(from)
	}
	_ = c.store.AppendEvent(ctx, types.Event{
		EventID:   ulid.Make().String(),
		Kind:      types.EventBatchStateChanged,
		BatchID:   entry.BatchID,
		Message:   fmt.Sprintf("batch state is now %s", entry.Status),
		Details:   details,
		Timestamp: entry.UpdatedAt,
	})
}

func (c *Coordinator) recordThresholdBreach(ctx context.Context, batchID string, result *normalize.Result, dte *types.DropThresholdExceeded) {
	_ = c.store.AppendEvent(ctx, types.Event{
		EventID: ulid.Make().String(),
		Kind:    types.EventDropThresholdBreach,
		BatchID: batchID,
		Message: dte.Error(),
		Details: map[string]interface{}{
			"dropped":   dte.Dropped,
			"total":     dte.Total,
			"threshold": dte.Threshold,
		},
		Timestamp: time.Now().UTC(),
	})
	c.fireAlert(types.Alert{
		Level:   types.AlertLevelError,
		BatchID: batchID,
		Message: fmt.Sprintf("Batch %s blocked: drop rate %.1f%% exceeds threshold", batchID, result.DropRate()*100),
		Details: map[string]interface{}{
			"dropped": dte.Dropped,
			"total":   dte.Total,
		},
		Timestamp: time.Now().UTC(),
	})
}

func (c *Coordinator) fireAlert(alert types.Alert) {
	if c.alertFn != nil {
		c.alertFn(alert)
	}
}

func outcomeDetails(o *types.OutcomeReport) map[string]interface{} {
	return map[string]interface{}{
		"validated":        o.Validated,
		"dropped":          o.Dropped,
		"inserted":         o.Inserted,
		"replaced":         o.Replaced,
		"skipped":          o.Skipped,
		"rejected":         o.Rejected,
		"cardsInserted":    o.CardsInserted,
		"cardsUpdated":     o.CardsUpdated,
		"variantsInserted": o.VariantsInserted,
		"variantsUpdated":  o.VariantsUpdated,
	}
}

func lockKey(batchID string) string {
	return "batch#" + batchID
}
