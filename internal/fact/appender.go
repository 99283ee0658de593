// Package fact appends price observations to the tcg_price_history fact
// table with idempotent, bucket-grained upsert semantics.
package fact

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/cardlake/cardlake/internal/dimension"
	"github.com/cardlake/cardlake/internal/store"
	"github.com/cardlake/cardlake/pkg/types"
)

// DefaultPriceTolerance is the absolute difference under which two price
// observations for the same bucket are considered equal.
const DefaultPriceTolerance = 0.0001

// Outcome summarizes one append pass over a batch's price records.
type Outcome struct {
	Inserted int
	Replaced int
	Skipped  int
	Rejected int
}

// Appender writes price history facts. Rows are computed in memory first and
// applied through a single ApplyFacts call, so a storage failure partway
// through leaves the fact table untouched.
type Appender struct {
	store       store.Store
	granularity BucketGranularity
	tolerance   float64
	logger      *slog.Logger
}

// Option configures an Appender.
type Option func(*Appender)

// WithGranularity overrides the default weekly bucket granularity.
func WithGranularity(g BucketGranularity) Option {
	return func(a *Appender) { a.granularity = g }
}

// WithTolerance overrides the default price comparison tolerance.
func WithTolerance(tol float64) Option {
	return func(a *Appender) { a.tolerance = tol }
}

// NewAppender creates an Appender.
func NewAppender(s store.Store, logger *slog.Logger, opts ...Option) *Appender {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Appender{
		store:       s,
		granularity: BucketWeek,
		tolerance:   DefaultPriceTolerance,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Append resolves each price record against the variant dimension, buckets it,
// and upserts into tcg_price_history:
//
//   - no row for (variant, bucket): insert
//   - existing row with equal prices: skip
//   - existing row with different prices: replace, recording a correction event
//
// Records whose variant cannot be resolved go to the rejected sink and never
// block the batch. Re-running a committed batch yields all skips.
func (a *Appender) Append(ctx context.Context, batchID string, records []types.PriceRecord, res *dimension.Resolution) (Outcome, error) {
	out := Outcome{}
	now := time.Now().UTC()

	// Latest observation wins when a batch carries several observations for
	// the same (variant, bucket).
	planned := make(map[string]types.PriceHistoryRow)
	counted := make(map[string]string) // planned key -> "insert" | "replace"

	for _, rec := range records {
		variantKey, ok := res.VariantKeys[dimension.VariantLookup(rec.CardID, rec.PriceType)]
		if !ok {
			out.Rejected++
			a.reject(ctx, batchID, rec, now)
			continue
		}

		bucket := Bucket(rec.ObservedAt, a.granularity)
		row := types.PriceHistoryRow{
			VariantKey: variantKey,
			Bucket:     bucket,
			Market:     rec.Market,
			Low:        rec.Low,
			Mid:        rec.Mid,
			High:       rec.High,
			BatchID:    batchID,
			RecordedAt: now,
		}

		key := bucket + "#" + rec.CardID + "#" + rec.PriceType
		if _, seen := counted[key]; seen {
			planned[key] = row
			continue
		}

		existing, err := a.store.GetFact(ctx, variantKey, bucket)
		if err != nil {
			return out, &types.StorageFailure{Op: "get price fact", Err: err}
		}

		switch {
		case existing == nil:
			planned[key] = row
			counted[key] = "insert"
			out.Inserted++
		case a.samePrices(*existing, row):
			out.Skipped++
		default:
			a.auditCorrection(ctx, batchID, *existing, row)
			planned[key] = row
			counted[key] = "replace"
			out.Replaced++
		}
	}

	if len(planned) == 0 {
		return out, nil
	}

	keys := make([]string, 0, len(planned))
	for k := range planned {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	rows := make([]types.PriceHistoryRow, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, planned[k])
	}

	if err := a.store.ApplyFacts(ctx, batchID, rows); err != nil {
		return Outcome{Rejected: out.Rejected}, &types.StorageFailure{Op: "apply price facts", Err: err}
	}
	return out, nil
}

func (a *Appender) samePrices(stored, incoming types.PriceHistoryRow) bool {
	eq := func(x, y float64) bool { return math.Abs(x-y) <= a.tolerance }
	return eq(stored.Market, incoming.Market) &&
		eq(stored.Low, incoming.Low) &&
		eq(stored.Mid, incoming.Mid) &&
		eq(stored.High, incoming.High)
}

func (a *Appender) reject(ctx context.Context, batchID string, rec types.PriceRecord, now time.Time) {
	a.logger.Warn("price record has no resolvable variant, rejecting",
		"batch", batchID, "cardId", rec.CardID, "priceType", rec.PriceType)

	err := &types.UnresolvedReference{
		Table:  types.TablePriceHistory,
		CardID: rec.CardID,
		Detail: "no variant for price type " + rec.PriceType,
	}
	if putErr := a.store.PutRejected(ctx, types.RejectedRecord{
		BatchID:    batchID,
		CardID:     rec.CardID,
		PriceType:  rec.PriceType,
		Reason:     types.RejectUnresolvedVariant,
		Detail:     err.Error(),
		RecordedAt: now,
	}); putErr != nil {
		a.logger.Error("failed to record rejected price record", "batch", batchID, "error", putErr)
	}

	_ = a.store.AppendEvent(ctx, types.Event{
		EventID: ulid.Make().String(),
		Kind:    types.EventRecordRejected,
		BatchID: batchID,
		Table:   types.TablePriceHistory,
		Message: err.Error(),
		Details: map[string]interface{}{
			"cardId":    rec.CardID,
			"priceType": rec.PriceType,
		},
		Timestamp: now,
	})
}

// auditCorrection records an upstream restatement of an already recorded
// bucket. The newer observation wins, but the change is visible in the log.
func (a *Appender) auditCorrection(ctx context.Context, batchID string, stored, incoming types.PriceHistoryRow) {
	a.logger.Info("price fact corrected",
		"batch", batchID,
		"variantKey", stored.VariantKey,
		"bucket", stored.Bucket,
		"storedMarket", stored.Market,
		"incomingMarket", incoming.Market)

	_ = a.store.AppendEvent(ctx, types.Event{
		EventID: ulid.Make().String(),
		Kind:    types.EventFactCorrection,
		BatchID: batchID,
		Table:   types.TablePriceHistory,
		Message: "price observation restated, newer value recorded",
		Details: map[string]interface{}{
			"variantKey":     stored.VariantKey,
			"bucket":         stored.Bucket,
			"storedMarket":   stored.Market,
			"incomingMarket": incoming.Market,
			"storedBatch":    stored.BatchID,
		},
		Timestamp: time.Now().UTC(),
	})
}
