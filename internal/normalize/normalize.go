// Package normalize flattens nested raw payloads into typed, schema-validated
// staging records for the tcg_cards and tcg_card_prices tables.
package normalize

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/cardlake/cardlake/internal/schema"
	"github.com/cardlake/cardlake/pkg/types"
)

// Defaults for validation and drop handling.
const (
	DefaultDropThreshold = 0.05
	DefaultParallelism   = 8
)

// Result is the outcome of normalizing one batch.
type Result struct {
	Cards     []types.CardRecord
	Prices    []types.PriceRecord
	Validated int
	Dropped   int
}

// DropRate returns the fraction of produced records that failed validation.
func (r *Result) DropRate() float64 {
	total := r.Validated + r.Dropped
	if total == 0 {
		return 0
	}
	return float64(r.Dropped) / float64(total)
}

// Normalizer turns raw captures into staging records. Individual record
// normalization is stateless, so captures are processed concurrently; the
// drop count is the only shared state and is kept atomic.
type Normalizer struct {
	registry      *schema.Registry
	dropThreshold float64
	parallelism   int
	logger        *slog.Logger
}

// New creates a Normalizer.
func New(registry *schema.Registry, cfg *types.NormalizerConfig, logger *slog.Logger) *Normalizer {
	n := &Normalizer{
		registry:      registry,
		dropThreshold: DefaultDropThreshold,
		parallelism:   DefaultParallelism,
		logger:        logger,
	}
	if n.logger == nil {
		n.logger = slog.Default()
	}
	if cfg != nil {
		if cfg.DropThreshold > 0 {
			n.dropThreshold = cfg.DropThreshold
		}
		if cfg.Parallelism > 0 {
			n.parallelism = cfg.Parallelism
		}
	}
	return n
}

// NormalizeBatch flattens and validates all captures of a batch. Records
// failing validation are dropped and counted, never fatal. If the drop rate
// exceeds the configured threshold the result is returned together with a
// *types.DropThresholdExceeded so the coordinator can block auto-commit.
func (n *Normalizer) NormalizeBatch(ctx context.Context, batchID string, captures []*types.RawCapture) (*Result, error) {
	var (
		mu      sync.Mutex
		result  Result
		dropped atomic.Int64
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(n.parallelism)

	for _, capture := range captures {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			var (
				cards  []types.CardRecord
				prices []types.PriceRecord
			)

			switch capture.Ref.Kind {
			case types.CaptureCatalog:
				cards = n.normalizeCatalog(capture, &dropped)
			case types.CapturePriceSnapshot:
				prices = n.normalizePrices(capture, &dropped)
			default:
				n.logger.Warn("skipping capture of unknown kind",
					"batch", batchID, "kind", capture.Ref.Kind, "key", capture.Ref.Key)
				return nil
			}

			mu.Lock()
			result.Cards = append(result.Cards, cards...)
			result.Prices = append(result.Prices, prices...)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	result.Dropped = int(dropped.Load())
	result.Validated = len(result.Cards) + len(result.Prices)

	if rate := result.DropRate(); rate > n.dropThreshold {
		return &result, &types.DropThresholdExceeded{
			BatchID:   batchID,
			Dropped:   result.Dropped,
			Total:     result.Validated + result.Dropped,
			Threshold: n.dropThreshold,
		}
	}

	return &result, nil
}

func (n *Normalizer) normalizeCatalog(capture *types.RawCapture, dropped *atomic.Int64) []types.CardRecord {
	records := make([]types.CardRecord, 0, len(capture.Payload))

	for _, obj := range capture.Payload {
		rec := flattenCard(obj, capture.Ref.BatchID)
		if err := n.registry.Validate(types.TableCards, rec.AsRow()); err != nil {
			dropped.Add(1)
			n.logger.Warn("dropping invalid card record",
				"batch", capture.Ref.BatchID, "card", rec.CardID, "error", err)
			continue
		}
		records = append(records, rec)
	}
	return records
}

func (n *Normalizer) normalizePrices(capture *types.RawCapture, dropped *atomic.Int64) []types.PriceRecord {
	var records []types.PriceRecord

	for _, obj := range capture.Payload {
		for _, rec := range flattenPrices(obj, capture.Ref.BatchID) {
			if err := n.registry.Validate(types.TableCardPrices, rec.AsRow()); err != nil {
				dropped.Add(1)
				n.logger.Warn("dropping invalid price record",
					"batch", capture.Ref.BatchID, "card", rec.CardID,
					"priceType", rec.PriceType, "error", err)
				continue
			}
			records = append(records, rec)
		}
	}
	return records
}
