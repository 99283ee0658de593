// Package store defines the processed-layer storage backend interface.
package store

import (
	"context"
	"time"

	"github.com/cardlake/cardlake/pkg/types"
)

// Store is the storage backend for the processed layer: the two slowly
// changing dimension tables, the append-only fact table, the batch ledger,
// the rejected-record sink, and the audit event log.
//
// Dimension and fact writes are only visible to downstream consumers once
// the owning batch is marked COMMITTED in the ledger; backends need not
// provide transactions, only atomic application of a fact row set.
type Store interface {
	// card_master dimension
	GetCard(ctx context.Context, cardKey int64) (*types.CardDimensionRow, error)
	PutCard(ctx context.Context, row types.CardDimensionRow) error
	ListCards(ctx context.Context) ([]types.CardDimensionRow, error)

	// card_price_variant_master dimension
	GetVariant(ctx context.Context, variantKey int64) (*types.PriceVariantRow, error)
	PutVariant(ctx context.Context, row types.PriceVariantRow) error
	ListVariants(ctx context.Context) ([]types.PriceVariantRow, error)

	// tcg_price_history fact table. ApplyFacts writes the whole row set as a
	// unit: either every row lands or none do.
	GetFact(ctx context.Context, variantKey int64, bucket string) (*types.PriceHistoryRow, error)
	ApplyFacts(ctx context.Context, batchID string, rows []types.PriceHistoryRow) error
	ListFacts(ctx context.Context) ([]types.PriceHistoryRow, error)

	// Batch ledger — durable batch state for crash recovery
	GetBatch(ctx context.Context, batchID string) (*types.BatchLedgerEntry, error)
	PutBatch(ctx context.Context, entry types.BatchLedgerEntry) error
	ListBatches(ctx context.Context, limit int) ([]types.BatchLedgerEntry, error)

	// Rejected-records sink
	PutRejected(ctx context.Context, record types.RejectedRecord) error
	ListRejected(ctx context.Context, batchID string) ([]types.RejectedRecord, error)

	// Event log — append-only audit trail
	AppendEvent(ctx context.Context, event types.Event) error
	ListEvents(ctx context.Context, batchID string, limit int) ([]types.Event, error)

	// Batch-level mutual exclusion
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key string) error

	// Lifecycle
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Ping(ctx context.Context) error
}
