// Package dimension derives stable surrogate identity for cards and price
// variants and maintains the two slowly changing dimension tables.
package dimension

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/cardlake/cardlake/internal/store"
	"github.com/cardlake/cardlake/pkg/types"
)

// Delta summarizes one dimension upsert pass.
type Delta struct {
	Inserted  int
	Updated   int
	Unchanged int
}

// Resolution maps staging identifiers to resolved surrogate keys for the
// fact appender: card_id -> card key, (card_id, price_type) -> variant key.
type Resolution struct {
	CardKeys    map[string]int64
	VariantKeys map[string]int64
}

// VariantLookup builds the (card_id, price_type) lookup key.
func VariantLookup(cardID, priceType string) string {
	return cardID + "|" + priceType
}

// Builder maintains card_master and card_price_variant_master.
type Builder struct {
	store  store.Store
	logger *slog.Logger
}

// NewBuilder creates a Builder.
func NewBuilder(s store.Store, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{store: s, logger: logger}
}

// UpsertCards merges catalog staging records into card_master. New natural
// keys are inserted; changed descriptive attributes overwrite the stored row
// and advance last_updated_batch; identical rows are left untouched. Rows are
// never deleted — cards never disappear from history.
func (b *Builder) UpsertCards(ctx context.Context, batchID string, records []types.CardRecord) (Delta, *Resolution, error) {
	delta := Delta{}
	res := &Resolution{
		CardKeys:    make(map[string]int64, len(records)),
		VariantKeys: make(map[string]int64),
	}

	for _, rec := range records {
		key := CardKey(rec.SetID, rec.Number, rec.Name)
		res.CardKeys[rec.CardID] = key

		existing, err := b.store.GetCard(ctx, key)
		if err != nil {
			return delta, nil, &types.StorageFailure{Op: "get card dimension", Err: err}
		}

		row := types.CardDimensionRow{
			CardKey:          key,
			CardID:           rec.CardID,
			CardName:         rec.Name,
			Supertype:        rec.Supertype,
			Number:           rec.Number,
			Rarity:           rec.Rarity,
			SetID:            rec.SetID,
			SetName:          rec.SetName,
			SetPrintedTotal:  rec.SetPrintedTotal,
			ReleaseDate:      rec.SetReleaseDate,
			FirstSeenBatch:   batchID,
			LastUpdatedBatch: batchID,
			UpdatedAt:        time.Now().UTC(),
		}

		if existing == nil {
			if err := b.store.PutCard(ctx, row); err != nil {
				return delta, nil, &types.StorageFailure{Op: "put card dimension", Err: err}
			}
			delta.Inserted++
			continue
		}

		row.FirstSeenBatch = existing.FirstSeenBatch
		if sameCardAttributes(*existing, row) {
			delta.Unchanged++
			continue
		}

		b.auditConflict(ctx, batchID, *existing, row)
		if err := b.store.PutCard(ctx, row); err != nil {
			return delta, nil, &types.StorageFailure{Op: "put card dimension", Err: err}
		}
		delta.Updated++
	}

	return delta, res, nil
}

// UpsertVariants merges price staging records into card_price_variant_master.
// Variant keys chain off the card surrogate key, so UpsertCards must have
// resolved the batch's cards first. Price records whose card is unknown are
// skipped here; the fact appender routes them to the rejected sink.
func (b *Builder) UpsertVariants(ctx context.Context, batchID string, records []types.PriceRecord, res *Resolution) (Delta, error) {
	delta := Delta{}
	seen := make(map[int64]bool)

	for _, rec := range records {
		cardKey, ok := res.CardKeys[rec.CardID]
		if !ok {
			continue
		}
		key := VariantKey(cardKey, rec.PriceType)
		res.VariantKeys[VariantLookup(rec.CardID, rec.PriceType)] = key

		if seen[key] {
			continue
		}
		seen[key] = true

		existing, err := b.store.GetVariant(ctx, key)
		if err != nil {
			return delta, &types.StorageFailure{Op: "get variant dimension", Err: err}
		}

		row := types.PriceVariantRow{
			VariantKey:       key,
			CardKey:          cardKey,
			CardID:           rec.CardID,
			PriceType:        rec.PriceType,
			FirstSeenBatch:   batchID,
			LastUpdatedBatch: batchID,
			UpdatedAt:        time.Now().UTC(),
		}

		if existing == nil {
			if err := b.store.PutVariant(ctx, row); err != nil {
				return delta, &types.StorageFailure{Op: "put variant dimension", Err: err}
			}
			delta.Inserted++
			continue
		}

		row.FirstSeenBatch = existing.FirstSeenBatch
		if existing.CardID == row.CardID && existing.PriceType == row.PriceType {
			delta.Unchanged++
			continue
		}

		if err := b.store.PutVariant(ctx, row); err != nil {
			return delta, &types.StorageFailure{Op: "put variant dimension", Err: err}
		}
		delta.Updated++
	}

	return delta, nil
}

func sameCardAttributes(a, b types.CardDimensionRow) bool {
	return a.CardID == b.CardID &&
		a.CardName == b.CardName &&
		a.Supertype == b.Supertype &&
		a.Number == b.Number &&
		a.Rarity == b.Rarity &&
		a.SetID == b.SetID &&
		a.SetName == b.SetName &&
		a.SetPrintedTotal == b.SetPrintedTotal &&
		a.ReleaseDate == b.ReleaseDate
}

// auditConflict records contradictory natural-key data for an existing
// surrogate key. Latest values win, but the overwrite leaves a trail.
func (b *Builder) auditConflict(ctx context.Context, batchID string, stored, incoming types.CardDimensionRow) {
	conflict := &types.IntegrityConflict{
		Table:    types.TableCardMaster,
		Key:      stored.CardKey,
		Field:    firstChangedField(stored, incoming),
		Stored:   stored.CardName,
		Incoming: incoming.CardName,
	}
	b.logger.Warn("dimension attributes changed, latest wins",
		"batch", batchID, "cardKey", stored.CardKey, "conflict", conflict.Error())

	_ = b.store.AppendEvent(ctx, types.Event{
		EventID: ulid.Make().String(),
		Kind:    types.EventDimensionConflict,
		BatchID: batchID,
		Table:   types.TableCardMaster,
		Message: conflict.Error(),
		Details: map[string]interface{}{
			"cardKey":          stored.CardKey,
			"lastUpdatedBatch": stored.LastUpdatedBatch,
		},
		Timestamp: time.Now().UTC(),
	})
}

func firstChangedField(a, b types.CardDimensionRow) string {
	switch {
	case a.CardName != b.CardName:
		return "card_name"
	case a.Rarity != b.Rarity:
		return "rarity"
	case a.SetName != b.SetName:
		return "set_name"
	case a.SetPrintedTotal != b.SetPrintedTotal:
		return "set_printed_total"
	case a.ReleaseDate != b.ReleaseDate:
		return "release_date"
	case a.Supertype != b.Supertype:
		return "supertype"
	case a.CardID != b.CardID:
		return "card_id"
	default:
		return fmt.Sprintf("unknown(%d)", a.CardKey)
	}
}
