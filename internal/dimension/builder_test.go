package dimension

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardlake/cardlake/internal/testutil"
	"github.com/cardlake/cardlake/pkg/types"
)

func TestCardKeyDeterministic(t *testing.T) {
	k1 := CardKey("base1", "4", "Charizard")
	k2 := CardKey("base1", "4", "Charizard")
	assert.Equal(t, k1, k2)
	assert.Positive(t, k1)
}

func TestCardKeyNormalization(t *testing.T) {
	// Case, surrounding and inner whitespace must not affect identity.
	k1 := CardKey("base1", "4", "Charizard")
	k2 := CardKey(" BASE1 ", "4", "  charizard ")
	k3 := CardKey("base1", "4", "Dark  Charizard")
	assert.Equal(t, k1, k2)
	assert.NotEqual(t, k1, k3)
	assert.Equal(t, k3, CardKey("base1", "4", "dark charizard"))
}

func TestVariantKeyDeterministic(t *testing.T) {
	ck := CardKey("base1", "4", "Charizard")
	assert.Equal(t, VariantKey(ck, "holofoil"), VariantKey(ck, "Holofoil"))
	assert.NotEqual(t, VariantKey(ck, "holofoil"), VariantKey(ck, "reverseHolofoil"))
}

func cardRec(id, name, setID, rarity string) types.CardRecord {
	return types.CardRecord{
		CardID:        id,
		Name:          name,
		Number:        "4",
		Rarity:        rarity,
		SetID:         setID,
		SetName:       "Base",
		IngestionDate: "2026-08-28",
	}
}

func TestUpsertCardsInsertThenUnchanged(t *testing.T) {
	ms := testutil.NewMemStore()
	b := NewBuilder(ms, nil)
	ctx := context.Background()

	recs := []types.CardRecord{cardRec("base1-4", "Charizard", "base1", "Rare Holo")}

	delta, res, err := b.UpsertCards(ctx, "B1", recs)
	require.NoError(t, err)
	assert.Equal(t, Delta{Inserted: 1}, delta)
	require.Contains(t, res.CardKeys, "base1-4")

	// Re-running the same batch changes nothing.
	delta, _, err = b.UpsertCards(ctx, "B1", recs)
	require.NoError(t, err)
	assert.Equal(t, Delta{Unchanged: 1}, delta)
	assert.Len(t, ms.Cards, 1)
}

func TestUpsertCardsAttributeRefresh(t *testing.T) {
	ms := testutil.NewMemStore()
	b := NewBuilder(ms, nil)
	ctx := context.Background()

	_, _, err := b.UpsertCards(ctx, "B1", []types.CardRecord{cardRec("base1-4", "Charizard", "base1", "Rare Holo")})
	require.NoError(t, err)

	delta, res, err := b.UpsertCards(ctx, "B2", []types.CardRecord{cardRec("base1-4", "Charizard", "base1", "Rare Holo EX")})
	require.NoError(t, err)
	assert.Equal(t, Delta{Updated: 1}, delta)

	key := res.CardKeys["base1-4"]
	row := ms.Cards[key]
	assert.Equal(t, "Rare Holo EX", row.Rarity)
	assert.Equal(t, "B1", row.FirstSeenBatch, "first_seen_batch is preserved")
	assert.Equal(t, "B2", row.LastUpdatedBatch)

	// The overwrite leaves an audit trail.
	assert.Len(t, ms.EventsOfKind(types.EventDimensionConflict), 1)
}

func TestUpsertVariants(t *testing.T) {
	ms := testutil.NewMemStore()
	b := NewBuilder(ms, nil)
	ctx := context.Background()

	_, res, err := b.UpsertCards(ctx, "B1", []types.CardRecord{cardRec("base1-4", "Charizard", "base1", "Rare Holo")})
	require.NoError(t, err)

	prices := []types.PriceRecord{
		{CardID: "base1-4", PriceType: "holofoil", Market: 412.5},
		{CardID: "base1-4", PriceType: "reverseHolofoil", Market: 120.0},
		{CardID: "base1-4", PriceType: "holofoil", Market: 413.0}, // duplicate variant
		{CardID: "unknown-1", PriceType: "normal", Market: 1.0},   // unknown card: skipped
	}

	delta, err := b.UpsertVariants(ctx, "B1", prices, res)
	require.NoError(t, err)
	assert.Equal(t, Delta{Inserted: 2}, delta)
	assert.Len(t, ms.Variants, 2)

	vk, ok := res.VariantKeys[VariantLookup("base1-4", "holofoil")]
	require.True(t, ok)
	assert.Equal(t, VariantKey(res.CardKeys["base1-4"], "holofoil"), vk)
	assert.NotContains(t, res.VariantKeys, VariantLookup("unknown-1", "normal"))

	// Idempotent on re-run.
	delta, err = b.UpsertVariants(ctx, "B1", prices, res)
	require.NoError(t, err)
	assert.Equal(t, Delta{Unchanged: 2}, delta)
}
