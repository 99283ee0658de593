package fact

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardlake/cardlake/internal/dimension"
	"github.com/cardlake/cardlake/internal/testutil"
	"github.com/cardlake/cardlake/pkg/types"
)

var observed = time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)

func resolution(cardID string, priceTypes ...string) *dimension.Resolution {
	res := &dimension.Resolution{
		CardKeys:    map[string]int64{cardID: 111},
		VariantKeys: make(map[string]int64),
	}
	for i, pt := range priceTypes {
		res.VariantKeys[dimension.VariantLookup(cardID, pt)] = int64(1000 + i)
	}
	return res
}

func priceRec(cardID, priceType string, market float64) types.PriceRecord {
	return types.PriceRecord{
		CardID:        cardID,
		PriceType:     priceType,
		Market:        market,
		Low:           market - 1,
		Mid:           market,
		High:          market + 1,
		ObservedAt:    observed,
		IngestionDate: "2026-08-28",
	}
}

func TestAppendInsertsNewFacts(t *testing.T) {
	ms := testutil.NewMemStore()
	a := NewAppender(ms, nil)

	out, err := a.Append(context.Background(), "B1", []types.PriceRecord{
		priceRec("base1-4", "holofoil", 412.5),
		priceRec("base1-4", "reverseHolofoil", 120.0),
	}, resolution("base1-4", "holofoil", "reverseHolofoil"))

	require.NoError(t, err)
	assert.Equal(t, Outcome{Inserted: 2}, out)

	row, err := ms.GetFact(context.Background(), 1000, "2026-W35")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, 412.5, row.Market)
	assert.Equal(t, "B1", row.BatchID)
}

func TestAppendIdempotentRerun(t *testing.T) {
	ms := testutil.NewMemStore()
	a := NewAppender(ms, nil)
	recs := []types.PriceRecord{priceRec("base1-4", "holofoil", 412.5)}
	res := resolution("base1-4", "holofoil")

	_, err := a.Append(context.Background(), "B1", recs, res)
	require.NoError(t, err)

	out, err := a.Append(context.Background(), "B1", recs, res)
	require.NoError(t, err)
	assert.Equal(t, Outcome{Skipped: 1}, out)
	assert.Len(t, ms.Facts, 1)
	assert.Empty(t, ms.EventsOfKind(types.EventFactCorrection))
}

func TestAppendWithinToleranceSkips(t *testing.T) {
	ms := testutil.NewMemStore()
	a := NewAppender(ms, nil)
	res := resolution("base1-4", "holofoil")

	_, err := a.Append(context.Background(), "B1", []types.PriceRecord{priceRec("base1-4", "holofoil", 412.5)}, res)
	require.NoError(t, err)

	out, err := a.Append(context.Background(), "B2", []types.PriceRecord{priceRec("base1-4", "holofoil", 412.50005)}, res)
	require.NoError(t, err)
	assert.Equal(t, Outcome{Skipped: 1}, out)

	// The stored row keeps its original batch attribution.
	row, _ := ms.GetFact(context.Background(), 1000, "2026-W35")
	assert.Equal(t, "B1", row.BatchID)
}

func TestAppendCorrectionReplaces(t *testing.T) {
	ms := testutil.NewMemStore()
	a := NewAppender(ms, nil)
	res := resolution("base1-4", "holofoil")

	_, err := a.Append(context.Background(), "B1", []types.PriceRecord{priceRec("base1-4", "holofoil", 412.5)}, res)
	require.NoError(t, err)

	out, err := a.Append(context.Background(), "B2", []types.PriceRecord{priceRec("base1-4", "holofoil", 399.0)}, res)
	require.NoError(t, err)
	assert.Equal(t, Outcome{Replaced: 1}, out)

	row, _ := ms.GetFact(context.Background(), 1000, "2026-W35")
	assert.Equal(t, 399.0, row.Market)
	assert.Equal(t, "B2", row.BatchID)
	assert.Len(t, ms.EventsOfKind(types.EventFactCorrection), 1)
}

func TestAppendUnresolvedVariantRejected(t *testing.T) {
	ms := testutil.NewMemStore()
	a := NewAppender(ms, nil)

	out, err := a.Append(context.Background(), "B1", []types.PriceRecord{
		priceRec("base1-4", "holofoil", 412.5),
		priceRec("ghost-9", "normal", 1.0),
	}, resolution("base1-4", "holofoil"))

	require.NoError(t, err)
	assert.Equal(t, Outcome{Inserted: 1, Rejected: 1}, out)

	rejected, err := ms.ListRejected(context.Background(), "B1")
	require.NoError(t, err)
	require.Len(t, rejected, 1)
	assert.Equal(t, "ghost-9", rejected[0].CardID)
	assert.Equal(t, types.RejectUnresolvedVariant, rejected[0].Reason)
	assert.Len(t, ms.EventsOfKind(types.EventRecordRejected), 1)
}

func TestAppendDuplicateObservationLatestWins(t *testing.T) {
	ms := testutil.NewMemStore()
	a := NewAppender(ms, nil)
	res := resolution("base1-4", "holofoil")

	out, err := a.Append(context.Background(), "B1", []types.PriceRecord{
		priceRec("base1-4", "holofoil", 410.0),
		priceRec("base1-4", "holofoil", 415.0),
	}, res)

	require.NoError(t, err)
	assert.Equal(t, Outcome{Inserted: 1}, out)

	row, _ := ms.GetFact(context.Background(), 1000, "2026-W35")
	assert.Equal(t, 415.0, row.Market)
}

func TestAppendStorageFailureLeavesNoPartialWrite(t *testing.T) {
	ms := testutil.NewMemStore()
	ms.FailApplyFacts = errors.New("disk full")
	a := NewAppender(ms, nil)

	_, err := a.Append(context.Background(), "B1", []types.PriceRecord{
		priceRec("base1-4", "holofoil", 412.5),
	}, resolution("base1-4", "holofoil"))

	var sf *types.StorageFailure
	require.ErrorAs(t, err, &sf)
	assert.Empty(t, ms.Facts)
}

func TestAppendDayGranularity(t *testing.T) {
	ms := testutil.NewMemStore()
	a := NewAppender(ms, nil, WithGranularity(BucketDay))
	res := resolution("base1-4", "holofoil")

	_, err := a.Append(context.Background(), "B1", []types.PriceRecord{priceRec("base1-4", "holofoil", 412.5)}, res)
	require.NoError(t, err)

	row, err := ms.GetFact(context.Background(), 1000, "2026-08-28")
	require.NoError(t, err)
	require.NotNil(t, row)
}
