package warehouse

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardlake/cardlake/pkg/types"
)

func writeJSONL(t *testing.T, path string, rows ...interface{}) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	enc := json.NewEncoder(f)
	for _, row := range rows {
		require.NoError(t, enc.Encode(row))
	}
}

func seedProcessed(t *testing.T, dir string) {
	t.Helper()
	processed := filepath.Join(dir, "processed")
	require.NoError(t, os.MkdirAll(processed, 0o755))

	now := time.Now().UTC()
	writeJSONL(t, filepath.Join(processed, types.TableCardMaster+".jsonl"),
		types.CardDimensionRow{CardKey: 1, CardID: "base1-4", CardName: "Charizard", SetName: "Base", UpdatedAt: now},
		types.CardDimensionRow{CardKey: 2, CardID: "base1-2", CardName: "Blastoise", SetName: "Base", UpdatedAt: now},
	)
	writeJSONL(t, filepath.Join(processed, types.TableVariantMaster+".jsonl"),
		types.PriceVariantRow{VariantKey: 10, CardKey: 1, CardID: "base1-4", PriceType: "holofoil", UpdatedAt: now},
		types.PriceVariantRow{VariantKey: 20, CardKey: 2, CardID: "base1-2", PriceType: "holofoil", UpdatedAt: now},
	)
	writeJSONL(t, filepath.Join(processed, types.TablePriceHistory+".jsonl"),
		types.PriceHistoryRow{VariantKey: 10, Bucket: "2026-W34", Market: 390.0, BatchID: "B0", RecordedAt: now},
		types.PriceHistoryRow{VariantKey: 10, Bucket: "2026-W35", Market: 412.5, BatchID: "B1", RecordedAt: now},
		types.PriceHistoryRow{VariantKey: 20, Bucket: "2026-W35", Market: 180.0, BatchID: "B1", RecordedAt: now},
	)
}

func TestWeeklyTop(t *testing.T) {
	dir := t.TempDir()
	seedProcessed(t, dir)

	w, err := Open(&types.WarehouseConfig{TopN: 10}, nil)
	require.NoError(t, err)
	defer w.Close()

	ctx := context.Background()
	require.NoError(t, w.CreateViews(ctx, dir))

	cards, err := w.WeeklyTop(ctx)
	require.NoError(t, err)
	require.Len(t, cards, 2)

	// Only the latest week counts, ranked by market price.
	assert.Equal(t, "2026-W35", cards[0].Week)
	assert.Equal(t, "Charizard", cards[0].CardName)
	assert.Equal(t, 1, cards[0].Rank)
	assert.Equal(t, "Blastoise", cards[1].CardName)
	assert.Equal(t, 2, cards[1].Rank)
}

func TestWeeklyTopHonorsTopN(t *testing.T) {
	dir := t.TempDir()
	seedProcessed(t, dir)

	w, err := Open(&types.WarehouseConfig{TopN: 1}, nil)
	require.NoError(t, err)
	defer w.Close()

	ctx := context.Background()
	require.NoError(t, w.CreateViews(ctx, dir))

	cards, err := w.WeeklyTop(ctx)
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, "Charizard", cards[0].CardName)
}

func TestExportParquet(t *testing.T) {
	dir := t.TempDir()
	seedProcessed(t, dir)

	w, err := Open(nil, nil)
	require.NoError(t, err)
	defer w.Close()

	ctx := context.Background()
	require.NoError(t, w.CreateViews(ctx, dir))

	out := filepath.Join(dir, "card_master.parquet")
	require.NoError(t, w.ExportParquet(ctx, types.TableCardMaster, out))

	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestExportParquetRejectsUnknownTable(t *testing.T) {
	w, err := Open(nil, nil)
	require.NoError(t, err)
	defer w.Close()

	err = w.ExportParquet(context.Background(), "users; DROP TABLE x", "/tmp/out.parquet")
	assert.Error(t, err)
}
