package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardlake/cardlake/internal/alert"
	"github.com/cardlake/cardlake/internal/dimension"
	"github.com/cardlake/cardlake/internal/fact"
	"github.com/cardlake/cardlake/internal/normalize"
	"github.com/cardlake/cardlake/internal/pipeline"
	"github.com/cardlake/cardlake/internal/raw"
	"github.com/cardlake/cardlake/internal/schema"
	"github.com/cardlake/cardlake/internal/store/local"
	"github.com/cardlake/cardlake/internal/warehouse"
	"github.com/cardlake/cardlake/pkg/types"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func writeCapture(t *testing.T, dataDir, entity, batchID, name string, payload []map[string]interface{}) {
	t.Helper()
	dir := filepath.Join(dataDir, "raw", "pokemon_tcg", entity, "ingestion_date="+batchID)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
}

func writeContracts(t *testing.T, dir string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))

	cards := `table: tcg_cards
version: 1
columns:
  card_id: {type: string}
  name: {type: string}
  supertype: {type: string, nullable: true}
  number: {type: string, nullable: true}
  rarity: {type: string, nullable: true}
  set_id: {type: string}
  set_name: {type: string, nullable: true}
  set_printed_total: {type: integer, nullable: true}
  set_release_date: {type: string, nullable: true}
  ingestion_date: {type: date}
`
	prices := `table: tcg_card_prices
version: 1
columns:
  card_id: {type: string}
  price_type: {type: string}
  market: {type: float}
  low: {type: float, nullable: true}
  mid: {type: float, nullable: true}
  high: {type: float, nullable: true}
  tcg_update_date: {type: string, nullable: true}
  ingestion_date: {type: date}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tcg_cards.yaml"), []byte(cards), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tcg_card_prices.yaml"), []byte(prices), 0o644))
}

func cardPayload(id, name, number, setID, setName string) map[string]interface{} {
	return map[string]interface{}{
		"id":        id,
		"name":      name,
		"supertype": "Pokémon",
		"number":    number,
		"rarity":    "Rare Holo",
		"set": map[string]interface{}{
			"id":           setID,
			"name":         setName,
			"printedTotal": 102,
			"releaseDate":  "1999/01/09",
		},
	}
}

func pricePayload(id string, prices map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"id": id,
		"tcgplayer": map[string]interface{}{
			"updatedAt": "2026/08/28",
			"prices":    prices,
		},
	}
}

func priceStats(market float64) map[string]interface{} {
	return map[string]interface{}{
		"market": market,
		"low":    market * 0.9,
		"mid":    market,
		"high":   market * 1.1,
	}
}

type env struct {
	dataDir  string
	store    *local.Store
	coord    *pipeline.Coordinator
	alertLog string
}

func setupEnv(t *testing.T) *env {
	t.Helper()
	dataDir := t.TempDir()

	schemaDir := filepath.Join(dataDir, "schemas")
	writeContracts(t, schemaDir)
	registry := schema.NewRegistry()
	require.NoError(t, registry.LoadDir(schemaDir))

	s, err := local.New(&types.LocalStoreConfig{Dir: dataDir})
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, s.Start(ctx))
	t.Cleanup(func() { _ = s.Stop(ctx) })

	alertLog := filepath.Join(dataDir, "alerts.jsonl")
	dispatcher, err := alert.NewDispatcher([]types.AlertConfig{
		{Type: types.AlertFile, Path: alertLog},
	})
	require.NoError(t, err)

	coord := pipeline.New(
		raw.NewLocalReader(dataDir),
		normalize.New(registry, nil, nil),
		dimension.NewBuilder(s, nil),
		fact.NewAppender(s, nil),
		s,
		dispatcher.AlertFunc(),
		nil,
	)

	return &env{dataDir: dataDir, store: s, coord: coord, alertLog: alertLog}
}

func readAlertLog(t *testing.T, path string) []types.Alert {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var alerts []types.Alert
	for _, line := range bytes.Split(data, []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var a types.Alert
		if err := json.Unmarshal(line, &a); err != nil {
			continue
		}
		alerts = append(alerts, a)
	}
	return alerts
}

// ---------------------------------------------------------------------------
// End-to-end: raw files on disk through to the processed layer and warehouse
// ---------------------------------------------------------------------------

func TestEndToEnd_BatchLifecycle(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()
	const b1 = "2026-08-24"

	writeCapture(t, e.dataDir, "cards", b1, "page_1.json", []map[string]interface{}{
		cardPayload("base1-4", "Charizard", "4", "base1", "Base"),
		cardPayload("base1-2", "Blastoise", "2", "base1", "Base"),
	})
	writeCapture(t, e.dataDir, "prices", b1, "page_1.json", []map[string]interface{}{
		pricePayload("base1-4", map[string]interface{}{
			"holofoil":  priceStats(412.5),
			"1stEdHolo": priceStats(4200.0),
		}),
		pricePayload("base1-2", map[string]interface{}{
			"holofoil": priceStats(180.0),
		}),
	})

	entry, err := e.coord.Run(ctx, b1)
	require.NoError(t, err)
	assert.Equal(t, types.BatchCommitted, entry.Status)
	require.NotNil(t, entry.Outcome)
	assert.Equal(t, 2, entry.Outcome.CardsInserted)
	assert.Equal(t, 3, entry.Outcome.VariantsInserted)
	assert.Equal(t, 3, entry.Outcome.Inserted)
	assert.Equal(t, 0, entry.Outcome.Dropped)

	cards, err := e.store.ListCards(ctx)
	require.NoError(t, err)
	assert.Len(t, cards, 2)

	facts, err := e.store.ListFacts(ctx)
	require.NoError(t, err)
	require.Len(t, facts, 3)
	for _, f := range facts {
		assert.Equal(t, b1, f.BatchID)
	}
}

func TestEndToEnd_RerunIsIdempotent(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()
	const b1 = "2026-08-24"

	writeCapture(t, e.dataDir, "cards", b1, "page_1.json", []map[string]interface{}{
		cardPayload("base1-4", "Charizard", "4", "base1", "Base"),
	})
	writeCapture(t, e.dataDir, "prices", b1, "page_1.json", []map[string]interface{}{
		pricePayload("base1-4", map[string]interface{}{"holofoil": priceStats(412.5)}),
	})

	first, err := e.coord.Run(ctx, b1)
	require.NoError(t, err)
	require.Equal(t, types.BatchCommitted, first.Status)

	second, err := e.coord.Run(ctx, b1)
	require.NoError(t, err)
	require.Equal(t, types.BatchCommitted, second.Status)
	assert.NotEqual(t, first.AttemptID, second.AttemptID)
	assert.Equal(t, 0, second.Outcome.Inserted)
	assert.Equal(t, 1, second.Outcome.Skipped)
	assert.Equal(t, 0, second.Outcome.CardsInserted)

	facts, err := e.store.ListFacts(ctx)
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, b1, facts[0].BatchID)
}

func TestEndToEnd_CorrectionBatch(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()
	// Same ISO week: the correction lands on the same bucket.
	const b1 = "2026-08-24"
	const b2 = "2026-08-26"

	for _, b := range []string{b1, b2} {
		writeCapture(t, e.dataDir, "cards", b, "page_1.json", []map[string]interface{}{
			cardPayload("base1-4", "Charizard", "4", "base1", "Base"),
		})
	}
	writeCapture(t, e.dataDir, "prices", b1, "page_1.json", []map[string]interface{}{
		pricePayload("base1-4", map[string]interface{}{"holofoil": priceStats(412.5)}),
	})
	writeCapture(t, e.dataDir, "prices", b2, "page_1.json", []map[string]interface{}{
		pricePayload("base1-4", map[string]interface{}{"holofoil": priceStats(450.0)}),
	})

	_, err := e.coord.Run(ctx, b1)
	require.NoError(t, err)

	entry, err := e.coord.Run(ctx, b2)
	require.NoError(t, err)
	assert.Equal(t, 1, entry.Outcome.Replaced)
	assert.Equal(t, 0, entry.Outcome.Inserted)

	facts, err := e.store.ListFacts(ctx)
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, 450.0, facts[0].Market)
	assert.Equal(t, b2, facts[0].BatchID)

	events, err := e.store.ListEvents(ctx, b2, 50)
	require.NoError(t, err)
	var corrections int
	for _, ev := range events {
		if ev.Kind == types.EventFactCorrection {
			corrections++
		}
	}
	assert.Equal(t, 1, corrections)
}

func TestEndToEnd_DropThresholdBlocksAndAlerts(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()
	const b1 = "2026-08-24"

	// Both cards invalid: missing set id.
	writeCapture(t, e.dataDir, "cards", b1, "page_1.json", []map[string]interface{}{
		cardPayload("base1-4", "Charizard", "4", "", "Base"),
		cardPayload("base1-2", "Blastoise", "2", "", "Base"),
	})
	writeCapture(t, e.dataDir, "prices", b1, "page_1.json", []map[string]interface{}{
		pricePayload("base1-4", map[string]interface{}{"holofoil": priceStats(412.5)}),
	})

	_, err := e.coord.Run(ctx, b1)
	require.Error(t, err)
	var dte *types.DropThresholdExceeded
	assert.ErrorAs(t, err, &dte)

	entry, err := e.store.GetBatch(ctx, b1)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, types.BatchFailed, entry.Status)

	// Nothing became visible.
	facts, err := e.store.ListFacts(ctx)
	require.NoError(t, err)
	assert.Empty(t, facts)

	alerts := readAlertLog(t, e.alertLog)
	require.NotEmpty(t, alerts)
	assert.Equal(t, types.AlertLevelError, alerts[0].Level)
	assert.Equal(t, b1, alerts[0].BatchID)
}

func TestEndToEnd_StateSurvivesRestart(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()
	const b1 = "2026-08-24"

	writeCapture(t, e.dataDir, "cards", b1, "page_1.json", []map[string]interface{}{
		cardPayload("base1-4", "Charizard", "4", "base1", "Base"),
	})
	writeCapture(t, e.dataDir, "prices", b1, "page_1.json", []map[string]interface{}{
		pricePayload("base1-4", map[string]interface{}{"holofoil": priceStats(412.5)}),
	})

	_, err := e.coord.Run(ctx, b1)
	require.NoError(t, err)

	// A fresh store over the same directory sees the committed state.
	reopened, err := local.New(&types.LocalStoreConfig{Dir: e.dataDir})
	require.NoError(t, err)
	require.NoError(t, reopened.Start(ctx))
	defer func() { _ = reopened.Stop(ctx) }()

	entry, err := reopened.GetBatch(ctx, b1)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, types.BatchCommitted, entry.Status)

	facts, err := reopened.ListFacts(ctx)
	require.NoError(t, err)
	assert.Len(t, facts, 1)
}

func TestEndToEnd_WarehouseLeaderboard(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()
	const b1 = "2026-08-24"

	writeCapture(t, e.dataDir, "cards", b1, "page_1.json", []map[string]interface{}{
		cardPayload("base1-4", "Charizard", "4", "base1", "Base"),
		cardPayload("base1-2", "Blastoise", "2", "base1", "Base"),
	})
	writeCapture(t, e.dataDir, "prices", b1, "page_1.json", []map[string]interface{}{
		pricePayload("base1-4", map[string]interface{}{"holofoil": priceStats(412.5)}),
		pricePayload("base1-2", map[string]interface{}{"holofoil": priceStats(180.0)}),
	})

	_, err := e.coord.Run(ctx, b1)
	require.NoError(t, err)

	w, err := warehouse.Open(&types.WarehouseConfig{TopN: 10}, nil)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.CreateViews(ctx, e.dataDir))
	top, err := w.WeeklyTop(ctx)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "Charizard", top[0].CardName)
	assert.Equal(t, 1, top[0].Rank)
	assert.Equal(t, "Blastoise", top[1].CardName)
}
