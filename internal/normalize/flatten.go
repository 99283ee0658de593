package normalize

import (
	"time"

	"github.com/cardlake/cardlake/pkg/types"
)

// Upstream API timestamp format, e.g. "2025/12/10".
const tcgUpdateLayout = "2006/01/02"

// flattenCard produces one tcg_cards staging record per card object,
// lifting the nested set fields to columns.
func flattenCard(obj map[string]interface{}, ingestionDate string) types.CardRecord {
	set := getMap(obj, "set")
	return types.CardRecord{
		CardID:          getString(obj, "id"),
		Name:            getString(obj, "name"),
		Supertype:       getString(obj, "supertype"),
		Number:          getString(obj, "number"),
		Rarity:          getString(obj, "rarity"),
		SetID:           getString(set, "id"),
		SetName:         getString(set, "name"),
		SetPrintedTotal: getInt(set, "printedTotal"),
		SetReleaseDate:  getString(set, "releaseDate"),
		IngestionDate:   ingestionDate,
	}
}

// flattenPrices produces one tcg_card_prices staging record per
// (card, price variant type) observation. Cards without tcgplayer pricing
// or variants without a market price yield nothing; that is normal upstream
// sparsity, not a drop.
func flattenPrices(obj map[string]interface{}, ingestionDate string) []types.PriceRecord {
	cardID := getString(obj, "id")

	tcgplayer := getMap(obj, "tcgplayer")
	if tcgplayer == nil {
		return nil
	}
	prices := getMap(tcgplayer, "prices")
	if prices == nil {
		return nil
	}

	updatedAt := getString(tcgplayer, "updatedAt")
	observedAt := observationTime(updatedAt, ingestionDate)

	var records []types.PriceRecord
	for priceType, raw := range prices {
		metrics, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		market, ok := getFloat(metrics, "market")
		if !ok {
			continue
		}
		low, _ := getFloat(metrics, "low")
		mid, _ := getFloat(metrics, "mid")
		high, _ := getFloat(metrics, "high")

		records = append(records, types.PriceRecord{
			CardID:        cardID,
			PriceType:     priceType,
			Market:        market,
			Low:           low,
			Mid:           mid,
			High:          high,
			TCGUpdatedAt:  updatedAt,
			ObservedAt:    observedAt,
			IngestionDate: ingestionDate,
		})
	}
	return records
}

// observationTime prefers the upstream price update date and falls back to
// the ingestion date when the upstream value is absent or malformed.
func observationTime(updatedAt, ingestionDate string) time.Time {
	if t, err := time.Parse(tcgUpdateLayout, updatedAt); err == nil {
		return t.UTC()
	}
	if t, err := time.Parse("2006-01-02", ingestionDate); err == nil {
		return t.UTC()
	}
	return time.Time{}
}

func getString(m map[string]interface{}, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

func getMap(m map[string]interface{}, key string) map[string]interface{} {
	if m == nil {
		return nil
	}
	v, _ := m[key].(map[string]interface{})
	return v
}

func getInt(m map[string]interface{}, key string) int {
	if m == nil {
		return 0
	}
	switch v := m[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

func getFloat(m map[string]interface{}, key string) (float64, bool) {
	if m == nil {
		return 0, false
	}
	switch v := m[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}
