// Package raw enumerates and loads immutable captured payloads for a batch.
// Captures are produced by the ingestion collaborator; this package only
// reads them, never writes.
package raw

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cardlake/cardlake/pkg/types"
)

// Data lake layout, shared by the local and S3 backends:
//
//	raw/pokemon_tcg/<entity>/ingestion_date=<batch>/<file>.json
//
// where <entity> is "cards" (catalog) or "prices" (price snapshot) and
// <batch> is the ingestion date.
const (
	layoutPrefix  = "raw/pokemon_tcg"
	entityCards   = "cards"
	entityPrices  = "prices"
	partitionName = "ingestion_date"
)

// Reader lists and loads raw captures for a batch.
type Reader interface {
	ListCaptures(ctx context.Context, batchID string) ([]types.CaptureRef, error)
	ReadCapture(ctx context.Context, ref types.CaptureRef) (*types.RawCapture, error)
}

func entityKind(entity string) (types.CaptureKind, bool) {
	switch entity {
	case entityCards:
		return types.CaptureCatalog, true
	case entityPrices:
		return types.CapturePriceSnapshot, true
	}
	return "", false
}

// decodePayload accepts either a bare JSON array of card objects or an API
// response envelope with a "data" array.
func decodePayload(data []byte, key string) ([]map[string]interface{}, error) {
	var list []map[string]interface{}
	if err := json.Unmarshal(data, &list); err == nil {
		return list, nil
	}

	var envelope struct {
		Data []map[string]interface{} `json:"data"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("capture %s: expected JSON array or data envelope: %w", key, err)
	}
	if envelope.Data == nil {
		return nil, fmt.Errorf("capture %s: no data array present", key)
	}
	return envelope.Data, nil
}
