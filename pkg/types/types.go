// Package types defines the public domain types for the cardlake
// staging-to-processed transformation pipeline.
package types

import "time"

// CaptureRef addresses one immutable raw capture file within a batch.
type CaptureRef struct {
	BatchID    string      `json:"batchId"`
	Kind       CaptureKind `json:"kind"`
	Key        string      `json:"key"` // backend-specific: file path or object key
	IngestedAt time.Time   `json:"ingestedAt"`
}

// RawCapture is one immutable JSON document produced by the ingestion
// collaborator. The pipeline only ever reads these.
type RawCapture struct {
	Ref     CaptureRef               `json:"ref"`
	Payload []map[string]interface{} `json:"payload"`
}

// CardRecord is a flattened staging row for the tcg_cards table.
type CardRecord struct {
	CardID          string `json:"card_id"`
	Name            string `json:"name"`
	Supertype       string `json:"supertype"`
	Number          string `json:"number"`
	Rarity          string `json:"rarity"`
	SetID           string `json:"set_id"`
	SetName         string `json:"set_name"`
	SetPrintedTotal int    `json:"set_printed_total"`
	SetReleaseDate  string `json:"set_release_date"`
	IngestionDate   string `json:"ingestion_date"`
}

// AsRow returns the record as a schema-validatable row.
func (c CardRecord) AsRow() map[string]interface{} {
	return map[string]interface{}{
		"card_id":           c.CardID,
		"name":              c.Name,
		"supertype":         c.Supertype,
		"number":            c.Number,
		"rarity":            c.Rarity,
		"set_id":            c.SetID,
		"set_name":          c.SetName,
		"set_printed_total": c.SetPrintedTotal,
		"set_release_date":  c.SetReleaseDate,
		"ingestion_date":    c.IngestionDate,
	}
}

// PriceRecord is a flattened staging row for the tcg_card_prices table.
// One row per (card, price variant type) observation.
type PriceRecord struct {
	CardID        string    `json:"card_id"`
	PriceType     string    `json:"price_type"`
	Market        float64   `json:"market"`
	Low           float64   `json:"low"`
	Mid           float64   `json:"mid"`
	High          float64   `json:"high"`
	TCGUpdatedAt  string    `json:"tcg_update_date"`
	ObservedAt    time.Time `json:"observed_at"`
	IngestionDate string    `json:"ingestion_date"`
}

// AsRow returns the record as a schema-validatable row.
func (p PriceRecord) AsRow() map[string]interface{} {
	return map[string]interface{}{
		"card_id":         p.CardID,
		"price_type":      p.PriceType,
		"market":          p.Market,
		"low":             p.Low,
		"mid":             p.Mid,
		"high":            p.High,
		"tcg_update_date": p.TCGUpdatedAt,
		"ingestion_date":  p.IngestionDate,
	}
}

// CardDimensionRow is one row of the card_master slowly changing dimension.
// CardKey is a deterministic surrogate key; it never changes once assigned.
type CardDimensionRow struct {
	CardKey          int64     `json:"card_key"`
	CardID           string    `json:"card_id"`
	CardName         string    `json:"card_name"`
	Supertype        string    `json:"supertype"`
	Number           string    `json:"number"`
	Rarity           string    `json:"rarity"`
	SetID            string    `json:"set_id"`
	SetName          string    `json:"set_name"`
	SetPrintedTotal  int       `json:"set_printed_total"`
	ReleaseDate      string    `json:"release_date"`
	FirstSeenBatch   string    `json:"first_seen_batch"`
	LastUpdatedBatch string    `json:"last_updated_batch"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// PriceVariantRow is one row of the card_price_variant_master dimension.
type PriceVariantRow struct {
	VariantKey       int64     `json:"card_price_variant_id"`
	CardKey          int64     `json:"card_key"`
	CardID           string    `json:"card_id"`
	PriceType        string    `json:"price_type"`
	FirstSeenBatch   string    `json:"first_seen_batch"`
	LastUpdatedBatch string    `json:"last_updated_batch"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// PriceHistoryRow is one row of the append-only tcg_price_history fact table.
// Exactly one row exists per (VariantKey, Bucket).
type PriceHistoryRow struct {
	VariantKey int64     `json:"card_price_variant_id"`
	Bucket     string    `json:"price_week"`
	Market     float64   `json:"market"`
	Low        float64   `json:"low"`
	Mid        float64   `json:"mid"`
	High       float64   `json:"high"`
	BatchID    string    `json:"batch_id"`
	RecordedAt time.Time `json:"recorded_at"`
}

// RejectedRecord captures a price observation that could not be applied,
// routed to the rejected sink for later diagnosis.
type RejectedRecord struct {
	BatchID    string       `json:"batchId"`
	CardID     string       `json:"cardId"`
	PriceType  string       `json:"priceType"`
	Reason     RejectReason `json:"reason"`
	Detail     string       `json:"detail,omitempty"`
	RecordedAt time.Time    `json:"recordedAt"`
}

// OutcomeReport is the per-batch operational signal consumed by alerting.
type OutcomeReport struct {
	Validated int `json:"validated"`
	Dropped   int `json:"dropped"`
	Inserted  int `json:"inserted"`
	Replaced  int `json:"replaced"`
	Skipped   int `json:"skipped"`
	Rejected  int `json:"rejected"`

	CardsInserted    int `json:"cardsInserted"`
	CardsUpdated     int `json:"cardsUpdated"`
	VariantsInserted int `json:"variantsInserted"`
	VariantsUpdated  int `json:"variantsUpdated"`
}

// BatchLedgerEntry tracks durable per-batch pipeline state. Crash recovery is
// "read last known state and resume", never "guess from partial tables".
type BatchLedgerEntry struct {
	BatchID     string         `json:"batchId"`
	AttemptID   string         `json:"attemptId"` // ULID, new per run attempt
	Status      BatchStatus    `json:"status"`
	Outcome     *OutcomeReport `json:"outcome,omitempty"`
	Error       string         `json:"error,omitempty"`
	StartedAt   time.Time      `json:"startedAt"`
	CompletedAt *time.Time     `json:"completedAt,omitempty"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// Event is an append-only audit log entry recording what happened and when.
type Event struct {
	EventID   string                 `json:"eventId"`
	Kind      EventKind              `json:"kind"`
	BatchID   string                 `json:"batchId"`
	Table     string                 `json:"table,omitempty"`
	Message   string                 `json:"message,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Alert represents an alert event to be dispatched.
type Alert struct {
	Level     AlertLevel             `json:"level"`
	BatchID   string                 `json:"batchId,omitempty"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}
