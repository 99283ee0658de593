package types

// Table names for the staging and processed layers.
const (
	TableCards           = "tcg_cards"
	TableCardPrices      = "tcg_card_prices"
	TableCardMaster      = "card_master"
	TableVariantMaster   = "card_price_variant_master"
	TablePriceHistory    = "tcg_price_history"
	TableWeeklyTopCards  = "weekly_top_tcg_cards"
)

// CaptureKind identifies the source entity type of a raw capture.
type CaptureKind string

// CaptureKind values enumerate the raw capture source entity types.
const (
	CaptureCatalog       CaptureKind = "catalog"
	CapturePriceSnapshot CaptureKind = "price_snapshot"
)

// BatchStatus represents the lifecycle state of a pipeline batch.
type BatchStatus string

// BatchStatus values represent the lifecycle states of a batch.
const (
	BatchPending     BatchStatus = "PENDING"
	BatchStaged      BatchStatus = "STAGED"
	BatchDimensioned BatchStatus = "DIMENSIONED"
	BatchCommitted   BatchStatus = "COMMITTED"
	BatchFailed      BatchStatus = "FAILED"
)

// RejectReason classifies why a price observation was routed to the
// rejected sink instead of the fact table.
type RejectReason string

const (
	RejectUnresolvedVariant RejectReason = "UNRESOLVED_VARIANT"
	RejectUnresolvedCard    RejectReason = "UNRESOLVED_CARD"
	RejectBadTimestamp      RejectReason = "BAD_TIMESTAMP"
)

// AlertLevel replaces string-typed alert levels with a proper enum.
type AlertLevel string

const (
	AlertLevelError   AlertLevel = "error"
	AlertLevelWarning AlertLevel = "warning"
	AlertLevelInfo    AlertLevel = "info"
)

// AlertType defines the alert sink type.
type AlertType string

// AlertType values enumerate the supported alert sink backends.
const (
	AlertConsole AlertType = "console"
	AlertWebhook AlertType = "webhook"
	AlertFile    AlertType = "file"
	AlertSNS     AlertType = "sns"
)

// EventKind classifies the type of audit event.
type EventKind string

// EventKind values enumerate the categories of recorded events.
const (
	EventBatchStateChanged    EventKind = "BATCH_STATE_CHANGED"
	EventRecordDropped        EventKind = "RECORD_DROPPED"
	EventDropThresholdBreach  EventKind = "DROP_THRESHOLD_BREACHED"
	EventDimensionConflict    EventKind = "DIMENSION_CONFLICT"
	EventFactCorrection       EventKind = "FACT_CORRECTION"
	EventRecordRejected       EventKind = "RECORD_REJECTED"
	EventBatchCommitted       EventKind = "BATCH_COMMITTED"
	EventBatchFailed          EventKind = "BATCH_FAILED"
)
