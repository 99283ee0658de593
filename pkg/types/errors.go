package types

import (
	"errors"
	"fmt"
)

// SchemaViolation reports a record that does not satisfy its table contract.
// Record-level and recoverable: the record is dropped and counted, never
// fatal to the batch.
type SchemaViolation struct {
	Table    string
	Field    string
	Expected string
	Observed string
}

func (e *SchemaViolation) Error() string {
	return fmt.Sprintf("schema violation in %s.%s: expected %s, observed %s",
		e.Table, e.Field, e.Expected, e.Observed)
}

// UnresolvedReference reports a fact row whose dimension key could not be
// resolved. Recoverable: routed to the rejected sink.
type UnresolvedReference struct {
	Table  string
	CardID string
	Detail string
}

func (e *UnresolvedReference) Error() string {
	return fmt.Sprintf("unresolved reference in %s for card %q: %s", e.Table, e.CardID, e.Detail)
}

// DropThresholdExceeded blocks auto-commit of a batch whose record drop rate
// signals a systemic upstream format change.
type DropThresholdExceeded struct {
	BatchID   string
	Dropped   int
	Total     int
	Threshold float64
}

func (e *DropThresholdExceeded) Error() string {
	return fmt.Sprintf("batch %s dropped %d of %d records, above threshold %.2f",
		e.BatchID, e.Dropped, e.Total, e.Threshold)
}

// IntegrityConflict reports contradictory natural-key data seen during a
// dimension upsert. Latest values win; the conflict is audited.
type IntegrityConflict struct {
	Table   string
	Key     int64
	Field   string
	Stored  string
	Incoming string
}

func (e *IntegrityConflict) Error() string {
	return fmt.Sprintf("integrity conflict in %s key %d field %s: stored %q, incoming %q",
		e.Table, e.Key, e.Field, e.Stored, e.Incoming)
}

// StorageFailure wraps an I/O error from an external storage collaborator.
// The batch moves to FAILED and is fully retryable.
type StorageFailure struct {
	Op  string
	Err error
}

func (e *StorageFailure) Error() string {
	return fmt.Sprintf("storage failure during %s: %v", e.Op, e.Err)
}

func (e *StorageFailure) Unwrap() error { return e.Err }

// IsRecordLevel reports whether err is a record-level error that must not
// abort a batch.
func IsRecordLevel(err error) bool {
	var sv *SchemaViolation
	var ur *UnresolvedReference
	return errors.As(err, &sv) || errors.As(err, &ur)
}
