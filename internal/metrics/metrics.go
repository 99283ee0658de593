// Package metrics exposes runtime counters via expvar.
package metrics

import "expvar"

var (
	BatchesStarted   = expvar.NewInt("batches_started")
	BatchesCommitted = expvar.NewInt("batches_committed")
	BatchesFailed    = expvar.NewInt("batches_failed")
	RecordsValidated = expvar.NewInt("records_validated")
	RecordsDropped   = expvar.NewInt("records_dropped")
	FactsInserted    = expvar.NewInt("facts_inserted")
	FactsReplaced    = expvar.NewInt("facts_replaced")
	FactsSkipped     = expvar.NewInt("facts_skipped")
	FactsRejected    = expvar.NewInt("facts_rejected")
	AlertsDispatched = expvar.NewInt("alerts_dispatched")
	AlertsFailed     = expvar.NewInt("alerts_failed")
)
