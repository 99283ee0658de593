package dynamodb

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// PK/SK prefix constants.
const (
	prefixCard    = "CARD#"
	prefixVariant = "VARIANT#"
	prefixFact    = "FACT#"
	prefixBatch   = "BATCH#"
	prefixLock    = "LOCK#"
	prefixReject  = "REJECT#"
	prefixEvent   = "EVENT#"
	prefixType    = "TYPE#"

	skDimension = "DIM"
	skLedger    = "LEDGER"
	skLock      = "LOCK"
)

func cardPK(cardKey int64) string       { return prefixCard + formatKey(cardKey) }
func variantPK(variantKey int64) string { return prefixVariant + formatKey(variantKey) }
func batchPK(batchID string) string     { return prefixBatch + batchID }
func lockPK(key string) string          { return prefixLock + key }

func dimensionSK() string { return skDimension }
func ledgerSK() string    { return skLedger }
func lockSK() string      { return skLock }

func factSK(bucket string) string { return prefixFact + bucket }

func rejectSK(ts time.Time) string {
	return fmt.Sprintf("%s%013d#%s", prefixReject, ts.UnixMilli(), nonce())
}

func eventSK(ts time.Time) string {
	return fmt.Sprintf("%s%013d#%s", prefixEvent, ts.UnixMilli(), nonce())
}

// formatKey zero-pads surrogate keys so lexicographic SK order matches
// numeric order.
func formatKey(k int64) string {
	return fmt.Sprintf("%019d", k)
}

func nonce() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func ttlEpoch(d time.Duration) int64 {
	return time.Now().Add(d).Unix()
}
