package dimension

import (
	"crypto/sha1"
	"encoding/binary"
	"strconv"
	"strings"
)

// Surrogate keys are derived from natural attributes alone so that identity
// is stable across runs, hosts, and full recomputation. No randomness, no
// auto-increment.

// keyModulus keeps keys within a positive BIGINT range.
const keyModulus = int64(1e18)

// normalizeKeyPart canonicalizes one natural-key field: lower-case, trimmed,
// inner whitespace collapsed.
func normalizeKeyPart(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(s))), " ")
}

func hashKey(parts ...string) int64 {
	sum := sha1.Sum([]byte(strings.Join(parts, "|")))
	// Take the first 8 bytes of the digest as a big-endian integer, reduced
	// to the BIGINT-safe range.
	v := int64(binary.BigEndian.Uint64(sum[:8]) % uint64(keyModulus))
	return v
}

// CardKey computes the deterministic surrogate key for a card from its
// natural key: set code + card number + name.
func CardKey(setID, number, name string) int64 {
	return hashKey(normalizeKeyPart(setID), normalizeKeyPart(number), normalizeKeyPart(name))
}

// VariantKey computes the deterministic surrogate key for a sellable price
// variant of a card.
func VariantKey(cardKey int64, priceType string) int64 {
	return hashKey(strconv.FormatInt(cardKey, 10), normalizeKeyPart(priceType))
}
