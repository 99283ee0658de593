// Package testutil provides an in-memory Store and shared test fixtures.
package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cardlake/cardlake/internal/store"
	"github.com/cardlake/cardlake/pkg/types"
)

// Compile-time interface satisfaction check.
var _ store.Store = (*MemStore)(nil)

// MemStore is an in-memory Store for tests. Optional error hooks let tests
// inject storage failures at specific points.
type MemStore struct {
	mu sync.Mutex

	Cards    map[int64]types.CardDimensionRow
	Variants map[int64]types.PriceVariantRow
	Facts    map[string]types.PriceHistoryRow // key: variantKey|bucket
	Batches  map[string]types.BatchLedgerEntry
	Rejected []types.RejectedRecord
	Events   []types.Event
	locks    map[string]time.Time

	// FailApplyFacts makes the next ApplyFacts call fail without writing.
	FailApplyFacts error
	// FailPutCard makes PutCard calls fail.
	FailPutCard error
}

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		Cards:    make(map[int64]types.CardDimensionRow),
		Variants: make(map[int64]types.PriceVariantRow),
		Facts:    make(map[string]types.PriceHistoryRow),
		Batches:  make(map[string]types.BatchLedgerEntry),
		locks:    make(map[string]time.Time),
	}
}

func factKey(variantKey int64, bucket string) string {
	return bucket + "#" + formatKey(variantKey)
}

func formatKey(k int64) string {
	// fixed-width for deterministic ordering
	const digits = "0123456789"
	buf := make([]byte, 19)
	for i := 18; i >= 0; i-- {
		buf[i] = digits[k%10]
		k /= 10
	}
	return string(buf)
}

func (m *MemStore) GetCard(_ context.Context, cardKey int64) (*types.CardDimensionRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if row, ok := m.Cards[cardKey]; ok {
		return &row, nil
	}
	return nil, nil
}

func (m *MemStore) PutCard(_ context.Context, row types.CardDimensionRow) error {
	if m.FailPutCard != nil {
		return m.FailPutCard
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Cards[row.CardKey] = row
	return nil
}

func (m *MemStore) ListCards(_ context.Context) ([]types.CardDimensionRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.CardDimensionRow, 0, len(m.Cards))
	for _, row := range m.Cards {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CardKey < out[j].CardKey })
	return out, nil
}

func (m *MemStore) GetVariant(_ context.Context, variantKey int64) (*types.PriceVariantRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if row, ok := m.Variants[variantKey]; ok {
		return &row, nil
	}
	return nil, nil
}

func (m *MemStore) PutVariant(_ context.Context, row types.PriceVariantRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Variants[row.VariantKey] = row
	return nil
}

func (m *MemStore) ListVariants(_ context.Context) ([]types.PriceVariantRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.PriceVariantRow, 0, len(m.Variants))
	for _, row := range m.Variants {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VariantKey < out[j].VariantKey })
	return out, nil
}

func (m *MemStore) GetFact(_ context.Context, variantKey int64, bucket string) (*types.PriceHistoryRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if row, ok := m.Facts[factKey(variantKey, bucket)]; ok {
		return &row, nil
	}
	return nil, nil
}

func (m *MemStore) ApplyFacts(_ context.Context, _ string, rows []types.PriceHistoryRow) error {
	if m.FailApplyFacts != nil {
		return m.FailApplyFacts
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range rows {
		m.Facts[factKey(row.VariantKey, row.Bucket)] = row
	}
	return nil
}

func (m *MemStore) ListFacts(_ context.Context) ([]types.PriceHistoryRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.Facts))
	for k := range m.Facts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]types.PriceHistoryRow, 0, len(keys))
	for _, k := range keys {
		out = append(out, m.Facts[k])
	}
	return out, nil
}

func (m *MemStore) GetBatch(_ context.Context, batchID string) (*types.BatchLedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if entry, ok := m.Batches[batchID]; ok {
		return &entry, nil
	}
	return nil, nil
}

func (m *MemStore) PutBatch(_ context.Context, entry types.BatchLedgerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Batches[entry.BatchID] = entry
	return nil
}

func (m *MemStore) ListBatches(_ context.Context, limit int) ([]types.BatchLedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.BatchLedgerEntry, 0, len(m.Batches))
	for _, entry := range m.Batches {
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BatchID > out[j].BatchID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemStore) PutRejected(_ context.Context, record types.RejectedRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Rejected = append(m.Rejected, record)
	return nil
}

func (m *MemStore) ListRejected(_ context.Context, batchID string) ([]types.RejectedRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.RejectedRecord
	for _, r := range m.Rejected {
		if batchID == "" || r.BatchID == batchID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *MemStore) AppendEvent(_ context.Context, event types.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, event)
	return nil
}

func (m *MemStore) ListEvents(_ context.Context, batchID string, limit int) ([]types.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.Event
	for _, e := range m.Events {
		if batchID == "" || e.BatchID == batchID {
			out = append(out, e)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (m *MemStore) AcquireLock(_ context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if exp, ok := m.locks[key]; ok && time.Now().Before(exp) {
		return false, nil
	}
	m.locks[key] = time.Now().Add(ttl)
	return true, nil
}

func (m *MemStore) ReleaseLock(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, key)
	return nil
}

func (m *MemStore) Start(_ context.Context) error { return nil }
func (m *MemStore) Stop(_ context.Context) error  { return nil }
func (m *MemStore) Ping(_ context.Context) error  { return nil }

// EventsOfKind returns recorded events of one kind, for assertions.
func (m *MemStore) EventsOfKind(kind types.EventKind) []types.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.Event
	for _, e := range m.Events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}
