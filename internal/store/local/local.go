// Package local implements a filesystem-backed Store for single-host
// deployments and development. Each table is one JSONL file under the
// processed/ directory; rewrites go through a temp file and rename so a
// crash mid-write never leaves a half-written table behind.
package local

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/cardlake/cardlake/internal/store"
	"github.com/cardlake/cardlake/pkg/types"
)

// Compile-time interface satisfaction check.
var _ store.Store = (*Store)(nil)

const (
	processedDir = "processed"

	cardsFile    = "card_master.jsonl"
	variantsFile = "card_price_variant_master.jsonl"
	factsFile    = "tcg_price_history.jsonl"
	batchesFile  = "batch_ledger.jsonl"
	rejectedFile = "rejected_records.jsonl"
	eventsFile   = "events.jsonl"
	locksFile    = "locks.json"
)

// Store keeps full table state in memory and persists each table to its own
// JSONL file on every mutation.
type Store struct {
	dir string

	mu       sync.Mutex
	cards    map[int64]types.CardDimensionRow
	variants map[int64]types.PriceVariantRow
	facts    map[string]types.PriceHistoryRow
	batches  map[string]types.BatchLedgerEntry
	rejected []types.RejectedRecord
	events   []types.Event
	locks    map[string]time.Time
}

// New creates a Store rooted at dir. Call Start before use.
func New(cfg *types.LocalStoreConfig) (*Store, error) {
	if cfg == nil || cfg.Dir == "" {
		return nil, fmt.Errorf("local store requires a directory")
	}
	return &Store{
		dir:      cfg.Dir,
		cards:    make(map[int64]types.CardDimensionRow),
		variants: make(map[int64]types.PriceVariantRow),
		facts:    make(map[string]types.PriceHistoryRow),
		batches:  make(map[string]types.BatchLedgerEntry),
		locks:    make(map[string]time.Time),
	}, nil
}

// Start creates the processed directory and loads existing table files.
func (s *Store) Start(_ context.Context) error {
	if err := os.MkdirAll(filepath.Join(s.dir, processedDir), 0o755); err != nil {
		return fmt.Errorf("creating processed directory: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := loadJSONL(s.path(cardsFile), func(row types.CardDimensionRow) {
		s.cards[row.CardKey] = row
	}); err != nil {
		return err
	}
	if err := loadJSONL(s.path(variantsFile), func(row types.PriceVariantRow) {
		s.variants[row.VariantKey] = row
	}); err != nil {
		return err
	}
	if err := loadJSONL(s.path(factsFile), func(row types.PriceHistoryRow) {
		s.facts[factKey(row.VariantKey, row.Bucket)] = row
	}); err != nil {
		return err
	}
	if err := loadJSONL(s.path(batchesFile), func(entry types.BatchLedgerEntry) {
		s.batches[entry.BatchID] = entry
	}); err != nil {
		return err
	}
	if err := loadJSONL(s.path(rejectedFile), func(r types.RejectedRecord) {
		s.rejected = append(s.rejected, r)
	}); err != nil {
		return err
	}
	if err := loadJSONL(s.path(eventsFile), func(e types.Event) {
		s.events = append(s.events, e)
	}); err != nil {
		return err
	}
	if err := loadLocks(s.path(locksFile), s.locks); err != nil {
		return err
	}
	return nil
}

// Stop flushes all tables.
func (s *Store) Stop(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, table := range []string{cardsFile, variantsFile, factsFile, batchesFile, rejectedFile, eventsFile} {
		if err := s.persistLocked(table); err != nil {
			return err
		}
	}
	return nil
}

// Ping verifies the data directory is writable.
func (s *Store) Ping(_ context.Context) error {
	probe := filepath.Join(s.dir, processedDir, ".ping")
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		return fmt.Errorf("processed directory not writable: %w", err)
	}
	return os.Remove(probe)
}

func (s *Store) GetCard(_ context.Context, cardKey int64) (*types.CardDimensionRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if row, ok := s.cards[cardKey]; ok {
		return &row, nil
	}
	return nil, nil
}

func (s *Store) PutCard(_ context.Context, row types.CardDimensionRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cards[row.CardKey] = row
	return s.persistLocked(cardsFile)
}

func (s *Store) ListCards(_ context.Context) ([]types.CardDimensionRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.CardDimensionRow, 0, len(s.cards))
	for _, row := range s.cards {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CardKey < out[j].CardKey })
	return out, nil
}

func (s *Store) GetVariant(_ context.Context, variantKey int64) (*types.PriceVariantRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if row, ok := s.variants[variantKey]; ok {
		return &row, nil
	}
	return nil, nil
}

func (s *Store) PutVariant(_ context.Context, row types.PriceVariantRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.variants[row.VariantKey] = row
	return s.persistLocked(variantsFile)
}

func (s *Store) ListVariants(_ context.Context) ([]types.PriceVariantRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.PriceVariantRow, 0, len(s.variants))
	for _, row := range s.variants {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VariantKey < out[j].VariantKey })
	return out, nil
}

func (s *Store) GetFact(_ context.Context, variantKey int64, bucket string) (*types.PriceHistoryRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if row, ok := s.facts[factKey(variantKey, bucket)]; ok {
		return &row, nil
	}
	return nil, nil
}

// ApplyFacts merges the row set into the fact table and rewrites the table
// file once. The rename at the end is the commit point: either the new file
// with every row lands, or the old file stays intact.
func (s *Store) ApplyFacts(_ context.Context, _ string, rows []types.PriceHistoryRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	merged := make(map[string]types.PriceHistoryRow, len(s.facts)+len(rows))
	for k, v := range s.facts {
		merged[k] = v
	}
	for _, row := range rows {
		merged[factKey(row.VariantKey, row.Bucket)] = row
	}

	prev := s.facts
	s.facts = merged
	if err := s.persistLocked(factsFile); err != nil {
		s.facts = prev
		return err
	}
	return nil
}

func (s *Store) ListFacts(_ context.Context) ([]types.PriceHistoryRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.factsSortedLocked(), nil
}

func (s *Store) GetBatch(_ context.Context, batchID string) (*types.BatchLedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.batches[batchID]; ok {
		return &entry, nil
	}
	return nil, nil
}

func (s *Store) PutBatch(_ context.Context, entry types.BatchLedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches[entry.BatchID] = entry
	return s.persistLocked(batchesFile)
}

func (s *Store) ListBatches(_ context.Context, limit int) ([]types.BatchLedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.BatchLedgerEntry, 0, len(s.batches))
	for _, entry := range s.batches {
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BatchID > out[j].BatchID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) PutRejected(_ context.Context, record types.RejectedRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejected = append(s.rejected, record)
	return appendJSONL(s.path(rejectedFile), record)
}

func (s *Store) ListRejected(_ context.Context, batchID string) ([]types.RejectedRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.RejectedRecord
	for _, r := range s.rejected {
		if batchID == "" || r.BatchID == batchID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Store) AppendEvent(_ context.Context, event types.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return appendJSONL(s.path(eventsFile), event)
}

func (s *Store) ListEvents(_ context.Context, batchID string, limit int) ([]types.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.Event
	for _, e := range s.events {
		if batchID == "" || e.BatchID == batchID {
			out = append(out, e)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (s *Store) AcquireLock(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if exp, ok := s.locks[key]; ok && time.Now().Before(exp) {
		return false, nil
	}
	s.locks[key] = time.Now().Add(ttl)
	return true, s.persistLocksLocked()
}

func (s *Store) ReleaseLock(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.locks, key)
	return s.persistLocksLocked()
}

func (s *Store) path(table string) string {
	return filepath.Join(s.dir, processedDir, table)
}

func factKey(variantKey int64, bucket string) string {
	return fmt.Sprintf("%s#%019d", bucket, variantKey)
}

func (s *Store) factsSortedLocked() []types.PriceHistoryRow {
	keys := make([]string, 0, len(s.facts))
	for k := range s.facts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]types.PriceHistoryRow, 0, len(keys))
	for _, k := range keys {
		out = append(out, s.facts[k])
	}
	return out
}

// persistLocked rewrites one table file from memory. Caller holds s.mu.
func (s *Store) persistLocked(table string) error {
	var rows []interface{}
	switch table {
	case cardsFile:
		for _, row := range s.cards {
			rows = append(rows, row)
		}
		sort.Slice(rows, func(i, j int) bool {
			return rows[i].(types.CardDimensionRow).CardKey < rows[j].(types.CardDimensionRow).CardKey
		})
	case variantsFile:
		for _, row := range s.variants {
			rows = append(rows, row)
		}
		sort.Slice(rows, func(i, j int) bool {
			return rows[i].(types.PriceVariantRow).VariantKey < rows[j].(types.PriceVariantRow).VariantKey
		})
	case factsFile:
		for _, row := range s.factsSortedLocked() {
			rows = append(rows, row)
		}
	case batchesFile:
		for _, entry := range s.batches {
			rows = append(rows, entry)
		}
		sort.Slice(rows, func(i, j int) bool {
			return rows[i].(types.BatchLedgerEntry).BatchID < rows[j].(types.BatchLedgerEntry).BatchID
		})
	case rejectedFile:
		for _, r := range s.rejected {
			rows = append(rows, r)
		}
	case eventsFile:
		for _, e := range s.events {
			rows = append(rows, e)
		}
	}
	return writeJSONLAtomic(s.path(table), rows)
}

func (s *Store) persistLocksLocked() error {
	data, err := json.Marshal(s.locks)
	if err != nil {
		return fmt.Errorf("encoding locks: %w", err)
	}
	return writeFileAtomic(s.path(locksFile), data)
}

func loadJSONL[T any](path string, add func(T)) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var row T
		if err := json.Unmarshal(line, &row); err != nil {
			return fmt.Errorf("decoding %s: %w", path, err)
		}
		add(row)
	}
	return scanner.Err()
}

func loadLocks(path string, locks map[string]time.Time) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading %s: %w", path, err)
	}
	return json.Unmarshal(data, &locks)
}

func appendJSONL(path string, row interface{}) error {
	data, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("encoding row: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("appending to %s: %w", path, err)
	}
	return f.Sync()
}

func writeJSONLAtomic(path string, rows []interface{}) error {
	var buf []byte
	for _, row := range rows {
		data, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("encoding row: %w", err)
		}
		buf = append(buf, data...)
		buf = append(buf, '\n')
	}
	return writeFileAtomic(path, buf)
}

// writeFileAtomic writes to a temp file in the same directory and renames it
// over the target.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	return os.Rename(tmp.Name(), path)
}
