package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tendant/simple-vfs/pkg/simplevfs"
)

// Store implements simplevfs.Store using in-memory storage.
//
// Records are kept per (urn, attribute) in write order. Equal timestamps are
// tie-broken by write order: the later write wins on reads. WriteBatch holds
// the lock for the whole batch, so batches become visible atomically.
type Store struct {
	mu      sync.RWMutex
	records map[simplevfs.URN]map[string][]simplevfs.AttributeRecord
}

// New creates a new in-memory attribute store
func New() simplevfs.Store {
	return &Store{
		records: make(map[simplevfs.URN]map[string][]simplevfs.AttributeRecord),
	}
}

func (s *Store) WriteBatch(ctx context.Context, urn simplevfs.URN, ts time.Time, values map[string][]byte) error {
	if len(values) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	attrs, ok := s.records[urn]
	if !ok {
		attrs = make(map[string][]simplevfs.AttributeRecord)
		s.records[urn] = attrs
	}

	// Deterministic order within the batch keeps replays stable.
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		value := append([]byte(nil), values[name]...)
		attrs[name] = append(attrs[name], simplevfs.AttributeRecord{
			URN:       urn,
			Name:      name,
			Timestamp: ts,
			Value:     value,
		})
	}
	return nil
}

func (s *Store) ReadLatest(ctx context.Context, urn simplevfs.URN, name string, asOf time.Time) (*simplevfs.AttributeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.latestLocked(urn, name, asOf)
	if !ok {
		return nil, simplevfs.ErrAttributeNotSet
	}
	return &rec, nil
}

func (s *Store) ReadAll(ctx context.Context, urn simplevfs.URN, name string) ([]simplevfs.AttributeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.records[urn][name]
	result := make([]simplevfs.AttributeRecord, len(history))
	copy(result, history)

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Timestamp.Before(result[j].Timestamp)
	})
	return result, nil
}

func (s *Store) ReadSnapshot(ctx context.Context, urn simplevfs.URN, asOf time.Time) (map[string]simplevfs.AttributeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := make(map[string]simplevfs.AttributeRecord)
	for name := range s.records[urn] {
		if rec, ok := s.latestLocked(urn, name, asOf); ok {
			snapshot[name] = rec
		}
	}
	return snapshot, nil
}

func (s *Store) Exists(ctx context.Context, urn simplevfs.URN) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.records[urn]) > 0, nil
}

// latestLocked returns the record with the maximum timestamp <= asOf,
// preferring the later write on ties. Callers must hold the lock.
func (s *Store) latestLocked(urn simplevfs.URN, name string, asOf time.Time) (simplevfs.AttributeRecord, bool) {
	var best simplevfs.AttributeRecord
	found := false
	for _, rec := range s.records[urn][name] {
		if rec.Timestamp.After(asOf) {
			continue
		}
		if !found || !rec.Timestamp.Before(best.Timestamp) {
			best = rec
			found = true
		}
	}
	return best, found
}
