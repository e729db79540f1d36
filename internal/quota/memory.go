package quota

import (
	"context"
	"sync"
	"time"
)

type memoryRecord struct {
	count     int64
	expiresAt time.Time
}

// MemoryStore keeps counters in process memory. It is meant for tests and
// local development; counts vanish on restart.
type MemoryStore struct {
	mu      sync.Mutex
	records map[Key]memoryRecord
	now     func() time.Time
}

// NewMemoryStore creates an empty in-memory counter store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[Key]memoryRecord),
		now:     time.Now,
	}
}

// WithClock replaces the time source, for expiry tests.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

func (s *MemoryStore) Count(_ context.Context, key Key) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok {
		return 0, nil
	}
	if !s.now().Before(rec.expiresAt) {
		delete(s.records, key)
		return 0, nil
	}
	return rec.count, nil
}

func (s *MemoryStore) Incr(_ context.Context, key Key, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	rec, ok := s.records[key]
	if !ok || !now.Before(rec.expiresAt) {
		rec = memoryRecord{expiresAt: now.Add(ttl)}
	}
	rec.count++
	s.records[key] = rec
	return rec.count, nil
}

func (s *MemoryStore) Decr(_ context.Context, key Key) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok || !s.now().Before(rec.expiresAt) {
		return 0, nil
	}
	if rec.count > 0 {
		rec.count--
	}
	s.records[key] = rec
	return rec.count, nil
}
