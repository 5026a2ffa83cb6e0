package session

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// MemoryStore is a volatile in-process Store. It is the fallback when no
// durable cache is configured or reachable: sessions work, but do not survive
// a restart. It is thread-safe and evicts expired records in the background.
type MemoryStore struct {
	mu            sync.RWMutex
	records       map[string]*memoryEntry
	ttl           time.Duration
	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}
	stopOnce      sync.Once
}

type memoryEntry struct {
	record    *Record
	expiresAt time.Time
}

// NewMemoryStore creates an in-process store whose records live for ttl past
// their last Save. A background goroutine evicts expired records every minute.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	s := &MemoryStore{
		records:       make(map[string]*memoryEntry),
		ttl:           ttl,
		cleanupTicker: time.NewTicker(1 * time.Minute),
		stopCleanup:   make(chan struct{}),
	}

	go s.cleanupLoop()

	return s
}

// Get retrieves a live record. Expired entries behave as absent.
func (s *MemoryStore) Get(_ context.Context, id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.records[id]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, ErrNotFound
	}

	// Return a copy so callers cannot mutate stored state.
	return entry.record.Clone(), nil
}

// Save stores a copy of the record and re-arms its TTL.
func (s *MemoryStore) Save(_ context.Context, id string, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[id] = &memoryEntry{
		record:    rec.Clone(),
		expiresAt: time.Now().Add(s.ttl),
	}
	return nil
}

// Delete removes a record. Absent records are ignored.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, id)
	return nil
}

// Kind identifies this store as the volatile fallback.
func (s *MemoryStore) Kind() string { return "memory" }

// Close stops the background eviction goroutine.
func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() {
		s.cleanupTicker.Stop()
		close(s.stopCleanup)
	})
	return nil
}

// Count returns the number of stored records, including not-yet-evicted
// expired ones. Useful for monitoring and tests.
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *MemoryStore) cleanupLoop() {
	for {
		select {
		case <-s.cleanupTicker.C:
			s.cleanup()
		case <-s.stopCleanup:
			return
		}
	}
}

// cleanup removes all expired records.
func (s *MemoryStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	expired := 0

	for id, entry := range s.records {
		if now.After(entry.expiresAt) {
			delete(s.records, id)
			expired++
		}
	}

	if expired > 0 {
		slog.Debug("evicted expired sessions", "count", expired)
	}
}
