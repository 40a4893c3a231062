package lockout

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory lockout store for tests. TTLs are evaluated
// against an injectable clock.
type MemoryStore struct {
	mu     sync.Mutex
	counts map[string]*entry
	locks  map[string]time.Time
	clock  func() time.Time
}

type entry struct {
	count   int64
	expires time.Time
}

func NewMemoryStore(clock func() time.Time) *MemoryStore {
	if clock == nil {
		clock = time.Now
	}
	return &MemoryStore{
		counts: make(map[string]*entry),
		locks:  make(map[string]time.Time),
		clock:  clock,
	}
}

func (s *MemoryStore) IncrFailures(ctx context.Context, key string, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock()
	e, ok := s.counts[key]
	if !ok || now.After(e.expires) {
		e = &entry{expires: now.Add(window)}
		s.counts[key] = e
	}
	e.count++
	return e.count, nil
}

func (s *MemoryStore) ClearFailures(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.counts, key)
	return nil
}

func (s *MemoryStore) SetLock(ctx context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locks[key] = s.clock().Add(ttl)
	return nil
}

func (s *MemoryStore) Locked(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	until, ok := s.locks[key]
	if !ok {
		return false, nil
	}
	if s.clock().After(until) {
		delete(s.locks, key)
		return false, nil
	}
	return true, nil
}
